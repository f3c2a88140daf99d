// Package streammanager implements the process-wide Stream Manager (C4):
// a registry of Stream Sessions keyed by stream id, guaranteeing that
// operations on the same session are serialized while cross-session
// operations never contend.
package streammanager

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streampipe/recordpipe/internal/config"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/session"
	"github.com/streampipe/recordpipe/internal/streamerrors"
)

// Manager is the registry of active Stream Sessions. Its mutex guards
// only map insert/remove/lookup — once a *session.Session is obtained,
// all further serialization happens inside the session's own mutex, so
// two goroutines operating on different sessions never contend here.
type Manager struct {
	recordingDir string
	recCfg       config.RecordingConfig
	logger       *logging.Logger
	registry     *registry.Registry

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New creates an empty Stream Manager backed by reg, the Recording
// Registry StartRecording/StopRecording keep in sync with each branch's
// lifecycle.
func New(recordingDir string, recCfg config.RecordingConfig, logger *logging.Logger, reg *registry.Registry) *Manager {
	return &Manager{
		recordingDir: recordingDir,
		recCfg:       recCfg,
		logger:       logger,
		registry:     reg,
		sessions:     make(map[string]*session.Session),
	}
}

// Connect mints (or accepts) a stream id, constructs a Session in
// CONNECTING state, and registers it. A caller-supplied id that's
// already registered fails AlreadyExists.
func (m *Manager) Connect(streamID string, protocol session.Protocol, url string) (string, error) {
	m.mu.Lock()
	if streamID != "" {
		if _, exists := m.sessions[streamID]; exists {
			m.mu.Unlock()
			return "", streamerrors.ErrAlreadyExists
		}
	} else {
		streamID = newStreamID()
	}

	sess := session.New(streamID, protocol, url, m.recCfg, m.recordingDir, m.logger)
	m.sessions[streamID] = sess
	m.mu.Unlock()

	return streamID, nil
}

// Disconnect tears down a session and removes it from the registry
// regardless of error paths.
func (m *Manager) Disconnect(ctx context.Context, streamID string) error {
	m.mu.RLock()
	sess, ok := m.sessions[streamID]
	m.mu.RUnlock()
	if !ok {
		return streamerrors.NewStreamNotFoundError(streamID)
	}

	err := sess.Disconnect(ctx)

	m.mu.Lock()
	delete(m.sessions, streamID)
	m.mu.Unlock()

	return err
}

// StartRecording delegates to the named session, then records a RECORDING
// row in the Recording Registry. A registry write
// failure is logged but doesn't fail the request: the branch is already
// attached and capturing, and the row can still be reconstructed from the
// file on disk if needed.
func (m *Manager) StartRecording(ctx context.Context, streamID string) (string, string, error) {
	sess, err := m.lookup(streamID)
	if err != nil {
		return "", "", err
	}
	recordingID, filePath, err := sess.StartRecording(ctx)
	if err != nil {
		return "", "", err
	}

	if _, regErr := m.registry.Create(recordingID, filepath.Base(filePath), filePath, time.Now()); regErr != nil {
		m.logger.WithError(regErr).WithField("recording_id", recordingID).
			Warn("failed to create recording registry row")
	}

	return recordingID, filePath, nil
}

// StopRecording delegates to the named session, then marks the Recording
// Registry row COMPLETED or FAILED — a zero-byte file after detach
// means the recording never captured usable data.
func (m *Manager) StopRecording(ctx context.Context, streamID string) (string, int64, error) {
	sess, err := m.lookup(streamID)
	if err != nil {
		return "", 0, err
	}
	recordingID, fileSize, stopErr := sess.StopRecording(ctx)
	if recordingID == "" {
		return "", fileSize, stopErr
	}

	endTime := time.Now()
	rec, regErr := m.registry.Get(recordingID)
	var durationSeconds int64
	if regErr == nil {
		durationSeconds = int64(endTime.Sub(rec.StartTime).Seconds())
	}

	if fileSize == 0 {
		if _, err := m.registry.UpdateFailed(recordingID, endTime, durationSeconds, fileSize); err != nil {
			m.logger.WithError(err).WithField("recording_id", recordingID).
				Warn("failed to mark recording registry row failed")
		}
	} else {
		if _, err := m.registry.UpdateCompleted(recordingID, endTime, durationSeconds, fileSize); err != nil {
			m.logger.WithError(err).WithField("recording_id", recordingID).
				Warn("failed to mark recording registry row completed")
		}
	}

	return recordingID, fileSize, stopErr
}

// Status returns one session's status snapshot.
func (m *Manager) Status(streamID string) (session.Status, error) {
	sess, err := m.lookup(streamID)
	if err != nil {
		return session.Status{}, err
	}
	return sess.Status(), nil
}

// StatusAll returns every registered session's status, keyed by stream id.
func (m *Manager) StatusAll() map[string]session.Status {
	m.mu.RLock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		ids = append(ids, id)
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make(map[string]session.Status, len(sessions))
	for i, s := range sessions {
		out[ids[i]] = s.Status()
	}
	return out
}

// DetailedStatus returns one session's debug status.
func (m *Manager) DetailedStatus(streamID string) (session.DebugStatus, error) {
	sess, err := m.lookup(streamID)
	if err != nil {
		return session.DebugStatus{}, err
	}
	return sess.DetailedStatus(), nil
}

// Session exposes the underlying session handle rather than a status
// snapshot.
func (m *Manager) Session(streamID string) (*session.Session, error) {
	return m.lookup(streamID)
}

// AttachWebRTC delegates to the named session's WebRTC Branch (C7) offer
// negotiation and returns its branch id and answer SDP.
func (m *Manager) AttachWebRTC(ctx context.Context, streamID, offerSDP string) (string, string, error) {
	sess, err := m.lookup(streamID)
	if err != nil {
		return "", "", err
	}
	return sess.AttachWebRTC(ctx, offerSDP)
}

// DetachWebRTC delegates to the named session's WebRTC Branch teardown.
func (m *Manager) DetachWebRTC(ctx context.Context, streamID, branchID string) error {
	sess, err := m.lookup(streamID)
	if err != nil {
		return err
	}
	return sess.DetachWebRTC(ctx, branchID)
}

// ShutdownAll tears down every registered session, used on process exit.
func (m *Manager) ShutdownAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session.Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Disconnect(ctx); err != nil {
			m.logger.WithError(err).Warn("error tearing down session during shutdown")
		}
	}
}

// lookup finds a registered session. An id never registered (or already
// disconnected and removed) is reported as StreamNotFound (404, matching
// the GET .../status contract); an id still registered but torn down
// internally before an explicit Disconnect is reported as NotConnected
// (409), matching the distinction the Control API's status-vs-attach
// endpoints draw.
func (m *Manager) lookup(streamID string) (*session.Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[streamID]
	m.mu.RUnlock()
	if !ok {
		return nil, streamerrors.NewStreamNotFoundError(streamID)
	}
	if sess.LifecycleState() == session.StateDead {
		return nil, streamerrors.ErrNotConnected
	}
	return sess, nil
}

func newStreamID() string { return uuid.New().String() }
