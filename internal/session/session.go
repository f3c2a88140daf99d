package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/streampipe/recordpipe/internal/config"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/mge"
	"github.com/streampipe/recordpipe/internal/mge/elements"
	"github.com/streampipe/recordpipe/internal/streamerrors"
)

// Session owns one ingest graph, its branch point, readiness flag, and
// the set of active Recording Branches. Every mutating operation
// acquires mu, the per-session mutex — the registry
// (internal/streammanager) holds a separate mutex guarding only
// insert/remove/lookup, never session mutation.
type Session struct {
	ID       string
	Protocol Protocol
	URL      string

	cfg          config.RecordingConfig
	recordingDir string
	ffmpegPath   string
	logger       *logging.Logger

	graph       *mge.Graph
	source      *elements.RTSPSource
	identity    *elements.Identity
	branchPoint *elements.BranchPoint

	state   atomic.Int32 // LifecycleState
	ready   atomic.Bool
	connAt  time.Time

	mu               sync.Mutex
	activeRecordings map[string]*RecordingBranch
	webrtcBranches   map[string]*WebRTCBranch

	busWatch chan struct{}
}

// New constructs a Session in CONNECTING state and kicks off the connect
// procedure asynchronously. Callers observe the transition to LIVE via
// Status.
func New(id string, protocol Protocol, url string, cfg config.RecordingConfig, recordingDir string, logger *logging.Logger) *Session {
	s := &Session{
		ID:               id,
		Protocol:         protocol,
		URL:              url,
		cfg:              cfg,
		recordingDir:     recordingDir,
		ffmpegPath:       cfg.FFmpegPath,
		logger:           logger.WithField("stream_id", id),
		graph:            mge.NewGraph(id),
		activeRecordings: make(map[string]*RecordingBranch),
		webrtcBranches:   make(map[string]*WebRTCBranch),
		connAt:           time.Now(),
	}
	s.state.Store(int32(StateConnecting))

	go s.connect()

	return s
}

// LifecycleState returns the current state.
func (s *Session) LifecycleState() LifecycleState {
	return LifecycleState(s.state.Load())
}

func (s *Session) setState(st LifecycleState) {
	s.state.Store(int32(st))
}

// Ready reports whether the readiness signal has fired.
func (s *Session) Ready() bool { return s.ready.Load() }

// connect builds the ingest graph and polls for the running state with a
// 30s deadline.
func (s *Session) connect() {
	s.source = elements.NewRTSPSource("source", elements.RTSPSourceConfig{
		Location:       s.URL,
		Latency:        0,
		ConnectTimeout: s.cfg.RTSPConnectTimeout,
		Retry:          s.cfg.RTSPRetry,
		Retransmission: true,
		NTPSync:        true,
		DropOnLatency:  true,
		TCPTimeout:     s.cfg.RTSPTCPTimeout,
		UDPBufferBytes: s.cfg.RTSPUDPBufferBytes,
		BufferModeAuto: true,
	})
	s.identity = elements.NewIdentity("identity", s.cfg.IngestQueueMaxBuffers)
	queue := elements.NewQueue("queue", s.cfg.IngestQueueMaxBuffers)
	depay := elements.NewDepayloader("depayloader", s.cfg.IngestQueueMaxBuffers)
	parser := elements.NewH264Parser("parser", s.cfg.IngestQueueMaxBuffers)
	s.branchPoint = elements.NewBranchPoint("branch_point", s.cfg.IngestQueueMaxBuffers)

	s.graph.Add(s.source)
	s.graph.Add(s.identity)
	s.graph.Add(queue)
	s.graph.Add(depay)
	s.graph.Add(parser)
	s.graph.Add(s.branchPoint)

	// Static links: identity -> queue -> depayloader -> parser -> branch_point.
	_ = mge.Link(s.identity.Out(), queue.In())
	_ = mge.Link(queue.Out(), depay.In())
	_ = mge.Link(depay.Out(), parser.In())
	_ = mge.Link(parser.Out(), s.branchPoint.In())

	// Step 3: pad-added callback — dynamic linking acceptance test.
	s.source.OnPadAdded(func(pad *mge.Pad, f mge.Format) {
		if !f.Accepts("rtp", "video", "H264") {
			s.logger.WithField("pad", pad.Name).Warn("ignoring pad with unexpected format")
			return
		}
		if s.identity.In().IsLinked() {
			s.logger.Warn("ingest sink already linked, rejecting additional pad-added event")
			return
		}
		if err := mge.Link(pad, s.identity.In()); err != nil {
			s.logger.WithError(err).Warn("failed to link source pad")
		}
	})

	s.source.OnError(func(err error) {
		s.logger.WithError(err).Error("ingest source error")
		s.graph.Bus.Post(mge.Message{Type: mge.MsgError, Graph: s.ID, Source: "source", Err: err})
	})

	// Step 4: readiness callback.
	s.identity.OnHandoff(func() {
		if s.ready.CompareAndSwap(false, true) {
			s.logger.Info("stream became ready")
		}
	})

	// Step 5: bus watch.
	s.busWatch = make(chan struct{})
	sub := s.graph.Bus.Subscribe()
	go s.watchBus(sub)

	// Step 6: start the graph and poll for running, bounded by a deadline.
	// The transition is dispatched through the engine's bounded worker pool;
	// the RTSP source connects in its own goroutine, so readiness is polled
	// below.
	startCtx, startCancel := context.WithTimeout(context.Background(), s.cfg.StartupTimeout)
	err := mge.DefaultPool().Submit(startCtx, func() error { return s.graph.SetState(mge.StatePlaying) })
	startCancel()
	if err != nil {
		s.logger.WithError(err).Error("failed to start ingest graph")
		s.setState(StateDead)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StartupTimeout)
	defer cancel()
	ticker := time.NewTicker(s.cfg.StartupPollInterval)
	defer ticker.Stop()

	for {
		if s.source.Connected() {
			s.setState(StateLive)
			s.logger.Info("stream session is live")
			return
		}
		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			s.logger.Warn("stream startup timed out")
			s.setState(StateDead)
			return
		}
	}
}

func (s *Session) watchBus(sub <-chan mge.Message) {
	defer s.graph.Bus.Unsubscribe(sub)
	for {
		select {
		case msg := <-sub:
			switch msg.Type {
			case mge.MsgError:
				if s.LifecycleState() != StateDead {
					s.logger.WithField("source", msg.Source).Error("fatal bus error, session going DEAD")
					s.setState(StateDead)
				}
			case mge.MsgWarning:
				s.logger.WithField("source", msg.Source).Warn(msg.Text)
			case mge.MsgEOS:
				if msg.Source == "" && s.LifecycleState() == StateLive {
					s.setState(StateDraining)
				}
			}
		case <-s.busWatch:
			return
		}
	}
}

// Status returns the externally-visible status snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	var active string
	for id := range s.activeRecordings {
		active = id
		break
	}
	s.mu.Unlock()

	state := s.LifecycleState()
	return Status{
		StreamID:        s.ID,
		Protocol:        s.Protocol,
		URL:             s.URL,
		IsConnected:     state == StateLive,
		LifecycleState:  state.String(),
		Ready:           s.Ready(),
		ActiveRecording: active,
		ConnectedAt:     s.connAt,
	}
}

// DetailedStatus adds graph/branch-point runtime state.
func (s *Session) DetailedStatus() DebugStatus {
	s.mu.Lock()
	n := len(s.activeRecordings) + len(s.webrtcBranches)
	s.mu.Unlock()

	return DebugStatus{
		Status:           s.Status(),
		GraphState:       s.graph.State().String(),
		BranchPointState: s.graph.State().String(),
		ActiveBranches:   n,
	}
}

// Disconnect performs session teardown. It is
// idempotent: calling it on an already-DEAD session is a no-op success.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.LifecycleState() == StateDead {
		s.mu.Unlock()
		return nil
	}
	s.setState(StateDraining)
	branches := make([]*RecordingBranch, 0, len(s.activeRecordings))
	for _, b := range s.activeRecordings {
		branches = append(branches, b)
	}
	s.activeRecordings = make(map[string]*RecordingBranch)
	webrtcIDs := make([]string, 0, len(s.webrtcBranches))
	for id := range s.webrtcBranches {
		webrtcIDs = append(webrtcIDs, id)
	}
	s.mu.Unlock()

	for _, b := range branches {
		if err := s.detachBranch(ctx, b); err != nil {
			s.logger.WithError(err).WithField("recording_id", b.RecordingID).
				Warn("failed to cleanly detach recording branch during teardown")
		}
	}
	for _, id := range webrtcIDs {
		if err := s.detachWebRTCBranch(ctx, id); err != nil {
			s.logger.WithError(err).WithField("webrtc_branch_id", id).
				Warn("failed to cleanly detach webrtc branch during teardown")
		}
	}

	sub := s.graph.Bus.Subscribe()
	_ = s.source.SetState(mge.StateNull)
	_, err := mge.Wait(ctx, sub, s.cfg.TeardownBusWait, mge.MsgEOS)
	s.graph.Bus.Unsubscribe(sub)
	if err != nil {
		s.logger.Warn("teardown bus wait timed out")
	}

	if err := s.graph.SetState(mge.StateNull); err != nil {
		s.logger.WithError(err).Error("failed to null the ingest graph during teardown")
	}

	close(s.busWatch)
	s.setState(StateDead)
	return nil
}

// requireLive is a small helper for attach's fail-fast check.
func (s *Session) requireLive() error {
	if s.LifecycleState() != StateLive {
		return streamerrors.ErrNotConnected
	}
	return nil
}

// newRecordingID mints a fresh random id (used for recording and WebRTC
// branch ids).
func newRecordingID() string { return uuid.New().String() }
