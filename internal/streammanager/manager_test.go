package streammanager

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampipe/recordpipe/internal/config"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/session"
	"github.com/streampipe/recordpipe/internal/streamerrors"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	cfg := config.RecordingConfig{
		RTSPConnectTimeout:    time.Second,
		RTSPTCPTimeout:        time.Second,
		IngestQueueMaxBuffers: 8,
		BranchQueueMaxBuffers: 8,
		StartupTimeout:        2 * time.Second,
		StartupPollInterval:   10 * time.Millisecond,
		ReadinessWait:         50 * time.Millisecond,
		ReadinessPoll:         10 * time.Millisecond,
		DetachBusWait:         200 * time.Millisecond,
		TeardownBusWait:       200 * time.Millisecond,
		FFmpegPath:            "ffmpeg",
	}
	return New(t.TempDir(), cfg, logging.GetLogger("manager-test"), reg)
}

func TestManager_ConnectAssignsIDWhenNoneGiven(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Connect("", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestManager_ConnectRejectsDuplicateID(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Connect("dup", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)

	_, err = m.Connect("dup", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	assert.ErrorIs(t, err, streamerrors.ErrAlreadyExists)
}

func TestManager_LookupUnknownIDIsStreamNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Status("nope")
	assert.True(t, streamerrors.HTTPStatus(err) == 404)
}

func TestManager_LookupDeadSessionIsNotConnected(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Connect("s1", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := m.Status(id)
		return err != nil
	}, 3*time.Second, 10*time.Millisecond)

	_, err = m.Status(id)
	assert.ErrorIs(t, err, streamerrors.ErrNotConnected)
}

func TestManager_DisconnectRemovesSession(t *testing.T) {
	m := newTestManager(t)
	id, err := m.Connect("s2", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background(), id))

	_, err = m.Status(id)
	assert.True(t, streamerrors.HTTPStatus(err) == 404)
}

func TestManager_DisconnectUnknownIDFails(t *testing.T) {
	m := newTestManager(t)
	err := m.Disconnect(context.Background(), "missing")
	assert.Error(t, err)
}

func TestManager_StatusAllReturnsEverySession(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Connect("a", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)
	_, err = m.Connect("b", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)

	all := m.StatusAll()
	assert.Len(t, all, 2)
	assert.Contains(t, all, "a")
	assert.Contains(t, all, "b")
}

func TestManager_ShutdownAllClearsSessions(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Connect("a", session.ProtocolRTSP, "rtsp://127.0.0.1:1/stream")
	require.NoError(t, err)

	m.ShutdownAll(context.Background())

	assert.Empty(t, m.StatusAll())
}

func TestManager_StartRecordingFailsOnUnknownStream(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.StartRecording(context.Background(), "missing")
	assert.True(t, streamerrors.HTTPStatus(err) == 404)
}
