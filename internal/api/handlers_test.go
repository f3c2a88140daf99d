package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampipe/recordpipe/internal/config"
	"github.com/streampipe/recordpipe/internal/health"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/streammanager"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
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
	sm := streammanager.New(t.TempDir(), cfg, logging.GetLogger("api-test"), reg)
	checker := health.NewChecker("1.0.0-test", reg)
	srv := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, sm, reg, checker, logging.GetLogger("api-test"))
	return srv, reg
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth_ReportsHealthyWithRegistry(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, health.StatusHealthy, body.Status)
}

func TestHandleConnect_RejectsUnknownProtocol(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/streams/connect", connectRequest{
		Protocol: "carrier-pigeon", URL: "rtsp://127.0.0.1:1/x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleConnect_ReturnsStreamIDOnSuccess(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/streams/connect", connectRequest{
		Protocol: "rtsp", URL: "rtsp://127.0.0.1:1/x", StreamID: "mine",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body connectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "mine", body.StreamID)
}

func TestHandleStatus_UnknownStreamReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/streams/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatusAll_ListsConnectedStreams(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/streams/connect", connectRequest{
		Protocol: "rtsp", URL: "rtsp://127.0.0.1:1/x", StreamID: "a",
	})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/streams/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "a")
}

func TestHandleDisconnect_UnknownStreamReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/streams/missing/disconnect", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStartRecording_UnknownStreamReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/recordings/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListRecordings_EmptyRegistryReturnsEmptyArray(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/recordings/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleGetRecording_ReturnsCreatedRow(t *testing.T) {
	srv, reg := newTestServer(t)
	_, err := reg.Create("rec1", "rec1.mp4", "/tmp/rec1.mp4", time.Now())
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/recordings/rec1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body recordingView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rec1", body.ID)
	assert.Equal(t, "RECORDING", body.Status)
}

func TestHandleDeleteRecording_RemovesRow(t *testing.T) {
	srv, reg := newTestServer(t)
	_, err := reg.Create("rec2", "rec2.mp4", "/tmp/rec2.mp4", time.Now())
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/recordings/rec2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = reg.Get("rec2")
	assert.Error(t, err)
}

func TestHandleWebRTCDetach_UnknownStreamReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/streams/missing/webrtc/branch-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWebRTCDetach_UnknownBranchOnConnectedStreamFails(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/streams/connect", connectRequest{
		Protocol: "rtsp", URL: "rtsp://127.0.0.1:1/x", StreamID: "a",
	})

	rec := doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/streams/a/webrtc/no-such-branch", nil)
	assert.NotEqual(t, http.StatusNoContent, rec.Code)
}

func TestHandleDeleteRecording_UnknownIDReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodDelete, "/api/v1/recordings/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
