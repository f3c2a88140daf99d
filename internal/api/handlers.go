package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/streampipe/recordpipe/internal/health"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/streamerrors"
	"github.com/streampipe/recordpipe/internal/streammanager"
)

// handler holds the dependencies every Control API route needs.
type handler struct {
	streamManager *streammanager.Manager
	registry      *registry.Registry
	checker       *health.Checker
	logger        *logging.Logger
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Check())
}

func (h *handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, streamerrors.NewStreamError("invalid request body"))
		return
	}

	protocol, ok := toProtocol(req.Protocol)
	if !ok {
		writeError(w, streamerrors.NewStreamError("unknown protocol: "+req.Protocol))
		return
	}

	streamID, err := h.streamManager.Connect(req.StreamID, protocol, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		StreamID: streamID,
		Status:   "CONNECTING",
		Message:  "stream connect initiated",
	})
}

func (h *handler) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.streamManager.StatusAll())
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	status, err := h.streamManager.Status(streamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) handleDebugStatus(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	status, err := h.streamManager.DetailedStatus(streamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	if err := h.streamManager.Disconnect(r.Context(), streamID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disconnectResponse{
		Status:  "DISCONNECTING",
		Message: "stream disconnect initiated",
	})
}

func (h *handler) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, streamerrors.NewStreamError("failed to read offer body"))
		return
	}

	branchID, answer, err := h.streamManager.AttachWebRTC(r.Context(), streamID, string(body))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/sdp")
	w.Header().Set("X-WebRTC-Branch-Id", branchID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(answer))
}

func (h *handler) handleWebRTCDetach(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	branchID := chi.URLParam(r, "branchID")
	if err := h.streamManager.DetachWebRTC(r.Context(), streamID, branchID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	recordingID, location, err := h.streamManager.StartRecording(r.Context(), streamID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, startRecordingResponse{
		RecordingID: recordingID,
		StreamID:    streamID,
		Location:    location,
		Status:      "RECORDING",
		Message:     "recording started",
	})
}

func (h *handler) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	recordingID, _, err := h.streamManager.StopRecording(r.Context(), streamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stopRecordingResponse{
		RecordingID: recordingID,
		StreamID:    streamID,
		Status:      "RECORDING_STOPPED",
		Message:     "recording stopped",
	})
}

func (h *handler) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.registry.List()
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]recordingView, len(recordings))
	for i, rec := range recordings {
		views[i] = toRecordingView(rec)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	recordingID := chi.URLParam(r, "recordingID")
	rec, err := h.registry.Get(recordingID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordingView(rec))
}

func (h *handler) handleDownloadRecording(w http.ResponseWriter, r *http.Request) {
	recordingID := chi.URLParam(r, "recordingID")
	rec, err := h.registry.Get(recordingID)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := os.Open(rec.FilePath)
	if err != nil {
		writeError(w, streamerrors.NewIoError("failed to open recording file", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+rec.FileName+"\"")
	http.ServeContent(w, r, rec.FileName, rec.StartTime, f)
}

func (h *handler) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	recordingID := chi.URLParam(r, "recordingID")
	if err := h.registry.Delete(recordingID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, streamerrors.HTTPStatus(err), streamerrors.ToBody(err))
}
