package api

import (
	"time"

	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/session"
)

// connectRequest is the body of POST /streams/connect.
type connectRequest struct {
	Protocol string `json:"protocol"`
	URL      string `json:"url"`
	StreamID string `json:"stream_id,omitempty"`
}

// connectResponse is returned on a successful connect.
type connectResponse struct {
	StreamID string `json:"stream_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// disconnectResponse is returned on a successful disconnect.
type disconnectResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// startRecordingResponse is returned on a successful recording start.
type startRecordingResponse struct {
	RecordingID string `json:"recording_id"`
	StreamID    string `json:"stream_id"`
	Location    string `json:"location"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// stopRecordingResponse is returned on a successful recording stop.
type stopRecordingResponse struct {
	RecordingID string `json:"recording_id"`
	StreamID    string `json:"stream_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// recordingView is the wire shape of one registry row.
type recordingView struct {
	ID              string     `json:"id"`
	FileName        string     `json:"file_name"`
	FilePath        string     `json:"file_path"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	FileSizeBytes   *int64     `json:"file_size_bytes,omitempty"`
	Status          string     `json:"status"`
}

func toRecordingView(r *registry.Recording) recordingView {
	return recordingView{
		ID:              r.ID,
		FileName:        r.FileName,
		FilePath:        r.FilePath,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationSeconds: r.DurationSeconds,
		FileSizeBytes:   r.FileSizeBytes,
		Status:          string(r.Status),
	}
}

func toProtocol(s string) (session.Protocol, bool) {
	switch session.Protocol(s) {
	case session.ProtocolRTSP, session.ProtocolWebRTC:
		return session.Protocol(s), true
	default:
		return "", false
	}
}
