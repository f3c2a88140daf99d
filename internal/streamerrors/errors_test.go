package streamerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorStringIncludesWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	e := NewIoError("failed to write", cause)
	assert.Contains(t, e.Error(), "IO_ERROR")
	assert.Contains(t, e.Error(), "failed to write")
	assert.Contains(t, e.Error(), "disk full")
}

func TestError_ErrorStringWithoutCause(t *testing.T) {
	e := NewStreamError("stream is not ready")
	assert.Equal(t, "STREAM_ERROR: stream is not ready", e.Error())
}

func TestError_UnwrapReturnsCause(t *testing.T) {
	cause := errors.New("root cause")
	e := NewDatabaseError("query failed", cause)
	assert.Same(t, cause, errors.Unwrap(e))
}

func TestError_IsComparesByKindNotMessage(t *testing.T) {
	a := NewRecordingNotFoundError("abc")
	b := NewRecordingNotFoundError("xyz")
	assert.True(t, errors.Is(a, b), "two errors of the same Kind should satisfy errors.Is regardless of message")
	assert.False(t, errors.Is(a, ErrNotConnected))
}

func TestErrAlreadyRecording_IsSentinelMatchable(t *testing.T) {
	wrapped := NewPipelineError("attach failed", ErrAlreadyRecording)
	assert.True(t, errors.Is(wrapped, ErrAlreadyRecording))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"config", NewConfigError("x", nil), http.StatusInternalServerError},
		{"database", NewDatabaseError("x", nil), http.StatusInternalServerError},
		{"migration", NewMigrationError("x", nil), http.StatusInternalServerError},
		{"stream", NewStreamError("x"), http.StatusBadRequest},
		{"recording not found", NewRecordingNotFoundError("r1"), http.StatusNotFound},
		{"stream not found", NewStreamNotFoundError("s1"), http.StatusNotFound},
		{"already recording", ErrAlreadyRecording, http.StatusConflict},
		{"not connected", ErrNotConnected, http.StatusConflict},
		{"already exists", ErrAlreadyExists, http.StatusConflict},
		{"no active recording", ErrNoActiveRecording, http.StatusNotFound},
		{"pipeline", NewPipelineError("x", nil), http.StatusInternalServerError},
		{"io", NewIoError("x", nil), http.StatusInternalServerError},
		{"internal", NewInternalError("x", nil), http.StatusInternalServerError},
		{"unrecognized", errors.New("plain error"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestToBody_RecognizedError(t *testing.T) {
	body := ToBody(NewRecordingNotFoundError("r1"))
	assert.Equal(t, "RESOURCE_NOT_FOUND", body.ErrorCode)
	assert.Contains(t, body.Message, "r1")
}

func TestToBody_UnrecognizedErrorFallsBackToInternal(t *testing.T) {
	body := ToBody(errors.New("something unexpected"))
	assert.Equal(t, string(KindInternal), body.ErrorCode)
	assert.Equal(t, "something unexpected", body.Message)
}
