package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/streampipe/recordpipe/internal/logging"
)

// requestLoggingMiddleware logs one structured line per request, tagging
// it with the request id chimw.RequestID minted, following this
// codebase's lineage's correlation-id-per-request logging convention.
func requestLoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLogger := logger.WithCorrelationID(chimw.GetReqID(r.Context()))
			next.ServeHTTP(ww, r)

			reqLogger.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", ww.Status()).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("handled request")
		})
	}
}
