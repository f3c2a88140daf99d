// Package api implements the Control API (C6): the HTTP surface routed
// with go-chi, since this codebase's lineage has no REST surface of its
// own to generalize (its control plane is JSON-RPC over a websocket) —
// go-chi/chi and go-chi/httprate are adopted the way the rest of this
// domain's stack calls for.
package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/streampipe/recordpipe/internal/config"
	"github.com/streampipe/recordpipe/internal/health"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/streammanager"
)

// Server wraps an http.Server over a chi router wired to the Stream
// Manager, Recording Registry, and health Checker.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *logging.Logger
}

// NewServer builds the Control API's router and binds it to cfg's
// host/port, without starting to listen.
func NewServer(cfg config.ServerConfig, sm *streammanager.Manager, reg *registry.Registry, checker *health.Checker, logger *logging.Logger) *Server {
	h := &handler{streamManager: sm, registry: reg, checker: checker, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.handleHealth)

		r.Route("/streams", func(r chi.Router) {
			r.Post("/connect", h.handleConnect)
			r.Get("/status", h.handleStatusAll)
			r.Get("/{streamID}/status", h.handleStatus)
			r.Get("/{streamID}/debug", h.handleDebugStatus)
			r.Post("/{streamID}/disconnect", h.handleDisconnect)
			r.Post("/{streamID}/webrtc", h.handleWebRTCOffer)
			r.Delete("/{streamID}/webrtc/{branchID}", h.handleWebRTCDetach)
		})

		r.Route("/recordings", func(r chi.Router) {
			r.Get("/", h.handleListRecordings)
			r.Post("/{streamID}/start", h.handleStartRecording)
			r.Post("/{streamID}/stop", h.handleStopRecording)
			r.Get("/{recordingID}", h.handleGetRecording)
			r.Get("/{recordingID}/download", h.handleDownloadRecording)
			r.Delete("/{recordingID}", h.handleDeleteRecording)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		handler: r,
		logger:  logger,
	}
}

// Handler returns the routed http.Handler without binding a listener, for
// tests driving the Control API through net/http/httptest.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins serving in the background; listen errors other than a
// clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("control API server stopped unexpectedly")
		}
	}()
}

// Stop implements internal/common.Stoppable, used by cmd/server's
// graceful shutdown.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
