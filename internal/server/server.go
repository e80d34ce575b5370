// Package server exposes a running simulation over HTTP.
//
// Routes:
//
//	GET /healthz          liveness and run status
//	GET /metrics          Prometheus metrics
//	GET /events?kind=a,b  websocket stream of event summaries
//
// Hub listeners for a stream are registered and removed on the loop
// goroutine; events reach the socket through a bounded buffer and are
// dropped when a client falls behind.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/loop"
	"github.com/dshills/simscript/internal/metrics"
)

// StatusFunc reports run status for /healthz. It is called on the request
// goroutine and must be safe for that.
type StatusFunc func() map[string]any

// Options configure a Server.
type Options struct {
	Loop    *loop.Loop
	Hub     *event.Hub
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Status  StatusFunc

	// EventBuffer is the per client event buffer. Zero means 64.
	EventBuffer int
}

// Server is the HTTP front end.
type Server struct {
	loop     *loop.Loop
	hub      *event.Hub
	metrics  *metrics.Metrics
	log      zerolog.Logger
	status   StatusFunc
	buffer   int
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{
		loop:    opts.Loop,
		hub:     opts.Hub,
		metrics: opts.Metrics,
		log:     opts.Logger,
		status:  opts.Status,
		buffer:  opts.EventBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if s.buffer <= 0 {
		s.buffer = 64
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/events", s.handleEvents)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.status != nil {
		for k, v := range s.status() {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
