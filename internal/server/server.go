// Package server exposes the composition engine over HTTP.
//
// Routes:
//
//	POST /process  JSON composition request -> custom_output.csv
//	GET  /health   liveness
//	GET  /metrics  Prometheus metrics
//
// Failures are returned as {"error": "..."} with status 400, 404 or 500.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/store"
)

// Composer runs compositions. *compose.Engine implements it.
type Composer interface {
	Compose(ctx context.Context, req *request.CompositionRequest) (*compose.Result, error)
}

// RunLog records finished compositions. *store.Store implements it.
type RunLog interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// Options configures a Server.
type Options struct {
	Addr string

	// RunLog is optional; nil disables run recording.
	RunLog RunLog

	// Metrics is optional; nil serves /metrics as 404.
	Metrics *Metrics

	Logger *slog.Logger

	// AccessLog receives Apache-style access log lines. Nil discards them.
	AccessLog io.Writer

	// MaxBodyBytes bounds request bodies. Zero selects 1 MiB.
	MaxBodyBytes int64

	// Now stamps run records. Nil selects time.Now.
	Now func() time.Time
}

// Server is the HTTP shell around a Composer.
type Server struct {
	HTTP *http.Server
	Log  *slog.Logger

	composer Composer
	opts     Options
	failIDs  compose.RunIDGenerator
}

// New builds a server with its routes wired. It does not start listening.
func New(composer Composer, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.AccessLog == nil {
		opts.AccessLog = io.Discard
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		Log:      opts.Logger,
		composer: composer,
		opts:     opts,
		failIDs:  compose.UUIDv7Generator{},
	}
	s.HTTP = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with CORS and access logging applied.
func (s *Server) Handler() http.Handler {
	m := s.opts.Metrics

	r := mux.NewRouter()
	r.Handle("/process", m.WrapHandler("process", http.HandlerFunc(s.handleProcess))).Methods(http.MethodPost)
	r.Handle("/health", m.WrapHandler("health", http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.ExposedHeaders([]string{headerRunID, headerFingerprint, headerDiagnostics, "Content-Disposition"}),
	)
	return handlers.LoggingHandler(s.opts.AccessLog, cors(r))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("http server starting", "addr", s.HTTP.Addr)
		errCh <- s.HTTP.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Log.Info("http server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.HTTP.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
