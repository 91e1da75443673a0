// Package httpbridge exposes the transcription pipeline over HTTP.
package httpbridge

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soypete/mockinterview/pkg/config"
	"github.com/soypete/mockinterview/pkg/metrics"
	"github.com/soypete/mockinterview/pkg/transcribe"
)

// Transcriber runs one upload through the engine.
type Transcriber interface {
	Transcribe(ctx context.Context, up transcribe.Upload) *transcribe.Outcome
	Check() error
}

// History lists past runs. Implemented by database.Store.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]transcribe.Run, error)
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	transcriber Transcriber
	history     History
	logger      *log.Logger
	mux         *http.ServeMux
}

// NewServer creates a new HTTP server. history may be nil when run history
// is disabled.
func NewServer(cfg *config.Config, transcriber Transcriber, history History, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	server := &Server{
		config:      cfg,
		transcriber: transcriber,
		history:     history,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.handle("/interview/transcribe", s.handleTranscribe)
	s.handle("/api/health", s.handleHealth)
	s.handle("/api/transcriptions", s.handleTranscriptions)
	s.mux.Handle("/metrics", promhttp.Handler())
}

// handle registers h with request counting labeled by route
func (s *Server) handle(path string, h http.HandlerFunc) {
	s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
	})
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.writeTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[http] Starting HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("[http] Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeTimeout covers the longest engine run plus upload and response time.
// It uses the same fallback as the engine when no timeout is configured.
func (s *Server) writeTimeout() time.Duration {
	timeout := s.config.EngineTimeout()
	if timeout <= 0 {
		timeout = transcribe.DefaultTimeout
	}
	return timeout + 30*time.Second
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
