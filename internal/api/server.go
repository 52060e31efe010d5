// Package api implements the HTTP surface spec.md §6 describes: upload and
// fetch admission, job enqueue/status/cancel/cleanup, and clip download,
// grounded on the teacher's internal/daemon/api_server.go (hand-rolled
// http.ServeMux, JSON envelopes, graceful shutdown).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/fetch"
	"clipforge/internal/job"
	"clipforge/internal/logging"
	"clipforge/internal/mediaprobe"
)

// Coordinator is the subset of *pipeline.Coordinator the API drives.
type Coordinator interface {
	Enqueue(ctx context.Context, sourceID, sourcePath string, cfg job.Config) (string, error)
	Status(jobID string) (*job.Job, bool)
	Cancel(ctx context.Context, jobID string) error
	Cleanup(ctx context.Context, jobID string) error
	List(statuses ...job.Status) []*job.Job
}

// Prober is the Media Probe boundary the upload handler drives.
type Prober interface {
	Inspect(ctx context.Context, path string) (mediaprobe.Info, error)
}

// Fetcher is the Fetcher boundary the fetch handler drives.
type Fetcher interface {
	Fetch(ctx context.Context, videoURL, quality string, limits config.Source, destPath string) (fetch.Result, error)
}

// Server is clipforge's HTTP surface.
type Server struct {
	bind    string
	logger  *slog.Logger
	cfg     *config.Config
	profile job.HardwareProfile

	coordinator Coordinator
	fetcher     Fetcher
	prober      Prober
	store       *artifact.Store
	sources     *sourceRegistry

	listener net.Listener
	server   *http.Server
}

// New constructs a Server bound to cfg.Paths.APIBind. profile is the frozen
// hardware-adaptation result probed once at daemon startup.
func New(cfg *config.Config, profile job.HardwareProfile, coordinator Coordinator, fetcher Fetcher, prober Prober, store *artifact.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:        cfg.Paths.APIBind,
		logger:      logger,
		cfg:         cfg,
		profile:     profile,
		coordinator: coordinator,
		fetcher:     fetcher,
		prober:      prober,
		store:       store,
		sources:     newSourceRegistry(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/fetch", s.handleFetch)
	mux.HandleFunc("/process", s.handleProcess)
	mux.HandleFunc("/jobs", s.handleJobsList)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/download-all/", s.handleDownloadAll)
	mux.HandleFunc("/download/", s.handleDownload)
	mux.HandleFunc("/cancel/", s.handleCancel)
	mux.HandleFunc("/cleanup/", s.handleCleanup)
	mux.HandleFunc("/sources/", s.handleSourceCleanup)

	// Download paths bypass ServeMux so that dot-segment paths reach
	// handleDownload's own check and get a 404, not a clean-path redirect.
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/download/") {
			s.handleDownload(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	s.server = &http.Server{
		Handler:           s.withAuth(root),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the underlying http.Handler, used by tests via httptest.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start listens on s.bind and serves until ctx is cancelled, at which point
// it shuts down gracefully with a 5s deadline.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts the server down, waiting up to 5s for in-flight
// requests to finish.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// withAuth rejects requests that omit a configured API token. When no token
// is configured, every request passes through unchecked.
func (s *Server) withAuth(next http.Handler) http.Handler {
	token := s.cfg.Paths.APIToken
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			s.writeError(w, http.StatusUnauthorized, "missing or invalid API token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api")
}
