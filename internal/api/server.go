// Package api exposes the copy and listing operations over HTTP.
package api

import (
	"context"
	"net/http"
	"net/http/pprof"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/copier"
	"github.com/einyx/blob-copy-service/internal/metrics"
	"github.com/einyx/blob-copy-service/internal/middleware"
	"github.com/einyx/blob-copy-service/internal/models"
	"github.com/einyx/blob-copy-service/internal/secrets"
)

// Copier runs copies between locations.
type Copier interface {
	Copy(ctx context.Context, req copier.CopyRequest) (*models.CopyResult, error)
	CopyAll(ctx context.Context, timeout time.Duration) ([]models.CopyResult, error)
}

// Enumerator lists the storage accounts of both locations.
type Enumerator interface {
	ListBlobAccounts(ctx context.Context) ([]models.StorageAccountContent, error)
	ListFileShareAccounts(ctx context.Context) ([]models.StorageAccountContent, error)
	ListAll(ctx context.Context) ([]models.StorageAccountContent, error)
}

// Options carries the collaborators of the server.
type Options struct {
	Copier       Copier
	Enumerator   Enumerator
	Secrets      secrets.Store
	Metrics      *metrics.Metrics
	BuildVersion string
	LogLevel     string
}

type Server struct {
	config       *config.Config
	copier       Copier
	enumerator   Enumerator
	secrets      secrets.Store
	metrics      *metrics.Metrics
	router       *mux.Router
	buildVersion string
	logLevel     string
	shuttingDown int32
}

// NewServer wires the routes and middleware of the service
func NewServer(cfg *config.Config, opts Options) *Server {
	s := &Server{
		config:       cfg,
		copier:       opts.Copier,
		enumerator:   opts.Enumerator,
		secrets:      opts.Secrets,
		metrics:      opts.Metrics,
		router:       mux.NewRouter(),
		buildVersion: opts.BuildVersion,
		logLevel:     opts.LogLevel,
	}

	s.setupRoutes()

	s.router.Use(middleware.RequestLogger())
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}
	// Recovery sits outside the Sentry handler, which repanics after reporting.
	s.router.Use(middleware.RecoveryMiddleware())
	if cfg.Sentry.Enabled {
		s.router.Use(middleware.SentryMiddleware(true))
		logrus.Info("Sentry middleware enabled")
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.redirectToHealth).Methods("GET")
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET", "HEAD")
	s.router.HandleFunc("/health/config", s.healthConfig).Methods("GET")

	if s.metrics != nil && !s.config.Monitoring.MetricsDisabled {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
		s.router.Handle("/stats", s.metrics.StatsHandler()).Methods("GET")
		s.router.Handle("/stats", s.metrics.ResetStatsHandler()).Methods("DELETE")
	}

	if s.config.Monitoring.PprofEnabled {
		logrus.Info("pprof profiling endpoints enabled at /debug/pprof/")
		s.router.HandleFunc("/debug/pprof/", pprof.Index)
		s.router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		s.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		s.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		s.router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		s.router.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		s.router.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	}

	s.router.HandleFunc("/list/blobs", s.listBlobs).Methods("GET")
	s.router.HandleFunc("/list/files", s.listFiles).Methods("GET")
	s.router.HandleFunc("/list/all", s.listAll).Methods("GET")

	s.router.HandleFunc("/copy", s.copy).Methods("POST")
	s.router.HandleFunc("/copy/all", s.copyAll).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, "Not found", r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", r.Method+" "+r.URL.Path)
	})
}

// SetShuttingDown makes the health check report 503 so load balancers drain the instance
func (s *Server) SetShuttingDown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	logrus.Info("Server marked as shutting down - health checks will return 503")
}

// IsShuttingDown returns true if the server is shutting down
func (s *Server) IsShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}
