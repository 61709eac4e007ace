package sproc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/sproc/internal/config"
	"github.com/loykin/sproc/internal/history"
	"github.com/loykin/sproc/internal/metrics"
	"github.com/loykin/sproc/internal/proc"
	iapi "github.com/loykin/sproc/internal/server"
	"github.com/loykin/sproc/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Service = cfg.Service

type Record = cfg.Record

type Snapshot = proc.Snapshot

type HistorySink = history.Sink

// Lifecycle errors, matchable with errors.Is.
var (
	ErrNotFound       = supervisor.ErrNotFound
	ErrAlreadyRunning = supervisor.ErrAlreadyRunning
	ErrNotRunning     = supervisor.ErrNotRunning
	ErrProcessLookup  = supervisor.ErrProcessLookup
)

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

// New builds a supervisor over the config file at path. An empty path uses
// the per-user default location.
func New(path string, logger *slog.Logger) (*Supervisor, error) {
	store := &cfg.Store{Path: path}
	if path == "" {
		s, err := cfg.DefaultStore()
		if err != nil {
			return nil, err
		}
		store = s
	}
	return &Supervisor{inner: supervisor.New(store, logger, supervisor.Options{})}, nil
}

func (s *Supervisor) Start(name string) error            { return s.inner.Start(name) }
func (s *Supervisor) Kill(name string) error             { return s.inner.Kill(name) }
func (s *Supervisor) Info(name string) (Snapshot, error) { return s.inner.Info(name) }
func (s *Supervisor) Reconcile() error                   { return s.inner.Reconcile() }
func (s *Supervisor) StartReconciler(interval time.Duration) {
	s.inner.StartReconciler(interval)
}
func (s *Supervisor) StopReconciler() { s.inner.StopReconciler() }
func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) {
	s.inner.SetHistorySinks(sinks...)
}

// LoadConfig reads the merged configuration from path (or the per-user
// default when path is empty).
func LoadConfig(path string) (*Config, error) {
	store := &cfg.Store{Path: path}
	if path == "" {
		s, err := cfg.DefaultStore()
		if err != nil {
			return nil, err
		}
		store = s
	}
	return store.Load()
}

// Pin installs the file at source as the primary configuration of the store
// at path, resetting the runtime state table.
func Pin(path, source string) error {
	store := &cfg.Store{Path: path}
	if path == "" {
		s, err := cfg.DefaultStore()
		if err != nil {
			return err
		}
		store = s
	}
	return store.Pin(source)
}

// NewHTTPServer returns an HTTP server exposing the control API.
func NewHTTPServer(addr, key string, s *Supervisor, logger *slog.Logger) *http.Server {
	return iapi.New(addr, iapi.NewRouter(s.inner, key, logger))
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return srv.ListenAndServe()
}
