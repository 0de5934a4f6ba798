// Package server provides the HTTP API for Katayori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/katayori/internal/config"
	"github.com/hyperjump/katayori/internal/keyword"
	"github.com/hyperjump/katayori/internal/pipeline"
	"github.com/hyperjump/katayori/internal/storage"
	"github.com/hyperjump/katayori/internal/watcher"
)

// Server is the HTTP server for the Katayori API.
type Server struct {
	scanner      *pipeline.Scanner
	experimenter *pipeline.Experimenter
	storage      storage.Storage
	contexts     keyword.ContextIndex
	cfg          *config.Config
	configPath   string
	watch        *watcher.Watcher
	configMu     sync.Mutex
	logger       *zap.Logger
	server       *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWatcher attaches a corpus watcher so directories can be added and
// removed over the API. configPath, when non-empty, persists directory
// changes back to the config file.
func WithWatcher(w *watcher.Watcher, configPath string) ServerOption {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	scanner *pipeline.Scanner,
	experimenter *pipeline.Experimenter,
	store storage.Storage,
	contexts keyword.ContextIndex,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		scanner:      scanner,
		experimenter: experimenter,
		storage:      store,
		contexts:     contexts,
		cfg:          cfg,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/scan", s.handleScan)
	r.Post("/api/v1/experiments", s.handleRunExperiment)
	r.Get("/api/v1/experiments", s.handleListExperiments)
	r.Get("/api/v1/experiments/{id}", s.handleGetExperiment)
	r.Get("/api/v1/entities", s.handleEntities)
	r.Get("/api/v1/entities/{name}/contexts", s.handleEntityContexts)
	r.Get("/api/v1/corpus/directories", s.handleCorpusDirectoriesList)
	r.Post("/api/v1/corpus/directories", s.handleCorpusDirectoriesAdd)
	r.Delete("/api/v1/corpus/directories", s.handleCorpusDirectoriesRemove)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
