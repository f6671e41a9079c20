// Package server exposes the translation pipeline over HTTP. Uploads
// stream their progress back as server-sent events; everything else is
// plain JSON.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/booktran/internal/engine"
	"github.com/valpere/booktran/internal/jobstore"
	"github.com/valpere/booktran/internal/monitor"
	"github.com/valpere/booktran/internal/recovery"
)

// ModelClient is the refinement backend's discovery surface.
type ModelClient interface {
	ListModels(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

type Server struct {
	store    *jobstore.Store
	engine   *engine.Engine
	recovery *recovery.Manager
	monitor  *monitor.Monitor
	models   ModelClient
	log      *zap.Logger

	mux    *http.ServeMux
	server *http.Server
}

func New(store *jobstore.Store, eng *engine.Engine, rec *recovery.Manager, mon *monitor.Monitor, models ModelClient, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store:    store,
		engine:   eng,
		recovery: rec,
		monitor:  mon,
		models:   models,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /translate", s.handleTranslate)
	s.mux.HandleFunc("GET /translations", s.handleListTranslations)
	s.mux.HandleFunc("GET /translations/{id}", s.handleGetTranslation)
	s.mux.HandleFunc("GET /download/{id}", s.handleDownload)
	s.mux.HandleFunc("GET /failed-translations", s.handleListFailed)
	s.mux.HandleFunc("POST /retry-translation/{id}", s.handleRetry)
	s.mux.HandleFunc("GET /models", s.handleModels)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}
