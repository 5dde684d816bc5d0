package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/codepilot/internal/db"
	"github.com/lucasnoah/codepilot/internal/pipeline"
)

// RunSolver is the solve boundary the API calls into. *solver.Solver
// satisfies it; tests substitute a stub.
type RunSolver interface {
	Solve(ctx context.Context, problem, userID string) (*pipeline.State, error)
}

// Server exposes the pipeline over a JSON API.
type Server struct {
	solver    RunSolver
	runs      *db.DB
	artifacts *pipeline.Store
	port      int
	log       *zap.Logger
}

// NewServer creates a Server. runs and artifacts may be nil; the matching
// endpoints then answer with empty data.
func NewServer(sol RunSolver, runs *db.DB, artifacts *pipeline.Store, port int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		solver:    sol,
		runs:      runs,
		artifacts: artifacts,
		port:      port,
		log:       log,
	}
}

// Handler builds the route table. Split from Start so tests can drive the
// mux directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/solve", s.handleSolve)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		s.handleRunDetail(w, r, id)
	})
	return mux
}

// Start listens until the process dies. Solves run synchronously inside
// the request, so the server allows them plenty of time.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("api listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}
