package api

import (
	"log/slog"
	"net/http"

	"github.com/castellan-labs/disburse/pkg/auth"
	"github.com/castellan-labs/disburse/pkg/engine"
	"github.com/castellan-labs/disburse/pkg/transfer"
)

// Server exposes the disbursement engine over HTTP.
type Server struct {
	engine    *engine.Engine
	blocks    engine.BlockSource
	executor  transfer.Executor
	validator *auth.JWTValidator
	logger    *slog.Logger
}

// NewServer wires handlers over the engine. validator may be nil, in which
// case owner-gated endpoints fail closed.
func NewServer(eng *engine.Engine, blocks engine.BlockSource, exec transfer.Executor, validator *auth.JWTValidator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    eng,
		blocks:    blocks,
		executor:  exec,
		validator: validator,
		logger:    logger,
	}
}

// Handler builds the routed HTTP handler. Sweep and the queries are public;
// schedule and ownership changes require an authenticated caller.
func (s *Server) Handler(sweepLimiter *SweepLimiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/obligations", s.handleListObligations)
	mux.HandleFunc("GET /v1/config", s.handleGetConfig)
	mux.Handle("POST /v1/sweep", sweepLimiter.Wrap(http.HandlerFunc(s.handleSweep)))

	authed := NewAuthMiddleware(s.validator)
	mux.Handle("POST /v1/obligations", authed(http.HandlerFunc(s.handleAddObligations)))
	mux.Handle("POST /v1/obligations/{id}/stop", authed(http.HandlerFunc(s.handleStopPayment)))
	mux.Handle("PUT /v1/config/owner", authed(http.HandlerFunc(s.handleUpdateOwner)))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
