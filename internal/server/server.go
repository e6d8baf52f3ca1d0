// Package server provides the HTTP JSON API with lifecycle management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mgrabner/recall/internal/memory"
	"github.com/mgrabner/recall/internal/metrics"
	"github.com/mgrabner/recall/internal/models"
)

// Memory is the slice of the memory service the HTTP layer depends on.
type Memory interface {
	Respond(ctx context.Context, userID, sessionID, prompt string, generate memory.GenerateFunc) (string, error)
	History(ctx context.Context, sessionID string) ([]models.HistoryEntry, error)
	Sessions(ctx context.Context, userID string) ([]models.SessionInfo, error)
	Summarize(ctx context.Context, userID string, generate memory.GenerateFunc) (string, error)
	RelevantContext(ctx context.Context, userID, query string) ([]models.RelatedTurn, error)
}

// Server wraps the HTTP server with dependencies and lifecycle management.
type Server struct {
	http     *http.Server
	memory   Memory
	generate memory.GenerateFunc
	stats    *metrics.Collector
	logger   *slog.Logger
}

// New creates the HTTP server. generate is the configured model's Generate;
// stats may be nil.
func New(addr string, mem Memory, generate memory.GenerateFunc, stats *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		memory:   mem,
		generate: generate,
		stats:    stats,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("POST /summary", s.handleSummary)
	mux.HandleFunc("GET /context", s.handleContext)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run starts the server and blocks until Shutdown or listen failure.
func (s *Server) Run() error {
	s.logger.Info("starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.SessionID == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "user_id, session_id and prompt are required")
		return
	}

	answer, err := s.memory.Respond(r.Context(), req.UserID, req.SessionID, req.Prompt, s.generate)
	if err != nil {
		s.logger.Error("chat failed", "user_id", req.UserID, "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	history, err := s.memory.History(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("history failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sessions, err := s.memory.Sessions(r.Context(), userID)
	if err != nil {
		s.logger.Error("sessions failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "sessions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	summary, err := s.memory.Summarize(r.Context(), userID, s.generate)
	if err != nil {
		s.logger.Error("summary failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "summary failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	query := r.URL.Query().Get("q")
	if userID == "" || query == "" {
		writeError(w, http.StatusBadRequest, "user_id and q are required")
		return
	}

	results, err := s.memory.RelevantContext(r.Context(), userID, query)
	if err != nil {
		s.logger.Error("context failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "context failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, metrics.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
