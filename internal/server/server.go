// Package server exposes the engine over a JSON HTTP API.
//
// Routes (all JSON):
//
//	POST   /v1/resolve                  — process one utterance
//	GET    /v1/sessions/{id}            — session summary
//	DELETE /v1/sessions/{id}            — drop a session
//	GET    /v1/sessions/{id}/stats      — history-derived statistics
//	POST   /v1/sessions/{id}/complete   — finish the in-flight action
//	POST   /v1/dictionary/reload        — rebuild the pack index
//	GET    /v1/dictionary/stats         — active index snapshot
//	POST   /v1/tone                     — pin or clear the tone override
//	GET    /v1/contexts                 — list answer contexts
//	GET    /v1/contexts/{context}       — expected answers for a context
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kalima-ai/kalima/internal/dialog"
	"github.com/kalima-ai/kalima/internal/engine"
)

// maxBodyBytes bounds request bodies; utterances are short by nature.
const maxBodyBytes = 64 << 10

// Server holds the API handlers.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// New creates a server around eng.
func New(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, logger: logger}
}

// Register adds every API route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/resolve", s.handleResolve)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /v1/sessions/{id}/stats", s.handleSessionStats)
	mux.HandleFunc("POST /v1/sessions/{id}/complete", s.handleCompleteAction)
	mux.HandleFunc("POST /v1/dictionary/reload", s.handleReload)
	mux.HandleFunc("GET /v1/dictionary/stats", s.handleDictionaryStats)
	mux.HandleFunc("POST /v1/tone", s.handleSetTone)
	mux.HandleFunc("GET /v1/contexts", s.handleListContexts)
	mux.HandleFunc("GET /v1/contexts/{context}", s.handleGetContext)
}

type resolveRequest struct {
	// SessionID identifies the conversation. When empty a new session is
	// created and its generated ID returned in the result.
	SessionID string `json:"session_id"`

	// Utterance is the raw user input.
	Utterance string `json:"utterance"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := s.engine.Process(r.Context(), req.SessionID, req.Utterance)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.SessionStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCompleteAction(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.CompleteAction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ReloadDictionaries(r.Context()); err != nil {
		// The previous index keeps serving; tell the caller the reload failed.
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.DictionaryStats())
}

func (s *Server) handleDictionaryStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.DictionaryStats())
}

type toneRequest struct {
	// Tone is the profile to pin; "" clears the override.
	Tone string `json:"tone"`
}

func (s *Server) handleSetTone(w http.ResponseWriter, r *http.Request) {
	var req toneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SetTone(req.Tone); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"tone": s.engine.ToneOverride()})
}

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"contexts": s.engine.AnswerContexts()})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("context")
	answers := s.engine.ContextualAnswers(name)
	if answers == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown answer context %q", name))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"context": name, "answers": answers})
}

// writeEngineError maps engine and store errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialog.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrEmptySessionID):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
