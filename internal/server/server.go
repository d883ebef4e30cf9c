package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leadpilot-ai/server/internal/agent/graph"
	"github.com/leadpilot-ai/server/internal/agent/model"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

const version = "1.0.0"

// Server exposes the agent over HTTP: a lead webhook, a status lookup, and
// a health probe.
type Server struct {
	runner graph.Runner
	leads  model.LeadRepository
	http   *http.Server
}

func New(addr string, runner graph.Runner, leads model.LeadRepository) *Server {
	s := &Server{runner: runner, leads: leads}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/webhook/lead", s.handleLeadWebhook)
	r.Get("/agent/status/{leadID}", s.handleLeadStatus)
	r.Get("/health", s.handleHealth)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	logx.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleLeadWebhook runs the pipeline synchronously and returns the agent's
// response for the inbound message.
func (s *Server) handleLeadWebhook(w http.ResponseWriter, r *http.Request) {
	var in model.LeadMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Email == "" || in.Message == "" {
		writeError(w, http.StatusBadRequest, "email and message are required")
		return
	}

	state := s.runner.Run(r.Context(), in)
	out := state.Output()
	writeJSON(w, http.StatusOK, map[string]any{
		"lead_id":       state.LeadID,
		"response_text": out.ResponseText,
		"confidence":    out.Confidence,
		"decision_type": out.DecisionType,
		"sources_used":  out.SourcesUsed,
		"tools_called":  out.ToolsCalled,
		"escalated":     out.Escalated,
		"next_action":   out.NextAction,
	})
}

func (s *Server) handleLeadStatus(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	lead, err := s.leads.GetByID(r.Context(), leadID)
	if err != nil {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}

	interactions, err := s.leads.RecentInteractions(r.Context(), leadID, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load interactions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lead_id":             lead.ID,
		"email":               lead.Email,
		"name":                lead.Name,
		"company":             lead.Company,
		"status":              lead.Status,
		"qualification_score": lead.QualificationScore,
		"created_at":          lead.CreatedAt,
		"last_contacted_at":   lead.LastContactedAt,
		"next_followup_at":    lead.NextFollowupAt,
		"recent_interactions": interactions,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logx.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
