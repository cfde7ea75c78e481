package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/agent"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// AgentChat sends a message to the copilot. Current telemetry may be
// attached for context-aware analysis.
func (h *Handlers) AgentChat(w http.ResponseWriter, r *http.Request) {
	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := h.Agent.Chat(r.Context(), req)
	if err != nil {
		// Only cancellation reaches here; everything else resolves to text.
		log.Warn().Err(err).Msg("agent chat aborted")
		respondError(w, http.StatusInternalServerError, "Agent error")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type analyzeRequest struct {
	Telemetry *models.TelemetrySnapshot `json:"telemetry"`
	SessionID string                    `json:"session_id,omitempty"`
}

// AgentAnalyze triggers autonomous analysis of a telemetry snapshot. The
// agent runs predictions, assesses risk, and logs recommendations without
// a user message.
func (h *Handlers) AgentAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Telemetry == nil {
		respondError(w, http.StatusBadRequest, "telemetry is required")
		return
	}

	resp, err := h.Agent.Analyze(r.Context(), *req.Telemetry, req.SessionID)
	if err != nil {
		log.Warn().Err(err).Msg("agent analysis aborted")
		respondError(w, http.StatusInternalServerError, "Agent analysis error")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// AgentHistory returns the persisted conversation for a session.
func (h *Handlers) AgentHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := h.Store.ConversationHistory(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []models.ConversationTurn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"history":    history,
		"count":      len(history),
	})
}
