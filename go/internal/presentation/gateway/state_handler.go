package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// StateProvider interface defines methods for retrieving session state
type StateProvider interface {
	GetSessionState(ctx context.Context, code string) (*SessionStateResponse, error)
	GetActiveSessions(ctx context.Context) ([]SessionSummary, error)
}

// SessionStateResponse is the stored record of a session plus gateway data
type SessionStateResponse struct {
	SessionCode   string     `json:"session_code"`
	CurrentStage  string     `json:"current_stage,omitempty"`
	CountdownTime *int       `json:"countdown_time,omitempty"`
	Timestamp     int64      `json:"timestamp,omitempty"`
	WrittenAt     *time.Time `json:"written_at,omitempty"`
	Screens       int        `json:"screens"`
}

// SessionSummary represents a session with connected screens
type SessionSummary struct {
	SessionCode  string `json:"session_code"`
	CurrentStage string `json:"current_stage,omitempty"`
	Screens      int    `json:"screens"`
}

// StateHandler handles HTTP requests for session state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetSessionState handles GET /api/sessions/{code}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("code"))
	if code == "" {
		http.Error(w, "Session code is required", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.GetSessionState(r.Context(), code)
	if errors.Is(err, session.ErrRecordNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// HandleGetActiveSessions handles GET /api/sessions/active
func (h *StateHandler) HandleGetActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.stateProvider.GetActiveSessions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get active sessions")
		http.Error(w, "Failed to get active sessions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		log.Error().Err(err).Msg("failed to encode active sessions response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/active", h.HandleGetActiveSessions)
	mux.HandleFunc("GET /api/sessions/{code}/state", h.HandleGetSessionState)
}
