package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

// RecordGetter reads the current record of a session
type RecordGetter interface {
	Get(ctx context.Context, code string) (session.Record, error)
}

// WebSocketHandler handles WebSocket upgrade requests from presentation screens
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	records           RecordGetter
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, records RecordGetter) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		records:           records,
	}
}

// HandleSessionConnection handles GET /ws/session?session_code=...
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("session_code"))
	if code == "" {
		http.Error(w, "session_code is required", http.StatusBadRequest)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, clientID, code, h.snapshot(code)); err != nil {
		// The upgrader has already written the HTTP error
		log.Error().
			Err(err).
			Str("session_code", code).
			Str("client_id", clientID).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// snapshot reads the current record for a connecting screen. A screen that
// connects mid-lesson gets it ahead of the next update
func (h *WebSocketHandler) snapshot(code string) SnapshotFunc {
	return func(ctx context.Context) *SessionEvent {
		rec, err := h.records.Get(ctx, code)
		switch {
		case errors.Is(err, session.ErrRecordNotFound):
			return nil
		case err != nil:
			log.Error().Err(err).Str("session_code", code).Msg("failed to load session for state sync")
			return nil
		case rec.IsEmpty():
			return nil
		}

		event, err := NewSessionEvent(EventTypeSessionSnapshot, code, rec)
		if err != nil {
			log.Error().Err(err).Str("session_code", code).Msg("failed to build snapshot event")
			return nil
		}
		return event
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
