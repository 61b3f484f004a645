package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// OverviewProvider supplies the snapshot sent when a client connects.
type OverviewProvider interface {
	GetOverview(ctx context.Context, id uuid.UUID) (*draft.Overview, error)
}

// WebSocketHandler upgrades GET /drafts/{id}/ws.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	overviews         OverviewProvider
	identify          func(*http.Request) string
}

// NewWebSocketHandler creates the handler. identify names the caller in logs; nil means anonymous.
func NewWebSocketHandler(cm *ConnectionManager, overviews OverviewProvider, identify func(*http.Request) string) *WebSocketHandler {
	if identify == nil {
		identify = func(*http.Request) string { return "anonymous" }
	}
	return &WebSocketHandler{
		connectionManager: cm,
		overviews:         overviews,
		identify:          identify,
	}
}

func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	draftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid draft id", http.StatusBadRequest)
		return
	}

	ov, err := h.overviews.GetOverview(r.Context(), draftID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "draft not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("draft_id", draftID.String()).Msg("failed to load overview for websocket")
		http.Error(w, "failed to load draft", http.StatusInternalServerError)
		return
	}
	data, err := json.Marshal(ov)
	if err != nil {
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}
	snapshot, err := json.Marshal(Message{
		DraftID:   draftID.String(),
		Type:      TypeSnapshot,
		Timestamp: ov.ServerTime,
		Data:      data,
	})
	if err != nil {
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}

	userID := h.identify(r)
	// the upgrader has already written the error response on failure
	if err := h.connectionManager.Attach(w, r, userID, draftID, snapshot); err != nil {
		log.Error().
			Err(err).
			Str("draft_id", draftID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes mounts the socket and stats endpoints on r.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/drafts/{id}/ws", h.HandleDraftConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}
