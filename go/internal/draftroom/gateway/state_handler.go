package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/room"
)

// StateHandler handles HTTP requests for room state
type StateHandler struct {
	store *room.Store
}

// NewStateHandler creates a new state handler
func NewStateHandler(store *room.Store) *StateHandler {
	return &StateHandler{store: store}
}

// HandleGetRoomState handles GET /api/rooms/{roomKey}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	roomKey := r.PathValue("roomKey")
	if roomKey == "" {
		http.Error(w, "Room key is required", http.StatusBadRequest)
		return
	}

	rm, ok := h.store.Get(roomKey)
	if !ok {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	writeJSON(w, rm.View())
}

// HandleListRooms handles GET /api/rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.store.Rooms()
	summaries := make([]room.Summary, 0, len(rooms))
	for _, rm := range rooms {
		summaries = append(summaries, rm.Summarize())
	}
	writeJSON(w, summaries)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", h.HandleListRooms)
	mux.HandleFunc("GET /api/rooms/{roomKey}/state", h.HandleGetRoomState)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
