package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/metrics"
	"github.com/mcdev12/draftroom/go/internal/draftroom/predictions"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

// WebSocketHandler handles WebSocket upgrade requests for draft rooms and the
// prediction side channel
type WebSocketHandler struct {
	drafts      *DraftHandler
	predictions *predictions.Handler
	config      transport.ConnectionConfig
	upgrader    websocket.Upgrader
	metrics     metrics.Collector
	stats       func() map[string]interface{}
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(drafts *DraftHandler, preds *predictions.Handler, config transport.ConnectionConfig, m metrics.Collector, stats func() map[string]interface{}) *WebSocketHandler {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &WebSocketHandler{
		drafts:      drafts,
		predictions: preds,
		config:      config,
		upgrader:    config.Upgrader(),
		metrics:     m,
		stats:       stats,
	}
}

// HandleDraftConnection handles GET /ws/draft?roomKey=...&userId=...
func (h *WebSocketHandler) HandleDraftConnection(w http.ResponseWriter, r *http.Request) {
	roomKey := r.URL.Query().Get("roomKey")
	userID := r.URL.Query().Get("userId")

	conn, ok := h.upgrade(w, r, userID)
	if !ok {
		return
	}

	if err := h.drafts.OnConnect(conn, roomKey, userID); err != nil {
		log.Warn().
			Err(err).
			Str("room_key", roomKey).
			Str("user_id", userID).
			Msg("refusing draft connection")
		conn.Close(websocket.ClosePolicyViolation, err.Error())
		return
	}

	h.metrics.RecordConnectionOpened()
	conn.Start(func(msg []byte) {
		h.drafts.OnMessage(roomKey, userID, msg)
	}, func() {
		h.drafts.OnClose(roomKey, userID, conn)
		h.metrics.RecordConnectionClosed()
	})

	log.Info().
		Str("connection_id", conn.ID()).
		Str("room_key", roomKey).
		Str("user_id", userID).
		Msg("WebSocket connection established")
}

// HandlePredictionConnection handles GET /ws/predictions?userId=...
func (h *WebSocketHandler) HandlePredictionConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	conn, ok := h.upgrade(w, r, userID)
	if !ok {
		return
	}

	if err := h.predictions.OnConnect(conn, userID); err != nil {
		log.Warn().Err(err).Msg("refusing prediction connection")
		conn.Close(websocket.ClosePolicyViolation, err.Error())
		return
	}

	h.metrics.RecordConnectionOpened()
	conn.Start(func(msg []byte) {
		h.predictions.OnMessage(userID, msg)
	}, func() {
		h.predictions.OnClose(userID, conn)
		h.metrics.RecordConnectionClosed()
	})
}

// upgrade always completes the handshake so that refusals can be reported
// with a policy-violation close frame.
func (h *WebSocketHandler) upgrade(w http.ResponseWriter, r *http.Request, userID string) (*transport.Connection, bool) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return nil, false
	}
	return transport.NewConnection(ws, userID, h.config), true
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{}
	if h.stats != nil {
		stats = h.stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/draft", h.HandleDraftConnection)
	mux.HandleFunc("/ws/predictions", h.HandlePredictionConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
