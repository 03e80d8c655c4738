package gateway

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/autopick"
	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/events"
	"github.com/mcdev12/draftroom/go/internal/draftroom/metrics"
	"github.com/mcdev12/draftroom/go/internal/draftroom/predictions"
	"github.com/mcdev12/draftroom/go/internal/draftroom/room"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

// Config holds configuration for the draft room gateway service
type Config struct {
	Rules            engine.Rules
	ConnectionConfig transport.ConnectionConfig
	TickInterval     time.Duration
}

// DefaultConfig returns default configuration for the draft room gateway
func DefaultConfig() Config {
	return Config{
		Rules:            engine.DefaultRules(),
		ConnectionConfig: transport.DefaultConnectionConfig(),
		TickInterval:     time.Second,
	}
}

// Service owns every registry of one gateway instance.
type Service struct {
	store        *room.Store
	counters     *metrics.Counters
	drafts       *DraftHandler
	predictions  *predictions.Handler
	wsHandler    *WebSocketHandler
	stateHandler *StateHandler
	clock        clockwork.Clock
	startedAt    time.Time
}

// NewService wires a gateway. A nil publisher drops events, a nil strategy
// auto-picks the placeholder item and a nil clock uses wall time.
func NewService(config Config, publisher events.Publisher, strategy autopick.Strategy, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	counters := metrics.NewCounters()
	dispatcher := transport.NewDispatcher(counters)
	store := room.NewStore(config.Rules, clock, counters)

	drafts := NewDraftHandler(HandlerDeps{
		Store:        store,
		Dispatcher:   dispatcher,
		Publisher:    publisher,
		Strategy:     strategy,
		Clock:        clock,
		Metrics:      counters,
		TickInterval: config.TickInterval,
	})
	preds := predictions.NewHandler(predictions.NewRegistry(dispatcher, clock), predictions.NewBook(), clock)

	s := &Service{
		store:        store,
		counters:     counters,
		drafts:       drafts,
		predictions:  preds,
		stateHandler: NewStateHandler(store),
		clock:        clock,
		startedAt:    clock.Now(),
	}
	s.wsHandler = NewWebSocketHandler(drafts, preds, config.ConnectionConfig, counters, s.GetStats)
	return s
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("draft room gateway routes registered")
}

// HandleResult forwards an oracle result to the prediction channel.
func (s *Service) HandleResult(res events.PredictionResult) {
	s.predictions.HandleResult(res)
}

// Drafts returns the draft connection handler.
func (s *Service) Drafts() *DraftHandler { return s.drafts }

// Predictions returns the prediction channel handler.
func (s *Service) Predictions() *predictions.Handler { return s.predictions }

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"service":                "draftroom_gateway",
		"status":                 "running",
		"active_rooms":           s.store.Len(),
		"prediction_connections": s.predictions.Registry().Len(),
		"uptime":                 s.clock.Since(s.startedAt).Round(time.Second).String(),
		"metrics":                s.counters.Snapshot(),
	}
}

// Stop stops every room timer and drops all rooms.
func (s *Service) Stop() {
	s.store.Shutdown()
	log.Info().Msg("draft room gateway service stopped")
}
