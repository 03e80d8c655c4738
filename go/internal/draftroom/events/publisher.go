package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrInvalidResult = errors.New("invalid prediction result")

// Event is the envelope every room event is published in.
type Event struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	RoomKey   string          `json:"roomKey"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into a fresh event.
func NewEvent(roomKey string, eventType EventType, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:   uuid.New().String(),
		EventType: eventType,
		RoomKey:   roomKey,
		Timestamp: at.UTC(),
		Payload:   raw,
	}, nil
}

// Publisher delivers room events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subject returns the subject a room event is published on.
func Subject(prefix, roomKey string, eventType EventType) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectToken(roomKey), eventType)
}

// ResultsSubject returns the subject prediction results arrive on.
func ResultsSubject(prefix string) string {
	return prefix + ".oracle.results"
}

// subjectToken makes a room key safe to use as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// DecodeResult parses a prediction result message.
func DecodeResult(data []byte) (PredictionResult, error) {
	var res PredictionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return PredictionResult{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if strings.TrimSpace(res.QuestionID) == "" || strings.TrimSpace(res.Outcome) == "" {
		return PredictionResult{}, fmt.Errorf("%w: question_id and outcome are required", ErrInvalidResult)
	}
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = time.Now().UTC()
	}
	return res, nil
}

// NoOpPublisher drops events. Used when no broker is configured.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NoOpPublisher) Close() error                                  { return nil }

// MemoryPublisher is a simple in-memory publisher for development/testing
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()

	log.Debug().
		Str("event_id", event.EventID).
		Str("event_type", string(event.EventType)).
		Str("room_key", event.RoomKey).
		Msg("event recorded")
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Types lists published event types in order.
func (p *MemoryPublisher) Types() []EventType {
	evs := p.Events()
	out := make([]EventType, len(evs))
	for i, e := range evs {
		out[i] = e.EventType
	}
	return out
}
