package events

import (
	"time"
)

// EventType names a domain event published for a room.
type EventType string

const (
	EventTypeDraftStarted   EventType = "DraftStarted"
	EventTypePickMade       EventType = "PickMade"
	EventTypeDraftPaused    EventType = "DraftPaused"
	EventTypeDraftResumed   EventType = "DraftResumed"
	EventTypeDraftCompleted EventType = "DraftCompleted"
)

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	RoomKey      string    `json:"room_key"`
	StartedAt    time.Time `json:"started_at"`
	LeagueSize   int       `json:"league_size"`
	TotalRounds  int       `json:"total_rounds"`
	TotalPicks   int       `json:"total_picks"`
	Participants int       `json:"participants"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	RoomKey     string    `json:"room_key"`
	UserID      string    `json:"user_id,omitempty"`
	Seat        int       `json:"seat"`
	ItemID      string    `json:"item_id"`
	Round       int       `json:"round"`
	OverallPick int       `json:"overall_pick"`
	IsAutoPick  bool      `json:"is_auto_pick"`
	MadeAt      time.Time `json:"made_at"`
}

// DraftPausedPayload is the payload for a DraftPaused event
type DraftPausedPayload struct {
	RoomKey          string    `json:"room_key"`
	PausedBy         string    `json:"paused_by"`
	PausedAt         time.Time `json:"paused_at"`
	TimeRemainingSec int       `json:"time_remaining_sec"`
}

// DraftResumedPayload is the payload for a DraftResumed event
type DraftResumedPayload struct {
	RoomKey          string    `json:"room_key"`
	ResumedBy        string    `json:"resumed_by"`
	ResumedAt        time.Time `json:"resumed_at"`
	TimeRemainingSec int       `json:"time_remaining_sec"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	RoomKey     string    `json:"room_key"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	TotalPicks  int       `json:"total_picks"`
}

// PredictionResult is published by the oracle service when a question resolves.
type PredictionResult struct {
	QuestionID string    `json:"question_id"`
	Outcome    string    `json:"outcome"`
	ResolvedAt time.Time `json:"resolved_at"`
}
