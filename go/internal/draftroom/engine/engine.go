package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWrongTurn      = errors.New("pick submitted out of turn")
	ErrNotActive      = errors.New("draft is not active")
	ErrDraftCompleted = errors.New("draft already completed")
	ErrEmptyItem      = errors.New("item id is required")
	ErrInvalidStatus  = errors.New("invalid status transition")
	ErrEmptyMessage   = errors.New("chat message is empty")
)

// AutoPickItem is the reserved item id recorded when no ranking provider can supply a real item.
const AutoPickItem = "AUTO_PICK"

// Status defines the lifecycle status of a draft.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
)

// Rules holds the fixed parameters of a draft room.
type Rules struct {
	LeagueSize     int `json:"leagueSize" yaml:"league_size"`
	TotalRounds    int `json:"totalRounds" yaml:"total_rounds"`
	TimePerPickSec int `json:"timePerPickSec" yaml:"time_per_pick_sec"`
	Quorum         int `json:"quorum" yaml:"quorum"`
	ChatHistory    int `json:"chatHistory" yaml:"chat_history"`
}

// DefaultRules returns the 12-team, 15-round rules used when nothing is configured.
func DefaultRules() Rules {
	return Rules{
		LeagueSize:     12,
		TotalRounds:    15,
		TimePerPickSec: 60,
		Quorum:         2,
		ChatHistory:    100,
	}
}

// TotalPicks is the number of picks in a complete draft.
func (r Rules) TotalPicks() int {
	return r.LeagueSize * r.TotalRounds
}

// Pick is an immutable record of one selection.
type Pick struct {
	Seat       int       `json:"seat"`
	ItemID     string    `json:"itemId"`
	PickNumber int       `json:"pickNumber"`
	Round      int       `json:"round"`
	PickedAt   time.Time `json:"pickedAt"`
	IsAutoPick bool      `json:"isAutoPick"`
}

// ChatMessage is one entry in a room's bounded chat log.
type ChatMessage struct {
	ID     string    `json:"id"`
	UserID string    `json:"userId"`
	Seat   int       `json:"seat"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// DraftState is the turn state of one room.
type DraftState struct {
	Status            Status        `json:"status"`
	CurrentRound      int           `json:"currentRound"`
	CurrentPick       int           `json:"currentPick"`
	CurrentPickerSeat int           `json:"currentPickerSeat"`
	TimePerPickSec    int           `json:"timePerPickSec"`
	TimeRemainingSec  int           `json:"timeRemainingSec"`
	Picks             []Pick        `json:"picks"`
	Chat              []ChatMessage `json:"chat"`
	StartedAt         *time.Time    `json:"startedAt,omitempty"`
	PausedAt          *time.Time    `json:"pausedAt,omitempty"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty"`
}

// NewState returns a waiting draft positioned at round 1, pick 1, seat 1.
func NewState(rules Rules) DraftState {
	return DraftState{
		Status:            StatusWaiting,
		CurrentRound:      1,
		CurrentPick:       1,
		CurrentPickerSeat: 1,
		TimePerPickSec:    rules.TimePerPickSec,
		TimeRemainingSec:  rules.TimePerPickSec,
		Picks:             []Pick{},
		Chat:              []ChatMessage{},
	}
}

// Clone returns a deep copy safe to hand to serializers outside the room lock.
func (s DraftState) Clone() DraftState {
	c := s
	c.Picks = append([]Pick(nil), s.Picks...)
	c.Chat = append([]ChatMessage(nil), s.Chat...)
	if c.Picks == nil {
		c.Picks = []Pick{}
	}
	if c.Chat == nil {
		c.Chat = []ChatMessage{}
	}
	return c
}

// Start moves a waiting draft to active.
func Start(s *DraftState, rules Rules, now time.Time) error {
	if s.Status != StatusWaiting {
		return ErrInvalidStatus
	}
	s.Status = StatusActive
	s.TimeRemainingSec = rules.TimePerPickSec
	s.StartedAt = &now
	return nil
}

// Pause freezes an active draft without touching the time remaining.
func Pause(s *DraftState, now time.Time) error {
	if s.Status != StatusActive {
		return ErrInvalidStatus
	}
	s.Status = StatusPaused
	s.PausedAt = &now
	return nil
}

// Resume continues a paused draft from the time remaining at pause.
func Resume(s *DraftState) error {
	if s.Status != StatusPaused {
		return ErrInvalidStatus
	}
	s.Status = StatusActive
	s.PausedAt = nil
	return nil
}

// SubmitPick records an explicit pick for the seat on the clock and advances the turn.
func SubmitPick(s *DraftState, rules Rules, seat int, itemID string, now time.Time) (Pick, error) {
	switch s.Status {
	case StatusCompleted:
		return Pick{}, ErrDraftCompleted
	case StatusActive:
	default:
		return Pick{}, ErrNotActive
	}
	if seat != s.CurrentPickerSeat {
		return Pick{}, ErrWrongTurn
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return Pick{}, ErrEmptyItem
	}
	return record(s, rules, itemID, false, now), nil
}

// AutoPick records a system pick for the seat on the clock and advances the turn.
func AutoPick(s *DraftState, rules Rules, itemID string, now time.Time) (Pick, error) {
	if s.Status == StatusCompleted {
		return Pick{}, ErrDraftCompleted
	}
	if s.Status != StatusActive {
		return Pick{}, ErrNotActive
	}
	if strings.TrimSpace(itemID) == "" {
		itemID = AutoPickItem
	}
	return record(s, rules, itemID, true, now), nil
}

func record(s *DraftState, rules Rules, itemID string, auto bool, now time.Time) Pick {
	p := Pick{
		Seat:       s.CurrentPickerSeat,
		ItemID:     itemID,
		PickNumber: s.CurrentPick,
		Round:      s.CurrentRound,
		PickedAt:   now,
		IsAutoPick: auto,
	}
	s.Picks = append(s.Picks, p)
	if Advance(s, rules) {
		s.CompletedAt = &now
	}
	return p
}

// Tick burns one second off the clock. It reports true when the pick has expired.
func Tick(s *DraftState) bool {
	if s.Status != StatusActive {
		return false
	}
	if s.TimeRemainingSec > 0 {
		s.TimeRemainingSec--
	}
	return s.TimeRemainingSec <= 0
}

// AppendChat adds a message and evicts the oldest ones beyond limit.
func AppendChat(s *DraftState, msg ChatMessage, limit int) (ChatMessage, error) {
	msg.Text = strings.TrimSpace(msg.Text)
	if msg.Text == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	s.Chat = append(s.Chat, msg)
	if limit > 0 && len(s.Chat) > limit {
		s.Chat = append([]ChatMessage(nil), s.Chat[len(s.Chat)-limit:]...)
	}
	return msg, nil
}

// IsAvailable reports whether itemID has not been picked yet.
func (s DraftState) IsAvailable(itemID string) bool {
	for _, p := range s.Picks {
		if p.ItemID == itemID {
			return false
		}
	}
	return true
}
