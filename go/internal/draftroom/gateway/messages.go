package gateway

import (
	"time"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/room"
)

// Draft room message types, both directions.
const (
	TypeDraftStatus  = "DRAFT_STATUS"
	TypeTimerUpdate  = "TIMER_UPDATE"
	TypePickMade     = "PICK_MADE"
	TypePickRejected = "PICK_REJECTED"
	TypeUserJoined   = "USER_JOINED"
	TypeUserLeft     = "USER_LEFT"
	TypeChatMessage  = "CHAT_MESSAGE"
	TypePing         = "PING"
	TypePong         = "PONG"
)

// Timer actions carried by an inbound TIMER_UPDATE.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Rejection codes carried by PICK_REJECTED.
const (
	RejectWrongTurn = "WRONG_TURN"
	RejectNotActive = "NOT_ACTIVE"
	RejectCompleted = "DRAFT_COMPLETED"
	RejectEmptyItem = "EMPTY_ITEM"
)

// Inbound payloads

type pickRequest struct {
	ItemID string `json:"itemId"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type timerRequest struct {
	Action string `json:"action"`
}

// Outbound payloads

type turnInfo struct {
	Status            engine.Status `json:"status"`
	CurrentRound      int           `json:"currentRound"`
	CurrentPick       int           `json:"currentPick"`
	CurrentPickerSeat int           `json:"currentPickerSeat"`
	TimeRemainingSec  int           `json:"timeRemainingSec"`
}

func turnOf(s *engine.DraftState) turnInfo {
	return turnInfo{
		Status:            s.Status,
		CurrentRound:      s.CurrentRound,
		CurrentPick:       s.CurrentPick,
		CurrentPickerSeat: s.CurrentPickerSeat,
		TimeRemainingSec:  s.TimeRemainingSec,
	}
}

type pickMadeMessage struct {
	Pick       engine.Pick `json:"pick"`
	UserID     string      `json:"userId,omitempty"`
	IsAutoPick bool        `json:"isAutoPick"`
	Turn       turnInfo    `json:"turn"`
}

type pickRejectedMessage struct {
	ItemID            string `json:"itemId"`
	Code              string `json:"code"`
	Reason            string `json:"reason"`
	CurrentPickerSeat int    `json:"currentPickerSeat"`
}

type timerMessage struct {
	RoomKey string `json:"roomKey"`
	turnInfo
}

type userJoinedMessage struct {
	UserID       string `json:"userId"`
	Seat         int    `json:"seat"`
	Reconnected  bool   `json:"reconnected"`
	Participants int    `json:"participants"`
}

type userLeftMessage struct {
	UserID       string `json:"userId"`
	Seat         int    `json:"seat"`
	Participants int    `json:"participants"`
}

type pongMessage struct {
	Timestamp time.Time `json:"timestamp"`
}

// draftStatusMessage is the full snapshot sent on join and on every status change.
type draftStatusMessage = room.Snapshot
