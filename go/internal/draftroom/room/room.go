package room

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/timer"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

// Participant is a user seated in a room.
type Participant struct {
	UserID   string
	Seat     int
	Conn     transport.Conn
	JoinedAt time.Time
	LastSeen time.Time
}

// ParticipantInfo is the wire view of a participant.
type ParticipantInfo struct {
	UserID   string    `json:"userId"`
	Seat     int       `json:"seat"`
	JoinedAt time.Time `json:"joinedAt"`
	Online   bool      `json:"online"`
}

// Snapshot is a consistent copy of a room taken under its lock.
type Snapshot struct {
	RoomKey      string            `json:"roomKey"`
	LeagueSize   int               `json:"leagueSize"`
	TotalRounds  int               `json:"totalRounds"`
	State        engine.DraftState `json:"state"`
	Participants []ParticipantInfo `json:"participants"`
}

// Summary is the short listing form of a room.
type Summary struct {
	RoomKey           string        `json:"roomKey"`
	Status            engine.Status `json:"status"`
	Participants      int           `json:"participants"`
	CurrentRound      int           `json:"currentRound"`
	CurrentPick       int           `json:"currentPick"`
	CurrentPickerSeat int           `json:"currentPickerSeat"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// Room holds the participants, draft state and pick timer of one draft.
//
// All mutations happen with the room lock held. Methods other than Lock,
// Unlock, Key, Closed, View and Summarize expect the caller to hold it.
type Room struct {
	mu sync.Mutex

	key          string
	rules        engine.Rules
	createdAt    time.Time
	participants map[string]*Participant
	state        engine.DraftState
	timer        *timer.PickTimer

	closed atomic.Bool
}

func newRoom(key string, rules engine.Rules, now time.Time) *Room {
	return &Room{
		key:          key,
		rules:        rules,
		createdAt:    now,
		participants: make(map[string]*Participant),
		state:        engine.NewState(rules),
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

func (r *Room) Key() string               { return r.key }
func (r *Room) Rules() engine.Rules       { return r.rules }
func (r *Room) CreatedAt() time.Time      { return r.createdAt }
func (r *Room) State() *engine.DraftState { return &r.state }

// Closed reports whether the room has been emptied and must not be joined.
func (r *Room) Closed() bool { return r.closed.Load() }

// Join seats userID on conn. A user who is already seated keeps the seat and
// the new connection replaces the old one.
func (r *Room) Join(userID string, conn transport.Conn, now time.Time) (p *Participant, rejoined bool) {
	if existing, ok := r.participants[userID]; ok {
		existing.Conn = conn
		existing.LastSeen = now
		return existing, true
	}

	p = &Participant{
		UserID:   userID,
		Seat:     r.nextSeat(),
		Conn:     conn,
		JoinedAt: now,
		LastSeen: now,
	}
	r.participants[userID] = p
	return p, false
}

// nextSeat returns the lowest unused seat, or seat 1 when every seat is taken.
func (r *Room) nextSeat() int {
	used := make(map[int]bool, len(r.participants))
	for _, p := range r.participants {
		used[p.Seat] = true
	}
	for seat := 1; seat <= r.rules.LeagueSize; seat++ {
		if !used[seat] {
			return seat
		}
	}
	return 1
}

// Leave removes userID if conn is still its connection. A nil conn removes
// unconditionally. When the last participant leaves the room is marked closed.
func (r *Room) Leave(userID string, conn transport.Conn) (removed bool, empty bool) {
	p, ok := r.participants[userID]
	if !ok {
		return false, len(r.participants) == 0
	}
	if conn != nil && p.Conn != nil && p.Conn.ID() != conn.ID() {
		return false, false
	}
	delete(r.participants, userID)
	if len(r.participants) == 0 {
		r.closed.Store(true)
		return true, true
	}
	return true, false
}

// Participant returns the seated user.
func (r *Room) Participant(userID string) (*Participant, bool) {
	p, ok := r.participants[userID]
	return p, ok
}

// Len is the number of seated users.
func (r *Room) Len() int { return len(r.participants) }

// Participants returns the seated users ordered by seat.
func (r *Room) Participants() []*Participant {
	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seat == out[j].Seat {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Seat < out[j].Seat
	})
	return out
}

// Conns returns the connection of every participant.
func (r *Room) Conns() []transport.Conn {
	ps := r.Participants()
	out := make([]transport.Conn, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Conn)
	}
	return out
}

// Touch records a heartbeat.
func (r *Room) Touch(userID string, now time.Time) {
	if p, ok := r.participants[userID]; ok {
		p.LastSeen = now
	}
}

// Timer returns the room's pick timer, if one is attached.
func (r *Room) Timer() *timer.PickTimer { return r.timer }

// AttachTimer installs t, stopping any timer already attached.
func (r *Room) AttachTimer(t *timer.PickTimer) {
	if r.timer != nil && r.timer != t {
		r.timer.Stop()
	}
	r.timer = t
}

// StopTimer stops the attached timer, if any.
func (r *Room) StopTimer() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// Snapshot copies the room for serialization.
func (r *Room) Snapshot() Snapshot {
	ps := r.Participants()
	infos := make([]ParticipantInfo, 0, len(ps))
	for _, p := range ps {
		infos = append(infos, ParticipantInfo{
			UserID:   p.UserID,
			Seat:     p.Seat,
			JoinedAt: p.JoinedAt,
			Online:   p.Conn != nil && p.Conn.IsOpen(),
		})
	}
	return Snapshot{
		RoomKey:      r.key,
		LeagueSize:   r.rules.LeagueSize,
		TotalRounds:  r.rules.TotalRounds,
		State:        r.state.Clone(),
		Participants: infos,
	}
}

// View takes the lock and returns a snapshot.
func (r *Room) View() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Snapshot()
}

// Summarize takes the lock and returns a summary.
func (r *Room) Summarize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summary{
		RoomKey:           r.key,
		Status:            r.state.Status,
		Participants:      len(r.participants),
		CurrentRound:      r.state.CurrentRound,
		CurrentPick:       r.state.CurrentPick,
		CurrentPickerSeat: r.state.CurrentPickerSeat,
		CreatedAt:         r.createdAt,
	}
}
