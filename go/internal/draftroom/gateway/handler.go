package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/autopick"
	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/events"
	"github.com/mcdev12/draftroom/go/internal/draftroom/metrics"
	"github.com/mcdev12/draftroom/go/internal/draftroom/room"
	"github.com/mcdev12/draftroom/go/internal/draftroom/timer"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

var ErrMissingParams = errors.New("roomKey and userId are required")

// HandlerDeps are the collaborators of a DraftHandler.
type HandlerDeps struct {
	Store        *room.Store
	Dispatcher   *transport.Dispatcher
	Publisher    events.Publisher
	Strategy     autopick.Strategy
	Clock        clockwork.Clock
	Metrics      metrics.Collector
	TickInterval time.Duration
}

// DraftHandler is the per-connection entry point for draft rooms. Every
// callback and every timer tick takes the room lock, so within one room all
// mutations and the broadcasts that follow them are totally ordered.
type DraftHandler struct {
	store        *room.Store
	dispatcher   *transport.Dispatcher
	publisher    events.Publisher
	strategy     autopick.Strategy
	clock        clockwork.Clock
	metrics      metrics.Collector
	tickInterval time.Duration
}

// NewDraftHandler creates a DraftHandler, filling unset deps with defaults.
func NewDraftHandler(deps HandlerDeps) *DraftHandler {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpCollector{}
	}
	if deps.Store == nil {
		deps.Store = room.NewStore(engine.DefaultRules(), deps.Clock, deps.Metrics)
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = transport.NewDispatcher(deps.Metrics)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoOpPublisher{}
	}
	if deps.Strategy == nil {
		deps.Strategy = autopick.PlaceholderStrategy{}
	}
	if deps.TickInterval <= 0 {
		deps.TickInterval = time.Second
	}
	return &DraftHandler{
		store:        deps.Store,
		dispatcher:   deps.Dispatcher,
		publisher:    deps.Publisher,
		strategy:     deps.Strategy,
		clock:        deps.Clock,
		metrics:      deps.Metrics,
		tickInterval: deps.TickInterval,
	}
}

// Store returns the room store.
func (h *DraftHandler) Store() *room.Store { return h.store }

// OnConnect seats userID in roomKey, replies with the room snapshot, announces
// the join and starts the draft once quorum is reached.
func (h *DraftHandler) OnConnect(conn transport.Conn, roomKey, userID string) error {
	if roomKey == "" || userID == "" {
		return ErrMissingParams
	}

	var stale transport.Conn
	for {
		r := h.store.GetOrCreate(roomKey)
		r.Lock()
		if r.Closed() {
			// lost a race with the last participant leaving
			r.Unlock()
			continue
		}
		stale = h.join(r, conn, userID)
		r.Unlock()
		break
	}

	if stale != nil && stale.ID() != conn.ID() {
		stale.Close(websocket.CloseNormalClosure, "replaced by a newer connection")
	}
	return nil
}

// must hold r's lock
func (h *DraftHandler) join(r *room.Room, conn transport.Conn, userID string) (stale transport.Conn) {
	now := h.clock.Now()
	if existing, ok := r.Participant(userID); ok {
		stale = existing.Conn
	}
	p, rejoined := r.Join(userID, conn, now)
	if !rejoined {
		stale = nil
	}

	log.Info().
		Str("room_key", r.Key()).
		Str("user_id", userID).
		Int("seat", p.Seat).
		Bool("reconnected", rejoined).
		Int("participants", r.Len()).
		Msg("participant joined")

	h.dispatcher.SendTo(conn, transport.MustEnvelope(TypeDraftStatus, r.Snapshot()))
	h.dispatcher.Broadcast(r.Conns(), transport.MustEnvelope(TypeUserJoined, userJoinedMessage{
		UserID:       userID,
		Seat:         p.Seat,
		Reconnected:  rejoined,
		Participants: r.Len(),
	}), userID)

	if r.Len() >= r.Rules().Quorum && r.State().Status == engine.StatusWaiting {
		h.startDraft(r, now)
	}
	return stale
}

// must hold r's lock
func (h *DraftHandler) startDraft(r *room.Room, now time.Time) {
	rules := r.Rules()
	if err := engine.Start(r.State(), rules, now); err != nil {
		log.Error().Err(err).Str("room_key", r.Key()).Msg("failed to start draft")
		return
	}

	t := timer.New(h.clock, h.tickInterval, h.tickFunc(r))
	r.AttachTimer(t)
	t.Start()

	log.Info().
		Str("room_key", r.Key()).
		Int("participants", r.Len()).
		Int("total_picks", rules.TotalPicks()).
		Msg("draft started")

	h.broadcastStatus(r)
	h.publish(r.Key(), events.EventTypeDraftStarted, events.DraftStartedPayload{
		RoomKey:      r.Key(),
		StartedAt:    now,
		LeagueSize:   rules.LeagueSize,
		TotalRounds:  rules.TotalRounds,
		TotalPicks:   rules.TotalPicks(),
		Participants: r.Len(),
	}, now)
}

// OnMessage routes one inbound frame. Malformed or unknown frames are logged and dropped.
func (h *DraftHandler) OnMessage(roomKey, userID string, raw []byte) {
	env, err := transport.DecodeEnvelope(raw)
	if err != nil {
		log.Warn().Err(err).Str("room_key", roomKey).Str("user_id", userID).Msg("dropping malformed message")
		return
	}

	r, ok := h.store.Get(roomKey)
	if !ok {
		log.Debug().Str("room_key", roomKey).Str("user_id", userID).Msg("message for unknown room")
		return
	}

	r.Lock()
	defer r.Unlock()

	p, ok := r.Participant(userID)
	if !ok {
		log.Debug().Str("room_key", roomKey).Str("user_id", userID).Msg("message from user not in room")
		return
	}
	now := h.clock.Now()

	switch env.Type {
	case TypePing:
		r.Touch(userID, now)
		h.dispatcher.SendTo(p.Conn, transport.MustEnvelope(TypePong, pongMessage{Timestamp: now}))

	case TypePickMade:
		var req pickRequest
		if err := env.DecodeData(&req); err != nil {
			log.Warn().Err(err).Str("room_key", roomKey).Str("user_id", userID).Msg("dropping malformed pick")
			return
		}
		h.submitPick(r, p, req.ItemID, now)

	case TypeChatMessage:
		var req chatRequest
		if err := env.DecodeData(&req); err != nil {
			log.Warn().Err(err).Str("room_key", roomKey).Str("user_id", userID).Msg("dropping malformed chat message")
			return
		}
		h.chat(r, p, req.Text, now)

	case TypeTimerUpdate:
		var req timerRequest
		if err := env.DecodeData(&req); err != nil {
			log.Warn().Err(err).Str("room_key", roomKey).Str("user_id", userID).Msg("dropping malformed timer request")
			return
		}
		h.toggleTimer(r, userID, strings.ToLower(strings.TrimSpace(req.Action)), now)

	default:
		log.Debug().
			Str("room_key", roomKey).
			Str("user_id", userID).
			Str("message_type", env.Type).
			Msg("ignoring unknown message type")
	}
}

// must hold r's lock
func (h *DraftHandler) submitPick(r *room.Room, p *room.Participant, itemID string, now time.Time) {
	st := r.State()
	pick, err := engine.SubmitPick(st, r.Rules(), p.Seat, itemID, now)
	if err != nil {
		log.Debug().
			Err(err).
			Str("room_key", r.Key()).
			Str("user_id", p.UserID).
			Int("seat", p.Seat).
			Int("current_picker_seat", st.CurrentPickerSeat).
			Msg("pick rejected")
		h.dispatcher.SendTo(p.Conn, transport.MustEnvelope(TypePickRejected, pickRejectedMessage{
			ItemID:            itemID,
			Code:              rejectCode(err),
			Reason:            err.Error(),
			CurrentPickerSeat: st.CurrentPickerSeat,
		}))
		return
	}
	h.afterPick(r, pick, now)
}

func rejectCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrWrongTurn):
		return RejectWrongTurn
	case errors.Is(err, engine.ErrDraftCompleted):
		return RejectCompleted
	case errors.Is(err, engine.ErrEmptyItem):
		return RejectEmptyItem
	default:
		return RejectNotActive
	}
}

// afterPick broadcasts an accepted pick and either completes the draft or
// restarts the clock for the next seat. Must hold r's lock.
func (h *DraftHandler) afterPick(r *room.Room, pick engine.Pick, now time.Time) {
	st := r.State()
	h.metrics.RecordPick(pick.IsAutoPick)

	userID := ""
	for _, p := range r.Participants() {
		if p.Seat == pick.Seat {
			userID = p.UserID
			break
		}
	}

	log.Info().
		Str("room_key", r.Key()).
		Int("seat", pick.Seat).
		Str("item_id", pick.ItemID).
		Int("pick_number", pick.PickNumber).
		Bool("auto_pick", pick.IsAutoPick).
		Msg("pick made")

	h.dispatcher.Broadcast(r.Conns(), transport.MustEnvelope(TypePickMade, pickMadeMessage{
		Pick:       pick,
		UserID:     userID,
		IsAutoPick: pick.IsAutoPick,
		Turn:       turnOf(st),
	}), "")
	h.publish(r.Key(), events.EventTypePickMade, events.PickMadePayload{
		RoomKey:     r.Key(),
		UserID:      userID,
		Seat:        pick.Seat,
		ItemID:      pick.ItemID,
		Round:       pick.Round,
		OverallPick: pick.PickNumber,
		IsAutoPick:  pick.IsAutoPick,
		MadeAt:      pick.PickedAt,
	}, now)

	if st.Status == engine.StatusCompleted {
		h.completeDraft(r, now)
		return
	}

	if t := r.Timer(); t != nil {
		t.Start()
	}
	h.broadcastTimer(r)
}

// must hold r's lock
func (h *DraftHandler) completeDraft(r *room.Room, now time.Time) {
	r.StopTimer()
	st := r.State()

	duration := time.Duration(0)
	if st.StartedAt != nil {
		duration = now.Sub(*st.StartedAt)
	}
	log.Info().
		Str("room_key", r.Key()).
		Int("total_picks", len(st.Picks)).
		Dur("duration", duration).
		Msg("draft completed")

	h.broadcastStatus(r)
	h.publish(r.Key(), events.EventTypeDraftCompleted, events.DraftCompletedPayload{
		RoomKey:     r.Key(),
		CompletedAt: now,
		Duration:    duration.String(),
		TotalPicks:  len(st.Picks),
	}, now)
}

// must hold r's lock
func (h *DraftHandler) chat(r *room.Room, p *room.Participant, text string, now time.Time) {
	msg, err := engine.AppendChat(r.State(), engine.ChatMessage{
		UserID: p.UserID,
		Seat:   p.Seat,
		Text:   text,
		SentAt: now,
	}, r.Rules().ChatHistory)
	if err != nil {
		log.Debug().Err(err).Str("room_key", r.Key()).Str("user_id", p.UserID).Msg("dropping chat message")
		return
	}
	h.dispatcher.Broadcast(r.Conns(), transport.MustEnvelope(TypeChatMessage, msg), "")
}

// toggleTimer pauses or resumes the draft. An explicit action is honoured;
// anything else toggles. Must hold r's lock.
func (h *DraftHandler) toggleTimer(r *room.Room, userID, action string, now time.Time) {
	st := r.State()
	if action != ActionPause && action != ActionResume {
		switch st.Status {
		case engine.StatusActive:
			action = ActionPause
		case engine.StatusPaused:
			action = ActionResume
		default:
			return
		}
	}

	switch action {
	case ActionPause:
		if err := engine.Pause(st, now); err != nil {
			return
		}
		if t := r.Timer(); t != nil {
			t.Pause()
		}
		log.Info().Str("room_key", r.Key()).Str("user_id", userID).Msg("draft paused")
		h.publish(r.Key(), events.EventTypeDraftPaused, events.DraftPausedPayload{
			RoomKey:          r.Key(),
			PausedBy:         userID,
			PausedAt:         now,
			TimeRemainingSec: st.TimeRemainingSec,
		}, now)

	case ActionResume:
		if err := engine.Resume(st); err != nil {
			return
		}
		if t := r.Timer(); t != nil {
			if !t.Resume() {
				t.Start()
			}
		} else {
			nt := timer.New(h.clock, h.tickInterval, h.tickFunc(r))
			r.AttachTimer(nt)
			nt.Start()
		}
		log.Info().Str("room_key", r.Key()).Str("user_id", userID).Msg("draft resumed")
		h.publish(r.Key(), events.EventTypeDraftResumed, events.DraftResumedPayload{
			RoomKey:          r.Key(),
			ResumedBy:        userID,
			ResumedAt:        now,
			TimeRemainingSec: st.TimeRemainingSec,
		}, now)
	}

	h.broadcastTimer(r)
}

// tickFunc is the pick timer callback for r. Ticks that raced with a pause,
// restart or stop are dropped.
func (h *DraftHandler) tickFunc(r *room.Room) timer.TickFunc {
	return func(gen uint64) {
		r.Lock()
		defer r.Unlock()

		t := r.Timer()
		if r.Closed() || t == nil || !t.Current(gen) {
			return
		}

		st := r.State()
		if !engine.Tick(st) {
			h.broadcastTimer(r)
			return
		}

		now := h.clock.Now()
		item := autopick.Choose(context.Background(), h.strategy, autopick.BoardFor(r.Key(), *st))
		pick, err := engine.AutoPick(st, r.Rules(), item, now)
		if err != nil {
			log.Error().Err(err).Str("room_key", r.Key()).Msg("auto-pick failed")
			t.Stop()
			return
		}
		h.afterPick(r, pick, now)
	}
}

// OnClose removes userID if conn is still its connection, announces the
// departure and tears the room down once it is empty.
func (h *DraftHandler) OnClose(roomKey, userID string, conn transport.Conn) {
	r, ok := h.store.Get(roomKey)
	if !ok {
		return
	}

	r.Lock()
	p, ok := r.Participant(userID)
	seat := 0
	if ok {
		seat = p.Seat
	}
	removed, empty := r.Leave(userID, conn)
	if removed && !empty {
		h.dispatcher.Broadcast(r.Conns(), transport.MustEnvelope(TypeUserLeft, userLeftMessage{
			UserID:       userID,
			Seat:         seat,
			Participants: r.Len(),
		}), userID)
	}
	if empty {
		r.StopTimer()
	}
	r.Unlock()

	if !removed {
		return
	}
	log.Info().
		Str("room_key", roomKey).
		Str("user_id", userID).
		Int("seat", seat).
		Bool("room_empty", empty).
		Msg("participant left")

	if empty {
		h.store.Remove(roomKey, r)
	}
}

// must hold r's lock
func (h *DraftHandler) broadcastStatus(r *room.Room) {
	h.dispatcher.Broadcast(r.Conns(), transport.MustEnvelope(TypeDraftStatus, r.Snapshot()), "")
}

// must hold r's lock
func (h *DraftHandler) broadcastTimer(r *room.Room) {
	h.dispatcher.Broadcast(r.Conns(), transport.MustEnvelope(TypeTimerUpdate, timerMessage{
		RoomKey:  r.Key(),
		turnInfo: turnOf(r.State()),
	}), "")
}

func (h *DraftHandler) publish(roomKey string, eventType events.EventType, payload any, now time.Time) {
	ev, err := events.NewEvent(roomKey, eventType, payload, now)
	if err != nil {
		log.Error().Err(err).Str("room_key", roomKey).Msg("failed to build event")
		return
	}
	if err := h.publisher.Publish(context.Background(), ev); err != nil {
		log.Warn().Err(err).Str("room_key", roomKey).Str("event_type", string(eventType)).Msg("failed to publish event")
	}
}
