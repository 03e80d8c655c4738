package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	cases := []struct {
		roomKey string
		want    string
	}{
		{"L1", "draftroom.L1.PickMade"},
		{"league.one", "draftroom.league_one.PickMade"},
		{"a b*c>", "draftroom.a_b_c_.PickMade"},
		{"", "draftroom._.PickMade"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Subject("draftroom", tc.roomKey, EventTypePickMade))
	}
	assert.Equal(t, "draftroom.oracle.results", ResultsSubject("draftroom"))
}

func TestNewEvent_Envelope(t *testing.T) {
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	ev, err := NewEvent("L1", EventTypePickMade, PickMadePayload{RoomKey: "L1", Seat: 2, ItemID: "P100"}, at)
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "PickMade", decoded["eventType"])
	assert.Equal(t, "L1", decoded["roomKey"])
	assert.Contains(t, decoded, "eventId")
	assert.Contains(t, decoded, "timestamp")
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "P100", payload["item_id"])
}

func TestDecodeResult(t *testing.T) {
	res, err := DecodeResult([]byte(`{"question_id":"q1","outcome":"YES"}`))
	require.NoError(t, err)
	assert.Equal(t, "q1", res.QuestionID)
	assert.False(t, res.ResolvedAt.IsZero())

	_, err = DecodeResult([]byte(`{"question_id":"q1"}`))
	require.ErrorIs(t, err, ErrInvalidResult)
	_, err = DecodeResult([]byte(`nope`))
	require.ErrorIs(t, err, ErrInvalidResult)
}

func TestMemoryPublisher(t *testing.T) {
	p := NewMemoryPublisher()
	ev, err := NewEvent("L1", EventTypeDraftStarted, DraftStartedPayload{RoomKey: "L1"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), ev))
	assert.Equal(t, []EventType{EventTypeDraftStarted}, p.Types())
	require.NoError(t, p.Close())

	var noop Publisher = NoOpPublisher{}
	assert.NoError(t, noop.Publish(context.Background(), ev))
}

func TestAsyncPublisher_DeliversInOrder(t *testing.T) {
	mem := NewMemoryPublisher()
	p := NewAsyncPublisher(mem, 16)
	p.Start(context.Background())

	for _, et := range []EventType{EventTypeDraftStarted, EventTypePickMade, EventTypeDraftCompleted} {
		ev, err := NewEvent("L1", et, struct{}{}, time.Now())
		require.NoError(t, err)
		require.NoError(t, p.Publish(context.Background(), ev))
	}
	require.NoError(t, p.Close())

	assert.Equal(t, []EventType{EventTypeDraftStarted, EventTypePickMade, EventTypeDraftCompleted}, mem.Types())
}

func TestAsyncPublisher_FullQueueDrops(t *testing.T) {
	p := NewAsyncPublisher(NewMemoryPublisher(), 1)
	ev, err := NewEvent("L1", EventTypePickMade, struct{}{}, time.Now())
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), ev))
	require.ErrorIs(t, p.Publish(context.Background(), ev), ErrQueueFull)
}
