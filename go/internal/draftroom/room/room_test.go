package room

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/metrics"
	"github.com/mcdev12/draftroom/go/internal/draftroom/timer"
	"github.com/mcdev12/draftroom/go/internal/draftroom/transport/transporttest"
)

func newTestStore(rules engine.Rules) (*Store, *metrics.Counters) {
	counters := metrics.NewCounters()
	return NewStore(rules, clockwork.NewFakeClock(), counters), counters
}

func TestStore_GetOrCreateIsIdempotent(t *testing.T) {
	store, counters := newTestStore(engine.DefaultRules())

	r1 := store.GetOrCreate("L1")
	r2 := store.GetOrCreate("L1")
	require.Same(t, r1, r2)

	r1.Lock()
	st := *r1.State()
	r1.Unlock()
	assert.Equal(t, engine.StatusWaiting, st.Status)
	assert.Equal(t, 1, st.CurrentRound)
	assert.Equal(t, 1, st.CurrentPick)
	assert.Equal(t, 1, st.CurrentPickerSeat)
	assert.Equal(t, int64(1), counters.Snapshot().RoomsCreated)
	assert.Equal(t, []string{"L1"}, store.Keys())
}

func TestRoom_SeatsAreUnique(t *testing.T) {
	store, _ := newTestStore(engine.DefaultRules())
	r := store.GetOrCreate("L1")
	now := time.Now()

	r.Lock()
	defer r.Unlock()
	for i := 0; i < 12; i++ {
		p, rejoined := r.Join(fmt.Sprintf("user-%d", i), transporttest.NewRecorder(fmt.Sprintf("user-%d", i)), now)
		assert.False(t, rejoined)
		assert.Equal(t, i+1, p.Seat)
	}

	seats := map[int]string{}
	for _, p := range r.Participants() {
		_, dup := seats[p.Seat]
		assert.False(t, dup, "seat %d assigned twice", p.Seat)
		seats[p.Seat] = p.UserID
	}
	assert.Len(t, seats, 12)

	overflow, _ := r.Join("user-13", transporttest.NewRecorder("user-13"), now)
	assert.Equal(t, 1, overflow.Seat, "full room falls back to seat 1")
}

func TestRoom_LowestFreeSeatIsReused(t *testing.T) {
	store, _ := newTestStore(engine.DefaultRules())
	r := store.GetOrCreate("L1")
	now := time.Now()

	r.Lock()
	defer r.Unlock()
	a := transporttest.NewRecorder("a")
	r.Join("a", a, now)
	r.Join("b", transporttest.NewRecorder("b"), now)
	r.Join("c", transporttest.NewRecorder("c"), now)

	removed, empty := r.Leave("a", a)
	require.True(t, removed)
	require.False(t, empty)

	p, _ := r.Join("d", transporttest.NewRecorder("d"), now)
	assert.Equal(t, 1, p.Seat)
}

func TestRoom_ReconnectKeepsSeat(t *testing.T) {
	store, _ := newTestStore(engine.DefaultRules())
	r := store.GetOrCreate("L1")
	now := time.Now()

	r.Lock()
	defer r.Unlock()
	r.Join("a", transporttest.NewRecorder("a"), now)
	oldConn := transporttest.NewRecorder("b")
	first, _ := r.Join("b", oldConn, now)

	newConn := transporttest.NewRecorder("b")
	again, rejoined := r.Join("b", newConn, now)
	require.True(t, rejoined)
	assert.Equal(t, first.Seat, again.Seat)
	assert.Equal(t, newConn.ID(), again.Conn.ID())

	removed, _ := r.Leave("b", oldConn)
	assert.False(t, removed, "stale connection must not evict the participant")
	_, ok := r.Participant("b")
	assert.True(t, ok)
}

func TestStore_EmptiedRoomIsReplaced(t *testing.T) {
	store, counters := newTestStore(engine.DefaultRules())
	r := store.GetOrCreate("L1")

	conn := transporttest.NewRecorder("a")
	r.Lock()
	r.Join("a", conn, time.Now())
	fc := clockwork.NewFakeClock()
	pt := timer.New(fc, time.Second, nil)
	r.AttachTimer(pt)
	pt.Start()
	_, empty := r.Leave("a", conn)
	r.Unlock()
	require.True(t, empty)
	assert.True(t, r.Closed())

	fresh := store.GetOrCreate("L1")
	assert.NotSame(t, r, fresh, "closed room must not be handed out")

	assert.False(t, store.Remove("L1", r), "stale room must not remove its replacement")
	require.True(t, store.Remove("L1", fresh))
	_, ok := store.Get("L1")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, int64(2), counters.Snapshot().RoomsCreated)
	assert.Equal(t, int64(1), counters.Snapshot().RoomsRemoved)
}

func TestStore_RemoveStopsTimer(t *testing.T) {
	store, _ := newTestStore(engine.DefaultRules())
	r := store.GetOrCreate("L1")
	pt := timer.New(clockwork.NewFakeClock(), time.Second, nil)

	r.Lock()
	r.AttachTimer(pt)
	pt.Start()
	r.Unlock()

	require.True(t, store.Remove("L1", r))
	assert.Equal(t, timer.Stopped, pt.State())
}

func TestStore_ConcurrentGetOrCreate(t *testing.T) {
	store, _ := newTestStore(engine.DefaultRules())

	var wg sync.WaitGroup
	rooms := make([]*Room, 50)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = store.GetOrCreate("L1")
		}(i)
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
}

func TestRoom_SnapshotOrderedBySeat(t *testing.T) {
	store, _ := newTestStore(engine.DefaultRules())
	r := store.GetOrCreate("L1")
	now := time.Now()

	r.Lock()
	r.Join("x", transporttest.NewRecorder("x"), now)
	r.Join("y", transporttest.NewRecorder("y"), now)
	r.Unlock()

	snap := r.View()
	require.Len(t, snap.Participants, 2)
	assert.Equal(t, "x", snap.Participants[0].UserID)
	assert.Equal(t, 1, snap.Participants[0].Seat)
	assert.True(t, snap.Participants[0].Online)
	assert.Equal(t, 12, snap.LeagueSize)

	sum := r.Summarize()
	assert.Equal(t, 2, sum.Participants)
	assert.Equal(t, engine.StatusWaiting, sum.Status)
}
