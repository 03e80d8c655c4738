package room

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/engine"
	"github.com/mcdev12/draftroom/go/internal/draftroom/metrics"
)

// Store maps room keys to live rooms. The store lock is always taken before
// a room lock, never after.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room

	rules   engine.Rules
	clock   clockwork.Clock
	metrics metrics.Collector
}

// NewStore creates an empty store whose rooms use rules.
func NewStore(rules engine.Rules, clock clockwork.Clock, m metrics.Collector) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &Store{
		rooms:   make(map[string]*Room),
		rules:   rules,
		clock:   clock,
		metrics: m,
	}
}

// GetOrCreate returns the live room for key, creating a waiting room if there
// is none. A room that was emptied is replaced, never returned.
func (s *Store) GetOrCreate(key string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[key]; ok && !r.Closed() {
		return r
	}

	r := newRoom(key, s.rules, s.clock.Now())
	s.rooms[key] = r
	s.metrics.RecordRoomCreated()

	log.Info().
		Str("room_key", key).
		Int("league_size", s.rules.LeagueSize).
		Msg("room created")
	return r
}

// Get returns the live room for key.
func (s *Store) Get(key string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[key]
	if !ok || r.Closed() {
		return nil, false
	}
	return r, true
}

// Remove stops r's timer and drops it if it is still the room stored under key.
func (s *Store) Remove(key string, r *Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rooms[key]
	if !ok || current != r {
		return false
	}
	r.closed.Store(true)
	r.StopTimer()
	delete(s.rooms, key)
	s.metrics.RecordRoomRemoved()

	log.Info().Str("room_key", key).Msg("room removed")
	return true
}

// Keys lists live room keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.rooms))
	for k, r := range s.rooms {
		if !r.Closed() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Rooms returns the live rooms ordered by key.
func (s *Store) Rooms() []*Room {
	keys := s.Keys()
	out := make([]*Room, 0, len(keys))
	for _, k := range keys {
		if r, ok := s.Get(k); ok {
			out = append(out, r)
		}
	}
	return out
}

// Len is the number of live rooms.
func (s *Store) Len() int {
	return len(s.Keys())
}

// Shutdown stops every room timer and empties the store.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.rooms {
		r.closed.Store(true)
		r.StopTimer()
		delete(s.rooms, key)
	}
}
