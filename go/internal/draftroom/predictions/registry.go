package predictions

import (
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

type entry struct {
	conn     transport.Conn
	lastSeen time.Time
}

// Registry maps each user to its single live side-channel connection,
// independent of any room membership.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry

	dispatcher *transport.Dispatcher
	clock      clockwork.Clock
}

// NewRegistry creates an empty registry.
func NewRegistry(dispatcher *transport.Dispatcher, clock clockwork.Clock) *Registry {
	if dispatcher == nil {
		dispatcher = transport.NewDispatcher(nil)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		conns:      make(map[string]*entry),
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// Register makes conn the user's connection. A previous connection for the
// same user is closed.
func (r *Registry) Register(userID string, conn transport.Conn) {
	r.mu.Lock()
	prev, had := r.conns[userID]
	r.conns[userID] = &entry{conn: conn, lastSeen: r.clock.Now()}
	total := len(r.conns)
	r.mu.Unlock()

	if had && prev.conn != nil && prev.conn.ID() != conn.ID() {
		prev.conn.Close(websocket.CloseNormalClosure, "replaced by a newer connection")
	}

	log.Debug().
		Str("user_id", userID).
		Str("connection_id", conn.ID()).
		Int("total_connections", total).
		Msg("prediction connection registered")
}

// Unregister drops the user's connection, whatever it is.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// Release drops the user's connection only if it is still conn.
func (r *Registry) Release(userID string, conn transport.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[userID]
	if !ok || e.conn.ID() != conn.ID() {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Touch records a heartbeat.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[userID]; ok {
		e.lastSeen = r.clock.Now()
	}
}

// LastSeen returns the last heartbeat of userID.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// BroadcastToAll sends env to every registered open connection.
func (r *Registry) BroadcastToAll(env transport.Envelope) int {
	return r.dispatcher.Broadcast(r.snapshot(), env, "")
}

// SendTo sends env to userID's connection.
func (r *Registry) SendTo(userID string, env transport.Envelope) bool {
	r.mu.RLock()
	e, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.dispatcher.SendTo(e.conn, env)
}

// Len is the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// UserIDs lists registered users in sorted order.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) snapshot() []transport.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]transport.Conn, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.conn)
	}
	return out
}
