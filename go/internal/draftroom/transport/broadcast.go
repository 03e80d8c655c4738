package transport

import (
	"encoding/json"

	"github.com/mcdev12/draftroom/go/internal/draftroom/metrics"
	"github.com/rs/zerolog/log"
)

// Dispatcher fans envelopes out to connections. A failed send is logged,
// counted and skipped; it never aborts the rest of the fan-out.
type Dispatcher struct {
	metrics metrics.Collector
}

// NewDispatcher creates a dispatcher reporting through m.
func NewDispatcher(m metrics.Collector) *Dispatcher {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	return &Dispatcher{metrics: m}
}

// Broadcast sends env to every open target except the one owned by excludeUserID.
// It returns the number of connections the message was enqueued on.
func (d *Dispatcher) Broadcast(targets []Conn, env Envelope, excludeUserID string) int {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("message_type", env.Type).Msg("failed to marshal envelope for broadcast")
		return 0
	}

	delivered := 0
	for _, conn := range targets {
		if conn == nil {
			continue
		}
		if excludeUserID != "" && conn.UserID() == excludeUserID {
			continue
		}
		if d.deliver(conn, env.Type, data) {
			delivered++
		}
	}
	d.metrics.RecordBroadcast(env.Type, delivered)

	log.Debug().
		Str("message_type", env.Type).
		Int("targets", len(targets)).
		Int("delivered", delivered).
		Msg("envelope broadcasted")
	return delivered
}

// SendTo sends env to a single connection.
func (d *Dispatcher) SendTo(conn Conn, env Envelope) bool {
	if conn == nil {
		return false
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("message_type", env.Type).Msg("failed to marshal envelope")
		return false
	}
	return d.deliver(conn, env.Type, data)
}

func (d *Dispatcher) deliver(conn Conn, msgType string, data []byte) bool {
	if !conn.IsOpen() {
		d.metrics.RecordSkipped(msgType)
		return false
	}
	if err := conn.Send(data); err != nil {
		d.metrics.RecordSendFailure(msgType, conn.ID())
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID()).
			Str("user_id", conn.UserID()).
			Str("message_type", msgType).
			Msg("failed to send to connection")
		return false
	}
	return true
}
