package metrics

import (
	"sync/atomic"
)

// Collector defines the interface for collecting draft room metrics
type Collector interface {
	RecordBroadcast(messageType string, recipients int)
	RecordSendFailure(messageType string, connectionID string)
	RecordSkipped(messageType string)
	RecordPick(autoPick bool)
	RecordRoomCreated()
	RecordRoomRemoved()
	RecordConnectionOpened()
	RecordConnectionClosed()
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) RecordBroadcast(messageType string, recipients int)        {}
func (NoOpCollector) RecordSendFailure(messageType string, connectionID string) {}
func (NoOpCollector) RecordSkipped(messageType string)                          {}
func (NoOpCollector) RecordPick(autoPick bool)                                  {}
func (NoOpCollector) RecordRoomCreated()                                        {}
func (NoOpCollector) RecordRoomRemoved()                                        {}
func (NoOpCollector) RecordConnectionOpened()                                   {}
func (NoOpCollector) RecordConnectionClosed()                                   {}

// Counters is an in-memory Collector backed by atomic counters.
type Counters struct {
	broadcasts        atomic.Int64
	messagesDelivered atomic.Int64
	sendFailures      atomic.Int64
	skipped           atomic.Int64
	picks             atomic.Int64
	autoPicks         atomic.Int64
	roomsCreated      atomic.Int64
	roomsRemoved      atomic.Int64
	openConnections   atomic.Int64
}

// NewCounters returns a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RecordBroadcast(messageType string, recipients int) {
	c.broadcasts.Add(1)
	c.messagesDelivered.Add(int64(recipients))
}

func (c *Counters) RecordSendFailure(messageType string, connectionID string) {
	c.sendFailures.Add(1)
}

func (c *Counters) RecordSkipped(messageType string) {
	c.skipped.Add(1)
}

func (c *Counters) RecordPick(autoPick bool) {
	c.picks.Add(1)
	if autoPick {
		c.autoPicks.Add(1)
	}
}

func (c *Counters) RecordRoomCreated()      { c.roomsCreated.Add(1) }
func (c *Counters) RecordRoomRemoved()      { c.roomsRemoved.Add(1) }
func (c *Counters) RecordConnectionOpened() { c.openConnections.Add(1) }
func (c *Counters) RecordConnectionClosed() { c.openConnections.Add(-1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Broadcasts        int64 `json:"broadcasts"`
	MessagesDelivered int64 `json:"messages_delivered"`
	SendFailures      int64 `json:"send_failures"`
	Skipped           int64 `json:"skipped"`
	Picks             int64 `json:"picks"`
	AutoPicks         int64 `json:"auto_picks"`
	RoomsCreated      int64 `json:"rooms_created"`
	RoomsRemoved      int64 `json:"rooms_removed"`
	OpenConnections   int64 `json:"open_connections"`
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Broadcasts:        c.broadcasts.Load(),
		MessagesDelivered: c.messagesDelivered.Load(),
		SendFailures:      c.sendFailures.Load(),
		Skipped:           c.skipped.Load(),
		Picks:             c.picks.Load(),
		AutoPicks:         c.autoPicks.Load(),
		RoomsCreated:      c.roomsCreated.Load(),
		RoomsRemoved:      c.roomsRemoved.Load(),
		OpenConnections:   c.openConnections.Load(),
	}
}
