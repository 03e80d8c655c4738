package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrQueueFull = errors.New("event queue full")

// AsyncPublisher queues events and hands them to the wrapped publisher from a
// single goroutine, so callers holding a room lock never wait on the broker.
// Events keep their enqueue order.
type AsyncPublisher struct {
	next  Publisher
	queue chan Event

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewAsyncPublisher wraps next with a queue of the given size.
func NewAsyncPublisher(next Publisher, size int) *AsyncPublisher {
	if size <= 0 {
		size = 1000
	}
	return &AsyncPublisher{
		next:  next,
		queue: make(chan Event, size),
		stop:  make(chan struct{}),
	}
}

// Start begins processing queued events until ctx is cancelled or Close is called.
func (p *AsyncPublisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			case ev := <-p.queue:
				p.deliver(ev)
			}
		}
	}()
}

// Publish enqueues event without blocking.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case p.queue <- event:
		return nil
	default:
		log.Warn().
			Str("event_type", string(event.EventType)).
			Str("room_key", event.RoomKey).
			Msg("event queue full, dropping event")
		return ErrQueueFull
	}
}

// Close flushes queued events and closes the wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
	return p.next.Close()
}

func (p *AsyncPublisher) drain() {
	for {
		select {
		case ev := <-p.queue:
			p.deliver(ev)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.next.Publish(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("event_id", ev.EventID).
			Str("event_type", string(ev.EventType)).
			Str("room_key", ev.RoomKey).
			Msg("failed to publish event")
	}
}
