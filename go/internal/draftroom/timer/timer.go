package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State of a PickTimer.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Clock abstracts time so that the timer can be driven in tests.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// TickFunc receives the generation the tick was issued under.
type TickFunc func(gen uint64)

// PickTimer owns at most one ticker for a room. Every Start, Pause, Resume and
// Stop bumps the generation, so a tick already in flight when the timer changes
// state can be recognised and dropped with Current.
type PickTimer struct {
	clock    Clock
	interval time.Duration
	onTick   TickFunc

	mu    sync.Mutex
	state State
	gen   uint64
	stop  chan struct{}
}

// New creates a stopped timer that will call onTick every interval once started.
func New(clock Clock, interval time.Duration, onTick TickFunc) *PickTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &PickTimer{clock: clock, interval: interval, onTick: onTick}
}

// Start cancels any running ticker and starts a fresh one.
func (t *PickTimer) Start() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.release()
	return t.launch()
}

// Pause stops ticking. It reports false if the timer was not running.
func (t *PickTimer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return false
	}
	t.release()
	t.gen++
	t.state = Paused
	return true
}

// Resume restarts ticking after Pause. It reports false if the timer was not paused.
func (t *PickTimer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return false
	}
	t.launch()
	return true
}

// Stop releases the ticker. Safe to call in any state.
func (t *PickTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.release()
	t.gen++
	t.state = Stopped
}

// State returns the current state.
func (t *PickTimer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Current reports whether a tick of generation gen is still live.
func (t *PickTimer) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Running && t.gen == gen
}

// must hold t.mu
func (t *PickTimer) launch() uint64 {
	t.gen++
	t.state = Running
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.clock.NewTicker(t.interval)
	go t.run(t.gen, ticker, stop)
	return t.gen
}

// must hold t.mu
func (t *PickTimer) release() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *PickTimer) run(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			select {
			case <-stop:
				return
			default:
			}
			if t.onTick != nil {
				t.onTick(gen)
			}
		}
	}
}
