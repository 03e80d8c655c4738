// Package transporttest provides an in-memory transport.Conn for tests.
package transporttest

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/go/internal/draftroom/transport"
)

// Recorder is a transport.Conn that keeps every frame it is sent.
type Recorder struct {
	id     string
	userID string

	mu          sync.Mutex
	frames      [][]byte
	open        bool
	failSends   bool
	closeCode   int
	closeReason string
}

// NewRecorder returns an open recorder for userID.
func NewRecorder(userID string) *Recorder {
	return &Recorder{id: uuid.New().String(), userID: userID, open: true}
}

func (r *Recorder) ID() string     { return r.id }
func (r *Recorder) UserID() string { return r.userID }

func (r *Recorder) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

func (r *Recorder) Send(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return transport.ErrConnectionClosed
	}
	if r.failSends {
		return transport.ErrSendBufferFull
	}
	r.frames = append(r.frames, append([]byte(nil), data...))
	return nil
}

func (r *Recorder) Close(code int, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = false
	r.closeCode = code
	r.closeReason = reason
}

// FailSends makes every subsequent Send return ErrSendBufferFull.
func (r *Recorder) FailSends() {
	r.mu.Lock()
	r.failSends = true
	r.mu.Unlock()
}

// CloseCode returns the code passed to Close, or zero.
func (r *Recorder) CloseCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeCode
}

// Envelopes decodes every recorded frame.
func (r *Recorder) Envelopes() []transport.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transport.Envelope, 0, len(r.frames))
	for _, f := range r.frames {
		var env transport.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// Types lists the envelope types received, in order.
func (r *Recorder) Types() []string {
	envs := r.Envelopes()
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

// Last returns the most recent envelope of msgType.
func (r *Recorder) Last(msgType string) (transport.Envelope, bool) {
	envs := r.Envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == msgType {
			return envs[i], true
		}
	}
	return transport.Envelope{}, false
}

// Count returns how many envelopes of msgType were received.
func (r *Recorder) Count(msgType string) int {
	n := 0
	for _, e := range r.Envelopes() {
		if e.Type == msgType {
			n++
		}
	}
	return n
}

// Reset drops recorded frames.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}
