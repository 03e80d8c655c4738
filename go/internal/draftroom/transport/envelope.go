package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the {type, data} frame used on every socket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope of the given type.
func NewEnvelope(msgType string, data any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env.Data = raw
	return env, nil
}

// MustEnvelope is NewEnvelope for payloads that are known to marshal.
func MustEnvelope(msgType string, data any) Envelope {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		panic(err)
	}
	return env
}

// DecodeEnvelope parses a raw inbound frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v. An absent payload leaves v untouched.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformedEnvelope, e.Type, err)
	}
	return nil
}
