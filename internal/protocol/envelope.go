// Package protocol defines the wire envelope shared by every transport.
// Each frame is a JSON object {"t": <event name>, "p": <payload>}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is one framed event.
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

var (
	ErrEmptyFrame   = errors.New("protocol: empty frame")
	ErrMissingType  = errors.New("protocol: missing event type")
	ErrEmptyPayload = errors.New("protocol: empty payload")
)

// Encode frames payload under event name t. A nil payload produces an
// envelope without "p".
func Encode(t string, payload any) ([]byte, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// NewEnvelope builds an envelope without serializing it.
func NewEnvelope(t string, payload any) (Envelope, error) {
	if t == "" {
		return Envelope{}, ErrMissingType
	}
	env := Envelope{T: t}
	if payload != nil {
		pb, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("protocol: encode %q: %w", t, err)
		}
		env.P = pb
	}
	return env, nil
}

// DecodeEnvelope parses one frame.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, ErrEmptyFrame
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode frame: %w", err)
	}
	if env.T == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 || string(env.P) == "null" {
		return out, fmt.Errorf("%w for %q", ErrEmptyPayload, env.T)
	}
	if err := json.Unmarshal(env.P, &out); err != nil {
		return out, fmt.Errorf("protocol: decode %q payload: %w", env.T, err)
	}
	return out, nil
}

// DecodeOptional is DecodePayload that treats a missing payload as the zero value.
func DecodeOptional[T any](env Envelope) (T, error) {
	var out T
	if len(env.P) == 0 || string(env.P) == "null" {
		return out, nil
	}
	return DecodePayload[T](env)
}
