package protocol

import (
	"errors"
	"testing"
)

type paddle struct {
	Position float64 `json:"position"`
}

func TestEncodeDecode(t *testing.T) {
	b, err := Encode("paddleMove", paddle{Position: 0.25})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if string(b) != `{"t":"paddleMove","p":{"position":0.25}}` {
		t.Errorf("unexpected frame: %s", b)
	}

	env, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatalf("DecodeEnvelope() failed: %v", err)
	}
	p, err := DecodePayload[paddle](env)
	if err != nil {
		t.Fatalf("DecodePayload() failed: %v", err)
	}
	if p.Position != 0.25 {
		t.Errorf("position = %v, expected 0.25", p.Position)
	}
}

func TestEncodeWithoutPayload(t *testing.T) {
	b, err := Encode("pauseGame", nil)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if string(b) != `{"t":"pauseGame"}` {
		t.Errorf("unexpected frame: %s", b)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyFrame},
		{"missing type", `{"p":{}}`, ErrMissingType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeEnvelope([]byte(tc.input)); !errors.Is(err, tc.want) {
				t.Errorf("DecodeEnvelope(%q) err = %v, expected %v", tc.input, err, tc.want)
			}
		})
	}

	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Error("expected an error for malformed JSON")
	}
	if _, err := Encode("", nil); !errors.Is(err, ErrMissingType) {
		t.Errorf("Encode with no type err = %v", err)
	}
}

func TestDecodeOptional(t *testing.T) {
	env := Envelope{T: "leaveRoom"}
	if _, err := DecodePayload[paddle](env); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("DecodePayload err = %v, expected ErrEmptyPayload", err)
	}
	p, err := DecodeOptional[paddle](env)
	if err != nil || p.Position != 0 {
		t.Errorf("DecodeOptional() = %+v, %v", p, err)
	}
}
