package signing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

const testKey = "c2a4e1f0b9d8e7f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c1d0e9f8a7b6c5d4e3f2"

func TestFromHex(t *testing.T) {
	s, err := FromHex(testKey)
	if err != nil {
		t.Fatalf("FromHex() failed: %v", err)
	}
	if s.PrivateKeyHex() != testKey {
		t.Errorf("PrivateKeyHex() = %s", s.PrivateKeyHex())
	}
	if len(s.PublicKeyHex()) != 66 {
		t.Errorf("compressed public key should be 33 bytes, got %q", s.PublicKeyHex())
	}

	bad := []string{"", "zz", testKey[:62], strings.Repeat("0", 64), strings.Repeat("f", 64)}
	for _, k := range bad {
		if _, err := FromHex(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("FromHex(%q) error = %v, expected ErrInvalidKey", k, err)
		}
	}
}

func TestSignWinVerifies(t *testing.T) {
	s, err := FromHex(testKey)
	if err != nil {
		t.Fatalf("FromHex() failed: %v", err)
	}
	claim := multiplayer.WinClaim{RoomCode: "STAKE1", Winner: "bob", WinnerAddress: "0xb0b", Amount: 500}

	sig, err := s.SignWin(context.Background(), claim)
	if err != nil {
		t.Fatalf("SignWin() failed: %v", err)
	}
	if err := Verify(s.PublicKeyHex(), WinMessage(claim), sig); err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	tampered := claim
	tampered.Amount = 5000
	if err := Verify(s.PublicKeyHex(), WinMessage(tampered), sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered claim verified, err = %v", err)
	}

	other, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if err := Verify(other.PublicKeyHex(), WinMessage(claim), sig); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("signature verified under the wrong key, err = %v", err)
	}
}

func TestSignRefundBindsTime(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	at := time.Unix(1_780_000_000, 0)
	sig, err := s.SignRefund("STAKE1", "0xa11ce", 500, at)
	if err != nil {
		t.Fatalf("SignRefund() failed: %v", err)
	}
	if err := Verify(s.PublicKeyHex(), RefundMessage("STAKE1", "0xa11ce", 500, at), sig); err != nil {
		t.Errorf("Verify() failed: %v", err)
	}
	later := RefundMessage("STAKE1", "0xa11ce", 500, at.Add(time.Second))
	if err := Verify(s.PublicKeyHex(), later, sig); err == nil {
		t.Error("refund signature should not verify for a different issue time")
	}
	if err := Verify(s.PublicKeyHex(), RefundMessage("STAKE1", "0xa11ce", 500, at), "00"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("short signature error = %v", err)
	}
}
