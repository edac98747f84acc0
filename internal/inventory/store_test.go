package inventory

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, "test:"), mr
}

func inventoryKind(t *testing.T, err error) multiplayer.InventoryErrorKind {
	t.Helper()
	var invErr *multiplayer.InventoryError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InventoryError, got %v", err)
	}
	return invErr.Kind
}

func TestConsumeAndRefund(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if n, err := s.Grant(ctx, "alice", match.KindShield, 2); err != nil || n != 2 {
		t.Fatalf("Grant() = %d, %v", n, err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Consume(ctx, "alice", match.KindShield); err != nil {
			t.Fatalf("Consume() #%d failed: %v", i+1, err)
		}
	}

	err := s.Consume(ctx, "alice", match.KindShield)
	if kind := inventoryKind(t, err); kind != multiplayer.InventoryInsufficient {
		t.Errorf("error kind = %v, expected insufficient", kind)
	}
	if got := multiplayer.ReasonFor(err); got != "InsufficientPowerUps" {
		t.Errorf("ReasonFor() = %q", got)
	}

	if err := s.Refund(ctx, "alice", match.KindShield); err != nil {
		t.Fatalf("Refund() failed: %v", err)
	}
	bal, err := s.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Balance() failed: %v", err)
	}
	if bal[match.KindShield] != 1 || len(bal) != 1 {
		t.Errorf("unexpected balance: %v", bal)
	}
}

func TestConsumeNeverGoesNegative(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	err := s.Consume(ctx, "bob", match.KindMultiball)
	if kind := inventoryKind(t, err); kind != multiplayer.InventoryInsufficient {
		t.Errorf("error kind = %v, expected insufficient", kind)
	}
	if got := mr.HGet("test:inv:bob", string(match.KindMultiball)); got != "" {
		t.Errorf("failed consume wrote a balance: %q", got)
	}
}

func TestGrantRejectsNonPositive(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Grant(context.Background(), "alice", match.KindSpeedBoost, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Grant(0) error = %v", err)
	}
}

func TestConsumeUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	err := s.Consume(context.Background(), "alice", match.KindShield)
	if kind := inventoryKind(t, err); kind != multiplayer.InventoryUnavailable {
		t.Errorf("error kind = %v, expected unavailable", kind)
	}
}
