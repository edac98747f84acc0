// Package escrow keeps stake records for staked rooms in Redis: who staked
// how much, whether the guest has staked, and the refund authorization of an
// abandoned room.
package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

const recordTTL = 24 * time.Hour

var (
	ErrNotFound = errors.New("escrow: no stake for room")
	ErrInvalid  = errors.New("escrow: invalid stake record")
	ErrConflict = errors.New("escrow: concurrent update")
)

// RefundSigner signs refund authorizations.
type RefundSigner interface {
	SignRefund(code, hostAddress string, amount int64, issuedAt time.Time) (string, error)
}

// Record is the stored escrow state of one room.
type Record struct {
	multiplayer.StakeInfo
	Abandoned bool                             `json:"abandoned"`
	Refund    *multiplayer.RefundAuthorization `json:"refund,omitempty"`
	UpdatedAt time.Time                        `json:"updatedAt"`
}

// Store is the Redis-backed escrow record store.
type Store struct {
	rdb    *redis.Client
	prefix string
	signer RefundSigner
	now    func() time.Time
}

var (
	_ multiplayer.EscrowLookup  = (*Store)(nil)
	_ multiplayer.AbandonMarker = (*Store)(nil)
)

// NewStore creates a store whose keys start with prefix. A nil signer
// produces unsigned refund authorizations.
func NewStore(rdb *redis.Client, prefix string, signer RefundSigner) *Store {
	return &Store{rdb: rdb, prefix: prefix, signer: signer, now: time.Now}
}

func normalize(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

func (s *Store) key(code string) string { return s.prefix + "escrow:" + normalize(code) }

// Seed writes a stake record, replacing any previous one.
func (s *Store) Seed(ctx context.Context, info multiplayer.StakeInfo) error {
	info.RoomCode = normalize(info.RoomCode)
	if info.RoomCode == "" || info.Amount <= 0 {
		return ErrInvalid
	}
	raw, err := json.Marshal(Record{StakeInfo: info, UpdatedAt: s.now()})
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(info.RoomCode), raw, recordTTL).Err(); err != nil {
		return fmt.Errorf("escrow: seed %s: %w", info.RoomCode, err)
	}
	return nil
}

// Get returns the full record of a room.
func (s *Store) Get(ctx context.Context, code string) (Record, error) {
	raw, err := s.rdb.Get(ctx, s.key(code)).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("escrow: get %s: %w", normalize(code), err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("escrow: decode %s: %w", normalize(code), err)
	}
	return rec, nil
}

// LookupStake implements multiplayer.EscrowLookup.
func (s *Store) LookupStake(ctx context.Context, code string) (multiplayer.StakeInfo, bool, error) {
	rec, err := s.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return multiplayer.StakeInfo{}, false, nil
	}
	if err != nil {
		return multiplayer.StakeInfo{}, false, err
	}
	return rec.StakeInfo, true, nil
}

// MarkGuestStaked records the guest's stake.
func (s *Store) MarkGuestStaked(ctx context.Context, code, guestAddress string) error {
	_, err := s.update(ctx, code, func(rec *Record) error {
		rec.GuestStaked = true
		if guestAddress != "" {
			rec.GuestAddress = guestAddress
		}
		return nil
	})
	return err
}

// MarkAbandoned implements multiplayer.AbandonMarker. It is idempotent:
// a room that is already abandoned returns its existing authorization.
func (s *Store) MarkAbandoned(ctx context.Context, code, hostAddress string) (multiplayer.RefundAuthorization, error) {
	rec, err := s.update(ctx, code, func(rec *Record) error {
		if rec.Abandoned && rec.Refund != nil {
			return nil
		}
		addr := rec.HostAddress
		if addr == "" {
			addr = hostAddress
		}
		refund := multiplayer.RefundAuthorization{
			RoomCode:    rec.RoomCode,
			HostAddress: addr,
			Amount:      rec.Amount,
			IssuedAt:    s.now().UTC().Truncate(time.Second),
		}
		if s.signer != nil {
			sig, err := s.signer.SignRefund(refund.RoomCode, refund.HostAddress, refund.Amount, refund.IssuedAt)
			if err != nil {
				return err
			}
			refund.Signature = sig
		}
		rec.Abandoned = true
		rec.Refund = &refund
		return nil
	})
	if err != nil {
		return multiplayer.RefundAuthorization{}, err
	}
	return *rec.Refund, nil
}

// update applies fn to the stored record inside a WATCH transaction.
func (s *Store) update(ctx context.Context, code string, fn func(rec *Record) error) (Record, error) {
	k := s.key(code)
	var out Record
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, k).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.now()
		newRaw, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, newRaw, recordTTL)
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	}, k)

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrNotFound):
		return Record{}, err
	case errors.Is(err, redis.TxFailedErr):
		return Record{}, ErrConflict
	}
	return Record{}, fmt.Errorf("escrow: update %s: %w", normalize(code), err)
}
