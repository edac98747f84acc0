// Package inventory tracks the power-ups each player may spend, in Redis.
// Balances live in one hash per player keyed by power-up kind.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

var ErrInvalidAmount = errors.New("inventory: amount must be positive")

// consumeScript decrements a balance only when it is positive and returns
// the new balance, or -1 when nothing was left.
var consumeScript = redis.NewScript(`
local n = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
if n <= 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
`)

// Store is the Redis-backed inventory.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ multiplayer.PowerUpInventory = (*Store)(nil)

// NewStore creates a store whose keys start with prefix.
func NewStore(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(player string) string { return s.prefix + "inv:" + player }

// Grant credits n power-ups of kind and returns the new balance.
func (s *Store) Grant(ctx context.Context, player string, kind match.Kind, n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	v, err := s.rdb.HIncrBy(ctx, s.key(player), string(kind), int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("inventory: grant %s to %s: %w", kind, player, err)
	}
	return int(v), nil
}

// Consume spends one power-up of kind.
func (s *Store) Consume(ctx context.Context, player string, kind match.Kind) error {
	left, err := consumeScript.Run(ctx, s.rdb, []string{s.key(player)}, string(kind)).Int()
	if err != nil {
		return &multiplayer.InventoryError{Kind: multiplayer.InventoryUnavailable, Player: player, PowerUp: kind, Err: err}
	}
	if left < 0 {
		return &multiplayer.InventoryError{Kind: multiplayer.InventoryInsufficient, Player: player, PowerUp: kind}
	}
	return nil
}

// Refund returns one power-up of kind after a failed activation.
func (s *Store) Refund(ctx context.Context, player string, kind match.Kind) error {
	if err := s.rdb.HIncrBy(ctx, s.key(player), string(kind), 1).Err(); err != nil {
		return &multiplayer.InventoryError{Kind: multiplayer.InventoryUnavailable, Player: player, PowerUp: kind, Err: err}
	}
	return nil
}

// Balance returns every non-empty balance of a player.
func (s *Store) Balance(ctx context.Context, player string) (map[match.Kind]int, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key(player)).Result()
	if err != nil {
		return nil, fmt.Errorf("inventory: balance of %s: %w", player, err)
	}
	out := make(map[match.Kind]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		out[match.Kind(k)] = n
	}
	return out, nil
}
