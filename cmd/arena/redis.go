package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/paddle-arena/internal/config"
)

var errNoRedis = errors.New("redis is not configured (set redis.addr or ARENA_REDIS_ADDR)")

func newRedis(rc config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
}

// dialRedis connects and pings, for commands that cannot work without Redis.
func dialRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	if rc.Addr == "" {
		return nil, errNoRedis
	}
	rdb := newRedis(rc)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	return rdb, nil
}
