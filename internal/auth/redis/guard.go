package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "hrms:auth:refresh:used:"

// Setter is the slice of the redis client the guard needs.
type Setter interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
}

// RefreshGuard records redeemed refresh token ids in redis so every instance
// behind the load balancer sees the same set. Keys expire with the token.
type RefreshGuard struct {
	client Setter
	prefix string
	now    func() time.Time
}

func NewRefreshGuard(client Setter, prefix string) *RefreshGuard {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RefreshGuard{client: client, prefix: prefix, now: time.Now}
}

func (g *RefreshGuard) MarkUsed(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, errors.New("token id cannot be empty")
	}
	ttl := expiresAt.Sub(g.now())
	if ttl <= 0 {
		// already expired, verification rejects it before this point
		return false, nil
	}

	first, err := g.client.SetNX(ctx, g.prefix+tokenID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return first, nil
}
