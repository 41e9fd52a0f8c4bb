package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshGuard records refresh token ids so each can be redeemed once.
// Entries only need to live until the token would expire anyway.
type RefreshGuard interface {
	MarkUsed(ctx context.Context, tokenID string, expiresAt time.Time) (firstUse bool, err error)
}

// MemoryRefreshGuard is a per-process guard. Use the redis guard when several
// instances share refresh traffic.
type MemoryRefreshGuard struct {
	mu    sync.Mutex
	used  map[string]time.Time
	now   func() time.Time
	sweep time.Time
}

func NewMemoryRefreshGuard() *MemoryRefreshGuard {
	return &MemoryRefreshGuard{used: make(map[string]time.Time), now: time.Now}
}

// WithClock replaces time.Now.
func (g *MemoryRefreshGuard) WithClock(now func() time.Time) *MemoryRefreshGuard {
	g.now = now
	return g
}

func (g *MemoryRefreshGuard) MarkUsed(_ context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.sweep) > time.Minute {
		for id, exp := range g.used {
			if !now.Before(exp) {
				delete(g.used, id)
			}
		}
		g.sweep = now
	}

	if exp, ok := g.used[tokenID]; ok && now.Before(exp) {
		return false, nil
	}
	g.used[tokenID] = expiresAt
	return true, nil
}

func (g *MemoryRefreshGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.used)
}
