package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// sweepEvery is how many claims pass between expiry sweeps.
const sweepEvery = 256

// MemoryReplayGuard is a process-local domain.ReplayGuard for single-node
// deployments without Redis.
type MemoryReplayGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	claims int
	now    func() time.Time
}

var _ domain.ReplayGuard = (*MemoryReplayGuard)(nil)

// NewMemoryReplayGuard creates an empty MemoryReplayGuard.
func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]time.Time), now: time.Now}
}

// Claim implements domain.ReplayGuard.
func (g *MemoryReplayGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(ttl)

	g.claims++
	if g.claims%sweepEvery == 0 {
		for k, exp := range g.seen {
			if !now.Before(exp) {
				delete(g.seen, k)
			}
		}
	}
	return true, nil
}
