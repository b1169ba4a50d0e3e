package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/sportsxchange/internal/domain"
)

// ReplayGuard implements domain.ReplayGuard with SET NX PX, so every API
// node shares one record of accepted request signatures.
type ReplayGuard struct {
	c *Client
}

// NewReplayGuard creates a ReplayGuard backed by the given Client.
func NewReplayGuard(c *Client) *ReplayGuard {
	return &ReplayGuard{c: c}
}

// Claim implements domain.ReplayGuard.
func (g *ReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.c.rdb.SetNX(ctx, g.c.key("replay:", key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim %s: %w", key, err)
	}
	return ok, nil
}

var _ domain.ReplayGuard = (*ReplayGuard)(nil)
