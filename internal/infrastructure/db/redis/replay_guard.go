package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dhammastream/backoffice/internal/core/ports"
)

const assertionPrefix = "assertion:"

// ReplayGuard remembers consumed identity assertions so each one signs in at
// most once. Key format: assertion:<assertion digest>
type ReplayGuard struct {
	client *redis.Client
}

var _ ports.ReplayGuard = (*ReplayGuard)(nil)

func NewReplayGuard(client *redis.Client) *ReplayGuard {
	return &ReplayGuard{client: client}
}

// Claim atomically records key for ttl. It reports false when key was
// already claimed.
func (g *ReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay guard: %w", err)
	}
	return ok, nil
}

func (g *ReplayGuard) key(k string) string {
	return assertionPrefix + k
}
