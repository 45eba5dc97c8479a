package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger entries must never be duplicated, so the guard key outlives any
// realistic retry window instead of using a short dedup TTL.
const ledgerGuardTTL = 30 * 24 * time.Hour

// LedgerGuard ensures the financial ledger is triggered at most once per
// delivery, even when concurrent confirmations race or a confirmation is
// retried after a partial failure.
type LedgerGuard struct {
	client *redis.Client
}

// NewLedgerGuard creates a LedgerGuard wrapping the given Redis client.
func NewLedgerGuard(client *redis.Client) *LedgerGuard {
	return &LedgerGuard{client: client}
}

// FirstDispatch atomically claims the dispatch slot for a delivery. It
// returns true exactly once per delivery; every later call returns false.
func (g *LedgerGuard) FirstDispatch(ctx context.Context, deliveryID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(deliveryID), "1", ledgerGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("ledger guard: %w", err)
	}
	return ok, nil
}

// Release frees the slot so a failed dispatch can be retried.
func (g *LedgerGuard) Release(ctx context.Context, deliveryID string) error {
	return g.client.Del(ctx, g.key(deliveryID)).Err()
}

func (g *LedgerGuard) key(deliveryID string) string {
	return fmt.Sprintf("ledger:%s", deliveryID)
}
