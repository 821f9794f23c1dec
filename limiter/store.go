package limiter

import (
	"context"
	"time"
)

// Store holds API call budgets. Keys combine the credential scope with the
// matched rule path, so each backend route drains its own bucket.
type Store interface {
	// Allow takes one token from the bucket at key, refilling rate tokens
	// every period seconds with a burst of rate. Implementations must
	// refill and take in a single step so concurrent callers sharing a
	// credential never overspend.
	Allow(ctx context.Context, key string, rate float64, period float64) (bool, error)
}

// bucket is one key's budget in the memory store.
type bucket struct {
	Tokens  float64
	Updated time.Time
}
