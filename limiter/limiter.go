// Package limiter throttles calls to the backend API on the client side.
//
// Rules match request paths and are evaluated against a token bucket Store.
// The memory store keeps a per-process budget; the redis store shares one
// budget between every process using the same API credential.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// minWait bounds how long Wait sleeps between checks.
const minWait = 10 * time.Millisecond

// RateLimiter contains the configuration and store for rate limiting.
type RateLimiter struct {
	config *Config
	store  Store
	scope  string
	logger zerolog.Logger
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithScope namespaces store keys, typically with Fingerprint(apiKey).
func WithScope(scope string) Option {
	return func(rl *RateLimiter) {
		rl.scope = scope
	}
}

// WithLogger sets the logger used for throttling decisions.
func WithLogger(logger zerolog.Logger) Option {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// NewRateLimiter creates a new RateLimiter instance. cfg must have been validated
// with ValidateAndPrepare.
func NewRateLimiter(cfg *Config, store Store, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		config: cfg,
		store:  store,
		scope:  "default",
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow consumes one token from every rule matching path.
// It returns false as soon as one rule is exhausted.
func (rl *RateLimiter) Allow(ctx context.Context, path string) (bool, error) {
	for i := range rl.config.Rules {
		rule := &rl.config.Rules[i]
		if !rl.pathMatches(path, rule) {
			continue
		}

		key := generateStoreKey(rule, rl.scope)
		allowed, err := rl.store.Allow(ctx, key, rule.Rate, rule.Period)
		if err != nil {
			return false, fmt.Errorf("store error for key %s: %w", key, err)
		}
		if !allowed {
			rl.logger.Debug().Str("path", path).Str("rule_path", rule.Path).Float64("rate", rule.Rate).Float64("period", rule.Period).Msg("rate limit exceeded for rule")
			return false, nil
		}
	}
	return true, nil
}

// Wait blocks until path is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, path string) error {
	for {
		allowed, err := rl.Allow(ctx, path)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(rl.refillInterval(path))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillInterval is the time one token takes to come back for the slowest matching rule.
func (rl *RateLimiter) refillInterval(path string) time.Duration {
	wait := minWait
	for i := range rl.config.Rules {
		rule := &rl.config.Rules[i]
		if !rl.pathMatches(path, rule) || rule.ratePerSecond <= 0 {
			continue
		}
		if d := time.Duration(float64(time.Second) / rule.ratePerSecond); d > wait {
			wait = d
		}
	}
	return wait
}

// pathMatches checks if the request path matches the rule's path (exact or regex).
func (rl *RateLimiter) pathMatches(requestPath string, rule *Rule) bool {
	if rule.IsRegex {
		return rule.compiledRegex != nil && rule.compiledRegex.MatchString(requestPath)
	}
	return rule.Path == requestPath
}

// generateStoreKey creates a unique string key for the store.
// Format: rule:<Rule.Path>|scope:<scope>
func generateStoreKey(rule *Rule, scope string) string {
	return fmt.Sprintf("rule:%s|scope:%s", rule.Path, scope)
}

// Fingerprint returns a short stable digest of secret for use as a scope.
// Raw credentials never reach the store.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}
