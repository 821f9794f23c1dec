// Package poll implements bounded fixed-interval polling.
package poll

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/toolink/hookpubsub/errs"
)

const (
	// DefaultTicks is the attempt budget used when Options.Ticks is not set.
	DefaultTicks = 15
	// DefaultInterval is the wait before each attempt when Options.Interval is not set.
	DefaultInterval = time.Second
)

// Options bounds a polling loop to Ticks attempts spaced Interval apart.
type Options struct {
	Ticks    int
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Ticks <= 0 {
		o.Ticks = DefaultTicks
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// errNotReady marks an attempt whose result was rejected by ready.
var errNotReady = errors.New("poll: not ready")

// Until calls fetch once per tick, waiting the interval before each call, and
// returns the first result accepted by ready.
//
// Attempts are strictly sequential. A fetch error aborts the loop and is returned
// as is. When every attempt is exhausted, the error matches errs.ErrTimeout.
func Until[T any](ctx context.Context, fetch func(context.Context) (T, error), ready func(T) bool, opts Options) (T, error) {
	var zero T
	opts = opts.withDefaults()

	timer := time.NewTimer(opts.Interval)
	select {
	case <-ctx.Done():
		timer.Stop()
		return zero, ctx.Err()
	case <-timer.C:
	}

	attempts := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		result, err := fetch(ctx)
		if err != nil {
			return zero, backoff.Permanent(err)
		}
		if !ready(result) {
			return zero, errNotReady
		}
		return result, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.Interval)),
		backoff.WithMaxTries(uint(opts.Ticks)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, errNotReady) {
		return zero, err
	}

	return zero, errs.New("poll.until", errs.CodeTimeout,
		errs.WithMessage(fmt.Sprintf("not ready after %d attempts", attempts)),
		errs.WithField("attempts", strconv.Itoa(attempts)),
	)
}
