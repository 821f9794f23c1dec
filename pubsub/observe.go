package pubsub

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"

	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/errs"
	"github.com/toolink/hookpubsub/poll"
)

// ActivityStore is the part of the backend used by Observer.
type ActivityStore interface {
	backend.EventAPI
	backend.AttemptAPI
}

// EventsRequest selects the events routed through a subscription.
type EventsRequest struct {
	SubscriptionID string
	// IncludeBody retrieves each event again to fill in its request data.
	IncludeBody bool
}

// AttemptsRequest selects the delivery attempts of an event.
type AttemptsRequest struct {
	EventID string
	// IncludeBody retrieves each attempt again to fill in its response body.
	IncludeBody bool
}

// Observer reads what happened after a publish.
type Observer struct {
	activity    ActivityStore
	concurrency int
	poll        poll.Options
	telemetry   *telemetry
	logger      zerolog.Logger
}

// NewObserver creates an Observer.
func NewObserver(activity ActivityStore, opts ...Option) *Observer {
	return newObserver(activity, buildOptions(opts...), nil)
}

func newObserver(activity ActivityStore, o *options, t *telemetry) *Observer {
	if t == nil {
		t = newTelemetry(o.meterProvider)
	}
	return &Observer{
		activity:    activity,
		concurrency: o.hydrationConcurrency,
		poll:        o.poll,
		telemetry:   t,
		logger:      o.logger.With().Str("component", "observer").Logger(),
	}
}

// Events lists the events of a subscription.
func (o *Observer) Events(ctx context.Context, req EventsRequest) ([]backend.Event, error) {
	if req.SubscriptionID == "" {
		return nil, errs.New("observer.events", errs.CodeInvalid, errs.WithMessage("subscription id is required"))
	}
	events, err := o.activity.ListEvents(ctx, backend.EventFilter{WebhookID: req.SubscriptionID})
	if err != nil {
		return nil, err
	}
	return hydrate(ctx, events, req.IncludeBody, o.concurrency, func(ctx context.Context, evt backend.Event) (backend.Event, error) {
		full, err := o.activity.RetrieveEvent(ctx, evt.ID)
		if err != nil {
			return backend.Event{}, err
		}
		return *full, nil
	})
}

// DeliveryAttempts lists the delivery attempts of an event.
func (o *Observer) DeliveryAttempts(ctx context.Context, req AttemptsRequest) ([]backend.Attempt, error) {
	if req.EventID == "" {
		return nil, errs.New("observer.delivery_attempts", errs.CodeInvalid, errs.WithMessage("event id is required"))
	}
	attempts, err := o.activity.ListAttempts(ctx, backend.AttemptFilter{EventID: req.EventID})
	if err != nil {
		return nil, err
	}
	return hydrate(ctx, attempts, req.IncludeBody, o.concurrency, func(ctx context.Context, att backend.Attempt) (backend.Attempt, error) {
		full, err := o.activity.RetrieveAttempt(ctx, att.ID)
		if err != nil {
			return backend.Attempt{}, err
		}
		return *full, nil
	})
}

// WaitForEvents polls Events until at least one event exists.
// A zero opts uses the Observer defaults.
func (o *Observer) WaitForEvents(ctx context.Context, req EventsRequest, opts poll.Options) ([]backend.Event, error) {
	return waitForAny(ctx, o, "events", opts, func(ctx context.Context) ([]backend.Event, error) {
		return o.Events(ctx, req)
	})
}

// WaitForDeliveryAttempts polls DeliveryAttempts until at least one attempt exists.
// A zero opts uses the Observer defaults.
func (o *Observer) WaitForDeliveryAttempts(ctx context.Context, req AttemptsRequest, opts poll.Options) ([]backend.Attempt, error) {
	return waitForAny(ctx, o, "attempts", opts, func(ctx context.Context) ([]backend.Attempt, error) {
		return o.DeliveryAttempts(ctx, req)
	})
}

func waitForAny[T any](ctx context.Context, o *Observer, resource string, opts poll.Options, fetch func(context.Context) ([]T, error)) ([]T, error) {
	if opts == (poll.Options{}) {
		opts = o.poll
	}

	attempts := 0
	counted := func(ctx context.Context) ([]T, error) {
		attempts++
		return fetch(ctx)
	}
	items, err := poll.Until(ctx, counted, func(items []T) bool { return len(items) > 0 }, opts)

	o.telemetry.recordPoll(ctx, resource, attempts, err == nil)
	o.logger.Debug().Err(err).Str("resource", resource).Int("attempts", attempts).Msg("wait finished")
	return items, err
}

// hydrate replaces every item with its fully retrieved form when include is set.
// Order is preserved.
func hydrate[T any](ctx context.Context, items []T, include bool, concurrency int, retrieve func(context.Context, T) (T, error)) ([]T, error) {
	if !include || len(items) == 0 {
		return items, nil
	}
	mapper := iter.Mapper[T, T]{MaxGoroutines: concurrency}
	hydrated, err := mapper.MapErr(items, func(item *T) (T, error) {
		return retrieve(ctx, *item)
	})
	if err != nil {
		return nil, err
	}
	return hydrated, nil
}
