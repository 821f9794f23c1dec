// Package pubsub provides channel and subscription semantics on top of a
// webhook routing backend.
//
// A Channel is a named Source that accepts published events. A Subscription
// is a Connection that routes a channel to a URL. Both are reconciled against
// the backend on every call and no state is kept locally.
package pubsub

import (
	"context"

	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/poll"
)

// PubSub defines the operations offered by Client.
type PubSub interface {
	// Channel returns the named channel, creating or adopting its Source.
	Channel(ctx context.Context, name string) (*Channel, error)

	// Subscribe routes a channel to a URL. Repeated calls with the same
	// channel and URL resolve to the same subscription.
	Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error)

	// Unsubscribe removes a subscription by id.
	Unsubscribe(ctx context.Context, req UnsubscribeRequest) error

	// ListSubscriptions returns the subscriptions matching req.
	ListSubscriptions(ctx context.Context, req ListRequest) ([]Subscription, error)

	// Events lists the events routed through a subscription.
	Events(ctx context.Context, req EventsRequest) ([]backend.Event, error)

	// DeliveryAttempts lists the delivery attempts of an event.
	DeliveryAttempts(ctx context.Context, req AttemptsRequest) ([]backend.Attempt, error)

	// WaitForEvents polls until a subscription has at least one event.
	WaitForEvents(ctx context.Context, req EventsRequest, opts poll.Options) ([]backend.Event, error)

	// WaitForDeliveryAttempts polls until an event has at least one delivery attempt.
	WaitForDeliveryAttempts(ctx context.Context, req AttemptsRequest, opts poll.Options) ([]backend.Attempt, error)
}
