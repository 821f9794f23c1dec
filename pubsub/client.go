package pubsub

import (
	"context"

	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/poll"
)

// Client wires a Registry, Subscriptions and an Observer over one backend.
type Client struct {
	registry      *Registry
	subscriptions *Subscriptions
	observer      *Observer
}

// New creates a Client. Channels can only be issued when WithPublishAuth is given.
func New(api backend.API, opts ...Option) *Client {
	o := buildOptions(opts...)
	t := newTelemetry(o.meterProvider)
	return &Client{
		registry:      newRegistry(api, o, t),
		subscriptions: newSubscriptions(api, o),
		observer:      newObserver(api, o, t),
	}
}

// Registry returns the channel registry.
func (c *Client) Registry() *Registry { return c.registry }

// Subscriptions returns the subscription manager.
func (c *Client) Subscriptions() *Subscriptions { return c.subscriptions }

// Observer returns the event observer.
func (c *Client) Observer() *Observer { return c.observer }

// Channel implements PubSub.
func (c *Client) Channel(ctx context.Context, name string) (*Channel, error) {
	return c.registry.GetOrCreateChannel(ctx, name)
}

// Subscribe implements PubSub.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	return c.subscriptions.Subscribe(ctx, req)
}

// Unsubscribe implements PubSub.
func (c *Client) Unsubscribe(ctx context.Context, req UnsubscribeRequest) error {
	return c.subscriptions.Unsubscribe(ctx, req)
}

// ListSubscriptions implements PubSub.
func (c *Client) ListSubscriptions(ctx context.Context, req ListRequest) ([]Subscription, error) {
	return c.subscriptions.List(ctx, req)
}

// Events implements PubSub.
func (c *Client) Events(ctx context.Context, req EventsRequest) ([]backend.Event, error) {
	return c.observer.Events(ctx, req)
}

// DeliveryAttempts implements PubSub.
func (c *Client) DeliveryAttempts(ctx context.Context, req AttemptsRequest) ([]backend.Attempt, error) {
	return c.observer.DeliveryAttempts(ctx, req)
}

// WaitForEvents implements PubSub.
func (c *Client) WaitForEvents(ctx context.Context, req EventsRequest, opts poll.Options) ([]backend.Event, error) {
	return c.observer.WaitForEvents(ctx, req, opts)
}

// WaitForDeliveryAttempts implements PubSub.
func (c *Client) WaitForDeliveryAttempts(ctx context.Context, req AttemptsRequest, opts poll.Options) ([]backend.Attempt, error) {
	return c.observer.WaitForDeliveryAttempts(ctx, req, opts)
}

var _ PubSub = (*Client)(nil)
