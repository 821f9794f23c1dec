package pubsub

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/errs"
	"github.com/toolink/hookpubsub/identity"
)

// ConnectionStore is the part of the backend used by Subscriptions.
type ConnectionStore interface {
	backend.ConnectionAPI
	backend.DestinationAPI
}

// Subscription is a Connection delivering a channel to a URL.
type Subscription struct {
	ID          string
	ChannelName string
	URL         string
	Connection  backend.Connection
}

// SubscribeRequest describes a subscription to create or update.
type SubscribeRequest struct {
	ChannelName string
	URL         string
	// Auth is the outbound auth used by the backend when delivering to URL.
	// Nil leaves the backend default in place.
	Auth *auth.DestinationAuthMethod
}

// UnsubscribeRequest identifies a subscription to remove.
type UnsubscribeRequest struct {
	ID string
	// RemoveDestination also deletes the destination created for the subscription.
	RemoveDestination bool
}

// ListRequest filters ListSubscriptions. Empty fields do not filter.
type ListRequest struct {
	SubscriptionID string
	// ChannelName is matched partially by the backend.
	ChannelName string
}

// Subscriptions manages Connections named after their channel and URL.
type Subscriptions struct {
	connections ConnectionStore
	logger      zerolog.Logger
}

// NewSubscriptions creates a Subscriptions manager.
func NewSubscriptions(connections ConnectionStore, opts ...Option) *Subscriptions {
	return newSubscriptions(connections, buildOptions(opts...))
}

func newSubscriptions(connections ConnectionStore, o *options) *Subscriptions {
	return &Subscriptions{
		connections: connections,
		logger:      o.logger.With().Str("component", "subscriptions").Logger(),
	}
}

// Subscribe upserts the Connection for (ChannelName, URL). Calling it again with
// the same channel and URL updates the same Connection.
func (s *Subscriptions) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	const op = "subscriptions.subscribe"

	if strings.TrimSpace(req.ChannelName) == "" {
		return nil, errs.New(op, errs.CodeInvalid, errs.WithMessage("channel name is required"))
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, errs.New(op, errs.CodeInvalid, errs.WithMessage("url is required"),
			errs.WithField("channel", req.ChannelName))
	}

	conn, err := s.connections.UpsertConnection(ctx, backend.ConnectionUpsert{
		Name:   identity.ConnectionName(req.ChannelName, req.URL),
		Source: &backend.SourceInput{Name: req.ChannelName},
		Destination: &backend.DestinationInput{
			Name:       identity.DestinationName(req.ChannelName, req.URL),
			URL:        req.URL,
			AuthMethod: req.Auth,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("channel", req.ChannelName).
		Str("connection_id", conn.ID).
		Str("url", conn.Destination.URL).
		Msg("subscribed")

	sub := toSubscription(*conn)
	return &sub, nil
}

// Unsubscribe deletes the Connection with the given id. A missing Connection
// yields an error matching errs.ErrNotFound.
func (s *Subscriptions) Unsubscribe(ctx context.Context, req UnsubscribeRequest) error {
	if strings.TrimSpace(req.ID) == "" {
		return errs.New("subscriptions.unsubscribe", errs.CodeInvalid, errs.WithMessage("subscription id is required"))
	}

	if !req.RemoveDestination {
		return s.connections.DeleteConnection(ctx, req.ID)
	}

	conn, err := s.connections.RetrieveConnection(ctx, req.ID)
	if err != nil {
		return err
	}
	if err := s.connections.DeleteConnection(ctx, req.ID); err != nil {
		return err
	}
	if conn.Destination.ID == "" {
		return nil
	}
	if err := s.connections.DeleteDestination(ctx, conn.Destination.ID); err != nil {
		return err
	}
	s.logger.Debug().Str("connection_id", req.ID).Str("destination_id", conn.Destination.ID).Msg("destination removed")
	return nil
}

// List returns the subscriptions matching req. Connections without a
// destination URL are skipped.
func (s *Subscriptions) List(ctx context.Context, req ListRequest) ([]Subscription, error) {
	conns, err := s.connections.ListConnections(ctx, backend.ConnectionFilter{
		ID:       req.SubscriptionID,
		FullName: req.ChannelName,
	})
	if err != nil {
		return nil, err
	}

	subs := make([]Subscription, 0, len(conns))
	for _, conn := range conns {
		if conn.Destination.URL == "" {
			s.logger.Debug().Str("connection_id", conn.ID).Msg("skipping connection without destination url")
			continue
		}
		subs = append(subs, toSubscription(conn))
	}
	return subs, nil
}

func toSubscription(conn backend.Connection) Subscription {
	return Subscription{
		ID:          conn.ID,
		ChannelName: conn.Source.Name,
		URL:         conn.Destination.URL,
		Connection:  conn,
	}
}
