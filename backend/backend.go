// Package backend is the client side of the webhook-routing API: Sources, Destinations,
// Connections, Events and Attempts.
//
// API is implemented by HTTPClient, which talks to the hosted REST API, and by Memory,
// an in-process backend with the same upsert and default-auth behaviour used for tests
// and local development. Failures are errs envelopes: a missing resource matches
// errs.ErrNotFound, every other HTTP or network failure matches errs.ErrTransport.
package backend

import "context"

// SourceAPI manages inbound endpoints.
type SourceAPI interface {
	// ListSources returns the sources whose name equals name. An empty name lists all.
	ListSources(ctx context.Context, name string) ([]Source, error)
	CreateSource(ctx context.Context, req SourceCreate) (*Source, error)
	UpdateSource(ctx context.Context, id string, req SourceUpdate) (*Source, error)
	RetrieveSource(ctx context.Context, id string) (*Source, error)
	DeleteSource(ctx context.Context, id string) error
}

// DestinationAPI manages outbound endpoints.
type DestinationAPI interface {
	DeleteDestination(ctx context.Context, id string) error
}

// ConnectionAPI manages the routing links between sources and destinations.
type ConnectionAPI interface {
	// UpsertConnection creates the connection named req.Name or updates it in place.
	UpsertConnection(ctx context.Context, req ConnectionUpsert) (*Connection, error)
	ListConnections(ctx context.Context, filter ConnectionFilter) ([]Connection, error)
	RetrieveConnection(ctx context.Context, id string) (*Connection, error)
	DeleteConnection(ctx context.Context, id string) error
}

// EventAPI reads event records.
type EventAPI interface {
	// ListEvents returns events without their Data.
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	// RetrieveEvent returns the event with Data hydrated.
	RetrieveEvent(ctx context.Context, id string) (*Event, error)
}

// AttemptAPI reads delivery attempt records.
type AttemptAPI interface {
	// ListAttempts returns attempts without their Body.
	ListAttempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error)
	// RetrieveAttempt returns the attempt with Body hydrated.
	RetrieveAttempt(ctx context.Context, id string) (*Attempt, error)
}

// API is the complete backend surface.
type API interface {
	SourceAPI
	DestinationAPI
	ConnectionAPI
	EventAPI
	AttemptAPI
}
