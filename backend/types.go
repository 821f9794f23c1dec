package backend

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/toolink/hookpubsub/auth"
)

// Source is an inbound endpoint that accepts published events.
type Source struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	URL          string                   `json:"url,omitempty"`
	Verification *auth.VerificationConfig `json:"verification,omitempty"`
	CreatedAt    time.Time                `json:"created_at,omitempty"`
	UpdatedAt    time.Time                `json:"updated_at,omitempty"`
}

// Destination is an outbound endpoint receiving routed deliveries.
type Destination struct {
	ID         string                      `json:"id"`
	Name       string                      `json:"name"`
	URL        string                      `json:"url,omitempty"`
	AuthMethod *auth.DestinationAuthMethod `json:"auth_method,omitempty"`
	CreatedAt  time.Time                   `json:"created_at,omitempty"`
	UpdatedAt  time.Time                   `json:"updated_at,omitempty"`
}

// Connection routes one Source to one Destination.
type Connection struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	FullName    string      `json:"full_name,omitempty"`
	Source      Source      `json:"source"`
	Destination Destination `json:"destination"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at,omitempty"`
}

// Event is the record of a request routed through a Connection.
type Event struct {
	ID             string     `json:"id"`
	WebhookID      string     `json:"webhook_id"`
	SourceID       string     `json:"source_id,omitempty"`
	DestinationID  string     `json:"destination_id,omitempty"`
	Status         string     `json:"status,omitempty"`
	Attempts       int        `json:"attempts,omitempty"`
	ResponseStatus int        `json:"response_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	Data           *EventData `json:"data,omitempty"`
}

// EventData is the request captured for an Event. Only present on retrieval.
type EventData struct {
	Path    string            `json:"path,omitempty"`
	Query   string            `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Attempt is a single delivery attempt of an Event to its Destination.
type Attempt struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	AttemptNumber  int             `json:"attempt_number,omitempty"`
	Status         string          `json:"status,omitempty"`
	ResponseStatus int             `json:"response_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitempty"`
	Body           json.RawMessage `json:"body,omitempty"`
}

// SourceCreate is the body of a source creation.
type SourceCreate struct {
	Name         string                   `json:"name"`
	Verification *auth.VerificationConfig `json:"verification,omitempty"`
}

// SourceUpdate is the body of a source update.
type SourceUpdate struct {
	Verification *auth.VerificationConfig `json:"verification,omitempty"`
}

// ConnectionUpsert creates or updates the Connection identified by Name.
type ConnectionUpsert struct {
	Name        string            `json:"name"`
	Source      *SourceInput      `json:"source,omitempty"`
	Destination *DestinationInput `json:"destination,omitempty"`
}

// SourceInput references or creates the Source of an upserted Connection by name.
type SourceInput struct {
	Name         string                   `json:"name"`
	Verification *auth.VerificationConfig `json:"verification,omitempty"`
}

// DestinationInput references or creates the Destination of an upserted Connection by name.
// A nil AuthMethod is omitted so the backend applies its default.
type DestinationInput struct {
	Name       string                      `json:"name"`
	URL        string                      `json:"url"`
	AuthMethod *auth.DestinationAuthMethod `json:"auth_method,omitempty"`
}

// ConnectionFilter narrows a connection listing.
type ConnectionFilter struct {
	ID       string
	FullName string // partial match, evaluated by the backend
}

// EventFilter narrows an event listing.
type EventFilter struct {
	WebhookID string
}

// AttemptFilter narrows an attempt listing.
type AttemptFilter struct {
	EventID string
}

// page is the envelope of every list response.
type page[T any] struct {
	Models     []T        `json:"models"`
	Count      int        `json:"count"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Next string `json:"next,omitempty"`
}
