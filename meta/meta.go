// Package meta carries request-scoped metadata for backend calls within a context.Context.
//
// Keys beginning with "X-" are forwarded as HTTP headers by the backend client;
// KeyRequestID correlates a call across logs and the backend.
package meta

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// KeyRequestID holds the request id sent with backend calls.
const KeyRequestID = "X-Request-Id"

// metadataKey is the private key type used for context.WithValue.
type metadataKey struct{}

// Metadata holds the key-value pairs.
type Metadata struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates a new, empty Metadata store.
func New() *Metadata {
	return &Metadata{
		data: make(map[string]any),
	}
}

// Set adds or updates a key-value pair. It is a no-op on a nil *Metadata.
func (m *Metadata) Set(key string, value any) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[key] = value
}

// Get retrieves a value by key.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return value, ok
}

// Headers returns the string values whose keys start with "X-".
func (m *Metadata) Headers() map[string]string {
	if m == nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	headers := make(map[string]string)
	for k, v := range m.data {
		if s, ok := v.(string); ok && strings.HasPrefix(k, "X-") {
			headers[k] = s
		}
	}
	return headers
}

// WithContext returns a new context derived from ctx that carries m.
func (m *Metadata) WithContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if m == nil {
		return ctx
	}
	return context.WithValue(ctx, metadataKey{}, m)
}

// FromContext extracts the *Metadata store from ctx, or nil when none is attached.
func FromContext(ctx context.Context) *Metadata {
	if ctx == nil {
		return nil
	}
	md, _ := ctx.Value(metadataKey{}).(*Metadata)
	return md
}

// WithRequestID returns a context whose metadata carries id under KeyRequestID.
// Existing metadata on ctx is reused.
func WithRequestID(ctx context.Context, id string) context.Context {
	md := FromContext(ctx)
	if md == nil {
		md = New()
		ctx = md.WithContext(ctx)
	}
	md.Set(KeyRequestID, id)
	return ctx
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, err := Get[string](ctx, KeyRequestID)
	if err != nil {
		return ""
	}
	return id
}

// Get retrieves a value associated with key from the metadata stored in ctx and
// asserts it to T.
func Get[T any](ctx context.Context, key string) (t T, err error) {
	rawValue, ok := FromContext(ctx).Get(key)
	if !ok {
		err = fmt.Errorf("meta: key '%s' not found in context metadata", key)
		return
	}

	typedValue, ok := rawValue.(T)
	if !ok {
		err = fmt.Errorf("meta: value for key '%s' has type %T, but type %T was requested", key, rawValue, *new(T))
		return
	}
	return typedValue, nil
}
