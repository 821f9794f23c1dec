package backend

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/errs"
)

// DefaultMemorySourceURL is the base of source URLs issued by Memory.
const DefaultMemorySourceURL = "https://events.memory.local"

// Memory implements API using in-memory data structures.
// Connections and destinations are upserted by name and new destinations get
// auth.DefaultMethod, matching the hosted API.
type Memory struct {
	mu            sync.RWMutex
	sourceURLBase string
	now           func() time.Time

	sources      map[string]*Source      // id -> source
	destinations map[string]*Destination // id -> destination
	connections  map[string]*memoryConn  // id -> connection
	events       map[string]*Event       // id -> event
	attempts     map[string]*Attempt     // id -> attempt
	order        map[string]int          // id -> insertion sequence, for stable listings
	seq          int
}

// memoryConn links by id so source and destination changes show through.
type memoryConn struct {
	id, name      string
	sourceID      string
	destinationID string
	createdAt     time.Time
	updatedAt     time.Time
}

// MemoryOption configures a Memory backend.
type MemoryOption func(*Memory)

// WithSourceURLBase sets the base of issued source URLs; a source gets base + "/" + id.
func WithSourceURLBase(base string) MemoryOption {
	return func(m *Memory) {
		if trimmed := strings.TrimRight(base, "/"); trimmed != "" {
			m.sourceURLBase = trimmed
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory backend.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		sourceURLBase: DefaultMemorySourceURL,
		now:           time.Now,
		sources:       make(map[string]*Source),
		destinations:  make(map[string]*Destination),
		connections:   make(map[string]*memoryConn),
		events:        make(map[string]*Event),
		attempts:      make(map[string]*Attempt),
		order:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

// track records insertion order. Requires Lock to be held.
func (m *Memory) track(id string) {
	m.seq++
	m.order[id] = m.seq
}

// untrack forgets id. Requires Lock to be held.
func (m *Memory) untrack(id string) {
	delete(m.order, id)
}

func (m *Memory) sortByOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return m.order[ids[i]] < m.order[ids[j]] })
}

func notFound(op, kind, id string) error {
	return errs.New(op, errs.CodeNotFound, errs.WithHTTP(404), errs.WithMessage(kind+" "+id+" not found"))
}

// ListSources implements SourceAPI.
func (m *Memory) ListSources(ctx context.Context, name string) ([]Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sources))
	for id, src := range m.sources {
		if name == "" || src.Name == name {
			ids = append(ids, id)
		}
	}
	m.sortByOrder(ids)

	out := make([]Source, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneSource(m.sources[id]))
	}
	return out, nil
}

// CreateSource implements SourceAPI. Names are not required to be unique.
func (m *Memory) CreateSource(ctx context.Context, req SourceCreate) (*Source, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errs.New("sources.create", errs.CodeTransport, errs.WithHTTP(422), errs.WithMessage("name is required"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.createSourceLocked(req.Name, req.Verification)
	out := cloneSource(src)
	return &out, nil
}

// createSourceLocked requires Lock to be held.
func (m *Memory) createSourceLocked(name string, verification *auth.VerificationConfig) *Source {
	now := m.now()
	id := newID("src")
	src := &Source{
		ID:           id,
		Name:         name,
		URL:          m.sourceURLBase + "/" + id,
		Verification: auth.BuildInboundVerification(verification),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.sources[id] = src
	m.track(id)
	return src
}

// UpdateSource implements SourceAPI.
func (m *Memory) UpdateSource(ctx context.Context, id string, req SourceUpdate) (*Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return nil, notFound("sources.update", "source", id)
	}
	src.Verification = auth.BuildInboundVerification(req.Verification)
	src.UpdatedAt = m.now()
	out := cloneSource(src)
	return &out, nil
}

// RetrieveSource implements SourceAPI.
func (m *Memory) RetrieveSource(ctx context.Context, id string) (*Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, ok := m.sources[id]
	if !ok {
		return nil, notFound("sources.retrieve", "source", id)
	}
	out := cloneSource(src)
	return &out, nil
}

// DeleteSource implements SourceAPI. Connections using the source are removed with it.
func (m *Memory) DeleteSource(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sources[id]; !ok {
		return notFound("sources.delete", "source", id)
	}
	delete(m.sources, id)
	m.untrack(id)
	for connID, conn := range m.connections {
		if conn.sourceID == id {
			delete(m.connections, connID)
			m.untrack(connID)
		}
	}
	return nil
}

// DeleteDestination implements DestinationAPI. Connections using the destination are removed with it.
func (m *Memory) DeleteDestination(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.destinations[id]; !ok {
		return notFound("destinations.delete", "destination", id)
	}
	delete(m.destinations, id)
	m.untrack(id)
	for connID, conn := range m.connections {
		if conn.destinationID == id {
			delete(m.connections, connID)
			m.untrack(connID)
		}
	}
	return nil
}

// UpsertConnection implements ConnectionAPI.
func (m *Memory) UpsertConnection(ctx context.Context, req ConnectionUpsert) (*Connection, error) {
	if req.Name == "" || req.Source == nil || req.Destination == nil {
		return nil, errs.New("connections.upsert", errs.CodeTransport, errs.WithHTTP(422), errs.WithMessage("name, source and destination are required"))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	src := m.sourceByNameLocked(req.Source.Name)
	if src == nil {
		src = m.createSourceLocked(req.Source.Name, req.Source.Verification)
	} else if req.Source.Verification != nil {
		src.Verification = auth.BuildInboundVerification(req.Source.Verification)
		src.UpdatedAt = now
	}

	dst := m.destinationByNameLocked(req.Destination.Name)
	if dst == nil {
		id := newID("des")
		dst = &Destination{
			ID:         id,
			Name:       req.Destination.Name,
			AuthMethod: auth.HookdeckSignature(),
			CreatedAt:  now,
		}
		m.destinations[id] = dst
		m.track(id)
	}
	dst.URL = req.Destination.URL
	if req.Destination.AuthMethod != nil {
		method := *req.Destination.AuthMethod
		dst.AuthMethod = &method
	}
	dst.UpdatedAt = now

	conn := m.connectionByNameLocked(req.Name)
	if conn == nil {
		conn = &memoryConn{id: newID("web"), name: req.Name, createdAt: now}
		m.connections[conn.id] = conn
		m.track(conn.id)
	}
	conn.sourceID = src.ID
	conn.destinationID = dst.ID
	conn.updatedAt = now

	out := m.connectionLocked(conn)
	return &out, nil
}

// ListConnections implements ConnectionAPI. FullName matches case-insensitively
// anywhere in "{source name} -> {connection name}".
func (m *Memory) ListConnections(ctx context.Context, filter ConnectionFilter) ([]Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	m.sortByOrder(ids)

	needle := strings.ToLower(filter.FullName)
	out := make([]Connection, 0, len(ids))
	for _, id := range ids {
		if filter.ID != "" && id != filter.ID {
			continue
		}
		conn := m.connectionLocked(m.connections[id])
		if needle != "" && !strings.Contains(strings.ToLower(conn.FullName), needle) {
			continue
		}
		out = append(out, conn)
	}
	return out, nil
}

// RetrieveConnection implements ConnectionAPI.
func (m *Memory) RetrieveConnection(ctx context.Context, id string) (*Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.connections[id]
	if !ok {
		return nil, notFound("connections.retrieve", "connection", id)
	}
	out := m.connectionLocked(conn)
	return &out, nil
}

// DeleteConnection implements ConnectionAPI.
func (m *Memory) DeleteConnection(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[id]; !ok {
		return notFound("connections.delete", "connection", id)
	}
	delete(m.connections, id)
	m.untrack(id)
	return nil
}

// ListEvents implements EventAPI.
func (m *Memory) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.events))
	for id, evt := range m.events {
		if filter.WebhookID == "" || evt.WebhookID == filter.WebhookID {
			ids = append(ids, id)
		}
	}
	m.sortByOrder(ids)

	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		evt := *m.events[id]
		evt.Data = nil
		out = append(out, evt)
	}
	return out, nil
}

// RetrieveEvent implements EventAPI.
func (m *Memory) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	evt, ok := m.events[id]
	if !ok {
		return nil, notFound("events.retrieve", "event", id)
	}
	out := *evt
	return &out, nil
}

// ListAttempts implements AttemptAPI.
func (m *Memory) ListAttempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.attempts))
	for id, att := range m.attempts {
		if filter.EventID == "" || att.EventID == filter.EventID {
			ids = append(ids, id)
		}
	}
	m.sortByOrder(ids)

	out := make([]Attempt, 0, len(ids))
	for _, id := range ids {
		att := *m.attempts[id]
		att.Body = nil
		out = append(out, att)
	}
	return out, nil
}

// RetrieveAttempt implements AttemptAPI.
func (m *Memory) RetrieveAttempt(ctx context.Context, id string) (*Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	att, ok := m.attempts[id]
	if !ok {
		return nil, notFound("attempts.retrieve", "attempt", id)
	}
	out := *att
	return &out, nil
}

// AddEvent stores an event as if it had been routed by the backend.
// An empty ID is assigned; CreatedAt defaults to now.
func (m *Memory) AddEvent(evt Event) Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if evt.ID == "" {
		evt.ID = newID("evt")
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = m.now()
	}
	stored := evt
	m.events[evt.ID] = &stored
	m.track(evt.ID)
	return evt
}

// AddAttempt stores a delivery attempt. An empty ID is assigned; CreatedAt defaults to now.
func (m *Memory) AddAttempt(att Attempt) Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()

	if att.ID == "" {
		att.ID = newID("atm")
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = m.now()
	}
	stored := att
	m.attempts[att.ID] = &stored
	m.track(att.ID)
	return att
}

// sourceByNameLocked returns the first source created with name. Requires a lock.
func (m *Memory) sourceByNameLocked(name string) *Source {
	var found *Source
	for id, src := range m.sources {
		if src.Name == name && (found == nil || m.order[id] < m.order[found.ID]) {
			found = src
		}
	}
	return found
}

// destinationByNameLocked requires a lock.
func (m *Memory) destinationByNameLocked(name string) *Destination {
	for _, dst := range m.destinations {
		if dst.Name == name {
			return dst
		}
	}
	return nil
}

// connectionByNameLocked requires a lock.
func (m *Memory) connectionByNameLocked(name string) *memoryConn {
	for _, conn := range m.connections {
		if conn.name == name {
			return conn
		}
	}
	return nil
}

// connectionLocked materialises a Connection. Requires a lock.
func (m *Memory) connectionLocked(conn *memoryConn) Connection {
	out := Connection{
		ID:        conn.id,
		Name:      conn.name,
		CreatedAt: conn.createdAt,
		UpdatedAt: conn.updatedAt,
	}
	if src, ok := m.sources[conn.sourceID]; ok {
		out.Source = cloneSource(src)
	}
	if dst, ok := m.destinations[conn.destinationID]; ok {
		out.Destination = *dst
		if dst.AuthMethod != nil {
			method := *dst.AuthMethod
			out.Destination.AuthMethod = &method
		}
	}
	out.FullName = out.Source.Name + " -> " + out.Name
	return out
}

func cloneSource(src *Source) Source {
	out := *src
	out.Verification = auth.BuildInboundVerification(src.Verification)
	return out
}

var _ API = (*Memory)(nil)
