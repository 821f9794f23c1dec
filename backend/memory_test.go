package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/errs"
)

func upsert(name, source, destination, url string, method *auth.DestinationAuthMethod) ConnectionUpsert {
	return ConnectionUpsert{
		Name:        name,
		Source:      &SourceInput{Name: source},
		Destination: &DestinationInput{Name: destination, URL: url, AuthMethod: method},
	}
}

func TestMemoryUpsertIsIdempotentByName(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.UpsertConnection(ctx, upsert("conn_a", "a", "dst_a", "http://one", nil))
	require.NoError(t, err)
	second, err := m.UpsertConnection(ctx, upsert("conn_a", "a", "dst_a", "http://two", auth.DestinationBearerToken("t")))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Source.ID, second.Source.ID)
	assert.Equal(t, first.Destination.ID, second.Destination.ID)
	assert.Equal(t, "http://two", second.Destination.URL)
	assert.Equal(t, auth.MethodBearerToken, second.Destination.AuthMethod.Type)

	all, err := m.ListConnections(ctx, ConnectionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryUpsertDefaultsDestinationAuth(t *testing.T) {
	m := NewMemory()

	conn, err := m.UpsertConnection(context.Background(), upsert("conn_b", "b", "dst_b", "http://b", nil))
	require.NoError(t, err)
	require.NotNil(t, conn.Destination.AuthMethod)
	assert.Equal(t, auth.DefaultMethod, conn.Destination.AuthMethod.Type)
	assert.Nil(t, conn.Source.Verification)
}

func TestMemoryUpsertReusesExistingSource(t *testing.T) {
	m := NewMemory(WithSourceURLBase("http://ingest.test/"))
	ctx := context.Background()

	src, err := m.CreateSource(ctx, SourceCreate{Name: "c", Verification: auth.APIKey("", "k")})
	require.NoError(t, err)
	assert.Equal(t, "http://ingest.test/"+src.ID, src.URL)

	conn, err := m.UpsertConnection(ctx, upsert("conn_c", "c", "dst_c", "http://c", nil))
	require.NoError(t, err)
	assert.Equal(t, src.ID, conn.Source.ID)
	require.NotNil(t, conn.Source.Verification)
	assert.Equal(t, auth.KindAPIKey, conn.Source.Verification.Type)
}

func TestMemoryListConnectionsFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a, err := m.UpsertConnection(ctx, upsert("conn_orders_1", "orders", "dst_1", "http://1", nil))
	require.NoError(t, err)
	_, err = m.UpsertConnection(ctx, upsert("conn_users_1", "users", "dst_2", "http://2", nil))
	require.NoError(t, err)

	byID, err := m.ListConnections(ctx, ConnectionFilter{ID: a.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, a.ID, byID[0].ID)

	fuzzy, err := m.ListConnections(ctx, ConnectionFilter{FullName: "ORD"})
	require.NoError(t, err)
	require.Len(t, fuzzy, 1)
	assert.Equal(t, "orders", fuzzy[0].Source.Name)
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	assert.ErrorIs(t, m.DeleteConnection(ctx, "web_x"), errs.ErrNotFound)
	assert.ErrorIs(t, m.DeleteDestination(ctx, "des_x"), errs.ErrNotFound)
	_, err := m.RetrieveConnection(ctx, "web_x")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = m.UpdateSource(ctx, "src_x", SourceUpdate{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryListingsOmitBodies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	evt := m.AddEvent(Event{WebhookID: "web_1", Data: &EventData{Body: []byte(`{"a":1}`)}})
	m.AddEvent(Event{WebhookID: "web_2"})
	att := m.AddAttempt(Attempt{EventID: evt.ID, Body: []byte(`"ok"`)})

	events, err := m.ListEvents(ctx, EventFilter{WebhookID: "web_1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Data)

	full, err := m.RetrieveEvent(ctx, evt.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Data)
	assert.JSONEq(t, `{"a":1}`, string(full.Data.Body))

	attempts, err := m.ListAttempts(ctx, AttemptFilter{EventID: evt.ID})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Nil(t, attempts[0].Body)

	fullAttempt, err := m.RetrieveAttempt(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(fullAttempt.Body))
}

func TestMemoryDeleteDestinationRemovesConnections(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	conn, err := m.UpsertConnection(ctx, upsert("conn_d", "d", "dst_d", "http://d", nil))
	require.NoError(t, err)
	require.NoError(t, m.DeleteDestination(ctx, conn.Destination.ID))

	_, err = m.RetrieveConnection(ctx, conn.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryDeletesForgetOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.UpsertConnection(ctx, upsert("conn_e", "e", "dst_e", "http://e", nil))
	require.NoError(t, err)
	second, err := m.UpsertConnection(ctx, upsert("conn_f", "f", "dst_f", "http://f", nil))
	require.NoError(t, err)
	third, err := m.UpsertConnection(ctx, upsert("conn_g", "g", "dst_g", "http://g", nil))
	require.NoError(t, err)
	require.Len(t, m.order, 9)

	require.NoError(t, m.DeleteConnection(ctx, first.ID))
	require.NoError(t, m.DeleteSource(ctx, second.Source.ID))
	require.NoError(t, m.DeleteDestination(ctx, third.Destination.ID))

	assert.NotContains(t, m.order, first.ID)
	assert.NotContains(t, m.order, second.Source.ID)
	assert.NotContains(t, m.order, second.ID)
	assert.NotContains(t, m.order, third.Destination.ID)
	assert.NotContains(t, m.order, third.ID)
	assert.Len(t, m.order, 4)
}
