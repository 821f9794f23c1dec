package pubsub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/errs"
	"github.com/toolink/hookpubsub/poll"
)

// sink records the requests posted to channel URLs.
type sink struct {
	mu       sync.Mutex
	status   int
	bodies   []string
	headers  []http.Header
	response string
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(body))
	s.headers = append(s.headers, r.Header.Clone())
	status, response := s.status, s.response
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(response))
}

func (s *sink) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *sink) received() ([]string, []http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...), append([]http.Header(nil), s.headers...)
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *backend.Memory, *sink) {
	t.Helper()
	s := &sink{response: `{"status":"SUCCESS"}`}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	mem := backend.NewMemory(backend.WithSourceURLBase(srv.URL))
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(mem, opts...), mem, s
}

func TestChannelRequiresPublishAuth(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"unset", nil},
		{"empty type", []Option{WithPublishAuth(&auth.VerificationConfig{})}},
		{"unsupported type", []Option{WithPublishAuth(&auth.VerificationConfig{Type: "hmac"})}},
		{"wrong case", []Option{WithPublishAuth(&auth.VerificationConfig{Type: "API_KEY"})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mem, _ := newTestClient(t, tt.opts...)
			ctx := context.Background()

			_, err := client.Channel(ctx, "c")
			require.ErrorIs(t, err, errs.ErrConfiguration)

			sources, err := mem.ListSources(ctx, "c")
			require.NoError(t, err)
			assert.Empty(t, sources)
		})
	}
}

func TestChannelCreatedWithVerification(t *testing.T) {
	client, mem, _ := newTestClient(t, WithPublishAuth(auth.APIKey("x-api-key", "secret")))
	ctx := context.Background()

	ch, err := client.Channel(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", ch.Name())
	assert.NotEmpty(t, ch.URL())

	src, err := mem.RetrieveSource(ctx, ch.Source().ID)
	require.NoError(t, err)
	require.NotNil(t, src.Verification)
	assert.Equal(t, auth.KindAPIKey, src.Verification.Type)

	again, err := client.Channel(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, ch.Source().ID, again.Source().ID)

	all, err := mem.ListSources(ctx, "orders")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestChannelAuthDrift(t *testing.T) {
	client, mem, _ := newTestClient(t, WithPublishAuth(auth.APIKey("", "k")))
	ctx := context.Background()

	_, err := client.Channel(ctx, "c")
	require.NoError(t, err)

	other := New(mem, WithLogger(zerolog.Nop()), WithPublishAuth(auth.BasicAuth("u", "p")))
	_, err = other.Channel(ctx, "c")
	require.ErrorIs(t, err, errs.ErrAuthMismatch)
	assert.Contains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), "basic_auth")
	assert.Contains(t, err.Error(), `"c"`)

	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "api_key", e.Field("found"))
	assert.Equal(t, "basic_auth", e.Field("expected"))
}

func TestChannelKindMatchIgnoresCredentials(t *testing.T) {
	client, mem, _ := newTestClient(t, WithPublishAuth(auth.APIKey("x-one", "a")))
	ctx := context.Background()

	_, err := client.Channel(ctx, "c")
	require.NoError(t, err)

	other := New(mem, WithLogger(zerolog.Nop()), WithPublishAuth(auth.APIKey("x-two", "b")))
	_, err = other.Channel(ctx, "c")
	assert.NoError(t, err)
}

func TestChannelAdoptsUnverifiedSource(t *testing.T) {
	client, mem, _ := newTestClient(t, WithPublishAuth(auth.BasicAuth("u", "p")))
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://localhost:3000"})
	require.NoError(t, err)
	assert.Nil(t, sub.Connection.Source.Verification)

	ch, err := client.Channel(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, sub.Connection.Source.ID, ch.Source().ID)

	src, err := mem.RetrieveSource(ctx, sub.Connection.Source.ID)
	require.NoError(t, err)
	require.NotNil(t, src.Verification)
	assert.Equal(t, auth.KindBasicAuth, src.Verification.Type)
}

func TestPublishShapesPayload(t *testing.T) {
	client, _, s := newTestClient(t, WithPublishAuth(auth.APIKey("x-api-key", "secret")))
	ctx := context.Background()

	ch, err := client.Channel(ctx, "c")
	require.NoError(t, err)

	res := ch.Publish(ctx, TypedEvent{Type: "t", Data: map[string]int{"a": 1}})
	require.True(t, res.OK, "publish failed: %v", res.Err)
	assert.Equal(t, map[string]any{"status": "SUCCESS"}, res.Body)

	res = ch.Publish(ctx, RawEvent{Body: map[string]int{"a": 1}, Headers: map[string]string{"X-Api-Key": "override"}})
	require.True(t, res.OK)

	bodies, headers := s.received()
	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"type":"t","data":{"a":1}}`, bodies[0])
	assert.JSONEq(t, `{"a":1}`, bodies[1])

	assert.Equal(t, "application/json", headers[0].Get("Content-Type"))
	assert.Equal(t, "secret", headers[0].Get("X-Api-Key"))
	assert.Equal(t, "override", headers[1].Get("X-Api-Key"))
}

func TestPublishBasicAuthHeader(t *testing.T) {
	client, _, s := newTestClient(t, WithPublishAuth(auth.BasicAuth("u", "p")))
	ctx := context.Background()

	ch, err := client.Channel(ctx, "c")
	require.NoError(t, err)
	require.True(t, ch.Publish(ctx, RawEvent{Body: "x"}).OK)

	_, headers := s.received()
	require.Len(t, headers, 1)
	assert.Equal(t, "Basic dTpw", headers[0].Get("Authorization"))
}

func TestPublishFailureIsNotOK(t *testing.T) {
	client, _, s := newTestClient(t, WithPublishAuth(auth.APIKey("", "k")))
	s.setStatus(http.StatusUnauthorized)
	ctx := context.Background()

	ch, err := client.Channel(ctx, "c")
	require.NoError(t, err)

	res := ch.Publish(ctx, TypedEvent{Type: "t", Data: 1})
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.ErrorIs(t, res.Err, errs.ErrTransport)

	res = ch.Publish(ctx, nil)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, errs.ErrInvalid)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	first, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://localhost:3000"})
	require.NoError(t, err)
	second, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://localhost:3000"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "c", second.ChannelName)
	assert.Equal(t, "http://localhost:3000", second.URL)

	other, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://localhost:4000"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSubscribeDefaultsOutboundAuth(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://localhost:3000"})
	require.NoError(t, err)
	require.NotNil(t, sub.Connection.Destination.AuthMethod)
	assert.Equal(t, auth.MethodHookdeckSignature, sub.Connection.Destination.AuthMethod.Type)

	sub, err = client.Subscribe(ctx, SubscribeRequest{
		ChannelName: "c",
		URL:         "http://localhost:3000",
		Auth:        auth.DestinationBearerToken("tok"),
	})
	require.NoError(t, err)
	assert.Equal(t, auth.MethodBearerToken, sub.Connection.Destination.AuthMethod.Type)
}

func TestSubscribeValidation(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Subscribe(ctx, SubscribeRequest{URL: "http://x"})
	assert.ErrorIs(t, err, errs.ErrInvalid)
	_, err = client.Subscribe(ctx, SubscribeRequest{ChannelName: "c"})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestUnsubscribe(t *testing.T) {
	client, mem, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://a"})
	require.NoError(t, err)

	require.NoError(t, client.Unsubscribe(ctx, UnsubscribeRequest{ID: sub.ID}))
	_, err = mem.RetrieveConnection(ctx, sub.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = client.Unsubscribe(ctx, UnsubscribeRequest{ID: sub.ID})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUnsubscribeRemovesDestination(t *testing.T) {
	client, mem, _ := newTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "c", URL: "http://a"})
	require.NoError(t, err)

	require.NoError(t, client.Unsubscribe(ctx, UnsubscribeRequest{ID: sub.ID, RemoveDestination: true}))
	err = mem.DeleteDestination(ctx, sub.Connection.Destination.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListSubscriptionsFilters(t *testing.T) {
	client, mem, _ := newTestClient(t)
	ctx := context.Background()

	orders, err := client.Subscribe(ctx, SubscribeRequest{ChannelName: "orders", URL: "http://a"})
	require.NoError(t, err)
	_, err = client.Subscribe(ctx, SubscribeRequest{ChannelName: "users", URL: "http://b"})
	require.NoError(t, err)
	_, err = mem.UpsertConnection(ctx, backend.ConnectionUpsert{
		Name:        "partial",
		Source:      &backend.SourceInput{Name: "orders"},
		Destination: &backend.DestinationInput{Name: "no-url"},
	})
	require.NoError(t, err)

	all, err := client.ListSubscriptions(ctx, ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, sub := range all {
		assert.NotEmpty(t, sub.URL)
	}

	byChannel, err := client.ListSubscriptions(ctx, ListRequest{ChannelName: "ord"})
	require.NoError(t, err)
	require.Len(t, byChannel, 1)
	assert.Equal(t, orders.ID, byChannel[0].ID)

	byID, err := client.ListSubscriptions(ctx, ListRequest{SubscriptionID: orders.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "orders", byID[0].ChannelName)
}

func TestEventsAndAttemptsHydration(t *testing.T) {
	client, mem, _ := newTestClient(t, WithHydrationConcurrency(2))
	ctx := context.Background()

	first := mem.AddEvent(backend.Event{WebhookID: "web_1", Data: &backend.EventData{Body: []byte(`{"n":1}`)}})
	second := mem.AddEvent(backend.Event{WebhookID: "web_1", Data: &backend.EventData{Body: []byte(`{"n":2}`)}})
	mem.AddAttempt(backend.Attempt{EventID: first.ID, Body: []byte(`"ok"`)})

	events, err := client.Events(ctx, EventsRequest{SubscriptionID: "web_1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Nil(t, events[0].Data)

	events, err = client.Events(ctx, EventsRequest{SubscriptionID: "web_1", IncludeBody: true})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	assert.JSONEq(t, `{"n":2}`, string(events[1].Data.Body))

	attempts, err := client.DeliveryAttempts(ctx, AttemptsRequest{EventID: first.ID, IncludeBody: true})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, `"ok"`, string(attempts[0].Body))

	_, err = client.Events(ctx, EventsRequest{})
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestWaitForEvents(t *testing.T) {
	client, mem, _ := newTestClient(t)
	ctx := context.Background()
	fast := poll.Options{Ticks: 3, Interval: time.Millisecond}

	_, err := client.WaitForEvents(ctx, EventsRequest{SubscriptionID: "web_1"}, fast)
	require.ErrorIs(t, err, errs.ErrTimeout)

	evt := mem.AddEvent(backend.Event{WebhookID: "web_1"})
	events, err := client.WaitForEvents(ctx, EventsRequest{SubscriptionID: "web_1"}, fast)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, evt.ID, events[0].ID)

	mem.AddAttempt(backend.Attempt{EventID: evt.ID})
	attempts, err := client.WaitForDeliveryAttempts(ctx, AttemptsRequest{EventID: evt.ID}, fast)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestHydratePropagatesErrors(t *testing.T) {
	_, err := hydrate(context.Background(), []int{1, 2}, true, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, errs.New("test", errs.CodeNotFound)
		}
		return n, nil
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	items, err := hydrate(context.Background(), []int{1}, false, 2, func(context.Context, int) (int, error) {
		t.Fatal("retrieve must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, items)
}
