package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/toolink/hookpubsub/errs"
	"github.com/toolink/hookpubsub/limiter"
	"github.com/toolink/hookpubsub/meta"
)

const (
	// DefaultBaseURL is the versioned root of the hosted API.
	DefaultBaseURL = "https://api.hookdeck.com/2024-03-01"
	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "hookpubsub-go"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4 << 10
	// maxPages stops a runaway pagination loop.
	maxPages = 100
)

var errMissingAPIKey = errors.New("backend: api key is required")

// HTTPClient implements API against the hosted REST API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	limiter   *limiter.RateLimiter
	logger    zerolog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) HTTPOption {
	return func(c *HTTPClient) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-call timeout of the default *http.Client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithRateLimiter throttles every call through rl before it is sent.
func WithRateLimiter(rl *limiter.RateLimiter) HTTPOption {
	return func(c *HTTPClient) {
		c.limiter = rl
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger zerolog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) HTTPOption {
	return func(c *HTTPClient) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// NewHTTPClient creates a client authenticating with apiKey.
func NewHTTPClient(apiKey string, opts ...HTTPOption) (*HTTPClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errs.New("backend.new", errs.CodeConfiguration, errs.WithCause(errMissingAPIKey))
	}
	c := &HTTPClient{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		userAgent: DefaultUserAgent,
		http:      &http.Client{Timeout: DefaultTimeout},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListSources implements SourceAPI.
func (c *HTTPClient) ListSources(ctx context.Context, name string) ([]Source, error) {
	query := url.Values{}
	if name != "" {
		query.Set("name", name)
	}
	return list[Source](ctx, c, "sources.list", "/sources", query)
}

// CreateSource implements SourceAPI.
func (c *HTTPClient) CreateSource(ctx context.Context, req SourceCreate) (*Source, error) {
	var out Source
	if err := c.do(ctx, "sources.create", http.MethodPost, "/sources", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSource implements SourceAPI.
func (c *HTTPClient) UpdateSource(ctx context.Context, id string, req SourceUpdate) (*Source, error) {
	var out Source
	if err := c.do(ctx, "sources.update", http.MethodPut, "/sources/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrieveSource implements SourceAPI.
func (c *HTTPClient) RetrieveSource(ctx context.Context, id string) (*Source, error) {
	var out Source
	if err := c.do(ctx, "sources.retrieve", http.MethodGet, "/sources/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSource implements SourceAPI.
func (c *HTTPClient) DeleteSource(ctx context.Context, id string) error {
	return c.do(ctx, "sources.delete", http.MethodDelete, "/sources/"+url.PathEscape(id), nil, nil, nil)
}

// DeleteDestination implements DestinationAPI.
func (c *HTTPClient) DeleteDestination(ctx context.Context, id string) error {
	return c.do(ctx, "destinations.delete", http.MethodDelete, "/destinations/"+url.PathEscape(id), nil, nil, nil)
}

// UpsertConnection implements ConnectionAPI.
func (c *HTTPClient) UpsertConnection(ctx context.Context, req ConnectionUpsert) (*Connection, error) {
	var out Connection
	if err := c.do(ctx, "connections.upsert", http.MethodPut, "/connections", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConnections implements ConnectionAPI.
func (c *HTTPClient) ListConnections(ctx context.Context, filter ConnectionFilter) ([]Connection, error) {
	query := url.Values{}
	if filter.ID != "" {
		query.Set("id", filter.ID)
	}
	if filter.FullName != "" {
		query.Set("full_name", filter.FullName)
	}
	return list[Connection](ctx, c, "connections.list", "/connections", query)
}

// RetrieveConnection implements ConnectionAPI.
func (c *HTTPClient) RetrieveConnection(ctx context.Context, id string) (*Connection, error) {
	var out Connection
	if err := c.do(ctx, "connections.retrieve", http.MethodGet, "/connections/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConnection implements ConnectionAPI.
func (c *HTTPClient) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, "connections.delete", http.MethodDelete, "/connections/"+url.PathEscape(id), nil, nil, nil)
}

// ListEvents implements EventAPI.
func (c *HTTPClient) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := url.Values{}
	if filter.WebhookID != "" {
		query.Set("webhook_id", filter.WebhookID)
	}
	return list[Event](ctx, c, "events.list", "/events", query)
}

// RetrieveEvent implements EventAPI.
func (c *HTTPClient) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	var out Event
	if err := c.do(ctx, "events.retrieve", http.MethodGet, "/events/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAttempts implements AttemptAPI.
func (c *HTTPClient) ListAttempts(ctx context.Context, filter AttemptFilter) ([]Attempt, error) {
	query := url.Values{}
	if filter.EventID != "" {
		query.Set("event_id", filter.EventID)
	}
	return list[Attempt](ctx, c, "attempts.list", "/attempts", query)
}

// RetrieveAttempt implements AttemptAPI.
func (c *HTTPClient) RetrieveAttempt(ctx context.Context, id string) (*Attempt, error) {
	var out Attempt
	if err := c.do(ctx, "attempts.retrieve", http.MethodGet, "/attempts/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// list follows the pagination cursor until the last page.
func list[T any](ctx context.Context, c *HTTPClient, op, path string, query url.Values) ([]T, error) {
	var out []T
	for pages := 0; pages < maxPages; pages++ {
		var p page[T]
		if err := c.do(ctx, op, http.MethodGet, path, query, nil, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Models...)
		if p.Pagination.Next == "" {
			return out, nil
		}
		next := url.Values{}
		for k, v := range query {
			next[k] = v
		}
		next.Set("next", p.Pagination.Next)
		query = next
	}
	c.logger.Warn().Str("op", op).Int("max_pages", maxPages).Msg("pagination stopped at page limit")
	return out, nil
}

// do sends one API call. in is JSON-encoded when non-nil; out is decoded when non-nil.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, path); err != nil {
			return errs.New(op, errs.CodeTransport, errs.WithMessage("rate limiter wait"), errs.WithCause(err))
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errs.New(op, errs.CodeInvalid, errs.WithMessage("encode request"), errs.WithCause(err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errs.New(op, errs.CodeInvalid, errs.WithMessage("create request"), errs.WithCause(err))
	}

	md := meta.FromContext(ctx)
	for k, v := range md.Headers() {
		req.Header.Set(k, v)
	}
	requestID := meta.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(meta.KeyRequestID, requestID)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	l := c.logger.With().Str("op", op).Str("method", method).Str("path", path).Str("request_id", requestID).Logger()
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		l.Debug().Err(err).Msg("backend request failed")
		return errs.New(op, errs.CodeTransport, errs.WithMessage("send request"), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	l.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		code := errs.CodeTransport
		if resp.StatusCode == http.StatusNotFound {
			code = errs.CodeNotFound
		}
		return errs.New(op, code,
			errs.WithHTTP(resp.StatusCode),
			errs.WithMessage(strings.TrimSpace(string(excerpt))),
			errs.WithField("request_id", requestID),
		)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.New(op, errs.CodeTransport, errs.WithHTTP(resp.StatusCode), errs.WithMessage("decode response"), errs.WithCause(fmt.Errorf("%s %s: %w", method, path, err)))
	}
	return nil
}

var _ API = (*HTTPClient)(nil)
