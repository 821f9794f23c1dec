// Package transport performs the outbound HTTP call that physically publishes an event.
//
// A Doer never returns an error value: every outcome, including network failures,
// is described by a Result so callers can inspect delivery without error handling.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// DefaultTimeout bounds a single publish call.
const DefaultTimeout = 30 * time.Second

// Request is a single outbound call.
type Request struct {
	URL     string
	Method  string // defaults to POST
	Headers map[string]string
	Body    []byte
}

// Result is the outcome of a Request.
type Result struct {
	OK      bool
	Status  int
	Headers http.Header
	// Body is the decoded JSON response, nil for an empty body or on failure.
	Body any
	Err  error
}

// Doer sends a Request.
type Doer interface {
	Do(ctx context.Context, req Request) *Result
}

// HTTPDoer implements Doer over net/http.
type HTTPDoer struct {
	client    *http.Client
	userAgent string
}

// Option configures an HTTPDoer.
type Option func(*HTTPDoer)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *HTTPDoer) {
		if client != nil {
			d.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header unless the request sets one.
func WithUserAgent(userAgent string) Option {
	return func(d *HTTPDoer) {
		d.userAgent = userAgent
	}
}

// NewHTTPDoer creates an HTTPDoer with DefaultTimeout.
func NewHTTPDoer(opts ...Option) *HTTPDoer {
	d := &HTTPDoer{client: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do implements Doer. Non-2xx responses and undecodable bodies yield a not-ok Result.
func (d *HTTPDoer) Do(ctx context.Context, r Request) *Result {
	method := r.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return &Result{Err: fmt.Errorf("create request: %w", err)}
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &Result{Err: fmt.Errorf("send request: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	result := &Result{Status: resp.StatusCode, Headers: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		result.Err = fmt.Errorf("failed to fetch: %s", strings.TrimSpace(resp.Status))
		return result
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = fmt.Errorf("read response: %w", err)
		return result
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &result.Body); err != nil {
			result.Err = fmt.Errorf("decode response: %w", err)
			return result
		}
	}
	result.OK = true
	return result
}

var _ Doer = (*HTTPDoer)(nil)
