package pubsub

import (
	"context"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/errs"
	"github.com/toolink/hookpubsub/transport"
)

// DeliveryResult is the outcome of a publish.
type DeliveryResult = transport.Result

// Event is a publishable payload. It is implemented by TypedEvent and RawEvent.
type Event interface {
	wire() ([]byte, error)
	extraHeaders() map[string]string
}

// TypedEvent is sent as {"type": Type, "data": Data}.
type TypedEvent struct {
	Type    string
	Data    any
	Headers map[string]string
}

func (e TypedEvent) wire() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: e.Type, Data: e.Data})
}

func (e TypedEvent) extraHeaders() map[string]string { return e.Headers }

// RawEvent is sent as exactly Body encoded to JSON.
type RawEvent struct {
	Body    any
	Headers map[string]string
}

func (e RawEvent) wire() ([]byte, error) {
	return json.Marshal(e.Body)
}

func (e RawEvent) extraHeaders() map[string]string { return e.Headers }

// Channel publishes to the inbound URL of one Source.
type Channel struct {
	source      backend.Source
	publishAuth *auth.VerificationConfig
	doer        transport.Doer
	telemetry   *telemetry
	logger      zerolog.Logger
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.source.Name }

// URL returns the inbound URL events are posted to.
func (c *Channel) URL() string { return c.source.URL }

// Source returns the backing Source.
func (c *Channel) Source() backend.Source { return c.source }

// Publish posts evt once to the channel URL. It never returns an error value;
// failures are reported through a DeliveryResult that is not OK.
// Success only means the backend accepted the request.
func (c *Channel) Publish(ctx context.Context, evt Event) *DeliveryResult {
	if evt == nil {
		return &DeliveryResult{Err: errs.New("channel.publish", errs.CodeInvalid, errs.WithMessage("event is required"))}
	}

	body, err := evt.wire()
	if err != nil {
		return &DeliveryResult{Err: errs.New("channel.publish", errs.CodeInvalid,
			errs.WithMessage("encode event"), errs.WithCause(err))}
	}

	// Keys are canonicalized so caller headers replace auth headers regardless of case.
	headers := make(map[string]string)
	for k, v := range auth.PublishHeaders(c.publishAuth, map[string]string{"Content-Type": "application/json"}) {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range evt.extraHeaders() {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	res := c.doer.Do(ctx, transport.Request{
		URL:     c.source.URL,
		Headers: headers,
		Body:    body,
	})

	if res == nil {
		res = &DeliveryResult{Err: errors.New("transport returned no result")}
	}

	c.telemetry.recordPublish(ctx, c.source.Name, res.OK)
	if !res.OK {
		res.Err = errs.New("channel.publish", errs.CodeTransport,
			errs.WithHTTP(res.Status),
			errs.WithField("channel", c.source.Name),
			errs.WithCause(res.Err))
		c.logger.Debug().Err(res.Err).Str("channel", c.source.Name).Int("status", res.Status).Msg("publish failed")
	}
	return res
}
