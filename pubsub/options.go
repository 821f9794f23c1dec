package pubsub

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/poll"
	"github.com/toolink/hookpubsub/transport"
)

// DefaultHydrationConcurrency bounds the per-item retrievals issued when bodies are requested.
const DefaultHydrationConcurrency = 4

// options holds configuration shared by every component of a Client.
type options struct {
	logger               zerolog.Logger
	level                *zerolog.Level
	publishAuth          *auth.VerificationConfig
	meterProvider        metric.MeterProvider
	doer                 transport.Doer
	hydrationConcurrency int
	poll                 poll.Options
}

// Option configures a Client or one of its components.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:               log.Logger,
		hydrationConcurrency: DefaultHydrationConcurrency,
	}
}

func buildOptions(opts ...Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.level != nil {
		o.logger = o.logger.Level(*o.level)
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.doer == nil {
		o.doer = transport.NewHTTPDoer()
	}
	return o
}

// WithLogger sets the logger. Defaults to the zerolog global logger at construction.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel sets the minimum level of the configured logger.
func WithLogLevel(level zerolog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithPublishAuth sets the inbound verification enforced on channels and
// applied to published requests. Channels cannot be issued without it.
func WithPublishAuth(v *auth.VerificationConfig) Option {
	return func(o *options) {
		o.publishAuth = auth.BuildInboundVerification(v)
	}
}

// WithMeterProvider sets the meter provider. Defaults to the otel global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithDoer sets the transport used by Channel.Publish.
func WithDoer(d transport.Doer) Option {
	return func(o *options) {
		o.doer = d
	}
}

// WithHydrationConcurrency bounds concurrent body retrievals.
func WithHydrationConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.hydrationConcurrency = n
		}
	}
}

// WithPollOptions sets the default budget of the WaitFor operations.
func WithPollOptions(p poll.Options) Option {
	return func(o *options) {
		o.poll = p
	}
}
