package pubsub

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/toolink/hookpubsub/auth"
	"github.com/toolink/hookpubsub/backend"
	"github.com/toolink/hookpubsub/errs"
	"github.com/toolink/hookpubsub/transport"
)

// Outcome describes how GetOrCreateChannel resolved a channel.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeAdopted  Outcome = "adopted"
	OutcomeReused   Outcome = "reused"
	OutcomeMismatch Outcome = "mismatch"
)

// Registry issues Channels backed by Sources whose inbound verification
// matches the configured publish auth.
type Registry struct {
	sources     backend.SourceAPI
	publishAuth *auth.VerificationConfig
	doer        transport.Doer
	telemetry   *telemetry
	logger      zerolog.Logger
}

// NewRegistry creates a Registry over the Source API.
func NewRegistry(sources backend.SourceAPI, opts ...Option) *Registry {
	return newRegistry(sources, buildOptions(opts...), nil)
}

func newRegistry(sources backend.SourceAPI, o *options, t *telemetry) *Registry {
	if t == nil {
		t = newTelemetry(o.meterProvider)
	}
	return &Registry{
		sources:     sources,
		publishAuth: o.publishAuth,
		doer:        o.doer,
		telemetry:   t,
		logger:      o.logger.With().Str("component", "registry").Logger(),
	}
}

// GetOrCreateChannel returns the Channel named name, creating its Source when
// absent and adopting an existing Source that has no verification.
//
// The list and create steps are not atomic. Concurrent calls for an unseen name
// may both create a Source; later calls pick the first one listed.
func (r *Registry) GetOrCreateChannel(ctx context.Context, name string) (*Channel, error) {
	const op = "registry.get_or_create_channel"

	switch r.publishAuth.Kind() {
	case auth.KindAPIKey, auth.KindBasicAuth:
	default:
		return nil, errs.New(op, errs.CodeConfiguration,
			errs.WithMessage("publish auth of type api_key or basic_auth is required to issue channels"),
			errs.WithField("channel", name),
			errs.WithField("configured", r.publishAuth.Kind()))
	}
	if strings.TrimSpace(name) == "" {
		return nil, errs.New(op, errs.CodeInvalid, errs.WithMessage("channel name is required"))
	}

	found, err := r.sources.ListSources(ctx, name)
	if err != nil {
		return nil, err
	}

	var (
		source  *backend.Source
		outcome Outcome
	)
	switch {
	case len(found) == 0:
		source, err = r.sources.CreateSource(ctx, backend.SourceCreate{
			Name:         name,
			Verification: auth.BuildInboundVerification(r.publishAuth),
		})
		if err != nil {
			return nil, err
		}
		outcome = OutcomeCreated
	case found[0].Verification == nil:
		source, err = r.sources.UpdateSource(ctx, found[0].ID, backend.SourceUpdate{
			Verification: auth.BuildInboundVerification(r.publishAuth),
		})
		if err != nil {
			return nil, err
		}
		outcome = OutcomeAdopted
	default:
		source = &found[0]
		outcome = OutcomeReused
	}

	if !auth.KindsMatch(source.Verification, r.publishAuth) {
		r.telemetry.recordReconciliation(ctx, OutcomeMismatch)
		r.logger.Warn().
			Str("channel", name).
			Str("source_id", source.ID).
			Str("found", source.Verification.Kind()).
			Str("expected", r.publishAuth.Kind()).
			Msg("channel auth mismatch")
		return nil, errs.New(op, errs.CodeAuthMismatch,
			errs.WithMessage(fmt.Sprintf("channel %q has inbound auth %q but %q is configured",
				name, source.Verification.Kind(), r.publishAuth.Kind())),
			errs.WithField("channel", name),
			errs.WithField("found", source.Verification.Kind()),
			errs.WithField("expected", r.publishAuth.Kind()),
		)
	}

	r.telemetry.recordReconciliation(ctx, outcome)
	r.logger.Debug().
		Str("channel", name).
		Str("source_id", source.ID).
		Str("outcome", string(outcome)).
		Msg("channel resolved")

	return &Channel{
		source:      *source,
		publishAuth: r.publishAuth,
		doer:        r.doer,
		telemetry:   r.telemetry,
		logger:      r.logger,
	}, nil
}
