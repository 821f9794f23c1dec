package pubsub

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/toolink/hookpubsub/pubsub"

type telemetry struct {
	publishes       metric.Int64Counter
	reconciliations metric.Int64Counter
	pollAttempts    metric.Int64Histogram
}

func newTelemetry(mp metric.MeterProvider) *telemetry {
	meter := mp.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)
	t := &telemetry{}

	var err error
	if t.publishes, err = meter.Int64Counter("hookpubsub_publishes",
		metric.WithDescription("Channel publishes by outcome"),
		metric.WithUnit("{request}")); err != nil {
		t.publishes, _ = fallback.Int64Counter("hookpubsub_publishes")
	}
	if t.reconciliations, err = meter.Int64Counter("hookpubsub_channel_reconciliations",
		metric.WithDescription("Channel reconciliations by outcome"),
		metric.WithUnit("{call}")); err != nil {
		t.reconciliations, _ = fallback.Int64Counter("hookpubsub_channel_reconciliations")
	}
	if t.pollAttempts, err = meter.Int64Histogram("hookpubsub_poll_attempts",
		metric.WithDescription("Fetches issued per wait operation"),
		metric.WithUnit("{attempt}")); err != nil {
		t.pollAttempts, _ = fallback.Int64Histogram("hookpubsub_poll_attempts")
	}
	return t
}

func (t *telemetry) recordPublish(ctx context.Context, channel string, ok bool) {
	t.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("ok", ok),
	))
}

func (t *telemetry) recordReconciliation(ctx context.Context, outcome Outcome) {
	t.reconciliations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func (t *telemetry) recordPoll(ctx context.Context, resource string, attempts int, ready bool) {
	t.pollAttempts.Record(ctx, int64(attempts), metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.Bool("ready", ready),
	))
}
