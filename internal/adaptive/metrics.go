package adaptive

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/thebtf/attune/internal/adaptive"

type loopMetrics struct {
	fetches metric.Int64Counter
	latency metric.Float64Histogram
	stale   metric.Int64Counter
}

// newLoopMetrics creates the instruments on mp, or on the global provider
// looked up at construction when mp is nil.
func newLoopMetrics(mp metric.MeterProvider) *loopMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	fetches, err := meter.Int64Counter("attune_recommendation_fetch_total",
		metric.WithDescription("Recommendation fetches by outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create fetch counter")
		fetches = noop.Int64Counter{}
	}
	latency, err := meter.Float64Histogram("attune_recommendation_fetch_seconds",
		metric.WithDescription("Recommendation fetch latency"),
		metric.WithUnit("s"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create fetch latency histogram")
		latency = noop.Float64Histogram{}
	}
	stale, err := meter.Int64Counter("attune_recommendation_stale_total",
		metric.WithDescription("Fetch results discarded as stale"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create stale result counter")
		stale = noop.Int64Counter{}
	}

	return &loopMetrics{fetches: fetches, latency: latency, stale: stale}
}

func (m *loopMetrics) recordFetch(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.fetches.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *loopMetrics) recordStale(ctx context.Context, reason string) {
	m.stale.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
