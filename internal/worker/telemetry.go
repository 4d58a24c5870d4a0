package worker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// telemetry exports the service's otel instruments through a Prometheus
// registry owned by the service.
type telemetry struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

func newTelemetry() (*telemetry, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return &telemetry{
		registry: reg,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// handler serves the process-wide collectors together with the service's own.
func (t *telemetry) handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, t.registry},
		promhttp.HandlerOpts{},
	)
}

func (t *telemetry) shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
