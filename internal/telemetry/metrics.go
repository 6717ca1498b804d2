package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultMetricsInterval is the push period used when SetupMetrics gets a
// non-positive interval.
const DefaultMetricsInterval = 30 * time.Second

// SetupMetrics installs an OTLP/HTTP meter provider that pushes every
// interval and registers it globally. An empty endpoint disables metrics the
// same way Setup disables tracing.
func SetupMetrics(ctx context.Context, serviceName, endpoint string, interval time.Duration) (metric.MeterProvider, ShutdownFunc, error) {
	nop := func(context.Context) error { return nil }
	if endpoint == "" {
		return metricnoop.NewMeterProvider(), nop, nil
	}
	if interval <= 0 {
		interval = DefaultMetricsInterval
	}

	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, nop, err
	}

	mp, err := NewMeterProvider(ctx, serviceName,
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	if err != nil {
		return nil, nop, err
	}

	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}

// NewMeterProvider builds an SDK meter provider tagged with serviceName.
// opts usually carry the reader.
func NewMeterProvider(ctx context.Context, serviceName string, opts ...sdkmetric.Option) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	opts = append([]sdkmetric.Option{sdkmetric.WithResource(res)}, opts...)
	return sdkmetric.NewMeterProvider(opts...), nil
}
