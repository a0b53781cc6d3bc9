// internal/common/metrics/otel.go
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// OTelSink is the production Sink, backed by an OpenTelemetry meter with the
// Prometheus exporter. Measurements end up on the default Prometheus
// registry and are served by the /metrics endpoint in cmd.
type OTelSink struct {
	meterProvider   *metric.MeterProvider
	dispatched      otelmetric.Int64Counter
	dispatchFailed  otelmetric.Int64Counter
	distribution    otelmetric.Int64Counter
	useCaseDuration otelmetric.Float64Histogram
}

// NewOTelSink creates the production sink. The returned sink is usable even
// when individual instrument creation fails; failed instruments are nil and
// skipped.
func NewOTelSink(serviceName string) (*OTelSink, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	dispatched, _ := meter.Int64Counter(
		"varsel.dispatched",
		otelmetric.WithDescription("Notifications handed to a delivery channel"),
	)
	dispatchFailed, _ := meter.Int64Counter(
		"varsel.dispatch.failed",
		otelmetric.WithDescription("Failed lifecycle use cases by error code"),
	)
	distribution, _ := meter.Int64Counter(
		"varsel.distribution.rows",
		otelmetric.WithDescription("Distribution cronjob row outcomes"),
	)
	useCaseDuration, _ := meter.Float64Histogram(
		"dialogmote.usecase.duration",
		otelmetric.WithDescription("Lifecycle use case duration"),
		otelmetric.WithUnit("ms"),
	)

	return &OTelSink{
		meterProvider:   provider,
		dispatched:      dispatched,
		dispatchFailed:  dispatchFailed,
		distribution:    distribution,
		useCaseDuration: useCaseDuration,
	}, nil
}

func (s *OTelSink) IncDispatched(channel, kind string) {
	if s.dispatched != nil {
		s.dispatched.Add(context.Background(), 1, otelmetric.WithAttributes(
			attribute.String("channel", channel),
			attribute.String("kind", kind),
		))
	}
}

func (s *OTelSink) IncDispatchFailed(kind, errorCode string) {
	if s.dispatchFailed != nil {
		s.dispatchFailed.Add(context.Background(), 1, otelmetric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("error_code", errorCode),
		))
	}
}

func (s *OTelSink) IncDistribution(result string) {
	if s.distribution != nil {
		s.distribution.Add(context.Background(), 1, otelmetric.WithAttributes(
			attribute.String("result", result),
		))
	}
}

func (s *OTelSink) ObserveUseCase(operation string, d time.Duration) {
	if s.useCaseDuration != nil {
		s.useCaseDuration.Record(context.Background(), float64(d.Milliseconds()),
			otelmetric.WithAttributes(attribute.String("operation", operation)))
	}
}

// Shutdown flushes and stops the meter provider.
func (s *OTelSink) Shutdown() {
	if s.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.meterProvider.Shutdown(ctx)
	}
}
