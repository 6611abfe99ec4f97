package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"funnel-coach/internal/common/logger"
)

// Observability owns the OpenTelemetry meter and tracer providers.
type Observability struct {
	meterProvider    *metric.MeterProvider
	tracerProvider   *sdktrace.TracerProvider
	meter            otelmetric.Meter
	analysisCounter  otelmetric.Int64Counter
	analysisDuration otelmetric.Float64Histogram
	log              logger.Logger
}

// Options configures New.
type Options struct {
	ServiceName string
	Version     string
	Environment string
	// Registerer receives the OpenTelemetry collectors. Defaults to the
	// Prometheus default registerer.
	Registerer     promclient.Registerer
	JaegerEndpoint string
	SampleRatio    float64
}

// New wires metrics through the Prometheus exporter and tracing through Jaeger
// when an endpoint is set. Failures degrade to no-op instruments.
func New(opts Options, log logger.Logger) *Observability {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	o := &Observability{log: log}

	reg := opts.Registerer
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(opts.ServiceName)

		o.analysisCounter, _ = o.meter.Int64Counter(
			"analyses_processed",
			otelmetric.WithDescription("Number of transcript analyses processed"),
		)
		o.analysisDuration, _ = o.meter.Float64Histogram(
			"analyses_duration",
			otelmetric.WithDescription("Transcript analysis duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	tp, err := newTracerProvider(opts)
	if err != nil {
		log.Warn("Failed to create Jaeger exporter, tracing disabled", map[string]interface{}{
			"endpoint": opts.JaegerEndpoint,
			"error":    err,
		})
	} else if tp != nil {
		o.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	return o
}

func (o *Observability) RecordAnalysis(ctx context.Context, outcome string) {
	if o.analysisCounter != nil {
		o.analysisCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordAnalysisDuration(ctx context.Context, duration time.Duration, outcome string) {
	if o.analysisDuration != nil {
		o.analysisDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

// TracingEnabled reports whether spans are exported.
func (o *Observability) TracingEnabled() bool {
	return o.tracerProvider != nil
}

// Shutdown flushes pending spans and metrics.
func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			o.log.Warn("Tracer provider shutdown failed", map[string]interface{}{"error": err})
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			o.log.Warn("Meter provider shutdown failed", map[string]interface{}{"error": err})
		}
	}
}
