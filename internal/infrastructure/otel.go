package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"eexcot/internal/config"
)

// MeterName names the tracer and meter of every component
const MeterName = "eexcot"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prom.Registry
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a configuration with prometheus metrics and no
// trace export
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    config.AppName,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1.0,
	}
}

// OTelConfigFrom maps the telemetry section of the application config
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	oc := DefaultOTelConfig()
	if cfg.ServiceName != "" {
		oc.ServiceName = cfg.ServiceName
	}
	if cfg.TraceStdout {
		oc.TraceExporter = "stdout"
	}
	if !cfg.MetricsEnabled {
		oc.MetricExporter = "none"
	}
	return oc
}

// InitializeOTel initializes the tracer and meter providers and installs
// them globally. With an exporter set to "none" the matching global no-op
// provider stays in place.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetTracerProvider(tp)
	case "none", "":
		// Spans still propagate ids through the global no-op provider
		providers.Tracer = otel.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	providers.Logger.DebugContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

// initializeMetrics sets up OpenTelemetry metrics on a dedicated prometheus
// registry served by PrometheusHTTP
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		registry := prom.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.Registry = registry
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)
	case "none", "":
		providers.PrometheusHTTP = http.NotFoundHandler()
		providers.Meter = otel.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.DebugContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// IngestMetrics are the counters and histograms of the ingestion pipeline
// and the HTTP API
type IngestMetrics struct {
	SnapshotsIngested metric.Int64Counter
	SnapshotsRejected metric.Int64Counter
	RecordsInserted   metric.Int64Counter
	RecordsRevised    metric.Int64Counter
	MergeDuration     metric.Float64Histogram

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewIngestMetrics creates the pipeline instruments on meter. A nil meter
// uses the global provider.
func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	var (
		m   IngestMetrics
		err error
	)

	if m.SnapshotsIngested, err = meter.Int64Counter(
		"cot_snapshots_ingested_total",
		metric.WithDescription("Snapshots merged into the history store"),
	); err != nil {
		return nil, err
	}
	if m.SnapshotsRejected, err = meter.Int64Counter(
		"cot_snapshots_rejected_total",
		metric.WithDescription("Snapshots rejected before reaching the history store"),
	); err != nil {
		return nil, err
	}
	if m.RecordsInserted, err = meter.Int64Counter(
		"cot_records_inserted_total",
		metric.WithDescription("Position records inserted"),
	); err != nil {
		return nil, err
	}
	if m.RecordsRevised, err = meter.Int64Counter(
		"cot_records_revised_total",
		metric.WithDescription("Position records overwritten by a revision"),
	); err != nil {
		return nil, err
	}
	if m.MergeDuration, err = meter.Float64Histogram(
		"cot_merge_duration_seconds",
		metric.WithDescription("Time spent merging one snapshot"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordMerge records a successful merge. Safe on a nil receiver.
func (m *IngestMetrics) RecordMerge(ctx context.Context, instrument string, inserted, revised int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("instrument", instrument))
	m.SnapshotsIngested.Add(ctx, 1, attrs)
	m.RecordsInserted.Add(ctx, int64(inserted), attrs)
	m.RecordsRevised.Add(ctx, int64(revised), attrs)
	m.MergeDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRejection records a snapshot rejected with the given reason
func (m *IngestMetrics) RecordRejection(ctx context.Context, instrument, reason string) {
	if m == nil {
		return
	}
	m.SnapshotsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("instrument", instrument),
		attribute.String("reason", reason),
	))
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
