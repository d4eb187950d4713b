package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers. The zero value is
// a no-op, so components can record unconditionally.
type Telemetry struct {
	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	meter         metric.Meter
	exporter      *prometheus.Exporter

	// RED metrics for the HTTP surface
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter

	// Fetch pipeline
	fetchesTotal      metric.Int64Counter
	fetchesActive     metric.Int64UpDownCounter
	fetchDuration     metric.Float64Histogram
	fetchRetriesTotal metric.Int64Counter
	bytesFetched      metric.Int64Counter

	// Range serving
	rangeRequestsTotal metric.Int64Counter
	bytesStreamed      metric.Int64Counter

	// Collaborators
	clientOperationsTotal metric.Int64Counter
	clientErrors          metric.Int64Counter
	dbOperationsTotal     metric.Int64Counter
	dbOperationDuration   metric.Float64Histogram
}

// Config holds telemetry configuration.
type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

// New creates a telemetry instance with a Prometheus pull exporter and, when
// an OTLP endpoint is configured, a periodic gRPC push reader as well.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithReader(exporter)}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlpExporter)))
	}

	meterProvider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	t := &Telemetry{
		meterProvider: meterProvider,
		tracer:        otel.Tracer(cfg.ServiceName),
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

// Tracer returns the OpenTelemetry tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// RecordHTTPRequest records HTTP request metrics.
func (t *Telemetry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)

	if t.httpRequestsTotal != nil {
		t.httpRequestsTotal.Add(context.Background(), 1, attrs)
	}

	if t.httpRequestDuration != nil {
		t.httpRequestDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
}

// IncrementHTTPInFlight increments in-flight HTTP requests.
func (t *Telemetry) IncrementHTTPInFlight() {
	if t.httpRequestsInFlight != nil {
		t.httpRequestsInFlight.Add(context.Background(), 1)
	}
}

// DecrementHTTPInFlight decrements in-flight HTTP requests.
func (t *Telemetry) DecrementHTTPInFlight() {
	if t.httpRequestsInFlight != nil {
		t.httpRequestsInFlight.Add(context.Background(), -1)
	}
}

// RecordFetch records the outcome and duration of an origin fetch.
func (t *Telemetry) RecordFetch(status string, duration time.Duration) {
	if t.fetchesTotal != nil {
		t.fetchesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}

	if t.fetchDuration != nil {
		t.fetchDuration.Record(context.Background(), duration.Seconds(),
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// IncrementActiveFetches increments the active fetch counter.
func (t *Telemetry) IncrementActiveFetches() {
	if t.fetchesActive != nil {
		t.fetchesActive.Add(context.Background(), 1)
	}
}

// DecrementActiveFetches decrements the active fetch counter.
func (t *Telemetry) DecrementActiveFetches() {
	if t.fetchesActive != nil {
		t.fetchesActive.Add(context.Background(), -1)
	}
}

// RecordFetchRetry counts a retried fetch attempt.
func (t *Telemetry) RecordFetchRetry() {
	if t.fetchRetriesTotal != nil {
		t.fetchRetriesTotal.Add(context.Background(), 1)
	}
}

// AddBytesFetched accumulates bytes pulled from origins.
func (t *Telemetry) AddBytesFetched(n int64) {
	if t.bytesFetched != nil {
		t.bytesFetched.Add(context.Background(), n)
	}
}

// RecordRangeRequest counts a range-serving response by status class.
func (t *Telemetry) RecordRangeRequest(status string) {
	if t.rangeRequestsTotal != nil {
		t.rangeRequestsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// AddBytesStreamed accumulates bytes served to clients.
func (t *Telemetry) AddBytesStreamed(n int64) {
	if t.bytesStreamed != nil {
		t.bytesStreamed.Add(context.Background(), n)
	}
}

// RecordClientOperation records catalog/origin client operation metrics.
func (t *Telemetry) RecordClientOperation(client, operation, status string) {
	if t.clientOperationsTotal != nil {
		t.clientOperationsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("client", client),
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}

	if status == "error" && t.clientErrors != nil {
		t.clientErrors.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("client", client),
				attribute.String("operation", operation),
			),
		)
	}
}

// RecordDBOperation records database operation metrics.
func (t *Telemetry) RecordDBOperation(operation, status string, duration time.Duration) {
	if t.dbOperationsTotal != nil {
		t.dbOperationsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}

	if t.dbOperationDuration != nil {
		t.dbOperationDuration.Record(context.Background(), duration.Seconds(),
			metric.WithAttributes(
				attribute.String("operation", operation),
				attribute.String("status", status),
			),
		)
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}

// Shutdown gracefully shuts down the telemetry system.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		return mp.Shutdown(ctx)
	}

	return nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	if t.httpRequestsTotal, err = t.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	if t.httpRequestDuration, err = t.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	if t.httpRequestsInFlight, err = t.meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create http_requests_in_flight counter: %w", err)
	}

	if t.fetchesTotal, err = t.meter.Int64Counter(
		"fetches_total",
		metric.WithDescription("Total number of origin fetches"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create fetches_total counter: %w", err)
	}

	if t.fetchesActive, err = t.meter.Int64UpDownCounter(
		"fetches_active",
		metric.WithDescription("Number of origin fetches currently running"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create fetches_active counter: %w", err)
	}

	if t.fetchDuration, err = t.meter.Float64Histogram(
		"fetch_duration_seconds",
		metric.WithDescription("Origin fetch duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create fetch_duration histogram: %w", err)
	}

	if t.fetchRetriesTotal, err = t.meter.Int64Counter(
		"fetch_retries_total",
		metric.WithDescription("Total number of retried fetch attempts"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create fetch_retries_total counter: %w", err)
	}

	if t.bytesFetched, err = t.meter.Int64Counter(
		"bytes_fetched_total",
		metric.WithDescription("Total bytes pulled from origins"),
		metric.WithUnit("By"),
	); err != nil {
		return fmt.Errorf("failed to create bytes_fetched_total counter: %w", err)
	}

	if t.rangeRequestsTotal, err = t.meter.Int64Counter(
		"range_requests_total",
		metric.WithDescription("Total number of video streaming responses"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create range_requests_total counter: %w", err)
	}

	if t.bytesStreamed, err = t.meter.Int64Counter(
		"bytes_streamed_total",
		metric.WithDescription("Total bytes streamed to clients"),
		metric.WithUnit("By"),
	); err != nil {
		return fmt.Errorf("failed to create bytes_streamed_total counter: %w", err)
	}

	if t.clientOperationsTotal, err = t.meter.Int64Counter(
		"client_operations_total",
		metric.WithDescription("Total number of catalog client operations"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create client_operations_total counter: %w", err)
	}

	if t.clientErrors, err = t.meter.Int64Counter(
		"client_errors_total",
		metric.WithDescription("Total number of catalog client errors"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create client_errors_total counter: %w", err)
	}

	if t.dbOperationsTotal, err = t.meter.Int64Counter(
		"db_operations_total",
		metric.WithDescription("Total number of database operations"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create db_operations_total counter: %w", err)
	}

	if t.dbOperationDuration, err = t.meter.Float64Histogram(
		"db_operation_duration_seconds",
		metric.WithDescription("Database operation duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create db_operation_duration histogram: %w", err)
	}

	return nil
}
