package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute cardinality: only bounded values (operation names, status
// strings, backend names) go on spans and metrics. File names, transfer ids,
// URLs and error messages stay in logs, keyed by request id.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation wraps fn in a span attributed to the given component.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordDBOperation(operation, status, duration)

	return err
}

// InstrumentClientOperation instruments catalog client operations.
func (t *Telemetry) InstrumentClientOperation(ctx context.Context, client, operation string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "client_"+operation, "catalog_client", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("client.type", client),
			attribute.String("client.operation", operation),
		)

		return fn(ctx)
	})

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordClientOperation(client, operation, status)

	return err
}

// InstrumentFetch instruments an origin fetch end to end: active gauge,
// outcome counter and duration histogram.
func (t *Telemetry) InstrumentFetch(ctx context.Context, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveFetches()
	defer t.DecrementActiveFetches()

	err := t.InstrumentOperation(ctx, "fetch", "fetcher", fn)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordFetch(status, time.Since(start))

	return err
}
