package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceHandler_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "serving", "file", "a.mp4")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	if _, ok := entry["trace_id"]; ok {
		t.Errorf("trace_id should not be present without an active span, got %v", entry["trace_id"])
	}

	if _, ok := entry["span_id"]; ok {
		t.Errorf("span_id should not be present without an active span, got %v", entry["span_id"])
	}

	require.Equal(t, "serving", entry["msg"])
	require.Equal(t, "a.mp4", entry["file"])
}

func TestTraceHandler_WithSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "serving")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	require.Equal(t, traceID.String(), entry["trace_id"])
	require.Equal(t, spanID.String(), entry["span_id"])
}

func TestNewTraceHandler_NilPanics(t *testing.T) {
	require.Panics(t, func() { NewTraceHandler(nil) })
}
