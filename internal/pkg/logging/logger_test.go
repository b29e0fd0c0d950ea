package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	if got := FromContext(context.Background()); got != zap.L() {
		t.Error("expected global logger when none stored")
	}
}

func TestNewContext_CarriesLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := NewContext(context.Background(), logger.With(zap.String("request_id", "r-1")))
	FromContext(ctx).Info("purchase_done")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "r-1" {
		t.Errorf("request_id field missing: %v", entries[0].ContextMap())
	}
}

func TestNewContext_NilLoggerKeepsContext(t *testing.T) {
	ctx := context.Background()
	if NewContext(ctx, nil) != ctx {
		t.Error("expected unchanged context for nil logger")
	}
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	WithTrace(context.Background(), logger).Info("no_span")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	WithTrace(ctx, logger).Info("with_span")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["trace_id"]; ok {
		t.Errorf("unexpected trace_id without a span: %v", entries[0].ContextMap())
	}
	fields := entries[1].ContextMap()
	if fields["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" || fields["span_id"] != "00f067aa0ba902b7" {
		t.Errorf("trace fields missing: %v", fields)
	}
}

func TestNew_WritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shop.log")

	logger, err := New(Options{Service: "sweet-shop", Env: "test", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log file to contain entries")
	}
}

func TestNew_DebugOnlyInDev(t *testing.T) {
	dev, err := New(Options{Service: "s", Env: "dev"})
	if err != nil {
		t.Fatalf("New dev: %v", err)
	}
	prod, err := New(Options{Service: "s", Env: "prod"})
	if err != nil {
		t.Fatalf("New prod: %v", err)
	}
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug enabled in dev")
	}
	if prod.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug disabled outside dev")
	}
}
