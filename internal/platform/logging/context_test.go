package logging

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(fields []zap.Field) map[string]zap.Field {
	m := make(map[string]zap.Field, len(fields))
	for _, f := range fields {
		m[f.Key] = f
	}
	return m
}

func TestTraceIDFromContext(t *testing.T) {
	if got := TraceIDFromContext(context.Background()); got != nil {
		t.Fatalf("expected nil trace ID, got %v", *got)
	}
	//nolint:staticcheck // nil context is accepted on purpose
	if got := TraceIDFromContext(nil); got != nil {
		t.Fatal("expected nil trace ID for nil context")
	}
	ctx := contextWithTraceID(context.Background(), "trace-abc")
	if got := TraceIDFromContext(ctx); got == nil || *got != "trace-abc" {
		t.Fatalf("expected trace-abc, got %v", got)
	}
	if contextWithTraceID(ctx, "") != ctx {
		t.Fatal("empty trace ID should return the same context")
	}
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	if LoggerFromContext(context.Background()) != Logger() {
		t.Fatal("expected global logger without a request logger")
	}
	ctx := context.WithValue(context.Background(), ctxLoggerKey{}, (*zap.Logger)(nil))
	if LoggerFromContext(ctx) != Logger() {
		t.Fatal("expected global logger for nil logger value")
	}
}

func TestLogErrorAppendsErrorField(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	LogError(ctx, "upstream failed", errors.New("boom"), zap.String("api", "search"))
	LogError(ctx, "no error attached", nil)

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := fieldMap(entries[0].Context)
	if f, ok := fields["error"]; !ok || f.Type != zapcore.ErrorType {
		t.Fatalf("expected error field, got %+v", fields)
	}
	if fields["api"].String != "search" {
		t.Fatalf("expected api field, got %+v", fields)
	}
	if _, ok := fieldMap(entries[1].Context)["error"]; ok {
		t.Fatal("did not expect error field for nil error")
	}
}

func TestLogInfoAndWarnLevels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	LogInfo(ctx, "info")
	LogWarn(ctx, "warn")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected levels: %s, %s", entries[0].Level, entries[1].Level)
	}
}

func TestWithFieldsAddsToEveryEntry(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = WithFields(ctx, zap.String("session", "s-1"))

	LogInfo(ctx, "first")
	LogWarn(ctx, "second")

	for _, entry := range recorded.All() {
		if fieldMap(entry.Context)["session"].String != "s-1" {
			t.Fatalf("entry %q missing session field", entry.Message)
		}
	}
	if WithFields(ctx) != ctx {
		t.Fatal("no fields should return the same context")
	}
}
