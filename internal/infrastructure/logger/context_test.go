package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_FallsBackToNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	core, _ := observer.New(zapcore.InfoLevel)
	attached := zap.New(core)
	assert.Same(t, attached, FromContext(WithContext(context.Background(), attached)))
}

func TestWithSweepRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	runID := uuid.New()

	ctx, l := WithSweepRun(context.Background(), zap.New(core), runID)
	l.Info("candidate skipped")
	FromContext(ctx).Info("sweep finished")

	assert.Equal(t, runID.String(), GetRunID(ctx))
	for _, e := range logs.All() {
		assert.Equal(t, runID.String(), e.ContextMap()["run_id"], e.Message)
	}
	assert.Equal(t, 2, logs.Len())
}

func TestGetters_EmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetActor(ctx))
	assert.Empty(t, GetRunID(ctx))
}

func TestFor_EnrichesFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
	ctx, _ = WithActor(ctx, zap.NewNop(), "ops")
	ctx, _ = WithSweepRun(ctx, zap.NewNop(), uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	For(ctx, base).Info("inbound document matched")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "ops", fields["actor"])
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2", fields["run_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
}

func TestFor_PlainContextReturnsBase(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	base := zap.New(core)
	assert.Same(t, base, For(context.Background(), base))
	assert.NotNil(t, For(context.Background(), nil))
}
