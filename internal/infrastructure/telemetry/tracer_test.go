package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func disabledConfig() Config {
	return Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "pallet-ledger-test",
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), disabledConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, tp.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestServiceResource(t *testing.T) {
	res, err := serviceResource(Config{ServiceName: "pallet-ledger-test"})
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "pallet-ledger-test", attrs["service.name"])
	assert.Equal(t, "dev", attrs["service.version"])
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.ratio).Description())
	}

	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}
