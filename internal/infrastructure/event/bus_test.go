package event

import (
	"context"
	"errors"
	"testing"

	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	settled := newTestHandler(document.EventTypeOutboundDocumentSettled)
	all := newTestHandler()
	bus.Subscribe(settled)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(),
		newTestEvent(credit.EventTypeCreditCreated),
		newTestEvent(document.EventTypeOutboundDocumentSettled),
	)

	require.NoError(t, err)
	assert.Equal(t, 1, settled.count())
	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler(credit.EventTypeCreditClosed)
	bus.Subscribe(h, credit.EventTypeCreditCreated)

	_ = bus.Publish(context.Background(), newTestEvent(credit.EventTypeCreditClosed))
	assert.Zero(t, h.count())
	_ = bus.Publish(context.Background(), newTestEvent(credit.EventTypeCreditCreated))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_FailingHandlersAreIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := newTestHandler()
	failing.err = errors.New("sink unavailable")
	panicking := newTestHandler()
	panicking.panicWith = "nil map"
	healthy := newTestHandler()
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent(document.EventTypeSettlementConfirmed))

	require.NoError(t, err)
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_StopDropsEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)

	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent(credit.EventTypeCreditCreated), newTestEvent(credit.EventTypeCreditClosed)))
	assert.Zero(t, h.count())
	assert.Equal(t, int64(2), bus.Dropped())

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent(credit.EventTypeCreditCreated)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	_ = bus.Publish(context.Background(), newTestEvent(credit.EventTypeCreditCreated))
	assert.Zero(t, h.count())
}

func TestLedgerHandlers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := telemetry.NewMetrics()

	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewLoggingHandler(zap.New(core)))
	bus.Subscribe(NewMetricsHandler(metrics))

	ev := newTestEvent(document.EventTypeSettlementConfirmed)
	require.NoError(t, bus.Publish(context.Background(), ev, newTestEvent(document.EventTypeSettlementConfirmed)))

	entries := logs.FilterMessage(document.EventTypeSettlementConfirmed).All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, ev.EventID().String(), fields["event_id"])
	assert.Equal(t, "analyst", fields["actor"])
	assert.Equal(t, "Credit", fields["aggregate_type"])

	n, err := testutil.GatherAndCount(metrics.Registry(), "pallets_ledger_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
