package event

import (
	"context"

	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LoggingHandler writes one structured line per domain event
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger.Named("events")}
}

// Handle implements shared.EventHandler
func (h *LoggingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.logger.Info(event.EventType(),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("actor", event.Actor()),
		zap.Time("occurred_at", event.OccurredAt()),
	)
	return nil
}

// EventTypes implements shared.EventHandler; nil subscribes to everything
func (h *LoggingHandler) EventTypes() []string {
	return nil
}

// MetricsHandler counts domain events by type
type MetricsHandler struct {
	metrics *telemetry.Metrics
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(m *telemetry.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// Handle implements shared.EventHandler
func (h *MetricsHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.metrics.IncDomainEvent(event.EventType())
	return nil
}

// EventTypes implements shared.EventHandler
func (h *MetricsHandler) EventTypes() []string {
	return nil
}
