package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool          // Enable database tracing
	LogFullSQL      bool          // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration // Threshold for marking queries as slow
	DBSystem        string        // Database system name
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// SlowQueryObserver is told about every query slower than the threshold
type SlowQueryObserver func(table string, elapsed time.Duration)

// DBTracingPlugin wraps the otelgorm plugin with slow query detection.
type DBTracingPlugin struct {
	config   DBTracingConfig
	logger   *zap.Logger
	observer SlowQueryObserver
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// OnSlowQuery registers a callback for slow queries, typically a metrics counter
func (p *DBTracingPlugin) OnSlowQuery(fn SlowQueryObserver) *DBTracingPlugin {
	p.observer = fn
	return p
}

type queryStartKey struct{}

// Register installs otelgorm and the timing callbacks on db
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	hooks := []struct {
		name     string
		fn       func(*gorm.DB)
		register func(string, func(*gorm.DB)) error
	}{
		{"ledger_timing:before_create", markQueryStart, cb.Create().Before("gorm:create").Register},
		{"ledger_timing:after_create", p.afterQuery, cb.Create().After("gorm:create").Register},
		{"ledger_timing:before_query", markQueryStart, cb.Query().Before("gorm:query").Register},
		{"ledger_timing:after_query", p.afterQuery, cb.Query().After("gorm:query").Register},
		{"ledger_timing:before_update", markQueryStart, cb.Update().Before("gorm:update").Register},
		{"ledger_timing:after_update", p.afterQuery, cb.Update().After("gorm:update").Register},
		{"ledger_timing:before_delete", markQueryStart, cb.Delete().Before("gorm:delete").Register},
		{"ledger_timing:after_delete", p.afterQuery, cb.Delete().After("gorm:delete").Register},
		{"ledger_timing:before_row", markQueryStart, cb.Row().Before("gorm:row").Register},
		{"ledger_timing:after_row", p.afterQuery, cb.Row().After("gorm:row").Register},
		{"ledger_timing:before_raw", markQueryStart, cb.Raw().Before("gorm:raw").Register},
		{"ledger_timing:after_raw", p.afterQuery, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.register(h.name, h.fn); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

// afterQuery annotates the current span and reports slow queries
func (p *DBTracingPlugin) afterQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	var elapsed time.Duration
	start, timed := ctx.Value(queryStartKey{}).(time.Time)
	if timed {
		elapsed = time.Since(start)
	}
	slow := timed && elapsed > p.config.SlowQueryThresh
	if slow && p.observer != nil {
		p.observer(db.Statement.Table, elapsed)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
