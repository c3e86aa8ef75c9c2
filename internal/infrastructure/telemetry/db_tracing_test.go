package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sweepRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&sweepRow{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)
	p := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	require.NoError(t, p.Register(db))

	assert.Nil(t, db.Callback().Query().Get("ledger_timing:after_query"))
}

func TestDBTracingPlugin_RecordsSpans(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, parent := tp.Tracer("test").Start(context.Background(), "sweep.run")
	require.NoError(t, db.WithContext(ctx).Create(&sweepRow{Name: "a"}).Error)
	require.NoError(t, db.WithContext(ctx).Create(&sweepRow{Name: "b"}).Error)
	require.NoError(t, db.WithContext(ctx).Where("name = ?", "a").Delete(&sweepRow{}).Error)
	parent.End()

	assert.NotNil(t, db.Callback().Query().Get("ledger_timing:after_query"))
	assert.NotEmpty(t, sr.Ended())
}

func TestDBTracingPlugin_DoubleRegistration(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	p := NewDBTracingPlugin(cfg, zap.NewNop())

	require.NoError(t, p.Register(db))
	assert.Error(t, p.Register(db))
}

func TestDBTracingPlugin_AfterQuery(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var observed []string
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, zap.NewNop()).
		OnSlowQuery(func(table string, _ time.Duration) { observed = append(observed, table) })

	t.Run("slow query is flagged and observed", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "q")
		ctx = context.WithValue(ctx, queryStartKey{}, time.Now().Add(-50*time.Millisecond))

		db := &gorm.DB{Statement: &gorm.Statement{Context: ctx, Table: "credits"}, Config: &gorm.Config{}, RowsAffected: 2}
		p.afterQuery(db)
		span.End()

		s := sr.Ended()[len(sr.Ended())-1]
		attrs := map[string]any{}
		for _, a := range s.Attributes() {
			attrs[string(a.Key)] = a.Value.AsInterface()
		}
		assert.Equal(t, true, attrs["db.slow_query"])
		assert.Equal(t, "credits", attrs["db.sql.table"])
		assert.Equal(t, int64(2), attrs["db.rows_affected"])
		require.Len(t, s.Events(), 1)
		assert.Equal(t, "slow_query_warning", s.Events()[0].Name)
		assert.Equal(t, []string{"credits"}, observed)
	})

	t.Run("errors mark the span except not found", func(t *testing.T) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "q")
		db := &gorm.DB{Statement: &gorm.Statement{Context: ctx}, Config: &gorm.Config{}, Error: gorm.ErrRecordNotFound}
		p.afterQuery(db)
		span.End()
		assert.Equal(t, codes.Unset, sr.Ended()[len(sr.Ended())-1].Status().Code)

		ctx, span = tp.Tracer("test").Start(context.Background(), "q")
		db = &gorm.DB{Statement: &gorm.Statement{Context: ctx}, Config: &gorm.Config{}, Error: gorm.ErrInvalidTransaction}
		p.afterQuery(db)
		span.End()
		assert.Equal(t, codes.Error, sr.Ended()[len(sr.Ended())-1].Status().Code)
	})

	t.Run("nil context and non-recording spans are ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			p.afterQuery(&gorm.DB{Statement: &gorm.Statement{}, Config: &gorm.Config{}})
			p.afterQuery(&gorm.DB{Statement: &gorm.Statement{Context: context.Background()}, Config: &gorm.Config{}})
		})
	})
}
