// Package bootstrap wires configuration, persistence and the ledger services into one
// container shared by the API server and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/application/matching"
	"github.com/palletledger/backend/internal/application/sweep"
	"github.com/palletledger/backend/internal/domain/credit"
	domain "github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/infrastructure/cache"
	"github.com/palletledger/backend/internal/infrastructure/config"
	"github.com/palletledger/backend/internal/infrastructure/event"
	"github.com/palletledger/backend/internal/infrastructure/feed"
	"github.com/palletledger/backend/internal/infrastructure/persistence"
	"github.com/palletledger/backend/internal/infrastructure/storage"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Container holds the long-lived collaborators of one process
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *persistence.Database
	Metrics *telemetry.Metrics
	Tracer  *telemetry.TracerProvider
	Bus     *event.InMemoryEventBus

	Repos      ledger.Repositories
	Candidates *persistence.GormInboundCandidateRepository

	Documents   *ledger.DocumentService
	Credits     *ledger.CreditService
	Settlements *ledger.SettlementService
	Audit       *ledger.AuditService
	Engine      *matching.Engine
	Ingestor    *feed.Ingestor
	Sweeper     *sweep.Sweeper
	// Archive is nil when report archiving is disabled
	Archive *storage.S3ReportArchive

	closers []func(context.Context) error
}

// Option tweaks how New builds the container
type Option func(*options)

type options struct {
	version    string
	withTracer bool
}

// WithVersion sets the service version reported to the tracer
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithoutTracing skips the OTLP exporter; the CLI uses it for short-lived commands
func WithoutTracing() Option {
	return func(o *options) { o.withTracer = false }
}

// New connects to the database and builds every service. Close releases what New opened,
// including on error paths.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (_ *Container, err error) {
	o := options{version: "dev", withTracer: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{Config: cfg, Logger: log, Metrics: telemetry.NewMetrics()}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	if o.withTracer {
		c.Tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			ServiceVersion:    o.version,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		c.onClose(c.Tracer.Shutdown)
	}

	c.DB, err = persistence.NewDatabase(&cfg.Database,
		persistence.WithZapLogger(log, cfg.Database.LogLevel, cfg.Telemetry.DBSlowQueryThresh),
	)
	if err != nil {
		return nil, err
	}
	c.onClose(func(context.Context) error { return c.DB.Close() })
	log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).OnSlowQuery(c.Metrics.ObserveSlowQuery)
	if err = tracing.Register(c.DB.DB); err != nil {
		return nil, fmt.Errorf("register db tracing: %w", err)
	}
	if sqlDB, dbErr := c.DB.DB.DB(); dbErr == nil {
		if err = c.Metrics.RegisterDBStats(sqlDB); err != nil {
			return nil, fmt.Errorf("register db stats: %w", err)
		}
	}

	c.Bus = event.NewInMemoryEventBus(log)
	c.Bus.Subscribe(event.NewLoggingHandler(log))
	c.Bus.Subscribe(event.NewMetricsHandler(c.Metrics))
	if err = c.Bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	c.onClose(c.Bus.Stop)

	c.buildServices()

	lock, err := cache.NewRunLock(ctx, cfg.Redis.Enabled, cache.RedisConfig{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cache.WithLogger(log), cache.WithInMemoryFallback(!cfg.IsProduction()))
	if err != nil {
		return nil, err
	}
	if closer, ok := lock.(io.Closer); ok {
		c.onClose(func(context.Context) error { return closer.Close() })
	}

	sweepOpts := []sweep.Option{
		sweep.WithRunLock(lock),
		sweep.WithMetrics(sweep.NewPrometheusMetrics(c.Metrics)),
		sweep.WithIntercompanyFilter(domain.NewIntercompanyFilter(cfg.Matching.IntercompanyPrefixes...)),
	}
	if cfg.Storage.Enabled {
		c.Archive, err = storage.NewS3ReportArchive(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("init report archive: %w", err)
		}
		if err = c.Archive.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("init report archive: %w", err)
		}
		sweepOpts = append(sweepOpts, sweep.WithArchive(c.Archive))
	}

	c.Sweeper = sweep.NewSweeper(c.Candidates, c.Engine, sweep.Config{
		TimeBudget:      cfg.Sweep.TimeBudget,
		MaxErrorSamples: cfg.Sweep.MaxErrorSamples,
		LockTTL:         cfg.Sweep.LockTTL,
	}, log, sweepOpts...)

	return c, nil
}

func (c *Container) buildServices() {
	db := c.DB.DB
	scope := persistence.NewGormTransactionScope(db)
	c.Repos = persistence.NewLedgerRepositories(db)
	c.Candidates = persistence.NewGormInboundCandidateRepository(db)
	rule := c.DueDateRule()

	c.Documents = ledger.NewDocumentService(scope, c.Repos, rule, c.Logger)
	c.Credits = ledger.NewCreditService(scope, c.Repos, rule, c.Logger)
	c.Settlements = ledger.NewSettlementService(scope, c.Repos, c.Logger)
	c.Audit = ledger.NewAuditService(c.Repos.Audit)
	c.Documents.SetEventPublisher(c.Bus)
	c.Credits.SetEventPublisher(c.Bus)
	c.Settlements.SetEventPublisher(c.Bus)

	c.Engine = matching.NewEngine(c.Repos.Documents, c.Repos.Settlements, c.Settlements, c.Logger)
	c.Ingestor = feed.NewIngestor(c.Candidates, c.Logger)
}

// DueDateRule returns the prazo rule configured under [ledger]
func (c *Container) DueDateRule() credit.HomeStateRule {
	rule := credit.DefaultDueDateRule(c.Config.Ledger.HomeState)
	if c.Config.Ledger.ShortTermDays > 0 {
		rule.ShortTermDays = c.Config.Ledger.ShortTermDays
	}
	if c.Config.Ledger.LongTermDays > 0 {
		rule.LongTermDays = c.Config.Ledger.LongTermDays
	}
	return rule
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
