package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/application/sweep"
	"github.com/palletledger/backend/internal/bootstrap"
	"github.com/palletledger/backend/internal/infrastructure/config"
	"github.com/palletledger/backend/internal/infrastructure/feed"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

// containerBackend runs commands against a fully wired container
type containerBackend struct {
	c   *bootstrap.Container
	log *zap.Logger
}

func (b *containerBackend) Sweep(ctx context.Context, from, to time.Time, autoSuggest bool) (*sweep.Report, error) {
	return b.c.Sweeper.Run(ctx, from, to, autoSuggest)
}

func (b *containerBackend) ImportOutbound(ctx context.Context, inputs []ledger.ImportOutboundInput) *ledger.BatchImportResult {
	return b.c.Documents.ImportOutboundBatch(ctx, inputs)
}

func (b *containerBackend) Ingest(ctx context.Context, name string, r io.Reader) (*feed.IngestResult, error) {
	return b.c.Ingestor.Ingest(ctx, name, r)
}

func (b *containerBackend) Close(ctx context.Context) error {
	err := b.c.Close(ctx)
	_ = logger.Sync(b.log)
	return err
}

// cliLogger writes to stderr so stdout carries only command output
func cliLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

func openBackend(ctx context.Context, configPath string) (backend, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	log, err := cliLogger(cfg)
	if err != nil {
		return nil, err
	}
	c, err := bootstrap.New(ctx, cfg, log, bootstrap.WithVersion(Version), bootstrap.WithoutTracing())
	if err != nil {
		return nil, err
	}
	return &containerBackend{c: c, log: log}, nil
}

// sqlMigrator closes the connection it was opened with
type sqlMigrator struct {
	*migration.Migrator
	db *sql.DB
}

func (m *sqlMigrator) Close() error {
	err := m.Migrator.Close()
	if dbErr := m.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

func openMigrator(ctx context.Context, configPath string) (migrator, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	log, err := cliLogger(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlMigrator{Migrator: m, db: db}, nil
}
