package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/palletledger/backend/internal/infrastructure/config"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database is the ledger's PostgreSQL connection
type Database struct {
	DB *gorm.DB
}

// DatabaseOption adjusts the gorm settings before the connection opens
type DatabaseOption func(*gorm.Config)

// WithZapLogger sends SQL logs to zap; statements above slowThreshold are warned about
func WithZapLogger(zapLogger *zap.Logger, level string, slowThreshold time.Duration) DatabaseOption {
	return func(c *gorm.Config) {
		c.Logger = logger.NewGormLogger(zapLogger, logger.MapGormLogLevel(level),
			logger.WithSlowThreshold(slowThreshold),
			logger.WithIgnoreRecordNotFoundError(true),
		)
	}
}

// NewDatabase connects, sizes the pool from cfg and checks the server answers
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig(opts...))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	configurePool(sqlDB, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Database{DB: db}, nil
}

const connectTimeout = 10 * time.Second

// configurePool applies the pool limits; lifetimes are configured in minutes
func configurePool(sqlDB *sql.DB, cfg *config.DatabaseConfig) {
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// GormConfig returns the gorm settings every connection uses. TranslateError is
// required for unique violations to surface as DUPLICATE_ENTITY.
func GormConfig(opts ...DatabaseOption) *gorm.Config {
	c := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LedgerModels lists the tables owned by this service
func LedgerModels() []any {
	return []any{
		&models.OutboundDocumentModel{},
		&models.CreditModel{},
		&models.CreditSolutionModel{},
		&models.DocumentSettlementModel{},
		&models.AuditEntryModel{},
		&models.InboundCandidateModel{},
	}
}

// AutoMigrate creates the ledger tables. Production schemas come from the SQL
// migrations; this is for tests and local sqlite runs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(LedgerModels()...)
}

// Close releases the pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping is the health probe behind /health
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
