package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/palletledger/backend/internal/infrastructure/migration"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"go.uber.org/zap"
)

// newPostgresDB starts a throwaway PostgreSQL container and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pallets_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestPostgres_MigrationsMatchModels(t *testing.T) {
	db := newPostgresDB(t)
	for _, table := range []string{"credits", "credit_solutions", "outbound_documents", "document_settlements", "audit_entries", "inbound_candidates"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	s := newStackOn(db)
	imported := s.importDocument(t, "100", customerX, 20, emitted)
	require.NotNil(t, imported.Credit)

	got, err := s.repos.Credits.FindByID(context.Background(), imported.Credit.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.RemainingBalance)
}

func TestPostgres_ConcurrentSolutionsNeverOverdraw(t *testing.T) {
	db := newPostgresDB(t)
	s := newStackOn(db)
	imported := s.importDocument(t, "200", customerX, 20, emitted)
	creditID := imported.Credit.ID

	credits := ledger.NewCreditService(NewGormTransactionScope(db), s.repos, credit.DefaultDueDateRule("SP"), zap.NewNop())

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		rejected []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := credits.ApplySolution(context.Background(), ledger.ApplySolutionInput{
				CreditID: creditID,
				Quantity: 5,
				Payload:  credit.WriteOffPayload{Reason: "broken in yard", CustomerConfirmed: true},
				Actor:    "ops",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				applied++
				return
			}
			rejected = append(rejected, shared.CodeOf(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, applied)
	for _, code := range rejected {
		assert.Contains(t, []string{shared.CodeQuantityExceedsAvailable, shared.CodeInvalidState, shared.CodeConcurrencyConflict}, code)
	}

	c, err := s.repos.Credits.FindByID(context.Background(), creditID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.RemainingBalance)
	assert.Equal(t, credit.StatusClosed, c.Status)
}

func TestPostgres_ConcurrentCreditMintingCreatesOneCredit(t *testing.T) {
	db := newPostgresDB(t)
	s := newStackOn(db)
	doc := saveDocument(t, db, "300", "", 12, emitted)

	credits := ledger.NewCreditService(NewGormTransactionScope(db), s.repos, credit.DefaultDueDateRule("SP"), zap.NewNop())

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = map[uuid.UUID]int{}
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := credits.CreateFromDocument(context.Background(), doc.ID, "importer")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[c.ID]++
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, ids, 1)

	var count int64
	require.NoError(t, db.Model(&models.CreditModel{}).Where("source_document_id = ?", doc.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
