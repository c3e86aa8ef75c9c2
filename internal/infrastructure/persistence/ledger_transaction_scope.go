package persistence

import (
	"context"

	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"gorm.io/gorm"
)

// GormTransactionScope implements ledger.TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos ledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Credits returns the credit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Credits() credit.Repository {
	return NewGormCreditRepository(r.tx)
}

// Solutions returns the solution repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Solutions() credit.SolutionRepository {
	return NewGormCreditSolutionRepository(r.tx)
}

// Documents returns the outbound document repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Documents() document.OutboundDocumentRepository {
	return NewGormOutboundDocumentRepository(r.tx)
}

// Settlements returns the settlement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Settlements() document.SettlementRepository {
	return NewGormSettlementRepository(r.tx)
}

// Audit returns the audit repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Audit() audit.Repository {
	return NewGormAuditRepository(r.tx)
}

// NewLedgerRepositories builds the non-transactional repository set
func NewLedgerRepositories(db *gorm.DB) ledger.Repositories {
	return ledger.Repositories{
		Credits:     NewGormCreditRepository(db),
		Solutions:   NewGormCreditSolutionRepository(db),
		Documents:   NewGormOutboundDocumentRepository(db),
		Settlements: NewGormSettlementRepository(db),
		Audit:       NewGormAuditRepository(db),
	}
}

// Ensure GormTransactionScope implements TransactionScope
var _ ledger.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ ledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
