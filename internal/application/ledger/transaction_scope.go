package ledger

import (
	"context"

	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
)

// TransactionScope provides transactional access to the ledger repositories.
// All repository operations made through the repositories handed to fn are
// committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to every ledger repository within one transaction.
//
// Aggregate boundary notes:
//   - Credits and Documents are the two balance-bearing aggregates; both are loaded
//     with FindByIDForUpdate before any quantity changes.
//   - Solutions and Settlements are the append-only logs of those aggregates.
//   - Audit receives one entry per successful mutating command.
type TransactionalRepositories interface {
	Credits() credit.Repository
	Solutions() credit.SolutionRepository
	Documents() document.OutboundDocumentRepository
	Settlements() document.SettlementRepository
	Audit() audit.Repository
}

// Repositories bundles the repositories used outside transactions (queries and
// failure audit entries)
type Repositories struct {
	Credits     credit.Repository
	Solutions   credit.SolutionRepository
	Documents   document.OutboundDocumentRepository
	Settlements document.SettlementRepository
	Audit       audit.Repository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// Useful for tests that do not exercise rollback.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Credits returns the credit repository
func (s *NoOpTransactionScope) Credits() credit.Repository { return s.repos.Credits }

// Solutions returns the solution repository
func (s *NoOpTransactionScope) Solutions() credit.SolutionRepository { return s.repos.Solutions }

// Documents returns the outbound document repository
func (s *NoOpTransactionScope) Documents() document.OutboundDocumentRepository {
	return s.repos.Documents
}

// Settlements returns the settlement repository
func (s *NoOpTransactionScope) Settlements() document.SettlementRepository {
	return s.repos.Settlements
}

// Audit returns the audit repository
func (s *NoOpTransactionScope) Audit() audit.Repository { return s.repos.Audit }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
