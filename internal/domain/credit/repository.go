package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// PendingFilter narrows the pending-credit listing
type PendingFilter struct {
	shared.Filter
	CounterpartyID   string
	CounterpartyKind CounterpartyKind
	OverdueOnly      bool
	DueWithinDays    int       // when > 0, only credits due on or before AsOf + N days
	AsOf             time.Time // reference instant for overdue/near-due checks
}

// Repository persists Credit aggregates
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Credit, error)
	// FindByIDForUpdate loads the credit holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Credit, error)
	// FindBySourceDocument returns the non-deleted credit minted from a document
	FindBySourceDocument(ctx context.Context, documentID uuid.UUID) (*Credit, error)
	// FindPending returns OPEN/PARTIAL credits ordered by due date ascending, then id
	FindPending(ctx context.Context, filter PendingFilter) ([]Credit, int64, error)
	FindByCounterparty(ctx context.Context, counterpartyID string) ([]Credit, error)
	// Save inserts a new credit
	Save(ctx context.Context, c *Credit) error
	// SaveWithLock updates an existing credit, failing when its version moved
	SaveWithLock(ctx context.Context, c *Credit) error
}

// SolutionRepository persists the append-only CreditSolution log
type SolutionRepository interface {
	Save(ctx context.Context, s *CreditSolution) error
	FindByCredit(ctx context.Context, creditID uuid.UUID) ([]CreditSolution, error)
	// FindByDestination returns substitutions that moved balance into creditID
	FindByDestination(ctx context.Context, creditID uuid.UUID) ([]CreditSolution, error)
	FindBySaleDocument(ctx context.Context, saleDocumentNumber string) ([]CreditSolution, error)
	// SumByKind totals solution quantities per kind over the given credits
	SumByKind(ctx context.Context, creditIDs []uuid.UUID) (map[SolutionKind]int, error)
}
