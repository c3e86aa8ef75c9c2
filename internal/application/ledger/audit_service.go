package ledger

import (
	"context"

	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/shared"
)

// AuditService answers compliance queries over the audit trail
type AuditService struct {
	repo audit.Repository
}

// NewAuditService creates a new AuditService
func NewAuditService(repo audit.Repository) *AuditService {
	return &AuditService{repo: repo}
}

// Find returns audit entries, newest first
func (s *AuditService) Find(ctx context.Context, filter audit.Filter) (shared.Paginated[audit.Entry], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return shared.Paginated[audit.Entry]{}, shared.Validation("audit window ends before it starts")
	}
	items, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		return shared.Paginated[audit.Entry]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}
