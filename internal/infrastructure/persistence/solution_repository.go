package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCreditSolutionRepository implements credit.SolutionRepository using GORM
type GormCreditSolutionRepository struct {
	db *gorm.DB
}

// NewGormCreditSolutionRepository creates a new GormCreditSolutionRepository
func NewGormCreditSolutionRepository(db *gorm.DB) *GormCreditSolutionRepository {
	return &GormCreditSolutionRepository{db: db}
}

// Save appends a solution to the log
func (r *GormCreditSolutionRepository) Save(ctx context.Context, s *credit.CreditSolution) error {
	model, err := models.CreditSolutionModelFromDomain(s)
	if err != nil {
		return err
	}
	return translateError(r.db.WithContext(ctx).Create(model).Error, "credit solution", s.ID)
}

// FindByCredit returns the solutions of a credit in creation order
func (r *GormCreditSolutionRepository) FindByCredit(ctx context.Context, creditID uuid.UUID) ([]credit.CreditSolution, error) {
	return r.find(r.db.WithContext(ctx).Where("credit_id = ?", creditID))
}

// FindByDestination returns substitutions whose balance moved into creditID
func (r *GormCreditSolutionRepository) FindByDestination(ctx context.Context, creditID uuid.UUID) ([]credit.CreditSolution, error) {
	return r.find(r.db.WithContext(ctx).
		Where("kind = ? AND destination_credit_id = ?", string(credit.SolutionSubstitution), creditID))
}

// FindBySaleDocument returns sales booked under one sale document number
func (r *GormCreditSolutionRepository) FindBySaleDocument(ctx context.Context, saleDocumentNumber string) ([]credit.CreditSolution, error) {
	return r.find(r.db.WithContext(ctx).
		Where("kind = ? AND sale_document_number = ?", string(credit.SolutionSale), saleDocumentNumber))
}

// SumByKind totals solution quantities per kind over the given credits
func (r *GormCreditSolutionRepository) SumByKind(ctx context.Context, creditIDs []uuid.UUID) (map[credit.SolutionKind]int, error) {
	out := make(map[credit.SolutionKind]int)
	if len(creditIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		Kind  string
		Total int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.CreditSolutionModel{}).
		Select("kind, COALESCE(SUM(quantity), 0) AS total").
		Where("credit_id IN ?", creditIDs).
		Group("kind").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[credit.SolutionKind(row.Kind)] = row.Total
	}
	return out, nil
}

func (r *GormCreditSolutionRepository) find(query *gorm.DB) ([]credit.CreditSolution, error) {
	var rows []models.CreditSolutionModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]credit.CreditSolution, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// Ensure GormCreditSolutionRepository implements credit.SolutionRepository
var _ credit.SolutionRepository = (*GormCreditSolutionRepository)(nil)
