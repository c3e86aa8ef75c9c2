package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCreditRepository implements credit.Repository using GORM
type GormCreditRepository struct {
	db *gorm.DB
}

// NewGormCreditRepository creates a new GormCreditRepository
func NewGormCreditRepository(db *gorm.DB) *GormCreditRepository {
	return &GormCreditRepository{db: db}
}

// FindByID finds a credit by its ID
func (r *GormCreditRepository) FindByID(ctx context.Context, id uuid.UUID) (*credit.Credit, error) {
	var model models.CreditModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "credit", id)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a credit and locks its row until the transaction ends
func (r *GormCreditRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*credit.Credit, error) {
	var model models.CreditModel
	if err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "credit", id)
	}
	return model.ToDomain(), nil
}

// FindBySourceDocument finds the live credit minted from an outbound document
func (r *GormCreditRepository) FindBySourceDocument(ctx context.Context, documentID uuid.UUID) (*credit.Credit, error) {
	var model models.CreditModel
	if err := r.db.WithContext(ctx).
		Where("source_document_id = ? AND deleted_at IS NULL", documentID).
		First(&model).Error; err != nil {
		return nil, translateError(err, "credit for document", documentID)
	}
	return model.ToDomain(), nil
}

// FindPending lists OPEN and PARTIAL credits, earliest due date first
func (r *GormCreditRepository) FindPending(ctx context.Context, filter credit.PendingFilter) ([]credit.Credit, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CreditModel{}).
		Where("deleted_at IS NULL AND status IN ?", []string{string(credit.StatusOpen), string(credit.StatusPartial)})

	if filter.CounterpartyID != "" {
		query = query.Where("counterparty_id = ?", filter.CounterpartyID)
	}
	if filter.CounterpartyKind != "" {
		query = query.Where("counterparty_kind = ?", string(filter.CounterpartyKind))
	}
	if filter.OverdueOnly {
		query = query.Where("due_date < ?", filter.AsOf)
	}
	if filter.DueWithinDays > 0 {
		query = query.Where("due_date <= ?", filter.AsOf.AddDate(0, 0, filter.DueWithinDays))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(pendingCreditOrder.resolve(filter.OrderBy, filter.OrderDir)).Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.CreditModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return creditsToDomain(rows), total, nil
}

// FindByCounterparty returns every live credit of a counterparty
func (r *GormCreditRepository) FindByCounterparty(ctx context.Context, counterpartyID string) ([]credit.Credit, error) {
	var rows []models.CreditModel
	if err := r.db.WithContext(ctx).
		Where("counterparty_id = ? AND deleted_at IS NULL", counterpartyID).
		Order("due_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return creditsToDomain(rows), nil
}

// Save inserts a new credit
func (r *GormCreditRepository) Save(ctx context.Context, c *credit.Credit) error {
	model := models.CreditModelFromDomain(c)
	return translateError(r.db.WithContext(ctx).Create(model).Error, "credit", c.ID)
}

// SaveWithLock updates a credit when the stored version is the one it was loaded with
func (r *GormCreditRepository) SaveWithLock(ctx context.Context, c *credit.Credit) error {
	model := models.CreditModelFromDomain(c)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("credit", c.ID)
	}
	return nil
}

func creditsToDomain(rows []models.CreditModel) []credit.Credit {
	out := make([]credit.Credit, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormCreditRepository implements credit.Repository
var _ credit.Repository = (*GormCreditRepository)(nil)
