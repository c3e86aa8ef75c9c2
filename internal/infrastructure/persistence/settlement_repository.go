package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSettlementRepository implements document.SettlementRepository using GORM
type GormSettlementRepository struct {
	db *gorm.DB
}

// NewGormSettlementRepository creates a new GormSettlementRepository
func NewGormSettlementRepository(db *gorm.DB) *GormSettlementRepository {
	return &GormSettlementRepository{db: db}
}

// FindByID finds a settlement by its ID
func (r *GormSettlementRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.DocumentSettlement, error) {
	var model models.DocumentSettlementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "settlement", id)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a settlement and locks its row until the transaction ends
func (r *GormSettlementRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*document.DocumentSettlement, error) {
	var model models.DocumentSettlementModel
	if err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "settlement", id)
	}
	return model.ToDomain(), nil
}

// FindByDocument returns all settlements of a document in creation order
func (r *GormSettlementRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]document.DocumentSettlement, error) {
	return r.list(r.db.WithContext(ctx).Where("outbound_document_id = ?", documentID))
}

// FindActiveDuplicate returns the non-rejected settlement of documentID created from the
// same inbound document, or nil when there is none
func (r *GormSettlementRepository) FindActiveDuplicate(ctx context.Context, documentID uuid.UUID, number, issuerCNPJ string) (*document.DocumentSettlement, error) {
	if number == "" {
		return nil, nil
	}
	var model models.DocumentSettlementModel
	err := r.sourceQuery(ctx, number, issuerCNPJ).
		Where("outbound_document_id = ?", documentID).
		Order("created_at ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySource returns every non-rejected settlement created from one inbound document
func (r *GormSettlementRepository) FindBySource(ctx context.Context, number, issuerCNPJ string) ([]document.DocumentSettlement, error) {
	if number == "" {
		return []document.DocumentSettlement{}, nil
	}
	return r.list(r.sourceQuery(ctx, number, issuerCNPJ))
}

// SumConfirmed totals confirmed, non-rejected quantities of a document
func (r *GormSettlementRepository) SumConfirmed(ctx context.Context, documentID uuid.UUID) (int, error) {
	var total int
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentSettlementModel{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("outbound_document_id = ? AND confirmed = ? AND rejected = ?", documentID, true, false).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Save inserts a new settlement
func (r *GormSettlementRepository) Save(ctx context.Context, s *document.DocumentSettlement) error {
	model := models.DocumentSettlementModelFromDomain(s)
	return translateError(r.db.WithContext(ctx).Create(model).Error, "settlement", s.ID)
}

// SaveWithLock updates a settlement when the stored version is the one it was loaded with
func (r *GormSettlementRepository) SaveWithLock(ctx context.Context, s *document.DocumentSettlement) error {
	model := models.DocumentSettlementModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("settlement", s.ID)
	}
	return nil
}

func (r *GormSettlementRepository) sourceQuery(ctx context.Context, number, issuerCNPJ string) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("doc_number_key = ? AND doc_issuer_cnpj = ? AND rejected = ?",
			document.NormalizeNumber(number), document.NormalizeCNPJ(issuerCNPJ), false)
}

func (r *GormSettlementRepository) list(query *gorm.DB) ([]document.DocumentSettlement, error) {
	var rows []models.DocumentSettlementModel
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]document.DocumentSettlement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Ensure GormSettlementRepository implements document.SettlementRepository
var _ document.SettlementRepository = (*GormSettlementRepository)(nil)
