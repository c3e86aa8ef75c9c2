package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// fifoOrder sorts documents oldest emission first, then by numeric document number, then id
const fifoOrder = "emission_date ASC, LENGTH(number_key) ASC, number_key ASC, id ASC"

// GormOutboundDocumentRepository implements document.OutboundDocumentRepository using GORM
type GormOutboundDocumentRepository struct {
	db *gorm.DB
}

// NewGormOutboundDocumentRepository creates a new GormOutboundDocumentRepository
func NewGormOutboundDocumentRepository(db *gorm.DB) *GormOutboundDocumentRepository {
	return &GormOutboundDocumentRepository{db: db}
}

// FindByID finds an outbound document by its ID
func (r *GormOutboundDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.OutboundDocument, error) {
	var model models.OutboundDocumentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "outbound document", id)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds an outbound document and locks its row until the transaction ends
func (r *GormOutboundDocumentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*document.OutboundDocument, error) {
	var model models.OutboundDocumentModel
	if err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "outbound document", id)
	}
	return model.ToDomain(), nil
}

// FindByFiscalKey finds the live document carrying a fiscal access key
func (r *GormOutboundDocumentRepository) FindByFiscalKey(ctx context.Context, fiscalKey string) (*document.OutboundDocument, error) {
	var model models.OutboundDocumentModel
	if err := r.db.WithContext(ctx).
		Where("fiscal_key = ? AND deleted_at IS NULL", fiscalKey).
		First(&model).Error; err != nil {
		return nil, translateError(err, "outbound document with fiscal key", fiscalKey)
	}
	return model.ToDomain(), nil
}

// FindByNaturalKey finds a live document by number, series and counterparty
func (r *GormOutboundDocumentRepository) FindByNaturalKey(ctx context.Context, number, series, counterpartyID string) (*document.OutboundDocument, error) {
	var model models.OutboundDocumentModel
	if err := r.db.WithContext(ctx).
		Where("number_key = ? AND series = ? AND counterparty_id = ? AND deleted_at IS NULL",
			document.NormalizeNumber(number), series, counterpartyID).
		First(&model).Error; err != nil {
		return nil, translateError(err, "outbound document", number)
	}
	return model.ToDomain(), nil
}

// FindByNumber returns live documents with a number, optionally narrowed to a series
func (r *GormOutboundDocumentRepository) FindByNumber(ctx context.Context, number, series string) ([]document.OutboundDocument, error) {
	query := r.db.WithContext(ctx).
		Where("number_key = ? AND deleted_at IS NULL", document.NormalizeNumber(number))
	if series != "" {
		query = query.Where("series = ?", series)
	}
	return r.list(query)
}

// FindByNumberAndCounterparty returns the counterparty's live documents with a number
func (r *GormOutboundDocumentRepository) FindByNumberAndCounterparty(ctx context.Context, number, counterpartyID string) ([]document.OutboundDocument, error) {
	return r.list(r.db.WithContext(ctx).
		Where("number_key = ? AND counterparty_id = ? AND deleted_at IS NULL",
			document.NormalizeNumber(number), counterpartyID))
}

// FindOpenByCounterparty returns the counterparty's ACTIVE documents that still have pending quantity
func (r *GormOutboundDocumentRepository) FindOpenByCounterparty(ctx context.Context, counterpartyID string) ([]document.OutboundDocument, error) {
	return r.list(r.db.WithContext(ctx).
		Where("counterparty_id = ? AND status = ? AND resolved_quantity < quantity AND deleted_at IS NULL",
			counterpartyID, string(document.StatusActive)))
}

// FindWithPendingSuggestions returns documents holding at least one undecided SUGGESTED settlement
func (r *GormOutboundDocumentRepository) FindWithPendingSuggestions(ctx context.Context) ([]document.OutboundDocument, error) {
	pending := r.db.Model(&models.DocumentSettlementModel{}).
		Select("outbound_document_id").
		Where("linkage_mode = ? AND confirmed = ? AND rejected = ?", string(document.LinkSuggested), false, false)

	return r.list(r.db.WithContext(ctx).
		Where("id IN (?) AND deleted_at IS NULL", pending))
}

// Save inserts a new outbound document
func (r *GormOutboundDocumentRepository) Save(ctx context.Context, d *document.OutboundDocument) error {
	model := models.OutboundDocumentModelFromDomain(d)
	err := r.db.WithContext(ctx).Create(model).Error
	return translateError(err, "outbound document", d.DocumentNumber)
}

// SaveWithLock updates a document when the stored version is the one it was loaded with
func (r *GormOutboundDocumentRepository) SaveWithLock(ctx context.Context, d *document.OutboundDocument) error {
	model := models.OutboundDocumentModelFromDomain(d)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at", "created_by").
		Where("id = ? AND version = ?", d.ID, d.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return optimisticLockError("outbound document", d.DocumentNumber)
	}
	return nil
}

func (r *GormOutboundDocumentRepository) list(query *gorm.DB) ([]document.OutboundDocument, error) {
	var rows []models.OutboundDocumentModel
	if err := query.Order(fifoOrder).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]document.OutboundDocument, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Ensure GormOutboundDocumentRepository implements document.OutboundDocumentRepository
var _ document.OutboundDocumentRepository = (*GormOutboundDocumentRepository)(nil)
