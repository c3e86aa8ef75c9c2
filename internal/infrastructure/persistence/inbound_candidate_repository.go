package persistence

import (
	"context"
	"time"

	"github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInboundCandidateRepository stores ingested inbound documents and feeds them to sweeps
type GormInboundCandidateRepository struct {
	db *gorm.DB
}

// NewGormInboundCandidateRepository creates a new GormInboundCandidateRepository
func NewGormInboundCandidateRepository(db *gorm.DB) *GormInboundCandidateRepository {
	return &GormInboundCandidateRepository{db: db}
}

// SaveBatch stores candidates read from source, skipping ones already stored.
// It returns how many rows were inserted.
func (r *GormInboundCandidateRepository) SaveBatch(ctx context.Context, cands []matching.InboundCandidate, source string) (int, error) {
	if len(cands) == 0 {
		return 0, nil
	}
	rows := make([]*models.InboundCandidateModel, len(cands))
	for i, c := range cands {
		rows[i] = models.InboundCandidateModelFromDomain(c, source)
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, 200)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// Fetch returns candidates emitted on the days from through to, oldest first
func (r *GormInboundCandidateRepository) Fetch(ctx context.Context, from, to time.Time) ([]matching.InboundCandidate, error) {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)

	var rows []models.InboundCandidateModel
	if err := r.db.WithContext(ctx).
		Where("emission_date >= ? AND emission_date < ?", start, end).
		Order("emission_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]matching.InboundCandidate, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
