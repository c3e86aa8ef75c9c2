package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/matching"
)

// InboundCandidateModel stores an inbound return document until a sweep picks it up.
// (IssuerCNPJ, Series, NumberKey) is unique so re-ingesting a file is harmless.
type InboundCandidateModel struct {
	BaseModel
	SettlementDocNumber string    `gorm:"type:varchar(50);not null"`
	NumberKey           string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_inbound_source,priority:3"`
	Series              string    `gorm:"type:varchar(10);not null;default:'';uniqueIndex:idx_inbound_source,priority:2"`
	FiscalKey           string    `gorm:"type:varchar(44);index"`
	EmissionDate        time.Time `gorm:"not null;index"`
	IssuerCNPJ          string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_inbound_source,priority:1"`
	IssuerName          string    `gorm:"type:varchar(200)"`
	Quantity            int       `gorm:"not null"`
	FreeTextAnnex       string    `gorm:"type:text"`
	ExternalRefID       string    `gorm:"type:varchar(100)"`
	Source              string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (InboundCandidateModel) TableName() string {
	return "inbound_candidates"
}

// ToDomain converts the stored row to a matching candidate
func (m *InboundCandidateModel) ToDomain() matching.InboundCandidate {
	return matching.InboundCandidate{
		SettlementDocNumber: m.SettlementDocNumber,
		Series:              m.Series,
		FiscalKey:           m.FiscalKey,
		EmissionDate:        m.EmissionDate,
		IssuerCNPJ:          m.IssuerCNPJ,
		IssuerName:          m.IssuerName,
		Quantity:            m.Quantity,
		FreeTextAnnex:       m.FreeTextAnnex,
		ExternalRefID:       m.ExternalRefID,
	}
}

// InboundCandidateModelFromDomain builds a row for cand read from source
func InboundCandidateModelFromDomain(cand matching.InboundCandidate, source string) *InboundCandidateModel {
	now := time.Now().UTC()
	return &InboundCandidateModel{
		BaseModel: BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		SettlementDocNumber: cand.SettlementDocNumber,
		NumberKey:           document.NormalizeNumber(cand.SettlementDocNumber),
		Series:              cand.Series,
		FiscalKey:           document.NormalizeFiscalKey(cand.FiscalKey),
		EmissionDate:        cand.EmissionDate,
		IssuerCNPJ:          cand.CounterpartyID(),
		IssuerName:          cand.IssuerName,
		Quantity:            cand.Quantity,
		FreeTextAnnex:       cand.FreeTextAnnex,
		ExternalRefID:       cand.ExternalRefID,
		Source:              source,
	}
}
