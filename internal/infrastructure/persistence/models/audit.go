package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
)

// AuditEntryModel is the persistence model for audit trail entries
type AuditEntryModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	OccurredAt     time.Time `gorm:"not null;index"`
	Actor          string    `gorm:"type:varchar(100);not null"`
	Action         string    `gorm:"type:varchar(50);not null;index"`
	EntityType     string    `gorm:"type:varchar(50);not null"`
	EntityID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Outcome        string    `gorm:"type:varchar(20);not null"`
	Quantity       int       `gorm:"not null;default:0"`
	QuantityBefore *int
	QuantityAfter  *int
	ErrorCode      string `gorm:"type:varchar(50)"`
	Message        string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain audit Entry
func (m *AuditEntryModel) ToDomain() *audit.Entry {
	return &audit.Entry{
		ID:             m.ID,
		OccurredAt:     m.OccurredAt,
		Actor:          m.Actor,
		Action:         m.Action,
		EntityType:     m.EntityType,
		EntityID:       m.EntityID,
		Outcome:        audit.Outcome(m.Outcome),
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		ErrorCode:      m.ErrorCode,
		Message:        m.Message,
	}
}

// AuditEntryModelFromDomain creates a new persistence model from a domain audit Entry
func AuditEntryModelFromDomain(e *audit.Entry) *AuditEntryModel {
	return &AuditEntryModel{
		ID:             e.ID,
		OccurredAt:     e.OccurredAt,
		Actor:          e.Actor,
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Outcome:        string(e.Outcome),
		Quantity:       e.Quantity,
		QuantityBefore: e.QuantityBefore,
		QuantityAfter:  e.QuantityAfter,
		ErrorCode:      e.ErrorCode,
		Message:        e.Message,
	}
}
