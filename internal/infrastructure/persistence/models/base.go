package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking and the actor columns.
type AggregateModel struct {
	BaseModel
	Version   int    `gorm:"not null;default:1"`
	CreatedBy string `gorm:"type:varchar(100)"`
	UpdatedBy string `gorm:"type:varchar(100)"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot, audited shared.Audited) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
	m.CreatedBy = audited.CreatedBy
	m.UpdatedBy = audited.UpdatedBy
}

// AggregateRoot rebuilds the domain aggregate root fields
func (m *AggregateModel) AggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.BaseModel.ToDomain(),
		Version:    m.Version,
	}
}

// Audited rebuilds the domain actor columns
func (m *AggregateModel) Audited() shared.Audited {
	return shared.Audited{CreatedBy: m.CreatedBy, UpdatedBy: m.UpdatedBy}
}
