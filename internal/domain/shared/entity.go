package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything the ledger identifies by id
type Entity interface {
	GetID() uuid.UUID
}

// BaseEntity carries identity and timestamps. Timestamps are always UTC.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touched sets UpdatedAt to now
func (e *BaseEntity) Touched() {
	e.UpdatedAt = time.Now().UTC()
}

// Audited carries the actor columns every ledger record keeps
type Audited struct {
	CreatedBy string
	UpdatedBy string
}

// Touch records the actor of the latest mutation
func (a *Audited) Touch(actor string) {
	a.UpdatedBy = actor
	if a.CreatedBy == "" {
		a.CreatedBy = actor
	}
}
