package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// Outcome of an audited command
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Action names for audited commands
const (
	ActionImportOutbound     = "IMPORT_OUTBOUND"
	ActionCancelOutbound     = "CANCEL_OUTBOUND"
	ActionRecomputeOutbound  = "RECOMPUTE_OUTBOUND"
	ActionCreateCredit       = "CREATE_CREDIT"
	ActionApplySolution      = "APPLY_SOLUTION"
	ActionRegisterSettlement = "REGISTER_SETTLEMENT"
	ActionConfirmSettlement  = "CONFIRM_SETTLEMENT"
	ActionRejectSettlement   = "REJECT_SETTLEMENT"
)

// Entity types referenced by audit entries
const (
	EntityCredit     = "Credit"
	EntityDocument   = "OutboundDocument"
	EntitySettlement = "DocumentSettlement"
)

// Entry is one append-only compliance record of a mutating command
type Entry struct {
	ID             uuid.UUID
	OccurredAt     time.Time
	Actor          string
	Action         string
	EntityType     string
	EntityID       uuid.UUID
	Outcome        Outcome
	Quantity       int
	QuantityBefore *int
	QuantityAfter  *int
	ErrorCode      string
	Message        string
}

// NewEntry starts an entry for action on an entity
func NewEntry(action, entityType string, entityID uuid.UUID, actor string) *Entry {
	return &Entry{
		ID:         uuid.New(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    OutcomeSuccess,
	}
}

// WithQuantities records the quantity moved and the balance around it
func (e *Entry) WithQuantities(quantity, before, after int) *Entry {
	e.Quantity = quantity
	e.QuantityBefore = &before
	e.QuantityAfter = &after
	return e
}

// Failed marks the entry as a failed attempt caused by err
func (e *Entry) Failed(err error) *Entry {
	e.Outcome = OutcomeFailure
	e.ErrorCode = shared.CodeOf(err)
	if e.ErrorCode == "" {
		e.ErrorCode = "INTERNAL_ERROR"
	}
	e.Message = err.Error()
	return e
}

// Filter narrows audit queries
type Filter struct {
	shared.Filter
	EntityID   *uuid.UUID
	EntityType string
	Action     string
	Outcome    Outcome
	From       *time.Time
	To         *time.Time
}

// Repository stores audit entries
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	// Find returns entries newest first
	Find(ctx context.Context, filter Filter) ([]Entry, int64, error)
}
