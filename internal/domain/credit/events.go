package credit

import (
	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeCreditCreated         = "CreditCreated"
	EventTypeCreditSolutionApplied = "CreditSolutionApplied"
	EventTypeCreditClosed          = "CreditClosed"
	EventTypeBalanceTransferred    = "BalanceTransferred"

	aggregateType = "Credit"
)

// CreditCreatedEvent is raised when a credit is minted or a shell is opened
type CreditCreatedEvent struct {
	shared.EventHeader
	CreditID         uuid.UUID        `json:"credit_id"`
	SourceDocumentID *uuid.UUID       `json:"source_document_id,omitempty"`
	CounterpartyKind CounterpartyKind `json:"counterparty_kind"`
	CounterpartyID   string           `json:"counterparty_id"`
	Quantity         int              `json:"quantity"`
}

// NewCreditCreatedEvent creates a new CreditCreatedEvent
func NewCreditCreatedEvent(c *Credit, actor string) *CreditCreatedEvent {
	return &CreditCreatedEvent{
		EventHeader:      shared.NewEventHeader(EventTypeCreditCreated, aggregateType, c.ID, actor),
		CreditID:         c.ID,
		SourceDocumentID: c.SourceDocumentID,
		CounterpartyKind: c.CounterpartyKind,
		CounterpartyID:   c.CounterpartyID,
		Quantity:         c.OriginalQuantity,
	}
}

// CreditSolutionAppliedEvent is raised when a solution discharges balance
type CreditSolutionAppliedEvent struct {
	shared.EventHeader
	CreditID      uuid.UUID    `json:"credit_id"`
	SolutionID    uuid.UUID    `json:"solution_id"`
	Kind          SolutionKind `json:"kind"`
	Quantity      int          `json:"quantity"`
	BalanceBefore int          `json:"balance_before"`
	BalanceAfter  int          `json:"balance_after"`
}

// NewCreditSolutionAppliedEvent creates a new CreditSolutionAppliedEvent
func NewCreditSolutionAppliedEvent(c *Credit, sol *CreditSolution, actor string) *CreditSolutionAppliedEvent {
	return &CreditSolutionAppliedEvent{
		EventHeader:   shared.NewEventHeader(EventTypeCreditSolutionApplied, aggregateType, c.ID, actor),
		CreditID:      c.ID,
		SolutionID:    sol.ID,
		Kind:          sol.Kind,
		Quantity:      sol.Quantity,
		BalanceBefore: sol.BalanceBefore,
		BalanceAfter:  sol.BalanceAfter,
	}
}

// CreditClosedEvent is raised when a credit's balance reaches zero
type CreditClosedEvent struct {
	shared.EventHeader
	CreditID       uuid.UUID `json:"credit_id"`
	CounterpartyID string    `json:"counterparty_id"`
	Original       int       `json:"original_quantity"`
}

// NewCreditClosedEvent creates a new CreditClosedEvent
func NewCreditClosedEvent(c *Credit, actor string) *CreditClosedEvent {
	return &CreditClosedEvent{
		EventHeader:    shared.NewEventHeader(EventTypeCreditClosed, aggregateType, c.ID, actor),
		CreditID:       c.ID,
		CounterpartyID: c.CounterpartyID,
		Original:       c.OriginalQuantity,
	}
}

// BalanceTransferredEvent is raised on the destination of a substitution
type BalanceTransferredEvent struct {
	shared.EventHeader
	SolutionID          uuid.UUID `json:"solution_id"`
	SourceCreditID      uuid.UUID `json:"source_credit_id"`
	DestinationCreditID uuid.UUID `json:"destination_credit_id"`
	Quantity            int       `json:"quantity"`
}

// NewBalanceTransferredEvent creates a new BalanceTransferredEvent
func NewBalanceTransferredEvent(sol *CreditSolution, dest *Credit, actor string) *BalanceTransferredEvent {
	return &BalanceTransferredEvent{
		EventHeader:         shared.NewEventHeader(EventTypeBalanceTransferred, aggregateType, dest.ID, actor),
		SolutionID:          sol.ID,
		SourceCreditID:      sol.CreditID,
		DestinationCreditID: dest.ID,
		Quantity:            sol.Quantity,
	}
}
