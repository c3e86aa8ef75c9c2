package document

import (
	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeOutboundDocumentImported  = "OutboundDocumentImported"
	EventTypeOutboundDocumentCancelled = "OutboundDocumentCancelled"
	EventTypeOutboundDocumentSettled   = "OutboundDocumentSettled"
	EventTypeSettlementRegistered      = "SettlementRegistered"
	EventTypeSettlementConfirmed       = "SettlementConfirmed"
	EventTypeSettlementRejected        = "SettlementRejected"

	aggregateTypeDocument   = "OutboundDocument"
	aggregateTypeSettlement = "DocumentSettlement"
)

// OutboundDocumentImportedEvent is raised when a new outbound document is stored
type OutboundDocumentImportedEvent struct {
	shared.EventHeader
	DocumentID     uuid.UUID     `json:"document_id"`
	DocumentNumber string        `json:"document_number"`
	IssuingEntity  IssuingEntity `json:"issuing_entity"`
	CounterpartyID string        `json:"counterparty_id"`
	Quantity       int           `json:"quantity"`
}

// NewOutboundDocumentImportedEvent creates a new OutboundDocumentImportedEvent
func NewOutboundDocumentImportedEvent(d *OutboundDocument, actor string) *OutboundDocumentImportedEvent {
	return &OutboundDocumentImportedEvent{
		EventHeader:    shared.NewEventHeader(EventTypeOutboundDocumentImported, aggregateTypeDocument, d.ID, actor),
		DocumentID:     d.ID,
		DocumentNumber: d.DocumentNumber,
		IssuingEntity:  d.IssuingEntity,
		CounterpartyID: d.CounterpartyID,
		Quantity:       d.Quantity,
	}
}

// OutboundDocumentCancelledEvent is raised when a document is cancelled
type OutboundDocumentCancelledEvent struct {
	shared.EventHeader
	DocumentID       uuid.UUID `json:"document_id"`
	DocumentNumber   string    `json:"document_number"`
	Reason           string    `json:"reason"`
	ResolvedQuantity int       `json:"resolved_quantity"`
}

// NewOutboundDocumentCancelledEvent creates a new OutboundDocumentCancelledEvent
func NewOutboundDocumentCancelledEvent(d *OutboundDocument, actor string) *OutboundDocumentCancelledEvent {
	return &OutboundDocumentCancelledEvent{
		EventHeader:      shared.NewEventHeader(EventTypeOutboundDocumentCancelled, aggregateTypeDocument, d.ID, actor),
		DocumentID:       d.ID,
		DocumentNumber:   d.DocumentNumber,
		Reason:           d.CancelReason,
		ResolvedQuantity: d.ResolvedQuantity,
	}
}

// OutboundDocumentSettledEvent is raised when resolved quantity reaches the document quantity
type OutboundDocumentSettledEvent struct {
	shared.EventHeader
	DocumentID     uuid.UUID `json:"document_id"`
	DocumentNumber string    `json:"document_number"`
	CounterpartyID string    `json:"counterparty_id"`
	Quantity       int       `json:"quantity"`
}

// NewOutboundDocumentSettledEvent creates a new OutboundDocumentSettledEvent
func NewOutboundDocumentSettledEvent(d *OutboundDocument, actor string) *OutboundDocumentSettledEvent {
	return &OutboundDocumentSettledEvent{
		EventHeader:    shared.NewEventHeader(EventTypeOutboundDocumentSettled, aggregateTypeDocument, d.ID, actor),
		DocumentID:     d.ID,
		DocumentNumber: d.DocumentNumber,
		CounterpartyID: d.CounterpartyID,
		Quantity:       d.Quantity,
	}
}

// SettlementRegisteredEvent is raised when a settlement is created in any mode
type SettlementRegisteredEvent struct {
	shared.EventHeader
	SettlementID       uuid.UUID      `json:"settlement_id"`
	OutboundDocumentID uuid.UUID      `json:"outbound_document_id"`
	Kind               SettlementKind `json:"kind"`
	LinkageMode        LinkageMode    `json:"linkage_mode"`
	Quantity           int            `json:"quantity"`
	MatchScore         int            `json:"match_score"`
}

// NewSettlementRegisteredEvent creates a new SettlementRegisteredEvent
func NewSettlementRegisteredEvent(s *DocumentSettlement, actor string) *SettlementRegisteredEvent {
	return &SettlementRegisteredEvent{
		EventHeader:        shared.NewEventHeader(EventTypeSettlementRegistered, aggregateTypeSettlement, s.ID, actor),
		SettlementID:       s.ID,
		OutboundDocumentID: s.OutboundDocumentID,
		Kind:               s.Kind,
		LinkageMode:        s.LinkageMode,
		Quantity:           s.Quantity,
		MatchScore:         s.MatchScore,
	}
}

// SettlementConfirmedEvent is raised when a suggestion is accepted
type SettlementConfirmedEvent struct {
	shared.EventHeader
	SettlementID       uuid.UUID `json:"settlement_id"`
	OutboundDocumentID uuid.UUID `json:"outbound_document_id"`
	Quantity           int       `json:"quantity"`
}

// NewSettlementConfirmedEvent creates a new SettlementConfirmedEvent
func NewSettlementConfirmedEvent(s *DocumentSettlement, actor string) *SettlementConfirmedEvent {
	return &SettlementConfirmedEvent{
		EventHeader:        shared.NewEventHeader(EventTypeSettlementConfirmed, aggregateTypeSettlement, s.ID, actor),
		SettlementID:       s.ID,
		OutboundDocumentID: s.OutboundDocumentID,
		Quantity:           s.Quantity,
	}
}

// SettlementRejectedEvent is raised when a suggestion is discarded
type SettlementRejectedEvent struct {
	shared.EventHeader
	SettlementID       uuid.UUID `json:"settlement_id"`
	OutboundDocumentID uuid.UUID `json:"outbound_document_id"`
	Reason             string    `json:"reason"`
}

// NewSettlementRejectedEvent creates a new SettlementRejectedEvent
func NewSettlementRejectedEvent(s *DocumentSettlement, actor string) *SettlementRejectedEvent {
	return &SettlementRejectedEvent{
		EventHeader:        shared.NewEventHeader(EventTypeSettlementRejected, aggregateTypeSettlement, s.ID, actor),
		SettlementID:       s.ID,
		OutboundDocumentID: s.OutboundDocumentID,
		Reason:             s.RejectReason,
	}
}
