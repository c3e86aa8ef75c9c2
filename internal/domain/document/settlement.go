package document

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// SettlementKind is the type of event that settles an outbound document
type SettlementKind string

const (
	SettlementReturn       SettlementKind = "RETURN"
	SettlementRefusal      SettlementKind = "REFUSAL"
	SettlementCancellation SettlementKind = "CANCELLATION"
	SettlementCreditNote   SettlementKind = "CREDIT_NOTE"
)

// IsValid checks if the kind is a known SettlementKind
func (k SettlementKind) IsValid() bool {
	switch k {
	case SettlementReturn, SettlementRefusal, SettlementCancellation, SettlementCreditNote:
		return true
	}
	return false
}

// String returns the string representation of SettlementKind
func (k SettlementKind) String() string {
	return string(k)
}

// LinkageMode records how a settlement was linked to its document
type LinkageMode string

const (
	LinkAutomatic LinkageMode = "AUTOMATIC"
	LinkManual    LinkageMode = "MANUAL"
	LinkSuggested LinkageMode = "SUGGESTED"
)

// IsValid checks if the mode is a known LinkageMode
func (m LinkageMode) IsValid() bool {
	switch m {
	case LinkAutomatic, LinkManual, LinkSuggested:
		return true
	}
	return false
}

// String returns the string representation of LinkageMode
func (m LinkageMode) String() string {
	return string(m)
}

// ConfirmsImmediately is true for modes that affect the ledger on creation
func (m LinkageMode) ConfirmsImmediately() bool {
	return m == LinkAutomatic || m == LinkManual
}

// AutomaticScore is the score stamped on automatic links
const AutomaticScore = 100

// SettlementDocument is the fiscal document behind a settlement, when there is one
type SettlementDocument struct {
	Number     string
	Series     string
	FiscalKey  string
	Date       *time.Time
	IssuerCNPJ string
	IssuerName string
}

// IsEmpty reports whether no document metadata was provided
func (s SettlementDocument) IsEmpty() bool {
	return s.Number == "" && s.Series == "" && s.FiscalKey == "" && s.Date == nil &&
		s.IssuerCNPJ == "" && s.IssuerName == ""
}

// SettlementSpec holds the fields needed to create a settlement
type SettlementSpec struct {
	OutboundDocumentID uuid.UUID
	Kind               SettlementKind
	Quantity           int
	Document           SettlementDocument
	LinkageMode        LinkageMode
	MatchScore         int
	ExternalRefID      string
}

// DocumentSettlement is one settling event against an OutboundDocument.
// Confirmed and Rejected are one-way and mutually exclusive.
type DocumentSettlement struct {
	shared.BaseAggregateRoot
	shared.Audited
	OutboundDocumentID uuid.UUID
	Kind               SettlementKind
	Quantity           int
	Document           SettlementDocument
	LinkageMode        LinkageMode
	MatchScore         int
	Confirmed          bool
	ConfirmedBy        string
	ConfirmedAt        *time.Time
	Rejected           bool
	RejectReason       string
	RejectedBy         string
	RejectedAt         *time.Time
	ExternalRefID      string
}

// NewDocumentSettlement validates spec and builds a settlement.
// AUTOMATIC and MANUAL settlements are born confirmed; SUGGESTED ones are pending.
func NewDocumentSettlement(spec SettlementSpec, actor string) (*DocumentSettlement, error) {
	if spec.OutboundDocumentID == uuid.Nil {
		return nil, shared.Validation("outbound document id is required")
	}
	if !spec.Kind.IsValid() {
		return nil, shared.Validation("settlement kind %q is not valid", spec.Kind)
	}
	if !spec.LinkageMode.IsValid() {
		return nil, shared.Validation("linkage mode %q is not valid", spec.LinkageMode)
	}
	if spec.Quantity <= 0 {
		return nil, shared.Validation("quantity must be positive, got %d", spec.Quantity)
	}
	if spec.MatchScore < 0 || spec.MatchScore > 100 {
		return nil, shared.Validation("match score must be between 0 and 100, got %d", spec.MatchScore)
	}

	doc := spec.Document
	if spec.Kind == SettlementRefusal {
		doc = SettlementDocument{}
	}
	doc.Number = strings.TrimSpace(doc.Number)
	doc.FiscalKey = NormalizeFiscalKey(doc.FiscalKey)
	doc.IssuerCNPJ = NormalizeCNPJ(doc.IssuerCNPJ)

	s := &DocumentSettlement{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		OutboundDocumentID: spec.OutboundDocumentID,
		Kind:               spec.Kind,
		Quantity:           spec.Quantity,
		Document:           doc,
		LinkageMode:        spec.LinkageMode,
		ExternalRefID:      spec.ExternalRefID,
	}
	switch spec.LinkageMode {
	case LinkAutomatic:
		s.MatchScore = AutomaticScore
	case LinkSuggested:
		s.MatchScore = spec.MatchScore
	}
	s.Touch(actor)

	if spec.LinkageMode.ConfirmsImmediately() {
		now := s.CreatedAt
		s.Confirmed = true
		s.ConfirmedBy = actor
		s.ConfirmedAt = &now
	}

	s.Raise(NewSettlementRegisteredEvent(s, actor))
	return s, nil
}

// IsPendingSuggestion is true for SUGGESTED settlements awaiting a decision
func (s *DocumentSettlement) IsPendingSuggestion() bool {
	return s.LinkageMode == LinkSuggested && !s.Confirmed && !s.Rejected
}

// CountsTowardResolved is true when the quantity is part of the document's resolved total
func (s *DocumentSettlement) CountsTowardResolved() bool {
	return s.Confirmed && !s.Rejected
}

// SameSource reports whether the settlement came from the given inbound document
func (s *DocumentSettlement) SameSource(number, issuerCNPJ string) bool {
	if s.Document.Number == "" {
		return false
	}
	return NormalizeNumber(s.Document.Number) == NormalizeNumber(number) &&
		s.Document.IssuerCNPJ == NormalizeCNPJ(issuerCNPJ)
}

// Confirm accepts a pending suggestion
func (s *DocumentSettlement) Confirm(actor string) error {
	if s.LinkageMode != LinkSuggested {
		return shared.InvalidState("settlement %s is %s and cannot be confirmed", s.ID, s.LinkageMode)
	}
	if s.Confirmed {
		return shared.InvalidState("settlement %s is already confirmed", s.ID)
	}
	if s.Rejected {
		return shared.InvalidState("settlement %s was rejected", s.ID)
	}

	now := time.Now().UTC()
	s.Confirmed = true
	s.ConfirmedBy = actor
	s.ConfirmedAt = &now
	s.Touched()
	s.Touch(actor)
	s.IncrementVersion()

	s.Raise(NewSettlementConfirmedEvent(s, actor))
	return nil
}

// Reject discards a settlement that has not been confirmed
func (s *DocumentSettlement) Reject(reason, actor string) error {
	if s.Confirmed {
		return shared.InvalidState("settlement %s is confirmed and cannot be rejected", s.ID)
	}
	if s.Rejected {
		return shared.InvalidState("settlement %s is already rejected", s.ID)
	}
	if strings.TrimSpace(reason) == "" {
		return shared.Validation("rejection reason is required")
	}

	now := time.Now().UTC()
	s.Rejected = true
	s.RejectReason = reason
	s.RejectedBy = actor
	s.RejectedAt = &now
	s.Touched()
	s.Touch(actor)
	s.IncrementVersion()

	s.Raise(NewSettlementRejectedEvent(s, actor))
	return nil
}

// ConfirmedTotal sums the quantities that count toward a resolved total
func ConfirmedTotal(settlements []DocumentSettlement) int {
	total := 0
	for i := range settlements {
		if settlements[i].CountsTowardResolved() {
			total += settlements[i].Quantity
		}
	}
	return total
}
