package credit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SolutionKind is the way a credit balance gets discharged
type SolutionKind string

const (
	SolutionWriteOff     SolutionKind = "WRITE_OFF"
	SolutionSale         SolutionKind = "SALE"
	SolutionRecovery     SolutionKind = "RECOVERY"
	SolutionSubstitution SolutionKind = "SUBSTITUTION"
)

// IsValid checks if the kind is a known SolutionKind
func (k SolutionKind) IsValid() bool {
	switch k {
	case SolutionWriteOff, SolutionSale, SolutionRecovery, SolutionSubstitution:
		return true
	}
	return false
}

// String returns the string representation of SolutionKind
func (k SolutionKind) String() string {
	return string(k)
}

// IsTransfer returns true for kinds that move balance instead of consuming it
func (k SolutionKind) IsTransfer() bool {
	return k == SolutionSubstitution
}

// Payload carries the kind-specific fields of a CreditSolution.
// The set of implementations is closed to this package.
type Payload interface {
	Kind() SolutionKind
	validate() error
}

// WriteOffPayload records a balance forgiven or lost
type WriteOffPayload struct {
	Reason            string `json:"reason"`
	CustomerConfirmed bool   `json:"customer_confirmed"`
}

// Kind implements Payload
func (WriteOffPayload) Kind() SolutionKind { return SolutionWriteOff }

func (p WriteOffPayload) validate() error {
	if strings.TrimSpace(p.Reason) == "" {
		return shared.Validation("write-off reason is required")
	}
	return nil
}

// SalePayload records pallets sold to the counterparty instead of returned.
// One sale document may settle several credits.
type SalePayload struct {
	SaleDocumentNumber string          `json:"sale_document_number"`
	SaleDate           time.Time       `json:"sale_date"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	BuyerID            string          `json:"buyer_id,omitempty"`
	BuyerName          string          `json:"buyer_name,omitempty"`
}

// Kind implements Payload
func (SalePayload) Kind() SolutionKind { return SolutionSale }

func (p SalePayload) validate() error {
	if strings.TrimSpace(p.SaleDocumentNumber) == "" {
		return shared.Validation("sale document number is required")
	}
	if p.UnitPrice.IsNegative() {
		return shared.Validation("sale unit price cannot be negative")
	}
	return nil
}

// RecoveryPayload records pallets physically brought back
type RecoveryPayload struct {
	RecoveredAt time.Time `json:"recovered_at"`
	Location    string    `json:"location,omitempty"`
	DeliveredBy string    `json:"delivered_by,omitempty"`
}

// Kind implements Payload
func (RecoveryPayload) Kind() SolutionKind { return SolutionRecovery }

func (p RecoveryPayload) validate() error {
	if p.RecoveredAt.IsZero() {
		return shared.Validation("recovery date is required")
	}
	return nil
}

// SubstitutionPayload moves balance to another credit (change of responsible party)
type SubstitutionPayload struct {
	DestinationCreditID uuid.UUID `json:"destination_credit_id"`
	Reason              string    `json:"reason"`
	NewDocumentNumber   string    `json:"new_document_number,omitempty"`
}

// Kind implements Payload
func (SubstitutionPayload) Kind() SolutionKind { return SolutionSubstitution }

func (p SubstitutionPayload) validate() error {
	if p.DestinationCreditID == uuid.Nil {
		return shared.Validation("substitution destination credit is required")
	}
	if strings.TrimSpace(p.Reason) == "" {
		return shared.Validation("substitution reason is required")
	}
	return nil
}

// CreditSolution is one immutable discharge event against a Credit
type CreditSolution struct {
	shared.BaseEntity
	CreditID      uuid.UUID
	Kind          SolutionKind
	Quantity      int
	BalanceBefore int
	BalanceAfter  int
	Payload       Payload
	CreatedBy     string
}

// NewCreditSolution validates and builds a solution; it does not touch any balance
func NewCreditSolution(creditID uuid.UUID, quantity int, payload Payload, actor string) (*CreditSolution, error) {
	if creditID == uuid.Nil {
		return nil, shared.Validation("credit id is required")
	}
	if payload == nil {
		return nil, shared.Validation("solution payload is required")
	}
	if quantity <= 0 {
		return nil, shared.Validation("quantity must be positive, got %d", quantity)
	}
	if err := payload.validate(); err != nil {
		return nil, err
	}
	if sub, ok := payload.(SubstitutionPayload); ok && sub.DestinationCreditID == creditID {
		return nil, shared.Validation("a credit cannot substitute into itself")
	}

	return &CreditSolution{
		BaseEntity: shared.NewBaseEntity(),
		CreditID:   creditID,
		Kind:       payload.Kind(),
		Quantity:   quantity,
		Payload:    payload,
		CreatedBy:  actor,
	}, nil
}

// DestinationCreditID returns the transfer target for substitutions
func (s *CreditSolution) DestinationCreditID() (uuid.UUID, bool) {
	sub, ok := s.Payload.(SubstitutionPayload)
	if !ok {
		return uuid.Nil, false
	}
	return sub.DestinationCreditID, true
}

// SaleValue returns unit price × quantity for sales, zero otherwise
func (s *CreditSolution) SaleValue() decimal.Decimal {
	sale, ok := s.Payload.(SalePayload)
	if !ok {
		return decimal.Zero
	}
	return sale.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// EncodePayload serialises a payload for storage next to its kind
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil solution payload")
	}
	return json.Marshal(p)
}

// DecodePayload restores the payload variant stored for kind
func DecodePayload(kind SolutionKind, data []byte) (Payload, error) {
	switch kind {
	case SolutionWriteOff:
		var p WriteOffPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case SolutionSale:
		var p SalePayload
		err := json.Unmarshal(data, &p)
		return p, err
	case SolutionRecovery:
		var p RecoveryPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case SolutionSubstitution:
		var p SubstitutionPayload
		err := json.Unmarshal(data, &p)
		return p, err
	}
	return nil, fmt.Errorf("unknown solution kind %q", kind)
}
