package document

import (
	"strings"
	"time"
	"unicode"

	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// IssuingEntity is the legal entity that emitted an outbound document
type IssuingEntity string

const (
	IssuerHeadquarters IssuingEntity = "HEADQUARTERS"
	IssuerDistribution IssuingEntity = "DISTRIBUTION"
	IssuerLogistics    IssuingEntity = "LOGISTICS"
)

// IsValid checks if the issuing entity is known
func (e IssuingEntity) IsValid() bool {
	switch e {
	case IssuerHeadquarters, IssuerDistribution, IssuerLogistics:
		return true
	}
	return false
}

// String returns the string representation of IssuingEntity
func (e IssuingEntity) String() string {
	return string(e)
}

// Status is the lifecycle state of an outbound document
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSettled   Status = "SETTLED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSettled, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// NormalizeNumber strips everything but digits and drops leading zeros,
// so "000100", "100" and "1.00" compare equal. Non-numeric numbers are
// upper-cased and trimmed instead.
func NormalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	var digits strings.Builder
	for _, r := range number {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return strings.ToUpper(number)
	}
	n := strings.TrimLeft(digits.String(), "0")
	if n == "" {
		return "0"
	}
	return n
}

// OutboundSpec holds the fields of an imported outbound document
type OutboundSpec struct {
	DocumentNumber   string
	Series           string
	FiscalKey        string
	EmissionDate     time.Time
	IssuingEntity    IssuingEntity
	CounterpartyKind credit.CounterpartyKind
	CounterpartyID   string
	CounterpartyName string
	CarrierID        string
	CarrierName      string
	Region           string
	RouteFlag        bool
	Quantity         int
	UnitValue        decimal.Decimal
	TotalValue       decimal.Decimal
}

// OutboundDocument is a fiscal document that shipped pallets to a counterparty.
// ResolvedQuantity is the sum of confirmed, non-rejected settlements.
type OutboundDocument struct {
	shared.BaseAggregateRoot
	shared.Audited
	DocumentNumber   string
	NumberKey        string
	Series           string
	FiscalKey        string
	EmissionDate     time.Time
	IssuingEntity    IssuingEntity
	CounterpartyKind credit.CounterpartyKind
	CounterpartyID   string
	CounterpartyName string
	CarrierID        string
	CarrierName      string
	Region           string
	RouteFlag        bool
	Quantity         int
	UnitValue        decimal.Decimal
	TotalValue       decimal.Decimal
	Status           Status
	ResolvedQuantity int
	CancelReason     string
	CancelledBy      string
	CancelledAt      *time.Time
	DeletedAt        *time.Time
}

// NewOutboundDocument validates an import record and creates an ACTIVE document
func NewOutboundDocument(spec OutboundSpec, actor string) (*OutboundDocument, error) {
	if strings.TrimSpace(spec.DocumentNumber) == "" {
		return nil, shared.Validation("document number is required")
	}
	if spec.Quantity <= 0 {
		return nil, shared.Validation("document quantity must be positive, got %d", spec.Quantity)
	}
	if spec.EmissionDate.IsZero() {
		return nil, shared.Validation("emission date is required")
	}
	if !spec.IssuingEntity.IsValid() {
		return nil, shared.Validation("issuing entity %q is not valid", spec.IssuingEntity)
	}
	if !spec.CounterpartyKind.IsValid() {
		return nil, shared.Validation("counterparty kind %q is not valid", spec.CounterpartyKind)
	}
	if strings.TrimSpace(spec.CounterpartyID) == "" {
		return nil, shared.Validation("counterparty id is required")
	}
	if spec.UnitValue.IsNegative() || spec.TotalValue.IsNegative() {
		return nil, shared.Validation("document values cannot be negative")
	}

	total := spec.TotalValue
	if total.IsZero() && !spec.UnitValue.IsZero() {
		total = spec.UnitValue.Mul(decimal.NewFromInt(int64(spec.Quantity)))
	}

	doc := &OutboundDocument{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DocumentNumber:    strings.TrimSpace(spec.DocumentNumber),
		NumberKey:         NormalizeNumber(spec.DocumentNumber),
		Series:            strings.TrimSpace(spec.Series),
		FiscalKey:         NormalizeFiscalKey(spec.FiscalKey),
		EmissionDate:      spec.EmissionDate.UTC(),
		IssuingEntity:     spec.IssuingEntity,
		CounterpartyKind:  spec.CounterpartyKind,
		CounterpartyID:    NormalizeCNPJ(spec.CounterpartyID),
		CounterpartyName:  spec.CounterpartyName,
		CarrierID:         NormalizeCNPJ(spec.CarrierID),
		CarrierName:       spec.CarrierName,
		Region:            spec.Region,
		RouteFlag:         spec.RouteFlag,
		Quantity:          spec.Quantity,
		UnitValue:         spec.UnitValue,
		TotalValue:        total,
		Status:            StatusActive,
	}
	doc.Touch(actor)

	doc.Raise(NewOutboundDocumentImportedEvent(doc, actor))
	return doc, nil
}

// NormalizeFiscalKey keeps only the digits of an access key
func NormalizeFiscalKey(key string) string {
	return digitsOnly(key)
}

// NormalizeCNPJ strips punctuation from a tax id
func NormalizeCNPJ(id string) string {
	if d := digitsOnly(id); d != "" {
		return d
	}
	return strings.TrimSpace(id)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CreditSource returns the fields a Credit is minted from
func (d *OutboundDocument) CreditSource() credit.SourceDocument {
	return credit.SourceDocument{
		ID:               d.ID,
		Number:           d.DocumentNumber,
		Quantity:         d.Quantity,
		EmissionDate:     d.EmissionDate,
		CounterpartyKind: d.CounterpartyKind,
		CounterpartyID:   d.CounterpartyID,
		CounterpartyName: d.CounterpartyName,
		Region:           d.Region,
		RouteFlag:        d.RouteFlag,
	}
}

// PendingQuantity returns the quantity still awaiting settlement
func (d *OutboundDocument) PendingQuantity() int {
	if p := d.Quantity - d.ResolvedQuantity; p > 0 {
		return p
	}
	return 0
}

// IsCancelled reports whether the document was cancelled
func (d *OutboundDocument) IsCancelled() bool {
	return d.Status == StatusCancelled
}

// IsDeleted reports whether the document was soft-deleted
func (d *OutboundDocument) IsDeleted() bool {
	return d.DeletedAt != nil
}

// IsMatchable reports whether inbound documents may still settle this document
func (d *OutboundDocument) IsMatchable() bool {
	return d.Status == StatusActive && !d.IsDeleted() && d.PendingQuantity() > 0
}

// CanAcceptSettlement validates a settlement of quantity against this document
func (d *OutboundDocument) CanAcceptSettlement(quantity int) error {
	if d.IsDeleted() {
		return shared.NotFound("outbound document", d.ID)
	}
	if d.IsCancelled() {
		return shared.InvalidState("outbound document %s is cancelled", d.DocumentNumber)
	}
	if quantity <= 0 {
		return shared.Validation("quantity must be positive, got %d", quantity)
	}
	if pending := d.PendingQuantity(); quantity > pending {
		return shared.QuantityExceeds(quantity, pending, "pending quantity")
	}
	return nil
}

// ApplyConfirmed books a confirmed settlement quantity and recomputes status
func (d *OutboundDocument) ApplyConfirmed(quantity int, actor string) error {
	if err := d.CanAcceptSettlement(quantity); err != nil {
		return err
	}
	d.ResolvedQuantity += quantity
	d.refreshStatus(actor)
	return nil
}

// Recompute resets ResolvedQuantity to the confirmed total and derives status.
// It reports whether anything changed.
func (d *OutboundDocument) Recompute(confirmedTotal int, actor string) (bool, error) {
	if confirmedTotal < 0 {
		return false, shared.Validation("confirmed total cannot be negative")
	}
	if confirmedTotal > d.Quantity {
		return false, shared.InvalidState("confirmed settlements (%d) exceed document %s quantity (%d)",
			confirmedTotal, d.DocumentNumber, d.Quantity)
	}
	if confirmedTotal == d.ResolvedQuantity && d.Status == d.statusFor(confirmedTotal) {
		return false, nil
	}
	d.ResolvedQuantity = confirmedTotal
	d.refreshStatus(actor)
	return true, nil
}

func (d *OutboundDocument) statusFor(resolved int) Status {
	switch {
	case d.IsCancelled():
		return StatusCancelled
	case resolved >= d.Quantity:
		return StatusSettled
	default:
		return StatusActive
	}
}

func (d *OutboundDocument) refreshStatus(actor string) {
	previous := d.Status
	d.Status = d.statusFor(d.ResolvedQuantity)
	d.Touched()
	d.Touch(actor)
	d.IncrementVersion()

	if previous != StatusSettled && d.Status == StatusSettled {
		d.Raise(NewOutboundDocumentSettledEvent(d, actor))
	}
}

// Cancel freezes the document against future settlements. Cancelling an already
// cancelled document is a no-op that returns false.
func (d *OutboundDocument) Cancel(reason, actor string) (bool, error) {
	if d.IsCancelled() {
		return false, nil
	}
	if strings.TrimSpace(reason) == "" {
		return false, shared.Validation("cancellation reason is required")
	}
	if strings.TrimSpace(actor) == "" {
		return false, shared.Validation("cancellation actor is required")
	}

	now := time.Now().UTC()
	d.Status = StatusCancelled
	d.CancelReason = reason
	d.CancelledBy = actor
	d.CancelledAt = &now
	d.Touched()
	d.Touch(actor)
	d.IncrementVersion()

	d.Raise(NewOutboundDocumentCancelledEvent(d, actor))
	return true, nil
}
