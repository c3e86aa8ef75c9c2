package credit

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/shared"
)

// CounterpartyKind identifies who owes the pallets
type CounterpartyKind string

const (
	CounterpartyCarrier  CounterpartyKind = "CARRIER"
	CounterpartyCustomer CounterpartyKind = "CUSTOMER"
)

// IsValid checks if the kind is a known CounterpartyKind
func (k CounterpartyKind) IsValid() bool {
	return k == CounterpartyCarrier || k == CounterpartyCustomer
}

// String returns the string representation of CounterpartyKind
func (k CounterpartyKind) String() string {
	return string(k)
}

// Status is derived from remaining balance versus original quantity
type Status string

const (
	StatusOpen    Status = "OPEN"    // nothing discharged yet
	StatusPartial Status = "PARTIAL" // 0 < remaining < original
	StatusClosed  Status = "CLOSED"  // remaining = 0
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusPartial, StatusClosed:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsPending returns true while there is balance left to discharge
func (s Status) IsPending() bool {
	return s == StatusOpen || s == StatusPartial
}

// DeriveStatus computes the status for a balance pair
func DeriveStatus(remaining, original int) Status {
	switch {
	case remaining <= 0:
		return StatusClosed
	case remaining >= original:
		return StatusOpen
	default:
		return StatusPartial
	}
}

// SourceDocument is the slice of an outbound document a Credit is minted from
type SourceDocument struct {
	ID               uuid.UUID
	Number           string
	Quantity         int
	EmissionDate     time.Time
	CounterpartyKind CounterpartyKind
	CounterpartyID   string
	CounterpartyName string
	Region           string
	RouteFlag        bool
}

// Credit is the balance-bearing obligation of a counterparty.
// RemainingBalance only moves through ApplySolution and ReceiveTransfer.
type Credit struct {
	shared.BaseAggregateRoot
	shared.Audited
	SourceDocumentID     *uuid.UUID
	SourceDocumentNumber string
	OriginalQuantity     int
	RemainingBalance     int
	CounterpartyKind     CounterpartyKind
	CounterpartyID       string
	CounterpartyName     string
	Region               string
	DueInDays            int
	DueDate              time.Time
	Status               Status
	DeletedAt            *time.Time
}

// NewCredit mints a Credit for an outbound document
func NewCredit(src SourceDocument, dueInDays int, actor string) (*Credit, error) {
	if src.ID == uuid.Nil {
		return nil, shared.Validation("source document id is required")
	}
	if src.Quantity <= 0 {
		return nil, shared.Validation("credit quantity must be positive, got %d", src.Quantity)
	}
	if !src.CounterpartyKind.IsValid() {
		return nil, shared.Validation("counterparty kind %q is not valid", src.CounterpartyKind)
	}
	if strings.TrimSpace(src.CounterpartyID) == "" {
		return nil, shared.Validation("counterparty id is required")
	}
	if dueInDays < 0 {
		return nil, shared.Validation("due days cannot be negative")
	}

	docID := src.ID
	c := &Credit{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		SourceDocumentID:     &docID,
		SourceDocumentNumber: src.Number,
		OriginalQuantity:     src.Quantity,
		RemainingBalance:     src.Quantity,
		CounterpartyKind:     src.CounterpartyKind,
		CounterpartyID:       src.CounterpartyID,
		CounterpartyName:     src.CounterpartyName,
		Region:               src.Region,
		DueInDays:            dueInDays,
		DueDate:              dueDateFrom(src.EmissionDate, dueInDays),
		Status:               StatusOpen,
	}
	c.Touch(actor)

	c.Raise(NewCreditCreatedEvent(c, actor))
	return c, nil
}

// ShellSpec describes the destination of a substitution that has no Credit yet
type ShellSpec struct {
	CounterpartyKind  CounterpartyKind
	CounterpartyID    string
	CounterpartyName  string
	Region            string
	NewDocumentNumber string
	DueInDays         int
}

// NewCreditShell creates an empty Credit that exists only to receive a transferred balance
func NewCreditShell(spec ShellSpec, actor string) (*Credit, error) {
	if !spec.CounterpartyKind.IsValid() {
		return nil, shared.Validation("destination counterparty kind %q is not valid", spec.CounterpartyKind)
	}
	if strings.TrimSpace(spec.CounterpartyID) == "" {
		return nil, shared.Validation("destination counterparty id is required")
	}

	c := &Credit{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		SourceDocumentNumber: spec.NewDocumentNumber,
		CounterpartyKind:     spec.CounterpartyKind,
		CounterpartyID:       spec.CounterpartyID,
		CounterpartyName:     spec.CounterpartyName,
		Region:               spec.Region,
		DueInDays:            spec.DueInDays,
		Status:               StatusClosed,
	}
	c.DueDate = dueDateFrom(c.CreatedAt, spec.DueInDays)
	c.Touch(actor)

	c.Raise(NewCreditCreatedEvent(c, actor))
	return c, nil
}

func dueDateFrom(start time.Time, days int) time.Time {
	if start.IsZero() {
		start = time.Now().UTC()
	}
	y, m, d := start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// IsDeleted reports whether the credit was soft-deleted
func (c *Credit) IsDeleted() bool {
	return c.DeletedAt != nil
}

// IsOverdue reports whether balance is still owed after the due date
func (c *Credit) IsOverdue(now time.Time) bool {
	return c.Status.IsPending() && now.After(c.DueDate)
}

// DischargedQuantity returns how much of the original has been resolved
func (c *Credit) DischargedQuantity() int {
	return c.OriginalQuantity - c.RemainingBalance
}

// CheckDischargeable validates that quantity can leave this credit
func (c *Credit) CheckDischargeable(quantity int) error {
	if quantity <= 0 {
		return shared.Validation("quantity must be positive, got %d", quantity)
	}
	if c.IsDeleted() {
		return shared.NotFound("credit", c.ID)
	}
	if c.Status == StatusClosed {
		return shared.InvalidState("credit %s is closed", c.ID)
	}
	if quantity > c.RemainingBalance {
		return shared.QuantityExceeds(quantity, c.RemainingBalance, "balance")
	}
	return nil
}

// ApplySolution discharges the solution's quantity from this credit.
// The solution's BalanceBefore/BalanceAfter are filled in.
func (c *Credit) ApplySolution(sol *CreditSolution, actor string) error {
	if sol.CreditID != c.ID {
		return shared.Validation("solution %s does not belong to credit %s", sol.ID, c.ID)
	}
	if err := c.CheckDischargeable(sol.Quantity); err != nil {
		return err
	}

	sol.BalanceBefore = c.RemainingBalance
	c.RemainingBalance -= sol.Quantity
	sol.BalanceAfter = c.RemainingBalance
	c.Status = DeriveStatus(c.RemainingBalance, c.OriginalQuantity)
	c.Touched()
	c.Touch(actor)
	c.IncrementVersion()

	c.Raise(NewCreditSolutionAppliedEvent(c, sol, actor))
	if c.Status == StatusClosed {
		c.Raise(NewCreditClosedEvent(c, actor))
	}
	return nil
}

// ReceiveTransfer books a substituted balance on this credit. Both the
// original quantity and the remaining balance grow by quantity.
func (c *Credit) ReceiveTransfer(sol *CreditSolution, actor string) error {
	sub, ok := sol.Payload.(SubstitutionPayload)
	if !ok {
		return shared.Validation("only substitutions transfer balance")
	}
	if sub.DestinationCreditID != c.ID {
		return shared.Validation("substitution %s targets credit %s, not %s", sol.ID, sub.DestinationCreditID, c.ID)
	}
	if sol.CreditID == c.ID {
		return shared.Validation("a credit cannot substitute into itself")
	}
	if sol.Quantity <= 0 {
		return shared.Validation("quantity must be positive, got %d", sol.Quantity)
	}
	if c.IsDeleted() {
		return shared.NotFound("credit", c.ID)
	}

	c.OriginalQuantity += sol.Quantity
	c.RemainingBalance += sol.Quantity
	c.Status = DeriveStatus(c.RemainingBalance, c.OriginalQuantity)
	c.Touched()
	c.Touch(actor)
	c.IncrementVersion()

	c.Raise(NewBalanceTransferredEvent(sol, c, actor))
	return nil
}

// SoftDelete hides the credit from queries without removing the row
func (c *Credit) SoftDelete(actor string) error {
	if c.IsDeleted() {
		return nil
	}
	if c.DischargedQuantity() > 0 {
		return shared.InvalidState("credit %s has %d units discharged and cannot be deleted", c.ID, c.DischargedQuantity())
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	c.Touched()
	c.Touch(actor)
	c.IncrementVersion()
	return nil
}
