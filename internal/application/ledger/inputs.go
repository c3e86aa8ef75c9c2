package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and converts failures to VALIDATION_ERROR
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.Validation("%s", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return shared.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// ImportOutboundInput is one record from the document import source
type ImportOutboundInput struct {
	DocumentNumber   string                  `validate:"required"`
	Series           string
	FiscalKey        string
	EmissionDate     time.Time               `validate:"required"`
	IssuingEntity    document.IssuingEntity  `validate:"required"`
	CounterpartyKind credit.CounterpartyKind `validate:"required"`
	CounterpartyID   string                  `validate:"required"`
	CounterpartyName string
	CarrierID        string
	CarrierName      string
	Region           string
	RouteFlag        bool
	Quantity         int
	UnitValue        decimal.Decimal
	TotalValue       decimal.Decimal
	Actor            string `validate:"required"`
}

func (in ImportOutboundInput) spec() document.OutboundSpec {
	return document.OutboundSpec{
		DocumentNumber:   in.DocumentNumber,
		Series:           in.Series,
		FiscalKey:        in.FiscalKey,
		EmissionDate:     in.EmissionDate,
		IssuingEntity:    in.IssuingEntity,
		CounterpartyKind: in.CounterpartyKind,
		CounterpartyID:   in.CounterpartyID,
		CounterpartyName: in.CounterpartyName,
		CarrierID:        in.CarrierID,
		CarrierName:      in.CarrierName,
		Region:           in.Region,
		RouteFlag:        in.RouteFlag,
		Quantity:         in.Quantity,
		UnitValue:        in.UnitValue,
		TotalValue:       in.TotalValue,
	}
}

// ImportResult is the outcome of importing one outbound document
type ImportResult struct {
	Document  *document.OutboundDocument
	Credit    *credit.Credit
	Duplicate bool
}

// RowError describes a failed row of a batch import
type RowError struct {
	Row            int    `json:"row"`
	DocumentNumber string `json:"document_number"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// BatchImportResult summarises a batch import
type BatchImportResult struct {
	Total      int        `json:"total"`
	Created    int        `json:"created"`
	Duplicates int        `json:"duplicates"`
	Failed     int        `json:"failed"`
	Errors     []RowError `json:"errors,omitempty"`
}

// ApplySolutionInput discharges or transfers part of a credit's balance
type ApplySolutionInput struct {
	CreditID uuid.UUID      `validate:"required"`
	Quantity int            // checked by the domain so the message carries balances
	Payload  credit.Payload
	// Destination describes the counterparty that takes over the balance when a
	// SUBSTITUTION has no destination credit yet
	Destination *credit.ShellSpec
	Actor       string `validate:"required"`
}

// SolutionResult carries the persisted solution and the credits it touched
type SolutionResult struct {
	Solution    *credit.CreditSolution
	Credit      *credit.Credit
	Destination *credit.Credit
}

// SolutionHistory lists what left a credit and what was transferred into it
type SolutionHistory struct {
	CreditID uuid.UUID
	Applied  []credit.CreditSolution
	Received []credit.CreditSolution
}

// RegisterSettlementInput creates a settlement against an outbound document
type RegisterSettlementInput struct {
	OutboundDocumentID uuid.UUID               `validate:"required"`
	Kind               document.SettlementKind `validate:"required"`
	Quantity           int
	Document           document.SettlementDocument
	LinkageMode        document.LinkageMode `validate:"required"`
	MatchScore         int                  `validate:"gte=0,lte=100"`
	ExternalRefID      string
	Actor              string `validate:"required"`
}

// PendingSuggestions is a document with its settlements awaiting a decision
type PendingSuggestions struct {
	Document    document.OutboundDocument
	Suggestions []document.DocumentSettlement
}
