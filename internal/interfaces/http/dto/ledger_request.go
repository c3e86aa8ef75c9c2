package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/domain/shared"
	csvimport "github.com/palletledger/backend/internal/infrastructure/import"
	"github.com/shopspring/decimal"
)

// parseDate accepts the same layouts as the CSV importer; empty strings yield the zero time
func parseDate(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	t, err := csvimport.ParseDate(value)
	if err != nil {
		return time.Time{}, shared.Validation("%s: %v", field, err)
	}
	return t, nil
}

// ImportOutboundRequest is the JSON form of one outbound document
type ImportOutboundRequest struct {
	DocumentNumber   string          `json:"document_number" binding:"required"`
	Series           string          `json:"series"`
	FiscalKey        string          `json:"fiscal_key"`
	EmissionDate     string          `json:"emission_date" binding:"required"`
	IssuingEntity    string          `json:"issuing_entity" binding:"required,oneof=HEADQUARTERS DISTRIBUTION LOGISTICS"`
	CounterpartyKind string          `json:"counterparty_kind" binding:"required,oneof=CARRIER CUSTOMER"`
	CounterpartyID   string          `json:"counterparty_id" binding:"required"`
	CounterpartyName string          `json:"counterparty_name"`
	CarrierID        string          `json:"carrier_id"`
	CarrierName      string          `json:"carrier_name"`
	Region           string          `json:"region"`
	RouteFlag        bool            `json:"route_flag"`
	Quantity         int             `json:"quantity" binding:"required,gt=0"`
	UnitValue        decimal.Decimal `json:"unit_value"`
	TotalValue       decimal.Decimal `json:"total_value"`
}

// ToInput converts the request into the application input
func (r ImportOutboundRequest) ToInput(actor string) (ledger.ImportOutboundInput, error) {
	emitted, err := parseDate("emission_date", r.EmissionDate)
	if err != nil {
		return ledger.ImportOutboundInput{}, err
	}
	return ledger.ImportOutboundInput{
		DocumentNumber:   r.DocumentNumber,
		Series:           r.Series,
		FiscalKey:        r.FiscalKey,
		EmissionDate:     emitted,
		IssuingEntity:    document.IssuingEntity(r.IssuingEntity),
		CounterpartyKind: credit.CounterpartyKind(r.CounterpartyKind),
		CounterpartyID:   r.CounterpartyID,
		CounterpartyName: r.CounterpartyName,
		CarrierID:        r.CarrierID,
		CarrierName:      r.CarrierName,
		Region:           r.Region,
		RouteFlag:        r.RouteFlag,
		Quantity:         r.Quantity,
		UnitValue:        r.UnitValue,
		TotalValue:       r.TotalValue,
		Actor:            actor,
	}, nil
}

// ReasonRequest carries the mandatory reason of a cancel or reject
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OutboundLookupRequest finds documents by number and series, or by fiscal key
type OutboundLookupRequest struct {
	Number    string `form:"number"`
	Series    string `form:"series"`
	FiscalKey string `form:"fiscal_key"`
}

// SettlementDocumentRequest is the fiscal document behind a manual settlement
type SettlementDocumentRequest struct {
	Number     string `json:"number"`
	Series     string `json:"series"`
	FiscalKey  string `json:"fiscal_key"`
	Date       string `json:"date"`
	IssuerCNPJ string `json:"issuer_cnpj"`
	IssuerName string `json:"issuer_name"`
}

// RegisterSettlementRequest links a settlement to an outbound document by hand
type RegisterSettlementRequest struct {
	Kind          string                     `json:"kind" binding:"required,oneof=RETURN REFUSAL CANCELLATION CREDIT_NOTE"`
	Quantity      int                        `json:"quantity"`
	LinkageMode   string                     `json:"linkage_mode" binding:"omitempty,oneof=MANUAL SUGGESTED"`
	MatchScore    int                        `json:"match_score" binding:"gte=0,lte=100"`
	ExternalRefID string                     `json:"external_ref_id"`
	Document      *SettlementDocumentRequest `json:"document"`
}

// ToInput converts the request; linkage defaults to MANUAL
func (r RegisterSettlementRequest) ToInput(documentID uuid.UUID, actor string) (ledger.RegisterSettlementInput, error) {
	mode := document.LinkManual
	if r.LinkageMode != "" {
		mode = document.LinkageMode(r.LinkageMode)
	}
	in := ledger.RegisterSettlementInput{
		OutboundDocumentID: documentID,
		Kind:               document.SettlementKind(r.Kind),
		Quantity:           r.Quantity,
		LinkageMode:        mode,
		MatchScore:         r.MatchScore,
		ExternalRefID:      r.ExternalRefID,
		Actor:              actor,
	}
	if r.Document != nil {
		in.Document = document.SettlementDocument{
			Number:     r.Document.Number,
			Series:     r.Document.Series,
			FiscalKey:  r.Document.FiscalKey,
			IssuerCNPJ: r.Document.IssuerCNPJ,
			IssuerName: r.Document.IssuerName,
		}
		date, err := parseDate("document.date", r.Document.Date)
		if err != nil {
			return ledger.RegisterSettlementInput{}, err
		}
		if !date.IsZero() {
			in.Document.Date = &date
		}
	}
	return in, nil
}

// DestinationRequest describes who takes over a substituted balance when there is no credit yet
type DestinationRequest struct {
	CounterpartyKind  string `json:"counterparty_kind" binding:"required,oneof=CARRIER CUSTOMER"`
	CounterpartyID    string `json:"counterparty_id" binding:"required"`
	CounterpartyName  string `json:"counterparty_name"`
	Region            string `json:"region"`
	NewDocumentNumber string `json:"new_document_number"`
	DueInDays         int    `json:"due_in_days" binding:"gte=0"`
}

// ApplySolutionRequest discharges part of a credit. Payload holds the kind-specific fields.
type ApplySolutionRequest struct {
	Kind        string              `json:"kind" binding:"required,oneof=WRITE_OFF SALE RECOVERY SUBSTITUTION"`
	Quantity    int                 `json:"quantity"`
	Payload     json.RawMessage     `json:"payload" binding:"required"`
	Destination *DestinationRequest `json:"destination"`
}

// ToInput decodes the payload variant for Kind
func (r ApplySolutionRequest) ToInput(creditID uuid.UUID, actor string) (ledger.ApplySolutionInput, error) {
	payload, err := credit.DecodePayload(credit.SolutionKind(r.Kind), r.Payload)
	if err != nil {
		return ledger.ApplySolutionInput{}, shared.Validation("invalid %s payload: %v", r.Kind, err)
	}
	in := ledger.ApplySolutionInput{
		CreditID: creditID,
		Quantity: r.Quantity,
		Payload:  payload,
		Actor:    actor,
	}
	if r.Destination != nil {
		in.Destination = &credit.ShellSpec{
			CounterpartyKind:  credit.CounterpartyKind(r.Destination.CounterpartyKind),
			CounterpartyID:    r.Destination.CounterpartyID,
			CounterpartyName:  r.Destination.CounterpartyName,
			Region:            r.Destination.Region,
			NewDocumentNumber: r.Destination.NewDocumentNumber,
			DueInDays:         r.Destination.DueInDays,
		}
	}
	return in, nil
}

// CreditListRequest filters the pending credit list
type CreditListRequest struct {
	PageRequest
	CounterpartyID   string `form:"counterparty_id"`
	CounterpartyKind string `form:"counterparty_kind" binding:"omitempty,oneof=CARRIER CUSTOMER"`
	OverdueOnly      bool   `form:"overdue_only"`
	DueWithinDays    int    `form:"due_within_days" binding:"gte=0"`
	// Sort names a column; empty keeps the due date, oldest first
	Sort  string `form:"sort" binding:"omitempty,oneof=due_date created_at remaining_balance counterparty_id"`
	Order string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the request, evaluating overdue against now
func (r CreditListRequest) ToFilter(now time.Time) credit.PendingFilter {
	page := r.Filter()
	page.OrderBy, page.OrderDir = r.Sort, r.Order
	return credit.PendingFilter{
		Filter:           page,
		CounterpartyID:   r.CounterpartyID,
		CounterpartyKind: credit.CounterpartyKind(r.CounterpartyKind),
		OverdueOnly:      r.OverdueOnly,
		DueWithinDays:    r.DueWithinDays,
		AsOf:             now,
	}
}

// AuditRequest filters the audit trail
type AuditRequest struct {
	PageRequest
	EntityID   string `form:"entity_id" binding:"omitempty,uuid"`
	EntityType string `form:"entity_type"`
	Action     string `form:"action"`
	Outcome    string `form:"outcome" binding:"omitempty,oneof=SUCCESS FAILURE"`
	From       string `form:"from"`
	To         string `form:"to"`
}

// ToFilter converts the request into an audit.Filter
func (r AuditRequest) ToFilter() (audit.Filter, error) {
	f := audit.Filter{
		Filter:     r.Filter(),
		EntityType: r.EntityType,
		Action:     r.Action,
		Outcome:    audit.Outcome(r.Outcome),
	}
	if r.EntityID != "" {
		id, err := uuid.Parse(r.EntityID)
		if err != nil {
			return audit.Filter{}, shared.Validation("entity_id: %v", err)
		}
		f.EntityID = &id
	}
	from, err := parseDate("from", r.From)
	if err != nil {
		return audit.Filter{}, err
	}
	if !from.IsZero() {
		f.From = &from
	}
	to, err := parseDate("to", r.To)
	if err != nil {
		return audit.Filter{}, err
	}
	if !to.IsZero() {
		f.To = &to
	}
	return f, nil
}

// SweepRequest runs a reconciliation sweep over [date_from, date_to]
type SweepRequest struct {
	DateFrom    string `json:"date_from" binding:"required"`
	DateTo      string `json:"date_to" binding:"required"`
	AutoSuggest *bool  `json:"auto_suggest"`
}

// Window parses the sweep dates; auto-suggest defaults to def when omitted
func (r SweepRequest) Window(def bool) (from, to time.Time, autoSuggest bool, err error) {
	if from, err = parseDate("date_from", r.DateFrom); err != nil {
		return
	}
	if to, err = parseDate("date_to", r.DateTo); err != nil {
		return
	}
	if to.Before(from) {
		err = shared.Validation("date_to %s is before date_from %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
		return
	}
	autoSuggest = def
	if r.AutoSuggest != nil {
		autoSuggest = *r.AutoSuggest
	}
	return
}

// MatchPreviewRequest is an inbound document to score without writing anything
type MatchPreviewRequest struct {
	SettlementDocNumber string `json:"settlement_doc_number" binding:"required"`
	Series              string `json:"series"`
	FiscalKey           string `json:"fiscal_key"`
	EmissionDate        string `json:"emission_date"`
	IssuerCNPJ          string `json:"issuer_cnpj" binding:"required"`
	IssuerName          string `json:"issuer_name"`
	Quantity            int    `json:"quantity" binding:"required,gt=0"`
	FreeTextAnnex       string `json:"free_text_annex"`
}

// ToCandidate converts the request into an inbound candidate
func (r MatchPreviewRequest) ToCandidate() (matching.InboundCandidate, error) {
	emitted, err := parseDate("emission_date", r.EmissionDate)
	if err != nil {
		return matching.InboundCandidate{}, err
	}
	return matching.InboundCandidate{
		SettlementDocNumber: r.SettlementDocNumber,
		Series:              r.Series,
		FiscalKey:           r.FiscalKey,
		EmissionDate:        emitted,
		IssuerCNPJ:          r.IssuerCNPJ,
		IssuerName:          r.IssuerName,
		Quantity:            r.Quantity,
		FreeTextAnnex:       r.FreeTextAnnex,
	}, nil
}
