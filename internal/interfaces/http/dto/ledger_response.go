package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	csvimport "github.com/palletledger/backend/internal/infrastructure/import"
	"github.com/shopspring/decimal"
)

// OutboundDocumentResponse is the API view of an outbound document
type OutboundDocumentResponse struct {
	ID               uuid.UUID       `json:"id"`
	DocumentNumber   string          `json:"document_number"`
	Series           string          `json:"series,omitempty"`
	FiscalKey        string          `json:"fiscal_key,omitempty"`
	EmissionDate     time.Time       `json:"emission_date"`
	IssuingEntity    string          `json:"issuing_entity"`
	CounterpartyKind string          `json:"counterparty_kind"`
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	CarrierID        string          `json:"carrier_id,omitempty"`
	CarrierName      string          `json:"carrier_name,omitempty"`
	Region           string          `json:"region,omitempty"`
	RouteFlag        bool            `json:"route_flag"`
	Quantity         int             `json:"quantity"`
	ResolvedQuantity int             `json:"resolved_quantity"`
	PendingQuantity  int             `json:"pending_quantity"`
	UnitValue        decimal.Decimal `json:"unit_value"`
	TotalValue       decimal.Decimal `json:"total_value"`
	Status           string          `json:"status"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	CancelledBy      string          `json:"cancelled_by,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	Version          int             `json:"version"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ToOutboundDocumentResponse converts a domain document
func ToOutboundDocumentResponse(d *document.OutboundDocument) OutboundDocumentResponse {
	return OutboundDocumentResponse{
		ID:               d.ID,
		DocumentNumber:   d.DocumentNumber,
		Series:           d.Series,
		FiscalKey:        d.FiscalKey,
		EmissionDate:     d.EmissionDate,
		IssuingEntity:    d.IssuingEntity.String(),
		CounterpartyKind: d.CounterpartyKind.String(),
		CounterpartyID:   d.CounterpartyID,
		CounterpartyName: d.CounterpartyName,
		CarrierID:        d.CarrierID,
		CarrierName:      d.CarrierName,
		Region:           d.Region,
		RouteFlag:        d.RouteFlag,
		Quantity:         d.Quantity,
		ResolvedQuantity: d.ResolvedQuantity,
		PendingQuantity:  d.PendingQuantity(),
		UnitValue:        d.UnitValue,
		TotalValue:       d.TotalValue,
		Status:           d.Status.String(),
		CancelReason:     d.CancelReason,
		CancelledBy:      d.CancelledBy,
		CancelledAt:      d.CancelledAt,
		Version:          d.Version,
		CreatedBy:        d.CreatedBy,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// ToOutboundDocumentResponses converts a slice of documents
func ToOutboundDocumentResponses(docs []document.OutboundDocument) []OutboundDocumentResponse {
	out := make([]OutboundDocumentResponse, len(docs))
	for i := range docs {
		out[i] = ToOutboundDocumentResponse(&docs[i])
	}
	return out
}

// CreditResponse is the API view of a credit
type CreditResponse struct {
	ID                   uuid.UUID  `json:"id"`
	SourceDocumentID     *uuid.UUID `json:"source_document_id,omitempty"`
	SourceDocumentNumber string     `json:"source_document_number,omitempty"`
	OriginalQuantity     int        `json:"original_quantity"`
	RemainingBalance     int        `json:"remaining_balance"`
	DischargedQuantity   int        `json:"discharged_quantity"`
	CounterpartyKind     string     `json:"counterparty_kind"`
	CounterpartyID       string     `json:"counterparty_id"`
	CounterpartyName     string     `json:"counterparty_name,omitempty"`
	Region               string     `json:"region,omitempty"`
	DueInDays            int        `json:"due_in_days"`
	DueDate              time.Time  `json:"due_date"`
	Overdue              bool       `json:"overdue"`
	Status               string     `json:"status"`
	Version              int        `json:"version"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ToCreditResponse converts a domain credit; overdue is evaluated at the time of the call
func ToCreditResponse(c *credit.Credit) CreditResponse {
	return CreditResponse{
		ID:                   c.ID,
		SourceDocumentID:     c.SourceDocumentID,
		SourceDocumentNumber: c.SourceDocumentNumber,
		OriginalQuantity:     c.OriginalQuantity,
		RemainingBalance:     c.RemainingBalance,
		DischargedQuantity:   c.DischargedQuantity(),
		CounterpartyKind:     c.CounterpartyKind.String(),
		CounterpartyID:       c.CounterpartyID,
		CounterpartyName:     c.CounterpartyName,
		Region:               c.Region,
		DueInDays:            c.DueInDays,
		DueDate:              c.DueDate,
		Overdue:              c.IsOverdue(time.Now()),
		Status:               string(c.Status),
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

// SettlementDocumentResponse is the fiscal document behind a settlement
type SettlementDocumentResponse struct {
	Number     string     `json:"number,omitempty"`
	Series     string     `json:"series,omitempty"`
	FiscalKey  string     `json:"fiscal_key,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	IssuerCNPJ string     `json:"issuer_cnpj,omitempty"`
	IssuerName string     `json:"issuer_name,omitempty"`
}

// SettlementResponse is the API view of a document settlement
type SettlementResponse struct {
	ID                 uuid.UUID                   `json:"id"`
	OutboundDocumentID uuid.UUID                   `json:"outbound_document_id"`
	Kind               string                      `json:"kind"`
	Quantity           int                         `json:"quantity"`
	Document           *SettlementDocumentResponse `json:"document,omitempty"`
	LinkageMode        string                      `json:"linkage_mode"`
	MatchScore         int                         `json:"match_score"`
	Confirmed          bool                        `json:"confirmed"`
	ConfirmedBy        string                      `json:"confirmed_by,omitempty"`
	ConfirmedAt        *time.Time                  `json:"confirmed_at,omitempty"`
	Rejected           bool                        `json:"rejected"`
	RejectReason       string                      `json:"reject_reason,omitempty"`
	RejectedBy         string                      `json:"rejected_by,omitempty"`
	RejectedAt         *time.Time                  `json:"rejected_at,omitempty"`
	ExternalRefID      string                      `json:"external_ref_id,omitempty"`
	CreatedBy          string                      `json:"created_by"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// ToSettlementResponse converts a domain settlement
func ToSettlementResponse(s *document.DocumentSettlement) SettlementResponse {
	resp := SettlementResponse{
		ID:                 s.ID,
		OutboundDocumentID: s.OutboundDocumentID,
		Kind:               s.Kind.String(),
		Quantity:           s.Quantity,
		LinkageMode:        s.LinkageMode.String(),
		MatchScore:         s.MatchScore,
		Confirmed:          s.Confirmed,
		ConfirmedBy:        s.ConfirmedBy,
		ConfirmedAt:        s.ConfirmedAt,
		Rejected:           s.Rejected,
		RejectReason:       s.RejectReason,
		RejectedBy:         s.RejectedBy,
		RejectedAt:         s.RejectedAt,
		ExternalRefID:      s.ExternalRefID,
		CreatedBy:          s.CreatedBy,
		CreatedAt:          s.CreatedAt,
	}
	if !s.Document.IsEmpty() {
		resp.Document = &SettlementDocumentResponse{
			Number:     s.Document.Number,
			Series:     s.Document.Series,
			FiscalKey:  s.Document.FiscalKey,
			Date:       s.Document.Date,
			IssuerCNPJ: s.Document.IssuerCNPJ,
			IssuerName: s.Document.IssuerName,
		}
	}
	return resp
}

// ToSettlementResponses converts a slice of settlements
func ToSettlementResponses(settlements []document.DocumentSettlement) []SettlementResponse {
	out := make([]SettlementResponse, len(settlements))
	for i := range settlements {
		out[i] = ToSettlementResponse(&settlements[i])
	}
	return out
}

// SolutionResponse is the API view of a credit solution
type SolutionResponse struct {
	ID            uuid.UUID      `json:"id"`
	CreditID      uuid.UUID      `json:"credit_id"`
	Kind          string         `json:"kind"`
	Quantity      int            `json:"quantity"`
	BalanceBefore int            `json:"balance_before"`
	BalanceAfter  int            `json:"balance_after"`
	Payload       credit.Payload `json:"payload"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ToSolutionResponse converts a domain solution
func ToSolutionResponse(s *credit.CreditSolution) SolutionResponse {
	return SolutionResponse{
		ID:            s.ID,
		CreditID:      s.CreditID,
		Kind:          s.Kind.String(),
		Quantity:      s.Quantity,
		BalanceBefore: s.BalanceBefore,
		BalanceAfter:  s.BalanceAfter,
		Payload:       s.Payload,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt,
	}
}

func toSolutionResponses(solutions []credit.CreditSolution) []SolutionResponse {
	out := make([]SolutionResponse, len(solutions))
	for i := range solutions {
		out[i] = ToSolutionResponse(&solutions[i])
	}
	return out
}

// ImportOutboundResponse is the result of importing one outbound document
type ImportOutboundResponse struct {
	Document  OutboundDocumentResponse `json:"document"`
	Credit    *CreditResponse          `json:"credit,omitempty"`
	Duplicate bool                     `json:"duplicate"`
}

// ToImportOutboundResponse converts an import result
func ToImportOutboundResponse(r *ledger.ImportResult) ImportOutboundResponse {
	resp := ImportOutboundResponse{
		Document:  ToOutboundDocumentResponse(r.Document),
		Duplicate: r.Duplicate,
	}
	if r.Credit != nil {
		c := ToCreditResponse(r.Credit)
		resp.Credit = &c
	}
	return resp
}

// SolutionResultResponse is the outcome of applying a solution
type SolutionResultResponse struct {
	Solution    SolutionResponse `json:"solution"`
	Credit      CreditResponse   `json:"credit"`
	Destination *CreditResponse  `json:"destination,omitempty"`
}

// ToSolutionResultResponse converts a solution result
func ToSolutionResultResponse(r *ledger.SolutionResult) SolutionResultResponse {
	resp := SolutionResultResponse{
		Solution: ToSolutionResponse(r.Solution),
		Credit:   ToCreditResponse(r.Credit),
	}
	if r.Destination != nil {
		d := ToCreditResponse(r.Destination)
		resp.Destination = &d
	}
	return resp
}

// SolutionHistoryResponse lists what left a credit and what was transferred into it
type SolutionHistoryResponse struct {
	CreditID uuid.UUID          `json:"credit_id"`
	Applied  []SolutionResponse `json:"applied"`
	Received []SolutionResponse `json:"received"`
}

// ToSolutionHistoryResponse converts a solution history
func ToSolutionHistoryResponse(h *ledger.SolutionHistory) SolutionHistoryResponse {
	return SolutionHistoryResponse{
		CreditID: h.CreditID,
		Applied:  toSolutionResponses(h.Applied),
		Received: toSolutionResponses(h.Received),
	}
}

// PendingSuggestionsResponse is a document with the suggestions awaiting a decision
type PendingSuggestionsResponse struct {
	Document    OutboundDocumentResponse `json:"document"`
	Suggestions []SettlementResponse     `json:"suggestions"`
}

// ToPendingSuggestionsResponses converts the pending suggestion list
func ToPendingSuggestionsResponses(items []ledger.PendingSuggestions) []PendingSuggestionsResponse {
	out := make([]PendingSuggestionsResponse, len(items))
	for i := range items {
		out[i] = PendingSuggestionsResponse{
			Document:    ToOutboundDocumentResponse(&items[i].Document),
			Suggestions: ToSettlementResponses(items[i].Suggestions),
		}
	}
	return out
}

// AuditEntryResponse is the API view of an audit entry
type AuditEntryResponse struct {
	ID             uuid.UUID `json:"id"`
	OccurredAt     time.Time `json:"occurred_at"`
	Actor          string    `json:"actor"`
	Action         string    `json:"action"`
	EntityType     string    `json:"entity_type"`
	EntityID       uuid.UUID `json:"entity_id"`
	Outcome        string    `json:"outcome"`
	Quantity       int       `json:"quantity,omitempty"`
	QuantityBefore *int      `json:"quantity_before,omitempty"`
	QuantityAfter  *int      `json:"quantity_after,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// ToAuditEntryResponse converts an audit entry
func ToAuditEntryResponse(e *audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:             e.ID,
		OccurredAt:     e.OccurredAt,
		Actor:          e.Actor,
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Outcome:        string(e.Outcome),
		Quantity:       e.Quantity,
		QuantityBefore: e.QuantityBefore,
		QuantityAfter:  e.QuantityAfter,
		ErrorCode:      e.ErrorCode,
		Message:        e.Message,
	}
}

// ArchiveURLResponse is a presigned link to an archived sweep report
type ArchiveURLResponse struct {
	RunID     uuid.UUID `json:"run_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OutboundFileImportResponse summarises a CSV import of outbound documents.
// ParseErrors are rows rejected by the file checks; Errors are rows the ledger refused.
type OutboundFileImportResponse struct {
	TotalRows       int                  `json:"total_rows"`
	Created         int                  `json:"created"`
	Duplicates      int                  `json:"duplicates"`
	Failed          int                  `json:"failed"`
	Errors          []ledger.RowError    `json:"errors,omitempty"`
	ParseErrors     []csvimport.RowError `json:"parse_errors,omitempty"`
	ParseErrorCount int                  `json:"parse_error_count"`
}

// ToOutboundFileImportResponse merges the parse outcome with the batch result.
// Batch rows are renumbered to the file's line numbers.
func ToOutboundFileImportResponse(file *csvimport.OutboundFile, res *ledger.BatchImportResult) OutboundFileImportResponse {
	resp := OutboundFileImportResponse{
		TotalRows:       file.TotalRows,
		Created:         res.Created,
		Duplicates:      res.Duplicates,
		Failed:          res.Failed,
		ParseErrors:     file.Errors.Errors(),
		ParseErrorCount: file.Errors.TotalCount(),
	}
	for _, e := range res.Errors {
		if e.Row >= 1 && e.Row <= len(file.Rows) {
			e.Row = file.Rows[e.Row-1].Line
		}
		resp.Errors = append(resp.Errors, e)
	}
	return resp
}
