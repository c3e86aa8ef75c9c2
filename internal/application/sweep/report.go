package sweep

import (
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/matching"
	domain "github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/domain/shared"
)

// DetailStatus is the per-candidate result recorded in a report
type DetailStatus string

const (
	DetailAutoLinked   DetailStatus = "AUTO_LINKED"
	DetailSuggested    DetailStatus = "SUGGESTED"
	DetailReported     DetailStatus = "REPORTED"
	DetailNoMatch      DetailStatus = "NO_MATCH"
	DetailDuplicate    DetailStatus = "DUPLICATE"
	DetailIntercompany DetailStatus = "INTERCOMPANY"
	DetailError        DetailStatus = "ERROR"
)

// Detail is one line of the per-document trail
type Detail struct {
	InboundNumber string              `json:"inbound_number"`
	IssuerCNPJ    string              `json:"issuer_cnpj"`
	Quantity      int                 `json:"quantity"`
	Pattern       domain.Pattern      `json:"pattern,omitempty"`
	Reference     string              `json:"reference,omitempty"`
	Status        DetailStatus        `json:"status"`
	Allocated     int                 `json:"allocated"`
	Unallocated   int                 `json:"unallocated"`
	Message       string              `json:"message,omitempty"`
	Proposals     []matching.Proposal `json:"proposals,omitempty"`
}

// ErrorSample records one candidate that failed, or one settlement the ledger refused
type ErrorSample struct {
	InboundNumber string     `json:"inbound_number"`
	IssuerCNPJ    string     `json:"issuer_cnpj"`
	DocumentID    *uuid.UUID `json:"outbound_document_id,omitempty"`
	Code          string     `json:"code,omitempty"`
	Error         string     `json:"error"`
}

// Counters are the totals of a sweep
type Counters struct {
	Processed           int `json:"processed"`
	ClassifiedReturn    int `json:"classified_return"`
	ClassifiedExact     int `json:"classified_exact"`
	AutoLinked          int `json:"auto_linked"`
	SuggestionsCreated  int `json:"suggestions_created"`
	NoMatch             int `json:"no_match"`
	SkippedIntercompany int `json:"skipped_intercompany"`
	DuplicatesSkipped   int `json:"duplicates_skipped"`
	Errors              int `json:"errors"`
}

// Report is the result of one sweep run
type Report struct {
	RunID       uuid.UUID     `json:"run_id"`
	DateFrom    time.Time     `json:"date_from"`
	DateTo      time.Time     `json:"date_to"`
	AutoSuggest bool          `json:"auto_suggest"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Fetched     int           `json:"fetched"`
	Counters    Counters      `json:"counters"`
	Details     []Detail      `json:"details"`
	ErrorSample []ErrorSample `json:"error_sample"`
	// Partial is set when the time budget ran out before every candidate was processed
	Partial         bool   `json:"partial"`
	ArchiveLocation string `json:"archive_location,omitempty"`
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) sample(s ErrorSample, limit int) {
	if len(r.ErrorSample) < limit {
		r.ErrorSample = append(r.ErrorSample, s)
	}
}

func (r *Report) addError(cand domain.InboundCandidate, err error, limit int) {
	r.Counters.Errors++
	r.sample(ErrorSample{
		InboundNumber: cand.SettlementDocNumber,
		IssuerCNPJ:    cand.IssuerCNPJ,
		Code:          shared.CodeOf(err),
		Error:         err.Error(),
	}, limit)
	r.Details = append(r.Details, Detail{
		InboundNumber: cand.SettlementDocNumber,
		IssuerCNPJ:    cand.IssuerCNPJ,
		Quantity:      cand.Quantity,
		Status:        DetailError,
		Unallocated:   cand.Quantity,
		Message:       err.Error(),
	})
}

// addResult counts a matched candidate. Settlements refused by the ledger count as
// errors even when other links of the same candidate were made.
func (r *Report) addResult(res *matching.MatchResult, limit int) {
	switch res.Classification.Pattern {
	case domain.PatternExact:
		r.Counters.ClassifiedExact++
	default:
		r.Counters.ClassifiedReturn++
	}
	r.Counters.AutoLinked += res.AutoLinked
	r.Counters.SuggestionsCreated += res.SuggestionsCreated
	r.Counters.DuplicatesSkipped += res.DuplicatesSkipped
	if res.Outcome == matching.OutcomeNoMatch {
		r.Counters.NoMatch++
	}
	if len(res.Failures) > 0 {
		r.Counters.Errors++
	}
	for _, f := range res.Failures {
		r.sample(ErrorSample{
			InboundNumber: res.Candidate.SettlementDocNumber,
			IssuerCNPJ:    res.Candidate.IssuerCNPJ,
			DocumentID:    &f.DocumentID,
			Code:          f.Code,
			Error:         f.Message,
		}, limit)
	}

	r.Details = append(r.Details, Detail{
		InboundNumber: res.Candidate.SettlementDocNumber,
		IssuerCNPJ:    res.Candidate.IssuerCNPJ,
		Quantity:      res.Candidate.Quantity,
		Pattern:       res.Classification.Pattern,
		Reference:     res.Classification.Reference,
		Status:        detailStatus(res.Outcome),
		Allocated:     res.Allocated,
		Unallocated:   res.Unallocated,
		Message:       res.Reason,
		Proposals:     res.Proposals,
	})
}

func detailStatus(o matching.Outcome) DetailStatus {
	switch o {
	case matching.OutcomeAutoLinked:
		return DetailAutoLinked
	case matching.OutcomeSuggested:
		return DetailSuggested
	case matching.OutcomeReported:
		return DetailReported
	case matching.OutcomeDuplicate:
		return DetailDuplicate
	case matching.OutcomeFailed:
		return DetailError
	default:
		return DetailNoMatch
	}
}
