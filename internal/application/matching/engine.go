// Package matching links inbound return documents to outbound documents.
package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/domain/document"
	domain "github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SystemActor is recorded on settlements created by the engine
const SystemActor = "system:reconciliation"

// DocumentLookup reads outbound documents for the engine
type DocumentLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*document.OutboundDocument, error)
	FindByNumberAndCounterparty(ctx context.Context, number, counterpartyID string) ([]document.OutboundDocument, error)
	FindOpenByCounterparty(ctx context.Context, counterpartyID string) ([]document.OutboundDocument, error)
}

// SettlementLookup finds links already made from an inbound document
type SettlementLookup interface {
	FindBySource(ctx context.Context, number, issuerCNPJ string) ([]document.DocumentSettlement, error)
}

// SettlementRegistrar creates settlements; ledger.SettlementService implements it
type SettlementRegistrar interface {
	RegisterSettlement(ctx context.Context, in ledger.RegisterSettlementInput) (*document.DocumentSettlement, error)
}

// Outcome summarises what Match did with a candidate
type Outcome string

const (
	OutcomeAutoLinked Outcome = "AUTO_LINKED"
	OutcomeSuggested  Outcome = "SUGGESTED"
	OutcomeNoMatch    Outcome = "NO_MATCH"
	OutcomeDuplicate  Outcome = "DUPLICATE"
	// OutcomeFailed means every settlement the engine tried to register was refused
	OutcomeFailed Outcome = "FAILED"
	// OutcomeReported means matches were found but nothing was written
	OutcomeReported Outcome = "REPORTED"
)

// ProposalAction is what happened to one candidate document
type ProposalAction string

const (
	ActionCreated        ProposalAction = "CREATED"
	ActionExisting       ProposalAction = "EXISTING"
	ActionReported       ProposalAction = "REPORTED"
	ActionBelowThreshold ProposalAction = "BELOW_THRESHOLD"
	ActionExhausted      ProposalAction = "EXHAUSTED"
	ActionFailed         ProposalAction = "FAILED"
)

// MatchOptions controls the side effects of Match
type MatchOptions struct {
	// AutoSuggest creates SUGGESTED settlements for RETURN candidates above the threshold
	AutoSuggest bool
	// DryRun scores without writing anything, AUTOMATIC links included
	DryRun bool
}

// Proposal is one outbound document considered for a candidate
type Proposal struct {
	DocumentID      uuid.UUID             `json:"document_id"`
	DocumentNumber  string                `json:"document_number"`
	EmissionDate    time.Time             `json:"emission_date"`
	PendingQuantity int                   `json:"pending_quantity"`
	Quantity        int                   `json:"quantity"`
	Score           domain.ScoreBreakdown `json:"score"`
	Action          ProposalAction        `json:"action"`
	SettlementID    *uuid.UUID            `json:"settlement_id,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// Failure is a settlement the ledger refused to register
type Failure struct {
	DocumentID uuid.UUID `json:"document_id"`
	Quantity   int       `json:"quantity"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
}

// MatchResult is the outcome of matching one inbound candidate
type MatchResult struct {
	Candidate          domain.InboundCandidate `json:"candidate"`
	Classification     domain.Classification   `json:"classification"`
	Outcome            Outcome                 `json:"outcome"`
	Reason             string                  `json:"reason,omitempty"`
	Proposals          []Proposal              `json:"proposals"`
	Allocated          int                     `json:"allocated"`
	Unallocated        int                     `json:"unallocated"`
	AutoLinked         int                     `json:"auto_linked"`
	SuggestionsCreated int                     `json:"suggestions_created"`
	DuplicatesSkipped  int                     `json:"duplicates_skipped"`
	Failures           []Failure               `json:"failures,omitempty"`
}

func (r *MatchResult) fail(docID uuid.UUID, qty int, err error) {
	r.Failures = append(r.Failures, Failure{
		DocumentID: docID,
		Quantity:   qty,
		Code:       shared.CodeOf(err),
		Message:    err.Error(),
	})
}

// Engine classifies inbound candidates and links them to outbound documents
type Engine struct {
	docs        DocumentLookup
	settlements SettlementLookup
	registrar   SettlementRegistrar
	logger      *zap.Logger
}

// NewEngine creates a new Engine
func NewEngine(docs DocumentLookup, settlements SettlementLookup, registrar SettlementRegistrar, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{docs: docs, settlements: settlements, registrar: registrar, logger: logger}
}

// Match classifies a candidate and links it. EXACT candidates get one AUTOMATIC
// settlement; RETURN candidates are spread FIFO over the issuer's open documents
// as SUGGESTED settlements. Re-running Match for the same candidate creates nothing new.
func (e *Engine) Match(ctx context.Context, cand domain.InboundCandidate, opts MatchOptions) (*MatchResult, error) {
	if err := cand.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "matching", "match",
		telemetry.WithAttribute("inbound_number", cand.SettlementDocNumber),
		telemetry.WithAttribute("issuer", cand.CounterpartyID()),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, cand.Quantity),
	)
	defer span.End()

	res := &MatchResult{
		Candidate:      cand,
		Classification: domain.Classify(cand.FreeTextAnnex),
	}
	telemetry.SetAttribute(span, "pattern", res.Classification.Pattern.String())

	linked, err := e.linkedQuantities(ctx, cand)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if res.Classification.Pattern == domain.PatternExact {
		err = e.matchExact(ctx, cand, opts, linked, res)
	} else {
		err = e.matchReturn(ctx, cand, opts, linked, res)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.For(ctx, e.logger).Info("inbound document matched",
		zap.String("inbound_number", cand.SettlementDocNumber),
		zap.String("issuer", cand.CounterpartyID()),
		zap.String("pattern", res.Classification.Pattern.String()),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("allocated", res.Allocated),
		zap.Int("unallocated", res.Unallocated),
	)
	return res, nil
}

// linkedQuantities sums the non-rejected settlements already created from cand per document
func (e *Engine) linkedQuantities(ctx context.Context, cand domain.InboundCandidate) (map[uuid.UUID]int, error) {
	existing, err := e.settlements.FindBySource(ctx, cand.SettlementDocNumber, cand.IssuerCNPJ)
	if err != nil {
		return nil, err
	}
	linked := make(map[uuid.UUID]int, len(existing))
	for _, s := range existing {
		linked[s.OutboundDocumentID] += s.Quantity
	}
	return linked, nil
}

func (e *Engine) matchExact(ctx context.Context, cand domain.InboundCandidate, opts MatchOptions, linked map[uuid.UUID]int, res *MatchResult) error {
	ref := res.Classification.Reference
	docs, err := e.docs.FindByNumberAndCounterparty(ctx, ref, cand.CounterpartyID())
	if err != nil {
		return err
	}
	domain.SortFIFO(docs)

	for i := range docs {
		if qty, ok := linked[docs[i].ID]; ok {
			res.Proposals = append(res.Proposals, proposalFor(&docs[i], qty, domain.ScoreBreakdown{Total: domain.ExactMatchScore}, ActionExisting))
			res.Outcome = OutcomeDuplicate
			res.Reason = "inbound document already linked to outbound document " + docs[i].DocumentNumber
			res.Allocated = qty
			res.Unallocated = max(cand.Quantity-qty, 0)
			res.DuplicatesSkipped = 1
			return nil
		}
	}

	var target *document.OutboundDocument
	for i := range docs {
		if docs[i].IsMatchable() {
			target = &docs[i]
			break
		}
	}
	if target == nil {
		res.Outcome = OutcomeNoMatch
		res.Unallocated = cand.Quantity
		if len(docs) == 0 {
			res.Reason = "no outbound document " + ref + " for issuer " + cand.CounterpartyID()
		} else {
			res.Reason = "outbound document " + ref + " has nothing pending"
		}
		return nil
	}

	qty := min(cand.Quantity, target.PendingQuantity())
	score := domain.Score(target, domain.ScoreInput{Reference: ref, CounterpartyID: cand.CounterpartyID(), Requested: qty})
	score.Total = domain.ExactMatchScore
	p := proposalFor(target, qty, score, ActionReported)
	res.Allocated = qty
	res.Unallocated = cand.Quantity - qty

	if opts.DryRun {
		res.Proposals = append(res.Proposals, p)
		res.Outcome = OutcomeReported
		return nil
	}

	st, err := e.registrar.RegisterSettlement(ctx, settlementInput(cand, target.ID, qty, document.LinkAutomatic, domain.ExactMatchScore))
	switch {
	case err == nil:
		p.Action, p.SettlementID = ActionCreated, &st.ID
		res.Outcome = OutcomeAutoLinked
		res.AutoLinked = 1
	case shared.IsDuplicate(err):
		p.Action = ActionExisting
		res.Outcome = OutcomeDuplicate
		res.DuplicatesSkipped = 1
	case shared.CodeOf(err) != "":
		p.Action, p.Error = ActionFailed, err.Error()
		res.fail(target.ID, qty, err)
		res.Outcome = OutcomeFailed
		res.Reason = "settlement not registered: " + err.Error()
		res.Allocated, res.Unallocated = 0, cand.Quantity
	default:
		return err
	}
	res.Proposals = append(res.Proposals, p)
	return nil
}

func (e *Engine) matchReturn(ctx context.Context, cand domain.InboundCandidate, opts MatchOptions, linked map[uuid.UUID]int, res *MatchResult) error {
	docs, err := e.docs.FindOpenByCounterparty(ctx, cand.CounterpartyID())
	if err != nil {
		return err
	}

	// documents linked earlier may have settled since and dropped out of the open list
	seen := make(map[uuid.UUID]bool, len(docs))
	for i := range docs {
		seen[docs[i].ID] = true
	}
	for id := range linked {
		if seen[id] {
			continue
		}
		d, err := e.docs.FindByID(ctx, id)
		if err != nil {
			if shared.IsNotFound(err) {
				continue
			}
			return err
		}
		docs = append(docs, *d)
	}

	plan := domain.PlanReturn(docs, domain.ScoreInput{
		CounterpartyID: cand.CounterpartyID(),
		Requested:      cand.Quantity,
	}, linked)
	res.Allocated, res.Unallocated = plan.Allocated, plan.Unallocated

	write := opts.AutoSuggest && !opts.DryRun
	created, existing, reported := 0, 0, 0
	for _, a := range plan.Ranked() {
		p := proposalFor(a.Document, a.Quantity, a.Score, ActionBelowThreshold)
		switch {
		case a.Existing:
			p.Action = ActionExisting
			existing++
		case a.Exhausted:
			p.Action = ActionExhausted
		case !a.Suggest:
		case !write:
			p.Action = ActionReported
			reported++
		default:
			st, err := e.registrar.RegisterSettlement(ctx, settlementInput(cand, a.Document.ID, a.Quantity, document.LinkSuggested, a.Score.Total))
			switch {
			case err == nil:
				p.Action, p.SettlementID = ActionCreated, &st.ID
				created++
			case shared.IsDuplicate(err):
				p.Action = ActionExisting
				existing++
			case shared.CodeOf(err) != "":
				p.Action, p.Error = ActionFailed, err.Error()
				res.fail(a.Document.ID, a.Quantity, err)
				res.Allocated -= a.Quantity
				res.Unallocated += a.Quantity
				logger.For(ctx, e.logger).Warn("suggestion not created",
					zap.String("document_id", a.Document.ID.String()),
					zap.Int("quantity", a.Quantity),
					zap.Error(err),
				)
			default:
				return err
			}
		}
		res.Proposals = append(res.Proposals, p)
	}

	res.SuggestionsCreated = created
	res.DuplicatesSkipped = existing
	switch {
	case created > 0:
		res.Outcome = OutcomeSuggested
	case len(res.Failures) > 0:
		res.Outcome = OutcomeFailed
		res.Reason = "no suggestion registered: " + res.Failures[0].Message
	case reported > 0:
		res.Outcome = OutcomeReported
	case existing > 0:
		res.Outcome = OutcomeDuplicate
		res.Reason = "inbound document already linked"
	default:
		res.Outcome = OutcomeNoMatch
		if len(docs) == 0 {
			res.Reason = "no open outbound documents for issuer " + cand.CounterpartyID()
		} else {
			res.Reason = "no outbound document reached the suggestion threshold"
		}
	}
	return nil
}

func proposalFor(d *document.OutboundDocument, qty int, score domain.ScoreBreakdown, action ProposalAction) Proposal {
	return Proposal{
		DocumentID:      d.ID,
		DocumentNumber:  d.DocumentNumber,
		EmissionDate:    d.EmissionDate,
		PendingQuantity: d.PendingQuantity(),
		Quantity:        qty,
		Score:           score,
		Action:          action,
	}
}

func settlementInput(cand domain.InboundCandidate, docID uuid.UUID, qty int, mode document.LinkageMode, score int) ledger.RegisterSettlementInput {
	return ledger.RegisterSettlementInput{
		OutboundDocumentID: docID,
		Kind:               document.SettlementReturn,
		Quantity:           qty,
		Document:           cand.SettlementDocument(),
		LinkageMode:        mode,
		MatchScore:         score,
		ExternalRefID:      cand.ExternalRefID,
		Actor:              SystemActor,
	}
}
