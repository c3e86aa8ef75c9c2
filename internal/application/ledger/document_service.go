package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DocumentService owns the document ledger: outbound import, cancellation and status
type DocumentService struct {
	base
	dueRule credit.DueDateRule
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(txScope TransactionScope, repos Repositories, dueRule credit.DueDateRule, logger *zap.Logger) *DocumentService {
	if dueRule == nil {
		dueRule = credit.DefaultDueDateRule("")
	}
	return &DocumentService{
		base:    newBase(txScope, repos, logger),
		dueRule: dueRule,
	}
}

// SetEventPublisher sets the publisher for committed domain events
func (s *DocumentService) SetEventPublisher(p shared.EventPublisher) {
	s.setPublisher(p)
}

// ImportOutbound stores an outbound document and mints its credit atomically.
// Re-importing a known document returns the stored one with Duplicate set.
func (s *DocumentService) ImportOutbound(ctx context.Context, in ImportOutboundInput) (*ImportResult, error) {
	entry := audit.NewEntry(audit.ActionImportOutbound, audit.EntityDocument, uuid.Nil, in.Actor)
	if err := validateInput(in); err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}
	doc, err := document.NewOutboundDocument(in.spec(), in.Actor)
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}
	entry.EntityID = doc.ID

	events := &eventCollector{}
	var result *ImportResult
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		existing, err := findExisting(ctx, repos.Documents(), doc)
		if err != nil {
			return err
		}
		if existing != nil {
			c, err := repos.Credits().FindBySourceDocument(ctx, existing.ID)
			if err != nil && !shared.IsNotFound(err) {
				return err
			}
			result = &ImportResult{Document: existing, Credit: c, Duplicate: true}
			return nil
		}

		if err := repos.Documents().Save(ctx, doc); err != nil {
			return err
		}
		c, _, err := mintCredit(ctx, repos, s.dueRule, doc, in.Actor)
		if err != nil {
			return err
		}

		entry.WithQuantities(doc.Quantity, 0, doc.Quantity)
		if err := repos.Audit().Save(ctx, entry); err != nil {
			return err
		}
		events.collect(doc, c)
		result = &ImportResult{Document: doc, Credit: c}
		return nil
	})

	if err != nil && shared.IsDuplicate(err) {
		// lost a race with a concurrent import of the same document
		if existing, lookupErr := findExisting(ctx, s.repos.Documents, doc); lookupErr == nil && existing != nil {
			c, _ := s.repos.Credits.FindBySourceDocument(ctx, existing.ID)
			result, err = &ImportResult{Document: existing, Credit: c, Duplicate: true}, nil
			events.reset()
		}
	}
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	if result.Duplicate {
		s.logger.Warn("outbound document already imported",
			zap.String("document_id", result.Document.ID.String()),
			zap.String("document_number", result.Document.DocumentNumber),
			zap.String("fiscal_key", result.Document.FiscalKey),
			zap.String("actor", in.Actor),
		)
		return result, nil
	}

	s.logger.Info("outbound document imported",
		zap.String("document_id", result.Document.ID.String()),
		zap.String("document_number", result.Document.DocumentNumber),
		zap.String("counterparty_id", result.Document.CounterpartyID),
		zap.Int("quantity", result.Document.Quantity),
		zap.String("actor", in.Actor),
	)
	s.publish(ctx, events)
	return result, nil
}

// findExisting looks a document up by fiscal key when it has one, else by natural key
func findExisting(ctx context.Context, repo document.OutboundDocumentRepository, doc *document.OutboundDocument) (*document.OutboundDocument, error) {
	var (
		existing *document.OutboundDocument
		err      error
	)
	if doc.FiscalKey != "" {
		existing, err = repo.FindByFiscalKey(ctx, doc.FiscalKey)
	} else {
		existing, err = repo.FindByNaturalKey(ctx, doc.DocumentNumber, doc.Series, doc.CounterpartyID)
	}
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

// ImportOutboundBatch imports each record in its own transaction; a failing row does not
// stop the batch
func (s *DocumentService) ImportOutboundBatch(ctx context.Context, inputs []ImportOutboundInput) *BatchImportResult {
	res := &BatchImportResult{Total: len(inputs)}
	for i, in := range inputs {
		if ctx.Err() != nil {
			res.Failed += len(inputs) - i
			res.Errors = append(res.Errors, RowError{Row: i + 1, Code: "CANCELLED", Message: ctx.Err().Error()})
			break
		}
		out, err := s.ImportOutbound(ctx, in)
		switch {
		case err != nil:
			res.Failed++
			code := shared.CodeOf(err)
			if code == "" {
				code = "INTERNAL_ERROR"
			}
			res.Errors = append(res.Errors, RowError{
				Row:            i + 1,
				DocumentNumber: in.DocumentNumber,
				Code:           code,
				Message:        err.Error(),
			})
		case out.Duplicate:
			res.Duplicates++
		default:
			res.Created++
		}
	}
	return res
}

// Cancel freezes a document against future settlements. Confirmed settlements stay.
// Cancelling a cancelled document returns it unchanged, whatever the reason given.
func (s *DocumentService) Cancel(ctx context.Context, documentID uuid.UUID, reason, actor string) (*document.OutboundDocument, error) {
	entry := audit.NewEntry(audit.ActionCancelOutbound, audit.EntityDocument, documentID, actor)
	events := &eventCollector{}
	var result *document.OutboundDocument
	changed := false
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		doc, err := repos.Documents().FindByIDForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.IsDeleted() {
			return shared.NotFound("outbound document", documentID)
		}
		result = doc

		changed, err = doc.Cancel(reason, actor)
		if err != nil || !changed {
			return err
		}
		if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
			return err
		}
		entry.WithQuantities(0, doc.ResolvedQuantity, doc.ResolvedQuantity)
		if err := repos.Audit().Save(ctx, entry); err != nil {
			return err
		}
		events.collect(doc)
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}
	if !changed {
		return result, nil
	}

	s.logger.Info("outbound document cancelled",
		zap.String("document_id", documentID.String()),
		zap.String("reason", result.CancelReason),
		zap.String("actor", result.CancelledBy),
	)
	s.publish(ctx, events)
	return result, nil
}

// RecomputeStatus rebuilds the resolved quantity from confirmed settlements
func (s *DocumentService) RecomputeStatus(ctx context.Context, documentID uuid.UUID, actor string) (*document.OutboundDocument, error) {
	entry := audit.NewEntry(audit.ActionRecomputeOutbound, audit.EntityDocument, documentID, actor)
	events := &eventCollector{}

	var result *document.OutboundDocument
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		doc, err := repos.Documents().FindByIDForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		total, err := repos.Settlements().SumConfirmed(ctx, documentID)
		if err != nil {
			return err
		}
		before := doc.ResolvedQuantity
		changed, err := doc.Recompute(total, actor)
		if err != nil {
			return err
		}
		result = doc
		if !changed {
			return nil
		}
		if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
			return err
		}
		entry.WithQuantities(doc.ResolvedQuantity-before, before, doc.ResolvedQuantity)
		if err := repos.Audit().Save(ctx, entry); err != nil {
			return err
		}
		events.collect(doc)
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	s.publish(ctx, events)
	return result, nil
}

// ListPendingSuggestions returns documents with suggestions awaiting confirmation
func (s *DocumentService) ListPendingSuggestions(ctx context.Context) ([]PendingSuggestions, error) {
	docs, err := s.repos.Documents.FindWithPendingSuggestions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PendingSuggestions, 0, len(docs))
	for _, d := range docs {
		settlements, err := s.repos.Settlements.FindByDocument(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		item := PendingSuggestions{Document: d}
		for _, st := range settlements {
			if st.IsPendingSuggestion() {
				item.Suggestions = append(item.Suggestions, st)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// GetOutbound returns a document by id
func (s *DocumentService) GetOutbound(ctx context.Context, id uuid.UUID) (*document.OutboundDocument, error) {
	return s.repos.Documents.FindByID(ctx, id)
}

// GetOutboundByNumber returns documents with a number, optionally narrowed to a series
func (s *DocumentService) GetOutboundByNumber(ctx context.Context, number, series string) ([]document.OutboundDocument, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.Validation("document number is required")
	}
	return s.repos.Documents.FindByNumber(ctx, number, series)
}

// GetOutboundByFiscalKey returns the document with an access key
func (s *DocumentService) GetOutboundByFiscalKey(ctx context.Context, fiscalKey string) (*document.OutboundDocument, error) {
	key := document.NormalizeFiscalKey(fiscalKey)
	if key == "" {
		return nil, shared.Validation("fiscal key is required")
	}
	return s.repos.Documents.FindByFiscalKey(ctx, key)
}

// GetSettlementHistory returns every settlement of a document, rejected ones included
func (s *DocumentService) GetSettlementHistory(ctx context.Context, documentID uuid.UUID) ([]document.DocumentSettlement, error) {
	if _, err := s.repos.Documents.FindByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.repos.Settlements.FindByDocument(ctx, documentID)
}
