package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SettlementService registers, confirms and rejects document settlements
type SettlementService struct {
	base
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(txScope TransactionScope, repos Repositories, logger *zap.Logger) *SettlementService {
	return &SettlementService{base: newBase(txScope, repos, logger)}
}

// SetEventPublisher sets the publisher for committed domain events
func (s *SettlementService) SetEventPublisher(p shared.EventPublisher) {
	s.setPublisher(p)
}

// FindActiveDuplicate returns the non-rejected settlement of documentID that came from
// the same inbound document, or nil
func (s *SettlementService) FindActiveDuplicate(ctx context.Context, documentID uuid.UUID, number, issuerCNPJ string) (*document.DocumentSettlement, error) {
	return s.repos.Settlements.FindActiveDuplicate(ctx, documentID, number, issuerCNPJ)
}

// RegisterSettlement creates a settlement. MANUAL and AUTOMATIC settlements are
// confirmed at once and move the document's resolved quantity in the same
// transaction; SUGGESTED ones wait for Confirm.
func (s *SettlementService) RegisterSettlement(ctx context.Context, in RegisterSettlementInput) (*document.DocumentSettlement, error) {
	entry := audit.NewEntry(audit.ActionRegisterSettlement, audit.EntityDocument, in.OutboundDocumentID, in.Actor)
	if err := validateInput(in); err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	events := &eventCollector{}
	var result *document.DocumentSettlement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		doc, err := repos.Documents().FindByIDForUpdate(ctx, in.OutboundDocumentID)
		if err != nil {
			return err
		}
		if err := doc.CanAcceptSettlement(in.Quantity); err != nil {
			return err
		}

		if in.Kind == document.SettlementReturn && in.Document.Number != "" {
			dup, err := repos.Settlements().FindActiveDuplicate(ctx, doc.ID, in.Document.Number, in.Document.IssuerCNPJ)
			if err != nil {
				return err
			}
			if dup != nil {
				return shared.Duplicate("return document %s from %s is already linked to outbound document %s",
					in.Document.Number, in.Document.IssuerCNPJ, doc.DocumentNumber)
			}
		}

		st, err := document.NewDocumentSettlement(document.SettlementSpec{
			OutboundDocumentID: doc.ID,
			Kind:               in.Kind,
			Quantity:           in.Quantity,
			Document:           in.Document,
			LinkageMode:        in.LinkageMode,
			MatchScore:         in.MatchScore,
			ExternalRefID:      in.ExternalRefID,
		}, in.Actor)
		if err != nil {
			return err
		}

		before := doc.ResolvedQuantity
		if st.Confirmed {
			if err := doc.ApplyConfirmed(st.Quantity, in.Actor); err != nil {
				return err
			}
			if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
				return err
			}
		}
		if err := repos.Settlements().Save(ctx, st); err != nil {
			return err
		}

		entry.EntityType, entry.EntityID = audit.EntitySettlement, st.ID
		entry.WithQuantities(st.Quantity, before, doc.ResolvedQuantity)
		if err := repos.Audit().Save(ctx, entry); err != nil {
			return err
		}
		events.collect(st, doc)
		result = st
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	s.logger.Info("settlement registered",
		zap.String("settlement_id", result.ID.String()),
		zap.String("document_id", result.OutboundDocumentID.String()),
		zap.String("kind", result.Kind.String()),
		zap.String("mode", result.LinkageMode.String()),
		zap.Int("quantity", result.Quantity),
		zap.Int("score", result.MatchScore),
		zap.String("actor", in.Actor),
	)
	s.publish(ctx, events)
	return result, nil
}

// Confirm accepts a pending suggestion and books its quantity on the document
func (s *SettlementService) Confirm(ctx context.Context, settlementID uuid.UUID, actor string) (*document.DocumentSettlement, error) {
	entry := audit.NewEntry(audit.ActionConfirmSettlement, audit.EntitySettlement, settlementID, actor)
	if actor == "" {
		err := shared.Validation("actor is required")
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	events := &eventCollector{}
	var result *document.DocumentSettlement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		st, err := repos.Settlements().FindByIDForUpdate(ctx, settlementID)
		if err != nil {
			return err
		}
		doc, err := repos.Documents().FindByIDForUpdate(ctx, st.OutboundDocumentID)
		if err != nil {
			return err
		}

		if err := st.Confirm(actor); err != nil {
			return err
		}
		before := doc.ResolvedQuantity
		if err := doc.ApplyConfirmed(st.Quantity, actor); err != nil {
			return err
		}

		if err := repos.Settlements().SaveWithLock(ctx, st); err != nil {
			return err
		}
		if err := repos.Documents().SaveWithLock(ctx, doc); err != nil {
			return err
		}
		entry.WithQuantities(st.Quantity, before, doc.ResolvedQuantity)
		if err := repos.Audit().Save(ctx, entry); err != nil {
			return err
		}
		events.collect(st, doc)
		result = st
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	s.logger.Info("settlement confirmed",
		zap.String("settlement_id", settlementID.String()),
		zap.String("document_id", result.OutboundDocumentID.String()),
		zap.Int("quantity", result.Quantity),
		zap.String("actor", actor),
	)
	s.publish(ctx, events)
	return result, nil
}

// Reject discards a settlement that has not been confirmed; quantities are untouched
func (s *SettlementService) Reject(ctx context.Context, settlementID uuid.UUID, reason, actor string) (*document.DocumentSettlement, error) {
	entry := audit.NewEntry(audit.ActionRejectSettlement, audit.EntitySettlement, settlementID, actor)
	events := &eventCollector{}

	var result *document.DocumentSettlement
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		st, err := repos.Settlements().FindByIDForUpdate(ctx, settlementID)
		if err != nil {
			return err
		}
		if err := st.Reject(reason, actor); err != nil {
			return err
		}
		if err := repos.Settlements().SaveWithLock(ctx, st); err != nil {
			return err
		}
		entry.WithQuantities(0, 0, 0)
		if err := repos.Audit().Save(ctx, entry); err != nil {
			return err
		}
		events.collect(st)
		result = st
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	s.logger.Info("settlement rejected",
		zap.String("settlement_id", settlementID.String()),
		zap.String("reason", reason),
		zap.String("actor", actor),
	)
	s.publish(ctx, events)
	return result, nil
}
