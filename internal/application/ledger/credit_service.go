package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CreditService owns the balance ledger: credit creation, solutions and balance queries
type CreditService struct {
	base
	dueRule credit.DueDateRule
	now     func() time.Time
}

// NewCreditService creates a new CreditService
func NewCreditService(txScope TransactionScope, repos Repositories, dueRule credit.DueDateRule, logger *zap.Logger) *CreditService {
	if dueRule == nil {
		dueRule = credit.DefaultDueDateRule("")
	}
	return &CreditService{
		base:    newBase(txScope, repos, logger),
		dueRule: dueRule,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the publisher for committed domain events
func (s *CreditService) SetEventPublisher(p shared.EventPublisher) {
	s.setPublisher(p)
}

// CreateFromDocument returns the credit minted from an outbound document, creating it
// when none exists yet. The document row is locked so concurrent calls mint one credit.
func (s *CreditService) CreateFromDocument(ctx context.Context, documentID uuid.UUID, actor string) (*credit.Credit, error) {
	entry := audit.NewEntry(audit.ActionCreateCredit, audit.EntityDocument, documentID, actor)
	events := &eventCollector{}

	var result *credit.Credit
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		doc, err := repos.Documents().FindByIDForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.IsDeleted() {
			return shared.NotFound("outbound document", documentID)
		}
		c, created, err := mintCredit(ctx, repos, s.dueRule, doc, actor)
		if err != nil {
			return err
		}
		result = c
		if created {
			events.collect(c)
		}
		return nil
	})
	if err != nil && shared.IsDuplicate(err) {
		// the unique source document index caught a credit minted concurrently
		if existing, lookupErr := s.repos.Credits.FindBySourceDocument(ctx, documentID); lookupErr == nil {
			result, err = existing, nil
			events.reset()
		}
	}
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	s.publish(ctx, events)
	return result, nil
}

// mintCredit creates the credit of doc inside the caller's transaction.
// It returns the existing credit and false when the document already has one.
func mintCredit(ctx context.Context, repos TransactionalRepositories, rule credit.DueDateRule, doc *document.OutboundDocument, actor string) (*credit.Credit, bool, error) {
	existing, err := repos.Credits().FindBySourceDocument(ctx, doc.ID)
	if err == nil {
		return existing, false, nil
	}
	if !shared.IsNotFound(err) {
		return nil, false, err
	}

	c, err := credit.NewCredit(doc.CreditSource(), rule.ComputeDueDays(doc.Region, doc.RouteFlag), actor)
	if err != nil {
		return nil, false, err
	}
	if err := repos.Credits().Save(ctx, c); err != nil {
		return nil, false, err
	}

	entry := audit.NewEntry(audit.ActionCreateCredit, audit.EntityCredit, c.ID, actor).
		WithQuantities(c.OriginalQuantity, 0, c.RemainingBalance)
	if err := repos.Audit().Save(ctx, entry); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// ApplySolution discharges part of a credit's balance. For SUBSTITUTION the same
// quantity is added to the destination credit, which is created as an empty shell
// when the input names a destination counterparty instead of a credit.
func (s *CreditService) ApplySolution(ctx context.Context, in ApplySolutionInput) (*SolutionResult, error) {
	entry := audit.NewEntry(audit.ActionApplySolution, audit.EntityCredit, in.CreditID, in.Actor)
	err := validateInput(in)
	if err == nil && in.Payload == nil {
		err = shared.Validation("Payload is required")
	}
	if err != nil {
		s.recordFailure(ctx, entry, err)
		return nil, err
	}

	events := &eventCollector{}
	var result *SolutionResult
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		events.reset()
		res, err := s.applySolution(ctx, repos, in, entry)
		if err != nil {
			return err
		}
		events.collect(res.Credit)
		if res.Destination != nil {
			events.collect(res.Destination)
		}
		result = res
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, entry, err)
		s.logger.Info("solution rejected",
			zap.String("credit_id", in.CreditID.String()),
			zap.Int("quantity", in.Quantity),
			zap.String("actor", in.Actor),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("solution applied",
		zap.String("credit_id", result.Credit.ID.String()),
		zap.String("solution_id", result.Solution.ID.String()),
		zap.String("kind", result.Solution.Kind.String()),
		zap.Int("quantity", result.Solution.Quantity),
		zap.Int("balance_after", result.Solution.BalanceAfter),
		zap.String("actor", in.Actor),
	)
	s.publish(ctx, events)
	return result, nil
}

func (s *CreditService) applySolution(ctx context.Context, repos TransactionalRepositories, in ApplySolutionInput, entry *audit.Entry) (*SolutionResult, error) {
	payload := in.Payload
	sub, isSubstitution := payload.(credit.SubstitutionPayload)

	destID := uuid.Nil
	if isSubstitution {
		destID = sub.DestinationCreditID
		if destID == uuid.Nil && in.Destination == nil {
			return nil, shared.Validation("substitution needs a destination credit or a destination counterparty")
		}
		if destID == in.CreditID {
			return nil, shared.Validation("a credit cannot substitute into itself")
		}
	}

	locked, err := lockCredits(ctx, repos.Credits(), in.CreditID, destID)
	if err != nil {
		return nil, err
	}
	source := locked[in.CreditID]
	if err := source.CheckDischargeable(in.Quantity); err != nil {
		return nil, err
	}

	var dest *credit.Credit
	newShell := false
	if isSubstitution {
		if destID != uuid.Nil {
			dest = locked[destID]
			if dest.IsDeleted() {
				return nil, shared.NotFound("credit", destID)
			}
			if in.Destination != nil && in.Destination.CounterpartyID != "" &&
				document.NormalizeCNPJ(in.Destination.CounterpartyID) != dest.CounterpartyID {
				return nil, shared.Validation("destination credit %s belongs to %s, not %s",
					destID, dest.CounterpartyID, in.Destination.CounterpartyID)
			}
		} else {
			spec := *in.Destination
			spec.CounterpartyID = document.NormalizeCNPJ(spec.CounterpartyID)
			if spec.DueInDays == 0 {
				spec.DueInDays = s.dueRule.ComputeDueDays(spec.Region, false)
			}
			if spec.CounterpartyID == source.CounterpartyID && spec.CounterpartyKind == source.CounterpartyKind {
				return nil, shared.Validation("substitution destination must be a different counterparty")
			}
			dest, err = credit.NewCreditShell(spec, in.Actor)
			if err != nil {
				return nil, err
			}
			newShell = true
			sub.DestinationCreditID = dest.ID
			payload = sub
		}
	}

	sol, err := credit.NewCreditSolution(source.ID, in.Quantity, payload, in.Actor)
	if err != nil {
		return nil, err
	}
	if err := source.ApplySolution(sol, in.Actor); err != nil {
		return nil, err
	}
	if dest != nil {
		if err := dest.ReceiveTransfer(sol, in.Actor); err != nil {
			return nil, err
		}
	}

	if err := repos.Credits().SaveWithLock(ctx, source); err != nil {
		return nil, err
	}
	if dest != nil {
		if newShell {
			err = repos.Credits().Save(ctx, dest)
		} else {
			err = repos.Credits().SaveWithLock(ctx, dest)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := repos.Solutions().Save(ctx, sol); err != nil {
		return nil, err
	}

	entry.WithQuantities(sol.Quantity, sol.BalanceBefore, sol.BalanceAfter)
	if err := repos.Audit().Save(ctx, entry); err != nil {
		return nil, err
	}
	if dest != nil {
		destEntry := audit.NewEntry(audit.ActionApplySolution, audit.EntityCredit, dest.ID, in.Actor).
			WithQuantities(sol.Quantity, dest.RemainingBalance-sol.Quantity, dest.RemainingBalance)
		if err := repos.Audit().Save(ctx, destEntry); err != nil {
			return nil, err
		}
	}

	return &SolutionResult{Solution: sol, Credit: source, Destination: dest}, nil
}

// GetCredit returns a credit by id
func (s *CreditService) GetCredit(ctx context.Context, id uuid.UUID) (*credit.Credit, error) {
	return s.repos.Credits.FindByID(ctx, id)
}

// GetCreditByDocument returns the credit minted from an outbound document
func (s *CreditService) GetCreditByDocument(ctx context.Context, documentID uuid.UUID) (*credit.Credit, error) {
	return s.repos.Credits.FindBySourceDocument(ctx, documentID)
}

// ListPending returns OPEN and PARTIAL credits ordered by due date
func (s *CreditService) ListPending(ctx context.Context, filter credit.PendingFilter) (shared.Paginated[credit.Credit], error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.AsOf.IsZero() {
		filter.AsOf = s.now()
	}
	if filter.CounterpartyID != "" {
		filter.CounterpartyID = document.NormalizeCNPJ(filter.CounterpartyID)
	}
	if filter.CounterpartyKind != "" && !filter.CounterpartyKind.IsValid() {
		return shared.Paginated[credit.Credit]{}, shared.Validation("counterparty kind %q is not valid", filter.CounterpartyKind)
	}
	if filter.DueWithinDays < 0 {
		return shared.Paginated[credit.Credit]{}, shared.Validation("due window cannot be negative")
	}

	items, total, err := s.repos.Credits.FindPending(ctx, filter)
	if err != nil {
		return shared.Paginated[credit.Credit]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// GetSolutionHistory returns the solutions applied to a credit and the transfers it received
func (s *CreditService) GetSolutionHistory(ctx context.Context, creditID uuid.UUID) (*SolutionHistory, error) {
	if _, err := s.repos.Credits.FindByID(ctx, creditID); err != nil {
		return nil, err
	}
	applied, err := s.repos.Solutions.FindByCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	received, err := s.repos.Solutions.FindByDestination(ctx, creditID)
	if err != nil {
		return nil, err
	}
	return &SolutionHistory{CreditID: creditID, Applied: applied, Received: received}, nil
}

// FindSolutionsBySaleDocument returns every sale solution booked under one sale document
func (s *CreditService) FindSolutionsBySaleDocument(ctx context.Context, saleDocumentNumber string) ([]credit.CreditSolution, error) {
	if saleDocumentNumber == "" {
		return nil, shared.Validation("sale document number is required")
	}
	return s.repos.Solutions.FindBySaleDocument(ctx, saleDocumentNumber)
}

// GetBalanceSummary aggregates every credit of a counterparty
func (s *CreditService) GetBalanceSummary(ctx context.Context, counterpartyID string) (*credit.BalanceSummary, error) {
	counterpartyID = document.NormalizeCNPJ(counterpartyID)
	if counterpartyID == "" {
		return nil, shared.Validation("counterparty id is required")
	}

	credits, err := s.repos.Credits.FindByCounterparty(ctx, counterpartyID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(credits))
	for i := range credits {
		ids = append(ids, credits[i].ID)
	}

	byKind := map[credit.SolutionKind]int{}
	if len(ids) > 0 {
		byKind, err = s.repos.Solutions.SumByKind(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	summary := credit.Summarize(counterpartyID, credits, byKind, s.now())
	return &summary, nil
}
