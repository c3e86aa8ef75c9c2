package ledger

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// eventCollector gathers domain events raised inside a transaction so they can
// be published once it commits
type eventCollector struct {
	events []shared.DomainEvent
}

func (c *eventCollector) collect(aggs ...shared.AggregateRoot) {
	for _, agg := range aggs {
		if agg == nil {
			continue
		}
		c.events = append(c.events, agg.PendingEvents()...)
		agg.ClearEvents()
	}
}

func (c *eventCollector) reset() {
	c.events = nil
}

// base holds what every ledger service shares
type base struct {
	txScope   TransactionScope
	repos     Repositories
	publisher shared.EventPublisher
	logger    *zap.Logger
}

func newBase(txScope TransactionScope, repos Repositories, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		txScope:   txScope,
		repos:     repos,
		publisher: shared.NoopPublisher{},
		logger:    logger,
	}
}

func (b *base) setPublisher(p shared.EventPublisher) {
	if p == nil {
		p = shared.NoopPublisher{}
	}
	b.publisher = p
}

// publish hands committed events to the bus; handler failures are logged, not returned
func (b *base) publish(ctx context.Context, events *eventCollector) {
	if len(events.events) == 0 {
		return
	}
	if err := b.publisher.Publish(ctx, events.events...); err != nil {
		b.logger.Warn("failed to publish domain events",
			zap.Int("count", len(events.events)),
			zap.Error(err),
		)
	}
}

// recordFailure stores the audit entry of a failed command outside the rolled back transaction
func (b *base) recordFailure(ctx context.Context, entry *audit.Entry, cause error) {
	entry.Failed(cause)
	if b.repos.Audit == nil {
		return
	}
	if err := b.repos.Audit.Save(context.WithoutCancel(ctx), entry); err != nil {
		b.logger.Error("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}

// lockCredits loads and row-locks the given credits in ascending id order
func lockCredits(ctx context.Context, repo credit.Repository, ids ...uuid.UUID) (map[uuid.UUID]*credit.Credit, error) {
	ordered := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	locked := make(map[uuid.UUID]*credit.Credit, len(ordered))
	for _, id := range ordered {
		c, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = c
	}
	return locked, nil
}
