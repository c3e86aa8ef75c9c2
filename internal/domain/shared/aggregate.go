package shared

// AggregateRoot is what the ledger services drain events from after a save
type AggregateRoot interface {
	Entity
	PendingEvents() []DomainEvent
	ClearEvents()
}

// BaseAggregateRoot carries the optimistic-lock version and the events raised
// since the aggregate was last saved.
type BaseAggregateRoot struct {
	BaseEntity
	// Version starts at 1. Repositories update WHERE version = Version-1.
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot starts a fresh aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// Raise queues e for publication once the enclosing transaction commits
func (a *BaseAggregateRoot) Raise(e DomainEvent) {
	a.pending = append(a.pending, e)
}

func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

func (a *BaseAggregateRoot) ClearEvents() {
	a.pending = nil
}
