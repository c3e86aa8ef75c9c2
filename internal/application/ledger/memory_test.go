package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
)

// memStore is an in-memory ledger database. Its transaction scope snapshots
// the whole store and restores it when the callback fails.
type memStore struct {
	mu          sync.Mutex
	credits     map[uuid.UUID]credit.Credit
	solutions   []credit.CreditSolution
	docs        map[uuid.UUID]document.OutboundDocument
	settlements map[uuid.UUID]document.DocumentSettlement
	order       []uuid.UUID
	entries     []audit.Entry
	failSave    error
	// staleSourceReads makes the next lookups by source document miss, as a
	// transaction that has not yet seen a concurrent insert would
	staleSourceReads int
}

func newMemStore() *memStore {
	return &memStore{
		credits:     map[uuid.UUID]credit.Credit{},
		docs:        map[uuid.UUID]document.OutboundDocument{},
		settlements: map[uuid.UUID]document.DocumentSettlement{},
	}
}

func (m *memStore) repositories() Repositories {
	return Repositories{
		Credits:     &memCredits{m},
		Solutions:   &memSolutions{m},
		Documents:   &memDocuments{m},
		Settlements: &memSettlements{m},
		Audit:       &memAudit{m},
	}
}

type snapshot struct {
	credits     map[uuid.UUID]credit.Credit
	solutions   []credit.CreditSolution
	docs        map[uuid.UUID]document.OutboundDocument
	settlements map[uuid.UUID]document.DocumentSettlement
	order       []uuid.UUID
	entries     []audit.Entry
}

func (m *memStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{
		credits:     make(map[uuid.UUID]credit.Credit, len(m.credits)),
		solutions:   append([]credit.CreditSolution(nil), m.solutions...),
		docs:        make(map[uuid.UUID]document.OutboundDocument, len(m.docs)),
		settlements: make(map[uuid.UUID]document.DocumentSettlement, len(m.settlements)),
		order:       append([]uuid.UUID(nil), m.order...),
		entries:     append([]audit.Entry(nil), m.entries...),
	}
	for k, v := range m.credits {
		s.credits[k] = v
	}
	for k, v := range m.docs {
		s.docs[k] = v
	}
	for k, v := range m.settlements {
		s.settlements[k] = v
	}
	return s
}

func (m *memStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits, m.solutions, m.docs = s.credits, s.solutions, s.docs
	m.settlements, m.order, m.entries = s.settlements, s.order, s.entries
}

func (m *memStore) auditEntries() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.entries...)
}

// memTxScope runs the callback against the store and rolls back on error
type memTxScope struct {
	store *memStore
	repos Repositories
	txMu  sync.Mutex
}

func newMemTxScope(store *memStore) *memTxScope {
	return &memTxScope{store: store, repos: store.repositories()}
}

func (s *memTxScope) Execute(_ context.Context, fn func(TransactionalRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.store.snapshot()
	if err := fn(NewNoOpTransactionScope(s.repos)); err != nil {
		s.store.restore(snap)
		return err
	}
	return nil
}

type memCredits struct{ *memStore }

func (r *memCredits) FindByID(_ context.Context, id uuid.UUID) (*credit.Credit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.credits[id]
	if !ok {
		return nil, shared.NotFound("credit", id)
	}
	return &c, nil
}

func (r *memCredits) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*credit.Credit, error) {
	return r.FindByID(ctx, id)
}

func (r *memCredits) FindBySourceDocument(_ context.Context, documentID uuid.UUID) (*credit.Credit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleSourceReads > 0 {
		r.staleSourceReads--
		return nil, shared.NotFound("credit for document", documentID)
	}
	for _, c := range r.credits {
		if c.SourceDocumentID != nil && *c.SourceDocumentID == documentID && !c.IsDeleted() {
			return &c, nil
		}
	}
	return nil, shared.NotFound("credit for document", documentID)
}

func (r *memCredits) FindPending(_ context.Context, f credit.PendingFilter) ([]credit.Credit, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []credit.Credit
	for _, c := range r.credits {
		if c.IsDeleted() || !c.Status.IsPending() {
			continue
		}
		if f.CounterpartyID != "" && c.CounterpartyID != f.CounterpartyID {
			continue
		}
		if f.CounterpartyKind != "" && c.CounterpartyKind != f.CounterpartyKind {
			continue
		}
		if f.OverdueOnly && !c.IsOverdue(f.AsOf) {
			continue
		}
		if f.DueWithinDays > 0 && c.DueDate.After(f.AsOf.AddDate(0, 0, f.DueWithinDays)) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := int64(len(out))
	start := min(f.Offset(), len(out))
	end := min(start+f.PageSize, len(out))
	return out[start:end], total, nil
}

func (r *memCredits) FindByCounterparty(_ context.Context, counterpartyID string) ([]credit.Credit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []credit.Credit
	for _, c := range r.credits {
		if c.CounterpartyID == counterpartyID && !c.IsDeleted() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCredits) Save(_ context.Context, c *credit.Credit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	if _, ok := r.credits[c.ID]; ok {
		return shared.Duplicate("credit %s already exists", c.ID)
	}
	if c.SourceDocumentID != nil {
		for _, other := range r.credits {
			if other.SourceDocumentID != nil && *other.SourceDocumentID == *c.SourceDocumentID && !other.IsDeleted() {
				return shared.Duplicate("credit for document %s already exists", *c.SourceDocumentID)
			}
		}
	}
	cp := *c
	cp.ClearEvents()
	r.credits[c.ID] = cp
	return nil
}

func (r *memCredits) SaveWithLock(_ context.Context, c *credit.Credit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.credits[c.ID]
	if !ok {
		return shared.NotFound("credit", c.ID)
	}
	if stored.Version != c.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *c
	cp.ClearEvents()
	r.credits[c.ID] = cp
	return nil
}

type memSolutions struct{ *memStore }

func (r *memSolutions) Save(_ context.Context, s *credit.CreditSolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solutions = append(r.solutions, *s)
	return nil
}

func (r *memSolutions) find(match func(credit.CreditSolution) bool) []credit.CreditSolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []credit.CreditSolution
	for _, s := range r.solutions {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

func (r *memSolutions) FindByCredit(_ context.Context, creditID uuid.UUID) ([]credit.CreditSolution, error) {
	return r.find(func(s credit.CreditSolution) bool { return s.CreditID == creditID }), nil
}

func (r *memSolutions) FindByDestination(_ context.Context, creditID uuid.UUID) ([]credit.CreditSolution, error) {
	return r.find(func(s credit.CreditSolution) bool {
		dest, ok := s.DestinationCreditID()
		return ok && dest == creditID
	}), nil
}

func (r *memSolutions) FindBySaleDocument(_ context.Context, number string) ([]credit.CreditSolution, error) {
	return r.find(func(s credit.CreditSolution) bool {
		p, ok := s.Payload.(credit.SalePayload)
		return ok && p.SaleDocumentNumber == number
	}), nil
}

func (r *memSolutions) SumByKind(_ context.Context, creditIDs []uuid.UUID) (map[credit.SolutionKind]int, error) {
	ids := map[uuid.UUID]bool{}
	for _, id := range creditIDs {
		ids[id] = true
	}
	out := map[credit.SolutionKind]int{}
	for _, s := range r.find(func(s credit.CreditSolution) bool { return ids[s.CreditID] }) {
		out[s.Kind] += s.Quantity
	}
	return out, nil
}

type memDocuments struct{ *memStore }

func (r *memDocuments) FindByID(_ context.Context, id uuid.UUID) (*document.OutboundDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, shared.NotFound("outbound document", id)
	}
	return &d, nil
}

func (r *memDocuments) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*document.OutboundDocument, error) {
	return r.FindByID(ctx, id)
}

func (r *memDocuments) first(match func(document.OutboundDocument) bool) *document.OutboundDocument {
	for _, d := range r.docs {
		if !d.IsDeleted() && match(d) {
			return &d
		}
	}
	return nil
}

func (r *memDocuments) FindByFiscalKey(_ context.Context, key string) (*document.OutboundDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.first(func(d document.OutboundDocument) bool { return d.FiscalKey == key }); d != nil {
		return d, nil
	}
	return nil, shared.NotFound("outbound document with fiscal key", key)
}

func (r *memDocuments) FindByNaturalKey(_ context.Context, number, series, counterpartyID string) (*document.OutboundDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.first(func(d document.OutboundDocument) bool {
		return d.DocumentNumber == number && d.Series == series && d.CounterpartyID == counterpartyID
	})
	if d == nil {
		return nil, shared.NotFound("outbound document", number)
	}
	return d, nil
}

func (r *memDocuments) list(match func(document.OutboundDocument) bool) []document.OutboundDocument {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []document.OutboundDocument
	for _, d := range r.docs {
		if !d.IsDeleted() && match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EmissionDate.Equal(out[j].EmissionDate) {
			return out[i].EmissionDate.Before(out[j].EmissionDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *memDocuments) FindByNumber(_ context.Context, number, series string) ([]document.OutboundDocument, error) {
	key := document.NormalizeNumber(number)
	return r.list(func(d document.OutboundDocument) bool {
		return d.NumberKey == key && (series == "" || d.Series == series)
	}), nil
}

func (r *memDocuments) FindByNumberAndCounterparty(_ context.Context, number, counterpartyID string) ([]document.OutboundDocument, error) {
	key := document.NormalizeNumber(number)
	return r.list(func(d document.OutboundDocument) bool {
		return d.NumberKey == key && d.CounterpartyID == counterpartyID
	}), nil
}

func (r *memDocuments) FindOpenByCounterparty(_ context.Context, counterpartyID string) ([]document.OutboundDocument, error) {
	return r.list(func(d document.OutboundDocument) bool {
		return d.CounterpartyID == counterpartyID && d.IsMatchable()
	}), nil
}

func (r *memDocuments) FindWithPendingSuggestions(_ context.Context) ([]document.OutboundDocument, error) {
	r.mu.Lock()
	pending := map[uuid.UUID]bool{}
	for _, s := range r.settlements {
		if s.IsPendingSuggestion() {
			pending[s.OutboundDocumentID] = true
		}
	}
	r.mu.Unlock()
	return r.list(func(d document.OutboundDocument) bool { return pending[d.ID] }), nil
}

func (r *memDocuments) Save(_ context.Context, d *document.OutboundDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.FiscalKey != "" {
		if r.first(func(o document.OutboundDocument) bool { return o.FiscalKey == d.FiscalKey }) != nil {
			return shared.Duplicate("fiscal key %s already imported", d.FiscalKey)
		}
	}
	cp := *d
	cp.ClearEvents()
	r.docs[d.ID] = cp
	return nil
}

func (r *memDocuments) SaveWithLock(_ context.Context, d *document.OutboundDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.docs[d.ID]
	if !ok {
		return shared.NotFound("outbound document", d.ID)
	}
	if stored.Version != d.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *d
	cp.ClearEvents()
	r.docs[d.ID] = cp
	return nil
}

type memSettlements struct{ *memStore }

func (r *memSettlements) FindByID(_ context.Context, id uuid.UUID) (*document.DocumentSettlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settlements[id]
	if !ok {
		return nil, shared.NotFound("settlement", id)
	}
	return &s, nil
}

func (r *memSettlements) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*document.DocumentSettlement, error) {
	return r.FindByID(ctx, id)
}

func (r *memSettlements) FindByDocument(_ context.Context, documentID uuid.UUID) ([]document.DocumentSettlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []document.DocumentSettlement
	for _, id := range r.order {
		if s := r.settlements[id]; s.OutboundDocumentID == documentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSettlements) FindActiveDuplicate(ctx context.Context, documentID uuid.UUID, number, issuerCNPJ string) (*document.DocumentSettlement, error) {
	all, _ := r.FindByDocument(ctx, documentID)
	for i := range all {
		if !all[i].Rejected && all[i].SameSource(number, issuerCNPJ) {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (r *memSettlements) FindBySource(_ context.Context, number, issuerCNPJ string) ([]document.DocumentSettlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []document.DocumentSettlement
	for _, id := range r.order {
		if s := r.settlements[id]; !s.Rejected && s.SameSource(number, issuerCNPJ) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSettlements) SumConfirmed(ctx context.Context, documentID uuid.UUID) (int, error) {
	all, _ := r.FindByDocument(ctx, documentID)
	return document.ConfirmedTotal(all), nil
}

func (r *memSettlements) Save(_ context.Context, s *document.DocumentSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.ClearEvents()
	r.settlements[s.ID] = cp
	r.order = append(r.order, s.ID)
	return nil
}

func (r *memSettlements) SaveWithLock(_ context.Context, s *document.DocumentSettlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.settlements[s.ID]
	if !ok {
		return shared.NotFound("settlement", s.ID)
	}
	if stored.Version != s.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *s
	cp.ClearEvents()
	r.settlements[s.ID] = cp
	return nil
}

type memAudit struct{ *memStore }

func (r *memAudit) Save(_ context.Context, e *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memAudit) Find(_ context.Context, f audit.Filter) ([]audit.Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if f.EntityID != nil && e.EntityID != *f.EntityID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}
