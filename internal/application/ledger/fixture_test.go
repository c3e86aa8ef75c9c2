package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	store       *memStore
	publisher   *recordingPublisher
	credits     *CreditService
	documents   *DocumentService
	settlements *SettlementService
	audit       *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	scope := newMemTxScope(store)
	repos := store.repositories()
	rule := credit.DefaultDueDateRule("SP")
	logger := zap.NewNop()

	f := &fixture{
		store:       store,
		publisher:   &recordingPublisher{},
		credits:     NewCreditService(scope, repos, rule, logger),
		documents:   NewDocumentService(scope, repos, rule, logger),
		settlements: NewSettlementService(scope, repos, logger),
		audit:       NewAuditService(repos.Audit),
	}
	f.credits.SetEventPublisher(f.publisher)
	f.documents.SetEventPublisher(f.publisher)
	f.settlements.SetEventPublisher(f.publisher)
	return f
}

var emission = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func outboundInput(number, counterparty string, quantity int) ImportOutboundInput {
	return ImportOutboundInput{
		DocumentNumber:   number,
		Series:           "1",
		EmissionDate:     emission,
		IssuingEntity:    document.IssuerDistribution,
		CounterpartyKind: credit.CounterpartyCustomer,
		CounterpartyID:   counterparty,
		CounterpartyName: "Customer " + counterparty,
		Region:           "SP",
		Quantity:         quantity,
		Actor:            "importer",
	}
}

// importDoc imports an outbound document and returns it with its credit
func (f *fixture) importDoc(t *testing.T, number, counterparty string, quantity int) (*document.OutboundDocument, *credit.Credit) {
	t.Helper()
	res, err := f.documents.ImportOutbound(context.Background(), outboundInput(number, counterparty, quantity))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	return res.Document, res.Credit
}

func (f *fixture) reloadCredit(t *testing.T, id uuid.UUID) *credit.Credit {
	t.Helper()
	c, err := f.credits.GetCredit(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) reloadDoc(t *testing.T, id uuid.UUID) *document.OutboundDocument {
	t.Helper()
	d, err := f.documents.GetOutbound(context.Background(), id)
	require.NoError(t, err)
	return d
}

func writeOff(creditID uuid.UUID, quantity int) ApplySolutionInput {
	return ApplySolutionInput{
		CreditID: creditID,
		Quantity: quantity,
		Payload:  credit.WriteOffPayload{Reason: "lost in transit"},
		Actor:    "analyst",
	}
}

func manualReturn(docID uuid.UUID, quantity int, number string) RegisterSettlementInput {
	return RegisterSettlementInput{
		OutboundDocumentID: docID,
		Kind:               document.SettlementReturn,
		Quantity:           quantity,
		Document: document.SettlementDocument{
			Number:     number,
			IssuerCNPJ: "12.345.678/0001-90",
		},
		LinkageMode: document.LinkManual,
		Actor:       "analyst",
	}
}
