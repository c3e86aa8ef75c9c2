package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/audit"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_ImportOutbound(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the document and its credit", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.documents.ImportOutbound(ctx, outboundInput("000100", "11.111.111/0001-11", 30))
		require.NoError(t, err)

		assert.False(t, res.Duplicate)
		assert.Equal(t, "000100", res.Document.DocumentNumber)
		assert.Equal(t, "100", res.Document.NumberKey)
		assert.Equal(t, "11111111000111", res.Document.CounterpartyID)
		assert.Equal(t, document.StatusActive, res.Document.Status)
		require.NotNil(t, res.Credit)
		assert.Equal(t, 30, res.Credit.RemainingBalance)
		assert.Equal(t, credit.StatusOpen, res.Credit.Status)
		assert.Equal(t, res.Document.ID, *res.Credit.SourceDocumentID)

		assert.ElementsMatch(t, []string{
			document.EventTypeOutboundDocumentImported,
			credit.EventTypeCreditCreated,
		}, f.publisher.types())

		var actions []string
		for _, e := range f.store.auditEntries() {
			actions = append(actions, e.Action)
		}
		assert.ElementsMatch(t, []string{audit.ActionCreateCredit, audit.ActionImportOutbound}, actions)
	})

	t.Run("re-import by fiscal key is idempotent", func(t *testing.T) {
		f := newFixture(t)
		in := outboundInput("100", "11111111000111", 30)
		in.FiscalKey = "3524 0311 1111 1100 0111 5500 1000 0001 0012 3456 7890"

		first, err := f.documents.ImportOutbound(ctx, in)
		require.NoError(t, err)
		f.publisher.reset()

		in.Quantity = 99
		second, err := f.documents.ImportOutbound(ctx, in)
		require.NoError(t, err)
		assert.True(t, second.Duplicate)
		assert.Equal(t, first.Document.ID, second.Document.ID)
		assert.Equal(t, first.Credit.ID, second.Credit.ID)
		assert.Equal(t, 30, second.Document.Quantity)
		assert.Empty(t, f.publisher.types())

		credits, err := f.store.repositories().Credits.FindByCounterparty(ctx, "11111111000111")
		require.NoError(t, err)
		assert.Len(t, credits, 1)
	})

	t.Run("re-import by natural key is idempotent", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.documents.ImportOutbound(ctx, outboundInput("100", "11111111000111", 30))
		require.NoError(t, err)
		second, err := f.documents.ImportOutbound(ctx, outboundInput("100", "11111111000111", 30))
		require.NoError(t, err)
		assert.True(t, second.Duplicate)
		assert.Equal(t, first.Document.ID, second.Document.ID)

		other, err := f.documents.ImportOutbound(ctx, outboundInput("100", "22222222000122", 30))
		require.NoError(t, err)
		assert.False(t, other.Duplicate)
	})

	t.Run("invalid records are rejected and audited", func(t *testing.T) {
		f := newFixture(t)
		in := outboundInput("100", "11111111000111", 0)
		_, err := f.documents.ImportOutbound(ctx, in)
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))

		in = outboundInput("", "11111111000111", 5)
		_, err = f.documents.ImportOutbound(ctx, in)
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
		assert.Contains(t, err.Error(), "DocumentNumber is required")

		entries := f.store.auditEntries()
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.Equal(t, audit.OutcomeFailure, e.Outcome)
		}
	})

	t.Run("storage failure rolls back the document", func(t *testing.T) {
		f := newFixture(t)
		f.store.failSave = errors.New("disk full")
		_, err := f.documents.ImportOutbound(ctx, outboundInput("100", "11111111000111", 30))
		require.Error(t, err)
		f.store.failSave = nil

		docs, err := f.documents.GetOutboundByNumber(ctx, "100", "")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestDocumentService_ImportOutboundBatch(t *testing.T) {
	f := newFixture(t)
	inputs := []ImportOutboundInput{
		outboundInput("100", "11111111000111", 30),
		outboundInput("101", "11111111000111", -1),
		outboundInput("100", "11111111000111", 30),
		outboundInput("102", "11111111000111", 5),
	}

	res := f.documents.ImportOutboundBatch(context.Background(), inputs)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, "101", res.Errors[0].DocumentNumber)
	assert.Equal(t, shared.CodeValidation, res.Errors[0].Code)
}

func TestDocumentService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels and keeps confirmed settlements", func(t *testing.T) {
		f := newFixture(t)
		doc, _ := f.importDoc(t, "100", "11111111000111", 30)
		_, err := f.settlements.RegisterSettlement(ctx, manualReturn(doc.ID, 10, "900"))
		require.NoError(t, err)

		cancelled, err := f.documents.Cancel(ctx, doc.ID, "issued in error", "supervisor")
		require.NoError(t, err)
		assert.Equal(t, document.StatusCancelled, cancelled.Status)
		assert.Equal(t, "supervisor", cancelled.CancelledBy)
		assert.NotNil(t, cancelled.CancelledAt)
		assert.Equal(t, 10, cancelled.ResolvedQuantity)

		history, err := f.documents.GetSettlementHistory(ctx, doc.ID)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("cancelling twice is a no-op", func(t *testing.T) {
		f := newFixture(t)
		doc, _ := f.importDoc(t, "100", "11111111000111", 30)
		first, err := f.documents.Cancel(ctx, doc.ID, "issued in error", "supervisor")
		require.NoError(t, err)

		second, err := f.documents.Cancel(ctx, doc.ID, "again", "someone else")
		require.NoError(t, err)
		assert.Equal(t, first.Version, second.Version)
		assert.Equal(t, "issued in error", second.CancelReason)
	})

	t.Run("cancelling a cancelled document needs no reason", func(t *testing.T) {
		f := newFixture(t)
		doc, _ := f.importDoc(t, "100", "11111111000111", 30)
		first, err := f.documents.Cancel(ctx, doc.ID, "issued in error", "supervisor")
		require.NoError(t, err)

		again, err := f.documents.Cancel(ctx, doc.ID, "", "supervisor")
		require.NoError(t, err)
		assert.Equal(t, document.StatusCancelled, again.Status)
		assert.Equal(t, first.Version, again.Version)
		assert.Equal(t, "issued in error", again.CancelReason)
	})

	t.Run("reason is mandatory", func(t *testing.T) {
		f := newFixture(t)
		doc, _ := f.importDoc(t, "100", "11111111000111", 30)
		_, err := f.documents.Cancel(ctx, doc.ID, "  ", "supervisor")
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
		assert.Equal(t, document.StatusActive, f.reloadDoc(t, doc.ID).Status)
	})

	t.Run("unknown document", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.documents.Cancel(ctx, uuid.New(), "x", "supervisor")
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestDocumentService_RecomputeStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	doc, _ := f.importDoc(t, "100", "11111111000111", 30)
	_, err := f.settlements.RegisterSettlement(ctx, manualReturn(doc.ID, 30, "900"))
	require.NoError(t, err)

	// drift the stored resolved quantity out of line with the settlements
	stored := f.store.docs[doc.ID]
	stored.ResolvedQuantity = 3
	stored.Status = document.StatusActive
	f.store.docs[doc.ID] = stored

	fixed, err := f.documents.RecomputeStatus(ctx, doc.ID, "auditor")
	require.NoError(t, err)
	assert.Equal(t, 30, fixed.ResolvedQuantity)
	assert.Equal(t, document.StatusSettled, fixed.Status)

	again, err := f.documents.RecomputeStatus(ctx, doc.ID, "auditor")
	require.NoError(t, err)
	assert.Equal(t, fixed.Version, again.Version)
}

func TestDocumentService_Queries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := outboundInput("0042", "11111111000111", 30)
	in.FiscalKey = "35240311111111000111550010000000421234567890"
	res, err := f.documents.ImportOutbound(ctx, in)
	require.NoError(t, err)

	t.Run("by number ignores leading zeros", func(t *testing.T) {
		docs, err := f.documents.GetOutboundByNumber(ctx, "42", "")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, res.Document.ID, docs[0].ID)

		docs, err = f.documents.GetOutboundByNumber(ctx, "42", "9")
		require.NoError(t, err)
		assert.Empty(t, docs)

		_, err = f.documents.GetOutboundByNumber(ctx, " ", "")
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
	})

	t.Run("by fiscal key", func(t *testing.T) {
		d, err := f.documents.GetOutboundByFiscalKey(ctx, "3524 0311 1111 1100 0111 5500 1000 0000 4212 3456 7890")
		require.NoError(t, err)
		assert.Equal(t, res.Document.ID, d.ID)

		_, err = f.documents.GetOutboundByFiscalKey(ctx, "none")
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
	})

	t.Run("pending suggestions", func(t *testing.T) {
		in := manualReturn(res.Document.ID, 5, "901")
		in.LinkageMode = document.LinkSuggested
		in.MatchScore = 80
		_, err := f.settlements.RegisterSettlement(ctx, in)
		require.NoError(t, err)

		pending, err := f.documents.ListPendingSuggestions(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, res.Document.ID, pending[0].Document.ID)
		require.Len(t, pending[0].Suggestions, 1)
		assert.Equal(t, 80, pending[0].Suggestions[0].MatchScore)
	})

	t.Run("audit query", func(t *testing.T) {
		id := res.Document.ID
		page, err := f.audit.Find(ctx, audit.Filter{EntityID: &id})
		require.NoError(t, err)
		require.NotEmpty(t, page.Items)
		assert.Equal(t, audit.ActionImportOutbound, page.Items[0].Action)

		from := time.Now()
		to := from.Add(-time.Hour)
		_, err = f.audit.Find(ctx, audit.Filter{From: &from, To: &to})
		assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
	})
}
