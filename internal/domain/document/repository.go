package document

import (
	"context"

	"github.com/google/uuid"
)

// OutboundDocumentRepository persists OutboundDocument aggregates
type OutboundDocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*OutboundDocument, error)
	// FindByIDForUpdate loads the document holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*OutboundDocument, error)
	FindByFiscalKey(ctx context.Context, fiscalKey string) (*OutboundDocument, error)
	// FindByNaturalKey looks a document up by (number, series, counterparty)
	FindByNaturalKey(ctx context.Context, number, series, counterpartyID string) (*OutboundDocument, error)
	// FindByNumber returns every non-deleted document with the given number, optionally filtered by series
	FindByNumber(ctx context.Context, number, series string) ([]OutboundDocument, error)
	// FindByNumberAndCounterparty returns documents of one counterparty whose normalised number matches
	FindByNumberAndCounterparty(ctx context.Context, number, counterpartyID string) ([]OutboundDocument, error)
	// FindOpenByCounterparty returns ACTIVE documents with pending quantity, oldest emission first
	// (ties broken by number key, then id)
	FindOpenByCounterparty(ctx context.Context, counterpartyID string) ([]OutboundDocument, error)
	// FindWithPendingSuggestions returns documents with at least one pending SUGGESTED settlement
	FindWithPendingSuggestions(ctx context.Context) ([]OutboundDocument, error)
	Save(ctx context.Context, d *OutboundDocument) error
	SaveWithLock(ctx context.Context, d *OutboundDocument) error
}

// SettlementRepository persists DocumentSettlement records
type SettlementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*DocumentSettlement, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*DocumentSettlement, error)
	// FindByDocument returns all settlements of a document in creation order
	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]DocumentSettlement, error)
	// FindActiveDuplicate returns a non-rejected settlement of documentID that came from the
	// same inbound document (number + issuer), or nil
	FindActiveDuplicate(ctx context.Context, documentID uuid.UUID, number, issuerCNPJ string) (*DocumentSettlement, error)
	// FindBySource returns every non-rejected settlement created from one inbound document
	FindBySource(ctx context.Context, number, issuerCNPJ string) ([]DocumentSettlement, error)
	// SumConfirmed totals confirmed, non-rejected quantities of a document
	SumConfirmed(ctx context.Context, documentID uuid.UUID) (int, error)
	Save(ctx context.Context, s *DocumentSettlement) error
	SaveWithLock(ctx context.Context, s *DocumentSettlement) error
}
