package matching

import (
	"strings"
	"time"

	"github.com/palletledger/backend/internal/domain/document"
	"github.com/palletledger/backend/internal/domain/shared"
)

// InboundCandidate is a return-side fiscal document read from the inbound feed.
// The issuer is the counterparty the pallets come back from.
type InboundCandidate struct {
	SettlementDocNumber string    `json:"settlement_doc_number"`
	Series              string    `json:"series,omitempty"`
	FiscalKey           string    `json:"fiscal_key,omitempty"`
	EmissionDate        time.Time `json:"emission_date"`
	IssuerCNPJ          string    `json:"issuer_cnpj"`
	IssuerName          string    `json:"issuer_name"`
	Quantity            int       `json:"quantity"`
	FreeTextAnnex       string    `json:"free_text_annex"`
	ExternalRefID       string    `json:"external_ref_id,omitempty"`
}

// Validate checks the fields the engine relies on
func (c InboundCandidate) Validate() error {
	if strings.TrimSpace(c.SettlementDocNumber) == "" {
		return shared.Validation("inbound document number is required")
	}
	if document.NormalizeCNPJ(c.IssuerCNPJ) == "" {
		return shared.Validation("inbound document %s has no issuer", c.SettlementDocNumber)
	}
	if c.Quantity <= 0 {
		return shared.Validation("inbound document %s quantity must be positive, got %d", c.SettlementDocNumber, c.Quantity)
	}
	return nil
}

// CounterpartyID returns the normalised issuer tax id
func (c InboundCandidate) CounterpartyID() string {
	return document.NormalizeCNPJ(c.IssuerCNPJ)
}

// SettlementDocument converts the candidate into settlement metadata
func (c InboundCandidate) SettlementDocument() document.SettlementDocument {
	var date *time.Time
	if !c.EmissionDate.IsZero() {
		d := c.EmissionDate.UTC()
		date = &d
	}
	return document.SettlementDocument{
		Number:     c.SettlementDocNumber,
		Series:     c.Series,
		FiscalKey:  c.FiscalKey,
		Date:       date,
		IssuerCNPJ: c.IssuerCNPJ,
		IssuerName: c.IssuerName,
	}
}

// Key identifies the candidate in reports
func (c InboundCandidate) Key() string {
	if c.FiscalKey != "" {
		return document.NormalizeFiscalKey(c.FiscalKey)
	}
	return c.CounterpartyID() + "/" + document.NormalizeNumber(c.SettlementDocNumber)
}
