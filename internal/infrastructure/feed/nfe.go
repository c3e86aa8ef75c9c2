// Package feed reads inbound return documents from NF-e XML files and spreadsheet exports.
package feed

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/palletledger/backend/internal/domain/matching"
	"github.com/shopspring/decimal"
)

// ErrNotNFe is returned for XML that carries no infNFe element
var ErrNotNFe = errors.New("feed: document is not an NF-e")

// emission timestamps seen in the wild: dhEmi (v3.10+) and dEmi (v2.00)
var nfeDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

// ParseNFe reads one authorised NF-e (bare NFe or nfeProc envelope) into an inbound candidate.
// Quantities of every item are summed; the complementary information becomes the annex.
func ParseNFe(data []byte) (matching.InboundCandidate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return matching.InboundCandidate{}, fmt.Errorf("feed: parse XML: %w", err)
	}
	inf := doc.FindElement("//infNFe")
	if inf == nil {
		return matching.InboundCandidate{}, ErrNotNFe
	}

	cand := matching.InboundCandidate{
		SettlementDocNumber: childText(inf, "ide/nNF"),
		Series:              childText(inf, "ide/serie"),
		FiscalKey:           strings.TrimPrefix(inf.SelectAttrValue("Id", ""), "NFe"),
		IssuerName:          childText(inf, "emit/xNome"),
		FreeTextAnnex:       childText(inf, "infAdic/infCpl"),
	}
	if cand.FiscalKey == "" {
		cand.FiscalKey = childText(&doc.Element, "//protNFe/infProt/chNFe")
	}

	cand.IssuerCNPJ = childText(inf, "emit/CNPJ")
	if cand.IssuerCNPJ == "" {
		cand.IssuerCNPJ = childText(inf, "emit/CPF")
	}

	emitted := childText(inf, "ide/dhEmi")
	if emitted == "" {
		emitted = childText(inf, "ide/dEmi")
	}
	date, err := parseNFeDate(emitted)
	if err != nil {
		return matching.InboundCandidate{}, err
	}
	cand.EmissionDate = date

	qty, err := sumQuantities(inf)
	if err != nil {
		return matching.InboundCandidate{}, fmt.Errorf("feed: NF-e %s: %w", cand.SettlementDocNumber, err)
	}
	cand.Quantity = qty

	if err := cand.Validate(); err != nil {
		return matching.InboundCandidate{}, err
	}
	return cand, nil
}

func childText(e *etree.Element, path string) string {
	if c := e.FindElement(path); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

// parseNFeDate keeps the calendar day the document was issued on, in UTC
func parseNFeDate(s string) (time.Time, error) {
	for _, layout := range nfeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("feed: unrecognised emission date %q", s)
}

func sumQuantities(inf *etree.Element) (int, error) {
	total := decimal.Zero
	items := inf.FindElements("det/prod/qCom")
	if len(items) == 0 {
		return 0, errors.New("no items")
	}
	for _, q := range items {
		d, err := decimal.NewFromString(strings.TrimSpace(q.Text()))
		if err != nil {
			return 0, fmt.Errorf("invalid quantity %q", q.Text())
		}
		total = total.Add(d)
	}
	if !total.IsInteger() {
		return 0, fmt.Errorf("fractional pallet quantity %s", total)
	}
	return int(total.IntPart()), nil
}
