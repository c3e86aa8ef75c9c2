package csvimport

import (
	"errors"
	"io"
	"strconv"

	"github.com/palletledger/backend/internal/domain/matching"
)

// Inbound candidate columns
const (
	ColInboundNumber = "number"
	ColIssuerCNPJ    = "issuer_cnpj"
	ColIssuerName    = "issuer_name"
	ColAnnex         = "annex"
	ColExternalRef   = "external_ref"
)

func inboundRules() []FieldRule {
	return []FieldRule{
		Field(ColInboundNumber).Required().Build(),
		Field(ColFiscalKey).Pattern(fiscalKeyPattern, "a 44-digit access key").Unique().Build(),
		Field(ColEmissionDate).Required().Date().Build(),
		Field(ColIssuerCNPJ).Required().Pattern(`^[0-9./\-]{11,18}$`, "a CNPJ or CPF").Build(),
		Field(ColQuantity).Required().Int().Min(1).Build(),
	}
}

// ParseInboundCandidates reads an export of inbound return documents
func ParseInboundCandidates(r io.Reader, maxErrors int) ([]matching.InboundCandidate, *ErrorCollection, error) {
	p, err := NewCSVParser(r)
	if err != nil {
		return nil, nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, nil, err
	}

	errs := NewErrorCollection(maxErrors)
	v := NewFieldValidator(inboundRules(), errs)
	if missing := p.ValidateHeaders(v.RequiredColumns()); len(missing) > 0 {
		return nil, nil, &MissingColumnsError{Columns: missing}
	}

	var out []matching.InboundCandidate
	for {
		row, err := p.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs.Addf(p.CurrentRow(), "", CodeMalformedRow, "", "%s", err.Error())
			continue
		}
		if row.IsEmpty() || !v.ValidateRow(row) {
			continue
		}
		emitted, _ := ParseDate(row.Get(ColEmissionDate))
		qty, _ := strconv.Atoi(row.Get(ColQuantity))
		out = append(out, matching.InboundCandidate{
			SettlementDocNumber: row.Get(ColInboundNumber),
			Series:              row.Get(ColSeries),
			FiscalKey:           row.Get(ColFiscalKey),
			EmissionDate:        emitted,
			IssuerCNPJ:          row.Get(ColIssuerCNPJ),
			IssuerName:          row.Get(ColIssuerName),
			Quantity:            qty,
			FreeTextAnnex:       row.Get(ColAnnex),
			ExternalRefID:       row.Get(ColExternalRef),
		})
	}
	return out, errs, nil
}
