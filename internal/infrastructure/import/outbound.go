package csvimport

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/domain/credit"
	"github.com/palletledger/backend/internal/domain/document"
)

// Outbound document columns
const (
	ColDocumentNumber   = "document_number"
	ColSeries           = "series"
	ColFiscalKey        = "fiscal_key"
	ColEmissionDate     = "emission_date"
	ColIssuingEntity    = "issuing_entity"
	ColCounterpartyKind = "counterparty_kind"
	ColCounterpartyID   = "counterparty_id"
	ColCounterpartyName = "counterparty_name"
	ColCarrierID        = "carrier_id"
	ColCarrierName      = "carrier_name"
	ColRegion           = "region"
	ColRouteFlag        = "route_flag"
	ColQuantity         = "quantity"
	ColUnitValue        = "unit_value"
	ColTotalValue       = "total_value"
)

const fiscalKeyPattern = `^[0-9 .\-]{44,60}$`

func outboundRules() []FieldRule {
	return []FieldRule{
		Field(ColDocumentNumber).Required().Build(),
		Field(ColFiscalKey).Pattern(fiscalKeyPattern, "a 44-digit access key").Unique().Build(),
		Field(ColEmissionDate).Required().Date().Build(),
		Field(ColIssuingEntity).Required().OneOf(
			string(document.IssuerHeadquarters), string(document.IssuerDistribution), string(document.IssuerLogistics),
		).Build(),
		Field(ColCounterpartyKind).Required().OneOf(string(credit.CounterpartyCarrier), string(credit.CounterpartyCustomer)).Build(),
		Field(ColCounterpartyID).Required().Build(),
		Field(ColRouteFlag).Bool().Build(),
		Field(ColQuantity).Required().Int().Min(0).Build(),
		Field(ColUnitValue).Decimal().Build(),
		Field(ColTotalValue).Decimal().Build(),
	}
}

// OutboundRow is one valid outbound document with its source line
type OutboundRow struct {
	Line  int
	Input ledger.ImportOutboundInput
}

// OutboundFile is the result of parsing an outbound document export
type OutboundFile struct {
	Rows      []OutboundRow
	TotalRows int
	Errors    *ErrorCollection
}

// Inputs returns the parsed records in file order
func (f *OutboundFile) Inputs() []ledger.ImportOutboundInput {
	out := make([]ledger.ImportOutboundInput, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Input
	}
	return out
}

// ParseOutboundDocuments reads an outbound document export. Invalid rows are reported in
// Errors and left out of Rows; a missing header or required column fails the whole file.
func ParseOutboundDocuments(r io.Reader, actor string, maxErrors int) (*OutboundFile, error) {
	p, err := NewCSVParser(r)
	if err != nil {
		return nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}

	errs := NewErrorCollection(maxErrors)
	v := NewFieldValidator(outboundRules(), errs)
	if missing := p.ValidateHeaders(v.RequiredColumns()); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	file := &OutboundFile{Errors: errs}
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
		file.Rows = append(file.Rows, OutboundRow{Line: row.LineNumber, Input: outboundInput(row, actor)})
	}
	file.TotalRows = p.TotalRows()
	return file, nil
}

// outboundInput maps a validated row
func outboundInput(row *Row, actor string) ledger.ImportOutboundInput {
	emitted, _ := ParseDate(row.Get(ColEmissionDate))
	qty, _ := strconv.Atoi(row.Get(ColQuantity))
	in := ledger.ImportOutboundInput{
		DocumentNumber:   row.Get(ColDocumentNumber),
		Series:           row.Get(ColSeries),
		FiscalKey:        row.Get(ColFiscalKey),
		EmissionDate:     emitted,
		IssuingEntity:    document.IssuingEntity(strings.ToUpper(row.Get(ColIssuingEntity))),
		CounterpartyKind: credit.CounterpartyKind(strings.ToUpper(row.Get(ColCounterpartyKind))),
		CounterpartyID:   row.Get(ColCounterpartyID),
		CounterpartyName: row.Get(ColCounterpartyName),
		CarrierID:        row.Get(ColCarrierID),
		CarrierName:      row.Get(ColCarrierName),
		Region:           strings.ToUpper(row.Get(ColRegion)),
		Quantity:         qty,
		Actor:            actor,
	}
	if s := row.Get(ColRouteFlag); s != "" {
		in.RouteFlag, _ = ParseBool(s)
	}
	if s := row.Get(ColUnitValue); s != "" {
		in.UnitValue, _ = ParseDecimal(s)
	}
	if s := row.Get(ColTotalValue); s != "" {
		in.TotalValue, _ = ParseDecimal(s)
	}
	return in
}
