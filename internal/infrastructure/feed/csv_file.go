package feed

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/palletledger/backend/internal/domain/matching"
	csvimport "github.com/palletledger/backend/internal/infrastructure/import"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CSVFileFeed serves inbound candidates from a spreadsheet export on disk.
// The file is re-read on every Fetch so a refreshed export is picked up by the next sweep.
type CSVFileFeed struct {
	path      string
	maxErrors int
	logger    *zap.Logger
}

// NewCSVFileFeed creates a feed over the export at path
func NewCSVFileFeed(path string, logger *zap.Logger) *CSVFileFeed {
	return &CSVFileFeed{path: path, maxErrors: 50, logger: logger}
}

// Fetch returns the valid rows emitted on the days from through to, oldest first.
// Row-level problems are logged; a missing file or header fails the fetch.
func (f *CSVFileFeed) Fetch(ctx context.Context, from, to time.Time) ([]matching.InboundCandidate, error) {
	_, span := telemetry.StartSpan(ctx, "feed.fetch", telemetry.WithAttribute("source", "csv"))
	defer span.End()

	file, err := os.Open(f.path)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer file.Close()

	cands, errs, err := csvimport.ParseInboundCandidates(file, f.maxErrors)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if errs.HasErrors() {
		f.logger.Warn("Inbound export has invalid rows",
			zap.String("file", f.path),
			zap.Int("invalid_rows", errs.TotalCount()),
			zap.String("first_error", errs.Errors()[0].Error()),
		)
	}

	out := cands[:0]
	for _, c := range cands {
		if inWindow(c.EmissionDate, from, to) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EmissionDate.Before(out[j].EmissionDate) })
	telemetry.SetAttribute(span, "candidates", len(out))
	return out, nil
}
