package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/palletledger/backend/internal/domain/matching"
	csvimport "github.com/palletledger/backend/internal/infrastructure/import"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedFile is returned for uploads that are not CSV, XML or ZIP
	ErrUnsupportedFile = errors.New("feed: unsupported file type")
	// ErrStore wraps failures of the candidate store, as opposed to unreadable input
	ErrStore = errors.New("feed: store candidates")
)

// CandidateStore persists ingested candidates; persistence.GormInboundCandidateRepository implements it
type CandidateStore interface {
	SaveBatch(ctx context.Context, cands []matching.InboundCandidate, source string) (int, error)
}

// IngestResult summarises one uploaded file
type IngestResult struct {
	Source     string               `json:"source"`
	Parsed     int                  `json:"parsed"`
	Stored     int                  `json:"stored"`
	Duplicates int                  `json:"duplicates"`
	Errors     []csvimport.RowError `json:"errors,omitempty"`
	ErrorCount int                  `json:"error_count"`
}

// Ingestor stores inbound candidates read from CSV exports, NF-e XML files or ZIP bundles of XML
type Ingestor struct {
	store     CandidateStore
	maxErrors int
	logger    *zap.Logger
}

// NewIngestor creates an Ingestor writing to store
func NewIngestor(store CandidateStore, logger *zap.Logger) *Ingestor {
	return &Ingestor{store: store, maxErrors: 100, logger: logger}
}

// Ingest reads r according to the extension of name and stores every valid candidate.
// Candidates already stored are counted as duplicates.
func (i *Ingestor) Ingest(ctx context.Context, name string, r io.Reader) (*IngestResult, error) {
	res := &IngestResult{Source: path.Base(name)}

	var cands []matching.InboundCandidate
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		parsed, errs, err := csvimport.ParseInboundCandidates(r, i.maxErrors)
		if err != nil {
			return nil, err
		}
		cands = parsed
		res.Errors = errs.Errors()
		res.ErrorCount = errs.TotalCount()
	case ".xml":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		cand, err := ParseNFe(data)
		if err != nil {
			return nil, err
		}
		cands = append(cands, cand)
	case ".zip":
		parsed, errs, err := i.readZip(r)
		if err != nil {
			return nil, err
		}
		cands = parsed
		res.Errors = errs.Errors()
		res.ErrorCount = errs.TotalCount()
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFile, path.Ext(name))
	}

	res.Parsed = len(cands)
	stored, err := i.store.SaveBatch(ctx, cands, res.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	res.Stored = stored
	res.Duplicates = res.Parsed - stored

	i.logger.Info("Ingested inbound candidates",
		zap.String("source", res.Source),
		zap.Int("parsed", res.Parsed),
		zap.Int("stored", res.Stored),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("errors", res.ErrorCount),
	)
	return res, nil
}

// readZip parses every XML entry of a ZIP bundle; an entry that fails is reported by its index
func (i *Ingestor) readZip(r io.Reader) ([]matching.InboundCandidate, *csvimport.ErrorCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("feed: open zip: %w", err)
	}

	errs := csvimport.NewErrorCollection(i.maxErrors)
	var out []matching.InboundCandidate
	for n, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".xml") {
			continue
		}
		cand, err := readZipEntry(f)
		if err != nil {
			errs.Add(csvimport.RowError{Row: n + 1, Column: f.Name, Code: csvimport.CodeMalformedRow, Message: err.Error()})
			continue
		}
		out = append(out, cand)
	}
	return out, errs, nil
}

func readZipEntry(f *zip.File) (matching.InboundCandidate, error) {
	rc, err := f.Open()
	if err != nil {
		return matching.InboundCandidate{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return matching.InboundCandidate{}, err
	}
	return ParseNFe(data)
}
