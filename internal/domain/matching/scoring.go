package matching

import (
	"sort"
	"strings"

	"github.com/palletledger/backend/internal/domain/document"
)

// Scoring weights and thresholds
const (
	ReferenceWeight    = 50
	CounterpartyWeight = 30
	FullFitWeight      = 20
	PartialFitWeight   = 10

	// SuggestionThreshold is the minimum score for a SUGGESTED settlement
	SuggestionThreshold = 50
	// ExactMatchScore is stamped on links found through an explicit reference
	ExactMatchScore = 100
)

// QuantityFit describes how much of a requested quantity a document can absorb
type QuantityFit string

const (
	FitFull    QuantityFit = "FULL"
	FitPartial QuantityFit = "PARTIAL"
	FitNone    QuantityFit = "NONE"
)

// ScoreInput is what a single candidate document is scored against
type ScoreInput struct {
	Reference      string // normalised reference extracted from the annex, may be empty
	CounterpartyID string // normalised issuer of the inbound document
	Requested      int
}

// ScoreBreakdown explains a compatibility score
type ScoreBreakdown struct {
	ReferenceMatch    bool        `json:"reference_match"`
	CounterpartyMatch bool        `json:"counterparty_match"`
	QuantityFit       QuantityFit `json:"quantity_fit"`
	Total             int         `json:"total"`
}

// MeetsThreshold reports whether the score allows a suggestion
func (b ScoreBreakdown) MeetsThreshold() bool {
	return b.Total >= SuggestionThreshold
}

// Score computes the compatibility of an outbound document with an inbound quantity
func Score(doc *document.OutboundDocument, in ScoreInput) ScoreBreakdown {
	var b ScoreBreakdown

	if in.Reference != "" && doc.NumberKey == document.NormalizeNumber(in.Reference) {
		b.ReferenceMatch = true
		b.Total += ReferenceWeight
	}

	if in.CounterpartyID != "" && doc.CounterpartyID == document.NormalizeCNPJ(in.CounterpartyID) {
		b.CounterpartyMatch = true
		b.Total += CounterpartyWeight
	}

	pending := doc.PendingQuantity()
	switch {
	case pending <= 0:
		b.QuantityFit = FitNone
	case pending >= in.Requested:
		b.QuantityFit = FitFull
		b.Total += FullFitWeight
	default:
		b.QuantityFit = FitPartial
		b.Total += PartialFitWeight
	}

	return b
}

// ScoredCandidate pairs a document with its score
type ScoredCandidate struct {
	Document *document.OutboundDocument
	Score    ScoreBreakdown
}

// SortFIFO orders documents oldest emission first, then by number, then by id
func SortFIFO(docs []document.OutboundDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return fifoLess(&docs[i], &docs[j])
	})
}

// RankCandidates orders candidates by score descending with FIFO tie-breaks
func RankCandidates(cands []ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score.Total != cands[j].Score.Total {
			return cands[i].Score.Total > cands[j].Score.Total
		}
		return fifoLess(cands[i].Document, cands[j].Document)
	})
}

func fifoLess(a, b *document.OutboundDocument) bool {
	if !a.EmissionDate.Equal(b.EmissionDate) {
		return a.EmissionDate.Before(b.EmissionDate)
	}
	if c := compareNumberKeys(a.NumberKey, b.NumberKey); c != 0 {
		return c < 0
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}

// compareNumberKeys compares numeric keys by value, falling back to text order
func compareNumberKeys(a, b string) int {
	if isDigits(a) && isDigits(b) {
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
