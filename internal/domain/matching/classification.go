package matching

// Pattern is the reconciliation pattern of an inbound document
type Pattern string

const (
	// PatternExact links one inbound document to the one outbound document it cites
	PatternExact Pattern = "EXACT"
	// PatternReturn spreads one inbound document over several outbound documents
	PatternReturn Pattern = "RETURN"
)

// String returns the string representation of Pattern
func (p Pattern) String() string {
	return string(p)
}

// Classification is the outcome of reading an inbound annex
type Classification struct {
	Pattern   Pattern `json:"pattern"`
	Reference string  `json:"reference,omitempty"`
}

// Classify returns EXACT when the annex cites an outbound document number, RETURN otherwise
func Classify(annex string) Classification {
	if ref, ok := ExtractReference(annex); ok {
		return Classification{Pattern: PatternExact, Reference: ref}
	}
	return Classification{Pattern: PatternReturn}
}
