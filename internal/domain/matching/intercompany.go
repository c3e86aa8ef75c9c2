package matching

import (
	"strings"

	"github.com/palletledger/backend/internal/domain/document"
)

// cnpjRootLength is the number of leading digits shared by every branch of a company
const cnpjRootLength = 8

// IntercompanyFilter recognises documents issued by the company's own legal entities
type IntercompanyFilter struct {
	prefixes []string
}

// NewIntercompanyFilter builds a filter from CNPJ roots or full CNPJs (punctuation allowed)
func NewIntercompanyFilter(prefixes ...string) *IntercompanyFilter {
	f := &IntercompanyFilter{}
	for _, p := range prefixes {
		n := document.NormalizeCNPJ(p)
		if n == "" {
			continue
		}
		if len(n) > cnpjRootLength {
			n = n[:cnpjRootLength]
		}
		f.prefixes = append(f.prefixes, n)
	}
	return f
}

// IsInternal reports whether cnpj belongs to one of the internal entities
func (f *IntercompanyFilter) IsInternal(cnpj string) bool {
	if f == nil {
		return false
	}
	n := document.NormalizeCNPJ(cnpj)
	if n == "" {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return false
}

// Split separates candidates issued by internal entities from the rest
func (f *IntercompanyFilter) Split(cands []InboundCandidate) (external, internal []InboundCandidate) {
	for _, c := range cands {
		if f.IsInternal(c.IssuerCNPJ) {
			internal = append(internal, c)
			continue
		}
		external = append(external, c)
	}
	return external, internal
}
