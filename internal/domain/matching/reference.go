package matching

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/palletledger/backend/internal/domain/document"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Phrasings that introduce an outbound document number in a return annex.
// Matched against folded text (lower case, no diacritics).
var referencePattern = regexp.MustCompile(
	`\b(?:` +
		`ref(?:erente)?[.:]*\s*(?:(?:a|ao|as)\s+)?(?:doc(?:umento)?|nf-?e?|nota\s+fiscal|nota)` +
		`|referring\s+to\s+(?:the\s+)?(?:document|invoice|fiscal\s+note)` +
		`|documento?\s+(?:of|de)\s+orig(?:in|em)` +
		`|nota\s+fiscal` +
		`|fiscal\s+note` +
		`|nf-?e?` +
		`)\.?\s*` +
		`(?:(?:n\s*[o°]|no|num(?:ero)?|number)\.?\s*)?` +
		`[:#]?\s*` +
		`(\d{1,3}(?:\.\d{3})+|\d{1,9})\b`,
)

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lower-cases text and strips diacritics so "Referente à NF nº" reads "referente a nf no"
func fold(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// ExtractReference finds the first outbound document number cited in a free-text annex.
// The number is returned normalised (digits only, no leading zeros).
func ExtractReference(annex string) (string, bool) {
	if strings.TrimSpace(annex) == "" {
		return "", false
	}
	m := referencePattern.FindStringSubmatch(fold(annex))
	if m == nil {
		return "", false
	}
	ref := document.NormalizeNumber(m[1])
	if ref == "0" {
		return "", false
	}
	return ref, true
}
