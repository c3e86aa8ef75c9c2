package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a listing may be ordered by. Requested names
// never reach SQL unless they are in the whitelist.
type sortColumns struct {
	allowed  map[string]bool
	fallback string
}

var pendingCreditOrder = sortColumns{
	allowed: map[string]bool{
		"due_date":          true,
		"created_at":        true,
		"remaining_balance": true,
		"counterparty_id":   true,
	},
	fallback: "due_date",
}

// resolve returns the ORDER BY column for a requested field and direction. Unknown
// or empty fields give the fallback column ascending; a known field is descending
// unless "asc" is asked for.
func (s sortColumns) resolve(field, dir string) clause.OrderByColumn {
	field = strings.TrimSpace(field)
	if !s.allowed[field] {
		return clause.OrderByColumn{Column: clause.Column{Name: s.fallback}}
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: field},
		Desc:   !strings.EqualFold(strings.TrimSpace(dir), "asc"),
	}
}
