package credit

import "time"

// BalanceSummary aggregates every credit of one counterparty
type BalanceSummary struct {
	CounterpartyID   string               `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	TotalCredits     int                  `json:"total_credits"`
	PendingCredits   int                  `json:"pending_credits"`
	OverdueCredits   int                  `json:"overdue_credits"`
	TotalOriginal    int                  `json:"total_original"`
	TotalRemaining   int                  `json:"total_remaining"`
	OverdueRemaining int                  `json:"overdue_remaining"`
	DischargedByKind map[SolutionKind]int `json:"discharged_by_kind"`
}

// Summarize folds credits and discharged totals into a BalanceSummary
func Summarize(counterpartyID string, credits []Credit, byKind map[SolutionKind]int, now time.Time) BalanceSummary {
	s := BalanceSummary{
		CounterpartyID:   counterpartyID,
		DischargedByKind: make(map[SolutionKind]int),
	}
	for kind, qty := range byKind {
		s.DischargedByKind[kind] = qty
	}
	for i := range credits {
		c := &credits[i]
		if c.IsDeleted() {
			continue
		}
		if s.CounterpartyName == "" {
			s.CounterpartyName = c.CounterpartyName
		}
		s.TotalCredits++
		s.TotalOriginal += c.OriginalQuantity
		s.TotalRemaining += c.RemainingBalance
		if c.Status.IsPending() {
			s.PendingCredits++
		}
		if c.IsOverdue(now) {
			s.OverdueCredits++
			s.OverdueRemaining += c.RemainingBalance
		}
	}
	return s
}
