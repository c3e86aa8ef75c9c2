package matching

import (
	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/domain/document"
)

// Allocation is the share of an inbound quantity proposed to one outbound document
type Allocation struct {
	Document *document.OutboundDocument
	Score    ScoreBreakdown
	Quantity int
	// Suggest is true when the score clears the threshold and a settlement should be proposed
	Suggest bool
	// Existing is true when the inbound document is already linked to this outbound document
	Existing bool
	// Exhausted is true when nothing was left to allocate by the time this document was reached
	Exhausted bool
}

// ReturnPlan is the FIFO distribution of one inbound quantity over outbound documents
type ReturnPlan struct {
	Allocations []Allocation
	Allocated   int
	Unallocated int
}

// PlanReturn spreads in.Requested over docs, oldest emission first. Each document is
// scored against the share it would absorb (the smaller of its pending quantity and
// what is still unallocated). Quantities already linked from the same inbound
// document, given in linked, count as allocated and are not proposed again.
func PlanReturn(docs []document.OutboundDocument, in ScoreInput, linked map[uuid.UUID]int) ReturnPlan {
	ordered := make([]document.OutboundDocument, len(docs))
	copy(ordered, docs)
	SortFIFO(ordered)

	plan := ReturnPlan{}
	residual := in.Requested

	for i := range ordered {
		doc := &ordered[i]

		if qty, ok := linked[doc.ID]; ok {
			taken := min(qty, residual)
			residual -= taken
			plan.Allocated += taken
			plan.Allocations = append(plan.Allocations, Allocation{
				Document: doc,
				Score:    Score(doc, ScoreInput{Reference: in.Reference, CounterpartyID: in.CounterpartyID, Requested: qty}),
				Quantity: qty,
				Existing: true,
			})
			continue
		}

		if !doc.IsMatchable() {
			continue
		}

		if residual <= 0 {
			plan.Allocations = append(plan.Allocations, Allocation{
				Document:  doc,
				Score:     Score(doc, in),
				Exhausted: true,
			})
			continue
		}

		share := min(residual, doc.PendingQuantity())
		score := Score(doc, ScoreInput{Reference: in.Reference, CounterpartyID: in.CounterpartyID, Requested: share})
		alloc := Allocation{Document: doc, Score: score, Quantity: share}
		if score.MeetsThreshold() {
			alloc.Suggest = true
			residual -= share
			plan.Allocated += share
		}
		plan.Allocations = append(plan.Allocations, alloc)
	}

	plan.Unallocated = max(residual, 0)
	return plan
}

// Ranked returns the allocations ordered by score, highest first
func (p ReturnPlan) Ranked() []Allocation {
	scored := make([]ScoredCandidate, len(p.Allocations))
	byDoc := make(map[*document.OutboundDocument]Allocation, len(p.Allocations))
	for i, a := range p.Allocations {
		scored[i] = ScoredCandidate{Document: a.Document, Score: a.Score}
		byDoc[a.Document] = a
	}
	RankCandidates(scored)

	out := make([]Allocation, len(scored))
	for i, s := range scored {
		out[i] = byDoc[s.Document]
	}
	return out
}
