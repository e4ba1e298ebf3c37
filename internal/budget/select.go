// Package budget picks the subset of scored candidates that fits a token budget.
package budget

import (
	"cmp"
	"slices"
	"time"
)

// Candidate is anything that can be admitted into a prompt.
type Candidate struct {
	ID        string
	TokenCost int
	Relevance float64
	CreatedAt time.Time
}

// Selection is the admitted subset, highest relevance first.
type Selection struct {
	Items      []Candidate
	TokensUsed int
}

// Select admits candidates greedily in descending relevance (newest first on
// ties) while the running token total stays within maxTokens. Admission stops
// at the first candidate that does not fit, even if a cheaper one follows it.
// The input slice is not modified.
func Select(pool []Candidate, maxTokens int) Selection {
	if len(pool) == 0 || maxTokens <= 0 {
		return Selection{}
	}

	ranked := slices.Clone(pool)
	slices.SortStableFunc(ranked, compareCandidates)

	var sel Selection
	for _, c := range ranked {
		if sel.TokensUsed+c.TokenCost > maxTokens {
			break
		}

		sel.Items = append(sel.Items, c)
		sel.TokensUsed += c.TokenCost
	}

	return sel
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(b.Relevance, a.Relevance); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Chronological returns the selected items re-ordered oldest first, which is
// how prompts are rendered.
func (s Selection) Chronological() []Candidate {
	out := slices.Clone(s.Items)
	slices.SortStableFunc(out, func(a, b Candidate) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// IDs lists the admitted candidate IDs in selection order.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, c := range s.Items {
		ids = append(ids, c.ID)
	}
	return ids
}
