package conversation

import (
	"fmt"

	"github.com/erg0nix/recall/internal/budget"
)

// Parts returns the prompt candidates of the active read view: every summary
// and every turn not yet covered by one. Relevance rises with recency, so
// the newest part scores 1 and the oldest 1/n. Seq is offset by seqBase so
// callers can interleave other sources ahead of the chat.
func (t *Transcript) Parts(seqBase int) []budget.Part {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.summaries) + len(t.active)
	parts := make([]budget.Part, 0, n)
	rank := 0

	for _, s := range t.summaries {
		rank++
		parts = append(parts, budget.Part{
			Candidate: budget.Candidate{
				ID:        SummaryID(s),
				TokenCost: s.TokenCost,
				Relevance: float64(rank) / float64(n),
				CreatedAt: s.LastTurnAt,
			},
			Source: budget.SourceSummary,
			Text:   s.Render(),
			Seq:    seqBase + rank,
		})
	}

	for _, turn := range t.active {
		rank++
		parts = append(parts, budget.Part{
			Candidate: budget.Candidate{
				ID:        TurnID(turn),
				TokenCost: turn.TokenCost,
				Relevance: float64(rank) / float64(n),
				CreatedAt: turn.CreatedAt,
			},
			Source: budget.SourceTurn,
			Text:   turn.Render(),
			Seq:    seqBase + rank,
		})
	}

	return parts
}

// BuildPrompt renders the header followed by as much of the conversation as
// fits, oldest first.
func (t *Transcript) BuildPrompt(req budget.Request) budget.Prompt {
	return budget.Assemble(req, t.estimator, t.Parts(0))
}

func TurnID(turn Turn) string {
	return fmt.Sprintf("turn-%d", turn.Index)
}

func SummaryID(s Summary) string {
	return fmt.Sprintf("summary-%d-%d", s.Start, s.End)
}
