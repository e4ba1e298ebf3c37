package budget

import (
	"cmp"
	"slices"
	"strings"

	"github.com/erg0nix/recall/internal/core"
)

// Sources a Part can come from.
const (
	SourceContext = "context"
	SourceSummary = "summary"
	SourceTurn    = "turn"
)

// Part is a rendered prompt fragment plus the metadata used to select it.
// Seq orders admitted parts when the prompt is rendered.
type Part struct {
	Candidate
	Source string
	Text   string
	Seq    int
}

// Request describes the prompt to build. The selection budget is MaxTokens
// minus ReservedTokens minus the estimated cost of Header.
type Request struct {
	MaxTokens      int
	ReservedTokens int
	Header         string
}

// Prompt is the assembled prompt text with its token accounting.
type Prompt struct {
	Text        string   `json:"text"`
	IncludedIDs []string `json:"included_ids"`
	TokenCount  int      `json:"token_count"`
	Truncated   bool     `json:"truncated"`
	Stats       Stats    `json:"stats"`
}

// Assemble selects parts within the request budget and renders the header
// followed by the admitted parts in Seq order, one per line.
func Assemble(req Request, estimator core.TokenEstimator, parts []Part) Prompt {
	header := strings.TrimSpace(req.Header)
	headerTokens := 0
	if header != "" {
		headerTokens = estimator.Estimate(header)
	}

	available := max(0, req.MaxTokens-req.ReservedTokens-headerTokens)

	byID := make(map[string]Part, len(parts))
	pool := make([]Candidate, 0, len(parts))
	for _, p := range parts {
		byID[p.ID] = p
		pool = append(pool, p.Candidate)
	}

	sel := Select(pool, available)

	admitted := make([]Part, 0, len(sel.Items))
	for _, c := range sel.Items {
		admitted = append(admitted, byID[c.ID])
	}
	slices.SortStableFunc(admitted, func(a, b Part) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	lines := make([]string, 0, len(admitted)+1)
	if header != "" {
		lines = append(lines, header)
	}

	ids := make([]string, 0, len(admitted))
	for _, p := range admitted {
		lines = append(lines, p.Text)
		ids = append(ids, p.ID)
	}

	return Prompt{
		Text:        strings.Join(lines, "\n"),
		IncludedIDs: ids,
		TokenCount:  headerTokens + sel.TokensUsed,
		Truncated:   len(admitted) < len(parts),
		Stats:       newStats(req, headerTokens, available, parts, admitted),
	}
}
