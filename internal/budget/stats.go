package budget

// Stats captures the token accounting of one assembled prompt.
type Stats struct {
	MaxTokens       int           `json:"max_tokens"`
	ReservedTokens  int           `json:"reserved_tokens"`
	HeaderTokens    int           `json:"header_tokens"`
	Budget          int           `json:"budget"`
	UsedTokens      int           `json:"used_tokens"`
	RemainingTokens int           `json:"remaining_tokens"`
	Candidates      int           `json:"candidates"`
	Included        int           `json:"included"`
	Sources         []SourceStats `json:"sources,omitempty"`
}

// SourceStats totals the candidates and admitted parts of one source.
type SourceStats struct {
	Source         string `json:"source"`
	Candidates     int    `json:"candidates"`
	Included       int    `json:"included"`
	IncludedTokens int    `json:"included_tokens"`
}

func newStats(req Request, headerTokens, available int, parts, admitted []Part) Stats {
	used := 0
	for _, p := range admitted {
		used += p.TokenCost
	}

	stats := Stats{
		MaxTokens:       req.MaxTokens,
		ReservedTokens:  req.ReservedTokens,
		HeaderTokens:    headerTokens,
		Budget:          available,
		UsedTokens:      used,
		RemainingTokens: available - used,
		Candidates:      len(parts),
		Included:        len(admitted),
	}

	index := make(map[string]int)
	source := func(name string) *SourceStats {
		pos, ok := index[name]
		if !ok {
			pos = len(stats.Sources)
			index[name] = pos
			stats.Sources = append(stats.Sources, SourceStats{Source: name})
		}
		return &stats.Sources[pos]
	}

	for _, p := range parts {
		source(p.Source).Candidates++
	}
	for _, p := range admitted {
		s := source(p.Source)
		s.Included++
		s.IncludedTokens += p.TokenCost
	}

	return stats
}
