package contextstore

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"strings"
)

// SearchResult is an item matched by Search together with its similarity score.
type SearchResult struct {
	Item       Item    `json:"item"`
	Similarity float64 `json:"similarity"`
}

const minSimilarity = 0.1

// Search ranks items by keyword similarity to query: a substring match is
// worth 0.5, the fraction of query words present 0.3 and any tag match 0.2.
// Items scoring 0.1 or less are dropped. A limit of zero or less means no limit.
func (s *Store) Search(query string, limit int) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	queryWords := wordSet(query)

	s.mu.RLock()
	var results []SearchResult
	for _, item := range s.items {
		score := similarity(query, queryWords, item)
		if score > minSimilarity {
			results = append(results, SearchResult{Item: cloneItem(item), Similarity: score})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func similarity(query string, queryWords map[string]struct{}, item Item) float64 {
	content := strings.ToLower(item.Content)
	score := 0.0

	if strings.Contains(content, query) {
		score += 0.5
	}

	if len(queryWords) > 0 {
		contentWords := wordSet(content)
		common := 0
		for word := range queryWords {
			if _, ok := contentWords[word]; ok {
				common++
			}
		}
		score += 0.3 * float64(common) / float64(len(queryWords))
	}

	for word := range queryWords {
		if item.HasTag(word) {
			score += 0.2
			break
		}
	}

	return score
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		words[w] = struct{}{}
	}
	return words
}

// Export writes every item as one JSON line, in insertion order, so other
// tools can ingest the pool without knowing the snapshot format.
func (s *Store) Export(w io.Writer) (int, error) {
	return WriteItems(w, s.All())
}

// WriteItems writes items in the Export format.
func WriteItems(w io.Writer, items []Item) (int, error) {
	enc := json.NewEncoder(w)

	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return i, err
		}
	}
	return len(items), nil
}
