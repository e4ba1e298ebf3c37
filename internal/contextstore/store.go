// Package contextstore holds the pool of background facts, snippets and tool
// outputs that may be admitted into a prompt.
package contextstore

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/core"
)

// Item is a single context entry. Items are never modified after insertion.
type Item struct {
	ID        core.ItemID `json:"id"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	TokenCost int         `json:"token_cost"`
	Relevance float64     `json:"relevance"`
	Tags      []string    `json:"tags,omitempty"`
}

// HasTag reports whether the item carries the given tag.
func (item Item) HasTag(tag string) bool {
	_, found := slices.BinarySearch(item.Tags, tag)
	return found
}

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	Estimator core.TokenEstimator
	Clock     core.Clock
	HalfLife  time.Duration
	Scorer    func(content string, tags []string) float64
}

const DefaultHalfLife = 24 * time.Hour

// Store keeps items in insertion order. It is safe for concurrent use.
type Store struct {
	estimator core.TokenEstimator
	clock     core.Clock
	halfLife  time.Duration
	scorer    func(content string, tags []string) float64

	mu    sync.RWMutex
	items []Item
	index map[core.ItemID]int
}

func New(opts Options) *Store {
	s := &Store{
		estimator: opts.Estimator,
		clock:     opts.Clock,
		halfLife:  opts.HalfLife,
		scorer:    opts.Scorer,
		index:     make(map[core.ItemID]int),
	}

	if s.estimator == nil {
		s.estimator = core.HeuristicEstimator
	}
	if s.clock == nil {
		s.clock = core.SystemClock
	}
	if s.halfLife <= 0 {
		s.halfLife = DefaultHalfLife
	}
	if s.scorer == nil {
		s.scorer = InitialRelevance
	}

	return s
}

// Add records new content. Empty or whitespace-only content is rejected.
func (s *Store) Add(content string, tags ...string) (Item, error) {
	if strings.TrimSpace(content) == "" {
		return Item{}, fmt.Errorf("add context: %w: content is empty", core.ErrInvalidInput)
	}

	normalized := normalizeTags(tags)
	now := s.clock.Now()

	item := Item{
		ID:        core.NewItemID(now),
		Content:   content,
		CreatedAt: now,
		TokenCost: max(1, s.estimator.Estimate(content)),
		Relevance: clamp01(s.scorer(content, normalized)),
		Tags:      normalized,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(item)

	return cloneItem(item), nil
}

func (s *Store) insertLocked(item Item) {
	if _, exists := s.index[item.ID]; exists {
		panic(fmt.Sprintf("contextstore: duplicate item id %s", item.ID))
	}

	s.index[item.ID] = len(s.items)
	s.items = append(s.items, item)
}

// All returns a copy of every item in insertion order.
func (s *Store) All() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	for i, item := range s.items {
		out[i] = cloneItem(item)
	}
	return out
}

// Get looks up a single item by ID.
func (s *Store) Get(id core.ItemID) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return cloneItem(s.items[pos]), true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// EffectiveRelevance is the stored relevance scaled by the age decay at now.
// The stored item is left untouched.
func (s *Store) EffectiveRelevance(item Item, now time.Time) float64 {
	return item.Relevance * Decay(now.Sub(item.CreatedAt), s.halfLife)
}

// Candidates scores every item at now for budget selection.
func (s *Store) Candidates(now time.Time) []budget.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]budget.Candidate, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, budget.Candidate{
			ID:        string(item.ID),
			TokenCost: item.TokenCost,
			Relevance: s.EffectiveRelevance(item, now),
			CreatedAt: item.CreatedAt,
		})
	}
	return out
}

// Parts wraps the scored items as prompt parts in insertion order, with Seq
// numbered from seqBase+1.
func (s *Store) Parts(now time.Time, seqBase int) []budget.Part {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]budget.Part, 0, len(s.items))
	for i, item := range s.items {
		parts = append(parts, budget.Part{
			Candidate: budget.Candidate{
				ID:        string(item.ID),
				TokenCost: item.TokenCost,
				Relevance: s.EffectiveRelevance(item, now),
				CreatedAt: item.CreatedAt,
			},
			Source: budget.SourceContext,
			Text:   item.Content,
			Seq:    seqBase + i + 1,
		})
	}
	return parts
}

// Clear drops every item and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.items)
	s.items = nil
	s.index = make(map[core.ItemID]int)

	return removed
}

// Restore replaces the store contents with items, typically read back from a
// snapshot. Items with duplicate IDs or a token cost below one are rejected.
func (s *Store) Restore(items []Item) error {
	index := make(map[core.ItemID]int, len(items))
	restored := make([]Item, 0, len(items))

	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("restore context: %w: item without id", core.ErrStorageCorruption)
		}
		if _, dup := index[item.ID]; dup {
			return fmt.Errorf("restore context: %w: duplicate item id %s", core.ErrStorageCorruption, item.ID)
		}
		if item.TokenCost < 1 {
			return fmt.Errorf("restore context: %w: item %s has token cost %d", core.ErrStorageCorruption, item.ID, item.TokenCost)
		}

		item = cloneItem(item)
		item.Tags = normalizeTags(item.Tags)
		index[item.ID] = len(restored)
		restored = append(restored, item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = restored
	s.index = index

	return nil
}

// Decay is 0.5^(age/halfLife). Negative ages count as zero.
func Decay(age, halfLife time.Duration) float64 {
	if age <= 0 || halfLife <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}

	slices.Sort(out)
	return slices.Compact(out)
}

func cloneItem(item Item) Item {
	item.Tags = slices.Clone(item.Tags)
	return item
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
