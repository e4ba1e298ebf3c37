// Package conversation keeps the chat transcript: an append-only log of turns
// that is compacted into summaries every few turns and rendered into
// token-budgeted prompts.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/jsonl"
)

// DefaultSummaryInterval is how many raw turns are folded into one summary.
const DefaultSummaryInterval = 5

// Turn is a single chat message.
type Turn struct {
	Index     int       `json:"index"`
	Role      core.Role `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	TokenCost int       `json:"token_cost"`
}

// Render is how the turn appears in a prompt.
func (t Turn) Render() string {
	return t.Role.Label() + ": " + strings.TrimSpace(t.Text)
}

// Summary stands in for the turns Start through End, inclusive.
type Summary struct {
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Text       string    `json:"text"`
	TokenCost  int       `json:"token_cost"`
	CreatedAt  time.Time `json:"created_at"`
	LastTurnAt time.Time `json:"last_turn_at"`
}

// Render is how the summary appears in a prompt.
func (s Summary) Render() string {
	return fmt.Sprintf("Summary (turns %d-%d): %s", s.Start, s.End, s.Text)
}

// State is everything needed to rebuild a transcript.
type State struct {
	Turns          []Turn    `json:"turns"`
	Summaries      []Summary `json:"summaries"`
	NextIndex      int       `json:"next_index"`
	ClearedThrough int       `json:"cleared_through,omitempty"`
}

// Options configures a Transcript. Zero values fall back to defaults; a nil
// Log keeps the transcript in memory only.
type Options struct {
	Log        *jsonl.File[Record]
	Estimator  core.TokenEstimator
	Clock      core.Clock
	Interval   int
	Summarizer Summarizer
}

// Transcript is safe for concurrent use. Reads may run in parallel; appends
// are serialized so turn indices are assigned in call order.
type Transcript struct {
	log        *jsonl.File[Record]
	estimator  core.TokenEstimator
	clock      core.Clock
	interval   int
	summarizer Summarizer

	mu             sync.RWMutex
	archived       []Turn
	active         []Turn
	summaries      []Summary
	nextIndex      int
	clearedThrough int
}

func New(opts Options) *Transcript {
	t := &Transcript{
		log:        opts.Log,
		estimator:  opts.Estimator,
		clock:      opts.Clock,
		interval:   opts.Interval,
		summarizer: opts.Summarizer,
		nextIndex:  1,
	}

	if t.estimator == nil {
		t.estimator = core.HeuristicEstimator
	}
	if t.clock == nil {
		t.clock = core.SystemClock
	}
	if t.interval <= 0 {
		t.interval = DefaultSummaryInterval
	}
	if t.summarizer == nil {
		t.summarizer = ExtractiveSummarizer{}
	}

	return t
}

func (t *Transcript) Interval() int {
	return t.interval
}

// Append records a new turn and compacts the oldest active block once
// Interval turns are waiting. The turn is written to the log before it
// becomes visible.
func (t *Transcript) Append(role core.Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("append turn: %w: %q", core.ErrInvalidRole, role)
	}
	if strings.TrimSpace(text) == "" {
		return Turn{}, fmt.Errorf("append turn: %w: text is empty", core.ErrInvalidInput)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	turn := Turn{
		Index:     t.nextIndex,
		Role:      role,
		Text:      text,
		CreatedAt: t.clock.Now(),
	}
	turn.TokenCost = max(1, t.estimator.Estimate(turn.Render()))

	if err := t.write(Record{Kind: KindTurn, Turn: &turn}); err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}

	t.nextIndex++
	t.active = append(t.active, turn)

	if err := t.compactLocked(); err != nil {
		return turn, err
	}

	return turn, nil
}

func (t *Transcript) compactLocked() error {
	for len(t.active) >= t.interval {
		block := t.active[:t.interval]
		last := block[len(block)-1]

		summary := Summary{
			Start:      block[0].Index,
			End:        last.Index,
			Text:       t.summarizer.Summarize(block),
			CreatedAt:  t.clock.Now(),
			LastTurnAt: last.CreatedAt,
		}
		summary.TokenCost = max(1, t.estimator.Estimate(summary.Render()))

		if err := t.write(Record{Kind: KindSummary, Summary: &summary}); err != nil {
			return fmt.Errorf("compact turns %d-%d: %w", summary.Start, summary.End, err)
		}

		t.summaries = append(t.summaries, summary)
		t.archived = append(t.archived, block...)
		t.active = append([]Turn(nil), t.active[t.interval:]...)
	}

	return nil
}

// ActiveTurns returns the turns not yet covered by a summary.
func (t *Transcript) ActiveTurns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]Turn(nil), t.active...)
}

// Summaries returns every summary in range order.
func (t *Transcript) Summaries() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]Summary(nil), t.summaries...)
}

// Turns returns every retained turn, archived ones included, in index order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Turn, 0, len(t.archived)+len(t.active))
	out = append(out, t.archived...)
	return append(out, t.active...)
}

// Tail returns up to n of the most recent turns, oldest first.
func (t *Transcript) Tail(n int) []Turn {
	all := t.Turns()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.archived) + len(t.active)
}

// ClearSummaries forgets every summary and the archived turns behind it. The
// active window is kept and turn numbering continues. It returns the number
// of summaries removed.
func (t *Transcript) ClearSummaries() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.summaries) == 0 {
		return 0, nil
	}

	through := t.summaries[len(t.summaries)-1].End
	if err := t.write(Record{Kind: KindClear, Through: through}); err != nil {
		return 0, fmt.Errorf("clear summaries: %w", err)
	}

	removed := len(t.summaries)
	t.summaries = nil
	t.archived = nil
	t.clearedThrough = through

	return removed, nil
}

// State copies the transcript for snapshotting.
func (t *Transcript) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	turns := make([]Turn, 0, len(t.archived)+len(t.active))
	turns = append(turns, t.archived...)
	turns = append(turns, t.active...)

	return State{
		Turns:          turns,
		Summaries:      append([]Summary(nil), t.summaries...),
		NextIndex:      t.nextIndex,
		ClearedThrough: t.clearedThrough,
	}
}

// Restore replaces the in-memory transcript with state. The log is not
// rewritten.
func (t *Transcript) Restore(state State) error {
	if err := validateState(state); err != nil {
		return fmt.Errorf("restore transcript: %w", err)
	}

	covered := 0
	if n := len(state.Summaries); n > 0 {
		covered = state.Summaries[n-1].End
	}

	var archived, active []Turn
	for _, turn := range state.Turns {
		if turn.Index <= covered {
			archived = append(archived, turn)
		} else {
			active = append(active, turn)
		}
	}

	nextIndex := max(state.NextIndex, 1)
	if n := len(state.Turns); n > 0 {
		nextIndex = max(nextIndex, state.Turns[n-1].Index+1)
	}
	nextIndex = max(nextIndex, covered+1, state.ClearedThrough+1)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.archived = archived
	t.active = active
	t.summaries = append([]Summary(nil), state.Summaries...)
	t.nextIndex = nextIndex
	t.clearedThrough = state.ClearedThrough

	return nil
}

func validateState(state State) error {
	prev := 0
	for _, turn := range state.Turns {
		if turn.Index <= prev {
			return fmt.Errorf("%w: turn index %d after %d", core.ErrStorageCorruption, turn.Index, prev)
		}
		if !turn.Role.Valid() {
			return fmt.Errorf("%w: turn %d has role %q", core.ErrStorageCorruption, turn.Index, turn.Role)
		}
		prev = turn.Index
	}

	prevEnd := state.ClearedThrough
	for _, s := range state.Summaries {
		if s.Start > s.End || s.Start <= prevEnd {
			return fmt.Errorf("%w: summary range %d-%d overlaps or is out of order", core.ErrStorageCorruption, s.Start, s.End)
		}
		prevEnd = s.End
	}

	return nil
}

func (t *Transcript) write(rec Record) error {
	if t.log == nil {
		return nil
	}
	rec.At = t.clock.Now()
	return t.log.Append(rec)
}
