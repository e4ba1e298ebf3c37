package remember

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/jsonl"
)

// DefaultMaxBatch caps how many entries one perform call may run without
// confirmation.
const DefaultMaxBatch = 20

// ChatSink receives free-text instructions as user turns.
type ChatSink interface {
	PostUserTurn(text string) error
}

// Notifier is told about every change to the queue.
type Notifier interface {
	QueueChanged(event string, last *Entry)
}

// Options configures a Queue. A nil Log keeps the queue in memory only.
type Options struct {
	Log       *jsonl.File[Mutation]
	Clock     core.Clock
	Executor  Executor
	Commands  CommandSet
	Chat      ChatSink
	Notifier  Notifier
	MaxBatch  int
	AssumeYes bool
}

// State is everything needed to rebuild a queue.
type State struct {
	Entries   []Entry `json:"entries"`
	NextIndex int     `json:"next_index"`
	Seq       int64   `json:"seq"`
}

// Stats summarizes the queue for status displays.
type Stats struct {
	Total    int    `json:"total"`
	Pending  int    `json:"pending"`
	Executed int    `json:"executed"`
	Last     *Entry `json:"last,omitempty"`
}

// Queue is safe for concurrent use. Mutations are serialized by mu; perform
// calls are additionally serialized by execMu so at most one batch runs at
// a time.
type Queue struct {
	log       *jsonl.File[Mutation]
	clock     core.Clock
	executor  Executor
	commands  CommandSet
	chat      ChatSink
	notifier  Notifier
	maxBatch  int
	assumeYes bool

	execMu sync.Mutex

	mu        sync.RWMutex
	entries   []Entry
	nextIndex int
	seq       int64
}

func New(opts Options) *Queue {
	q := &Queue{
		log:       opts.Log,
		clock:     opts.Clock,
		executor:  opts.Executor,
		commands:  opts.Commands,
		chat:      opts.Chat,
		notifier:  opts.Notifier,
		maxBatch:  opts.MaxBatch,
		assumeYes: opts.AssumeYes,
		nextIndex: 1,
	}

	if q.clock == nil {
		q.clock = core.SystemClock
	}
	if q.maxBatch <= 0 {
		q.maxBatch = DefaultMaxBatch
	}

	return q
}

// SetChat attaches the sink that receives free-text instructions.
func (q *Queue) SetChat(chat ChatSink) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.chat = chat
}

func (q *Queue) MaxBatch() int {
	return q.maxBatch
}

// Remember queues text as a pending entry. When the newest entry is still
// pending with identical text it is returned instead and created is false.
func (q *Queue) Remember(text string) (entry Entry, created bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, false, fmt.Errorf("remember: %w: text is empty", core.ErrInvalidInput)
	}

	q.mu.Lock()

	if n := len(q.entries); n > 0 {
		last := q.entries[n-1]
		if last.Pending() && last.Text == text {
			q.mu.Unlock()
			return cloneEntry(last), false, nil
		}
	}

	entry = Entry{
		Index:     q.nextIndex,
		Text:      text,
		Status:    StatusPending,
		CreatedAt: q.clock.Now(),
	}

	if err := q.commitLocked(Mutation{Op: OpRemember, Entry: &entry}); err != nil {
		q.mu.Unlock()
		return Entry{}, false, fmt.Errorf("remember: %w", err)
	}

	q.mu.Unlock()

	q.notify(EventRememberUpdated)
	return cloneEntry(entry), true, nil
}

// List returns every entry in index order.
func (q *Queue) List() []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return cloneEntries(q.entries)
}

func (q *Queue) Get(index int) (Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pos, ok := q.findLocked(index)
	if !ok {
		return Entry{}, fmt.Errorf("entry %d: %w", index, core.ErrNotFound)
	}
	return cloneEntry(q.entries[pos]), nil
}

// Remove deletes one entry. Remaining entries keep their indices.
func (q *Queue) Remove(index int) error {
	q.mu.Lock()

	if _, ok := q.findLocked(index); !ok {
		q.mu.Unlock()
		return fmt.Errorf("remove entry %d: %w", index, core.ErrNotFound)
	}

	if err := q.commitLocked(Mutation{Op: OpRemove, Index: index}); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("remove entry %d: %w", index, err)
	}

	q.mu.Unlock()

	q.notify(EventRememberUpdated)
	return nil
}

// PurgeExecuted removes every executed entry and returns how many went.
func (q *Queue) PurgeExecuted() (int, error) {
	q.mu.Lock()

	count := 0
	for _, e := range q.entries {
		if !e.Pending() {
			count++
		}
	}
	if count == 0 {
		q.mu.Unlock()
		return 0, nil
	}

	if err := q.commitLocked(Mutation{Op: OpPurge}); err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("purge executed: %w", err)
	}

	q.mu.Unlock()

	q.notify(EventRememberUpdated)
	return count, nil
}

// Renumber compacts indices to 1..n in their current order. It is the only
// operation besides Clear that lets indices be reused.
func (q *Queue) Renumber() (int, error) {
	q.mu.Lock()

	if err := q.commitLocked(Mutation{Op: OpRenumber}); err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("renumber: %w", err)
	}
	count := len(q.entries)

	q.mu.Unlock()

	q.notify(EventRememberUpdated)
	return count, nil
}

// Clear removes every entry and restarts numbering at 1.
func (q *Queue) Clear() (int, error) {
	q.mu.Lock()

	count := len(q.entries)
	if err := q.commitLocked(Mutation{Op: OpClear}); err != nil {
		q.mu.Unlock()
		return 0, fmt.Errorf("clear queue: %w", err)
	}

	q.mu.Unlock()

	q.notify(EventRememberUpdated)
	return count, nil
}

func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := Stats{Total: len(q.entries)}
	for _, e := range q.entries {
		if e.Pending() {
			stats.Pending++
		} else {
			stats.Executed++
		}
	}
	if n := len(q.entries); n > 0 {
		last := cloneEntry(q.entries[n-1])
		stats.Last = &last
	}

	return stats
}

// State copies the queue for snapshotting.
func (q *Queue) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return State{
		Entries:   cloneEntries(q.entries),
		NextIndex: q.nextIndex,
		Seq:       q.seq,
	}
}

// Restore replaces the queue contents with state. The log is not rewritten.
func (q *Queue) Restore(state State) error {
	prev := 0
	for _, e := range state.Entries {
		if e.Index <= prev {
			return fmt.Errorf("restore queue: %w: entry index %d after %d", core.ErrStorageCorruption, e.Index, prev)
		}
		switch e.Status {
		case StatusPending:
		case StatusExecuted:
			if e.ExecutedAt == nil {
				return fmt.Errorf("restore queue: %w: executed entry %d has no executed_at", core.ErrStorageCorruption, e.Index)
			}
		default:
			return fmt.Errorf("restore queue: %w: entry %d has status %q", core.ErrStorageCorruption, e.Index, e.Status)
		}
		prev = e.Index
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = cloneEntries(state.Entries)
	q.nextIndex = max(state.NextIndex, prev+1, 1)
	q.seq = state.Seq

	return nil
}

func (q *Queue) findLocked(index int) (int, bool) {
	return slices.BinarySearchFunc(q.entries, index, func(e Entry, target int) int {
		return e.Index - target
	})
}

// commitLocked stamps m with the next sequence number, appends it to the log
// and only then applies it in memory.
func (q *Queue) commitLocked(m Mutation) error {
	m.Seq = q.seq + 1
	m.At = q.clock.Now()

	if q.log != nil {
		if err := q.log.Append(m); err != nil {
			return err
		}
	}

	q.applyLocked(m)
	return nil
}

func (q *Queue) applyLocked(m Mutation) {
	switch m.Op {
	case OpRemember:
		q.entries = append(q.entries, cloneEntry(*m.Entry))
		q.nextIndex = max(q.nextIndex, m.Entry.Index+1)
	case OpExecuted:
		if pos, ok := q.findLocked(m.Entry.Index); ok {
			q.entries[pos] = cloneEntry(*m.Entry)
		}
	case OpRemove:
		if pos, ok := q.findLocked(m.Index); ok {
			q.entries = slices.Delete(q.entries, pos, pos+1)
		}
	case OpPurge:
		q.entries = slices.DeleteFunc(q.entries, func(e Entry) bool { return !e.Pending() })
	case OpRenumber:
		for i := range q.entries {
			q.entries[i].Index = i + 1
		}
		q.nextIndex = len(q.entries) + 1
	case OpClear:
		q.entries = nil
		q.nextIndex = 1
	}

	q.seq = m.Seq
}

func (q *Queue) notify(event string) {
	if q.notifier == nil {
		return
	}

	q.notifier.QueueChanged(event, q.Stats().Last)
}
