package remember

import (
	"fmt"
	"time"
)

// Op names a queue mutation.
type Op string

const (
	OpRemember Op = "remember"
	OpExecuted Op = "executed"
	OpRemove   Op = "remove"
	OpPurge    Op = "purge"
	OpRenumber Op = "renumber"
	OpClear    Op = "clear"
)

// Mutation is one line of the queue log. Seq increases by one per mutation.
type Mutation struct {
	Seq   int64     `json:"seq"`
	Op    Op        `json:"op"`
	At    time.Time `json:"at"`
	Entry *Entry    `json:"entry,omitempty"`
	Index int       `json:"index,omitempty"`
}

func (m Mutation) valid() bool {
	switch m.Op {
	case OpRemember, OpExecuted:
		return m.Entry != nil
	case OpRemove:
		return m.Index > 0
	case OpPurge, OpRenumber, OpClear:
		return true
	default:
		return false
	}
}

// Replay applies logged mutations newer than the queue's sequence number.
// Called after Restore it recovers changes made since the snapshot.
func (q *Queue) Replay() (int, error) {
	if q.log == nil {
		return 0, nil
	}

	var pending []Mutation

	q.mu.RLock()
	seq := q.seq
	q.mu.RUnlock()

	for m, err := range q.log.Records() {
		if err != nil {
			return 0, fmt.Errorf("replay queue: %w", err)
		}
		if m.Seq <= seq || !m.valid() {
			continue
		}
		pending = append(pending, m)
		seq = m.Seq
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range pending {
		q.applyLocked(m)
	}

	return len(pending), nil
}
