package remember

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erg0nix/recall/internal/core"
)

// Outcome is what an Executor reports for one command.
type Outcome struct {
	Success bool
	Output  string
}

// Executor runs recognized commands. A returned error is fatal and stops the
// batch; an unsuccessful Outcome only marks that entry as failed.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Outcome, error)
}

// Report describes one perform call. Remaining counts entries in scope that
// were left pending because the run stopped early.
type Report struct {
	Requested int     `json:"requested"`
	Executed  []Entry `json:"executed"`
	Failed    int     `json:"failed"`
	Remaining int     `json:"remaining"`
}

// ExecuteAll performs every pending entry in index order. More than the
// configured batch limit is refused unless confirm or AssumeYes is set.
func (q *Queue) ExecuteAll(ctx context.Context, confirm bool) (Report, error) {
	q.execMu.Lock()
	defer q.execMu.Unlock()

	targets := q.pending(func(Entry) bool { return true })
	if len(targets) == 0 {
		return Report{}, fmt.Errorf("perform all: %w", core.ErrNothingToPerform)
	}
	if err := q.checkBatch(len(targets), confirm); err != nil {
		return Report{}, fmt.Errorf("perform all: %w", err)
	}

	return q.run(ctx, targets)
}

// ExecuteRange performs the pending entries with start <= index <= end. The
// batch limit applies to the size of the range, and a refused range runs
// nothing.
func (q *Queue) ExecuteRange(ctx context.Context, start, end int, confirm bool) (Report, error) {
	if start < 1 || end < start {
		return Report{}, fmt.Errorf("perform %d-%d: %w: range must satisfy 1 <= start <= end", start, end, core.ErrInvalidInput)
	}

	q.execMu.Lock()
	defer q.execMu.Unlock()

	if err := q.checkBatch(end-start+1, confirm); err != nil {
		return Report{}, fmt.Errorf("perform %d-%d: %w", start, end, err)
	}

	inRange := func(e Entry) bool { return e.Index >= start && e.Index <= end }

	targets := q.pending(inRange)
	if len(targets) == 0 {
		if !q.any(inRange) {
			return Report{}, fmt.Errorf("perform %d-%d: %w", start, end, core.ErrNotFound)
		}
		return Report{}, fmt.Errorf("perform %d-%d: %w", start, end, core.ErrNothingToPerform)
	}

	return q.run(ctx, targets)
}

// ExecuteOne performs a single entry.
func (q *Queue) ExecuteOne(ctx context.Context, index int) (Report, error) {
	q.execMu.Lock()
	defer q.execMu.Unlock()

	entry, err := q.Get(index)
	if err != nil {
		return Report{}, fmt.Errorf("perform: %w", err)
	}
	if !entry.Pending() {
		return Report{}, fmt.Errorf("perform entry %d: %w: already executed", index, core.ErrNothingToPerform)
	}

	return q.run(ctx, []Entry{entry})
}

// ExecuteLast performs the highest-index pending entry.
func (q *Queue) ExecuteLast(ctx context.Context) (Report, error) {
	q.execMu.Lock()
	defer q.execMu.Unlock()

	targets := q.pending(func(Entry) bool { return true })
	if len(targets) == 0 {
		return Report{}, fmt.Errorf("perform: %w", core.ErrNothingToPerform)
	}

	return q.run(ctx, targets[len(targets)-1:])
}

func (q *Queue) checkBatch(size int, confirm bool) error {
	if size > q.maxBatch && !q.assumeYes && !confirm {
		return &core.BatchTooLargeError{Requested: size, Limit: q.maxBatch}
	}
	return nil
}

func (q *Queue) pending(match func(Entry) bool) []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []Entry
	for _, e := range q.entries {
		if e.Pending() && match(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

func (q *Queue) any(match func(Entry) bool) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, e := range q.entries {
		if match(e) {
			return true
		}
	}
	return false
}

// run performs targets one at a time. Cancellation is checked before each
// entry; an entry that has started runs to completion.
func (q *Queue) run(ctx context.Context, targets []Entry) (Report, error) {
	report := Report{Requested: len(targets)}
	defer func() {
		if len(report.Executed) > 0 {
			q.notify(EventPerformCompleted)
		}
	}()

	for i, entry := range targets {
		if err := ctx.Err(); err != nil {
			report.Remaining = len(targets) - i
			return report, fmt.Errorf("perform stopped before entry %d: %w", entry.Index, err)
		}

		result, err := q.dispatch(context.WithoutCancel(ctx), entry)
		if err != nil {
			report.Remaining = len(targets) - i
			slog.Warn("perform stopped on fatal executor error", "index", entry.Index, "error", err)
			return report, fmt.Errorf("perform entry %d: %w", entry.Index, err)
		}

		done, ok, err := q.markExecuted(entry.Index, result)
		if err != nil {
			report.Remaining = len(targets) - i
			return report, fmt.Errorf("perform entry %d: %w", entry.Index, err)
		}
		if !ok {
			continue
		}

		report.Executed = append(report.Executed, done)
		if !result.Success {
			report.Failed++
			slog.Warn("remembered entry failed", "index", entry.Index, "route", result.Route, "output", result.Output)
		}
	}

	return report, nil
}

func (q *Queue) dispatch(ctx context.Context, entry Entry) (Result, error) {
	q.mu.RLock()
	executor, commands, chat := q.executor, q.commands, q.chat
	q.mu.RUnlock()

	inst := Classify(entry.Text, commands)

	switch inst.Kind {
	case KindRecursive:
		return Result{
			Route:  RouteRefused,
			Output: fmt.Sprintf("refusing to run %q from the queue", inst.Name),
		}, nil

	case KindCommand:
		if executor == nil {
			return Result{Route: RouteCommand, Output: "no command executor configured"}, nil
		}

		out, err := executor.Execute(ctx, inst.Command())
		if err != nil {
			return Result{}, err
		}
		return Result{Route: RouteCommand, Success: out.Success, Output: out.Output}, nil

	default:
		if chat == nil {
			return Result{Route: RouteChat, Output: "no chat transcript attached"}, nil
		}
		if err := chat.PostUserTurn(inst.Text); err != nil {
			return Result{}, err
		}
		return Result{Route: RouteChat, Success: true}, nil
	}
}

// markExecuted records the result. ok is false when the entry was removed
// while it ran.
func (q *Queue) markExecuted(index int, result Result) (Entry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pos, found := q.findLocked(index)
	if !found {
		return Entry{}, false, nil
	}

	now := q.clock.Now()
	entry := cloneEntry(q.entries[pos])
	entry.Status = StatusExecuted
	entry.ExecutedAt = &now
	entry.Result = &result

	if err := q.commitLocked(Mutation{Op: OpExecuted, Entry: &entry}); err != nil {
		return Entry{}, false, err
	}

	return cloneEntry(entry), true, nil
}
