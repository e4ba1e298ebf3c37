package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/remember"
)

var _ Service = (*Engine)(nil)

// rememberPrefix marks the user turn recorded for each remembered entry.
const rememberPrefix = "REMEMBER: "

func (e *Engine) AddContext(_ context.Context, content string, tags []string) (contextstore.Item, error) {
	item, err := e.context.Add(content, tags...)
	if err != nil {
		return contextstore.Item{}, err
	}

	e.dirty.Store(true)
	e.metrics.ContextItemAdded()
	return item, nil
}

func (e *Engine) ListContext(_ context.Context) ([]contextstore.Item, error) {
	return e.context.All(), nil
}

func (e *Engine) SearchContext(_ context.Context, query string, limit int) ([]contextstore.SearchResult, error) {
	return e.context.Search(query, limit), nil
}

func (e *Engine) AppendTurn(_ context.Context, role core.Role, text string) (conversation.Turn, error) {
	return e.appendTurn(role, text)
}

func (e *Engine) appendTurn(role core.Role, text string) (conversation.Turn, error) {
	before := len(e.chat.Summaries())

	turn, err := e.chat.Append(role, text)
	if err != nil {
		return conversation.Turn{}, err
	}

	e.metrics.TurnAppended(string(role), max(0, len(e.chat.Summaries())-before))
	return turn, nil
}

func (e *Engine) Chat(_ context.Context, tail int) (ChatView, error) {
	view := ChatView{
		Summaries: e.chat.Summaries(),
		Interval:  e.chat.Interval(),
	}

	if tail > 0 {
		view.Turns = e.chat.Tail(tail)
	} else {
		view.Turns = e.chat.Turns()
	}

	return view, nil
}

// BuildPrompt assembles a prompt from the requested mix. Context items come
// first, followed by the conversation in order; a single budget covers both.
func (e *Engine) BuildPrompt(_ context.Context, req PromptRequest) (budget.Prompt, error) {
	mix, err := ParseMix(string(req.Mix))
	if err != nil {
		return budget.Prompt{}, fmt.Errorf("build prompt: %w", err)
	}
	if req.MaxTokens < 0 || req.ReservedTokens < 0 {
		return budget.Prompt{}, fmt.Errorf("build prompt: %w: token limits must not be negative", core.ErrInvalidInput)
	}

	var parts []budget.Part
	if mix == MixContext || mix == MixBoth {
		parts = append(parts, e.context.Parts(e.clock.Now(), 0)...)
	}
	if mix == MixChat || mix == MixBoth {
		parts = append(parts, e.chat.Parts(len(parts))...)
	}

	prompt := budget.Assemble(budget.Request{
		MaxTokens:      req.MaxTokens,
		ReservedTokens: req.ReservedTokens,
		Header:         req.Header,
	}, e.estimator, parts)

	e.metrics.PromptBuilt(string(mix), prompt.TokenCount, prompt.Truncated)
	return prompt, nil
}

// Remember queues text. A newly created entry is also recorded as a user
// turn and as a remembered-intent context item; failures there are logged
// since the entry itself is already durable.
func (e *Engine) Remember(_ context.Context, text string) (RememberResult, error) {
	entry, created, err := e.queue.Remember(text)
	if err != nil {
		return RememberResult{}, err
	}
	if !created {
		return RememberResult{Entry: entry}, nil
	}

	e.metrics.Remembered()
	e.metrics.QueuePending(e.queue.Stats().Pending)

	if _, err := e.appendTurn(core.RoleUser, rememberPrefix+entry.Text); err != nil {
		slog.Warn("failed to record remembered turn", "index", entry.Index, "error", err)
	}
	if _, err := e.context.Add(entry.Text, contextstore.TagRememberedIntent); err != nil {
		slog.Warn("failed to record remembered intent", "index", entry.Index, "error", err)
	} else {
		e.dirty.Store(true)
		e.metrics.ContextItemAdded()
	}

	return RememberResult{Entry: entry, Created: true}, nil
}

func (e *Engine) Entries(_ context.Context) ([]remember.Entry, error) {
	return e.queue.List(), nil
}

func (e *Engine) RemoveEntry(_ context.Context, index int) error {
	if err := e.queue.Remove(index); err != nil {
		return err
	}
	e.metrics.QueuePending(e.queue.Stats().Pending)
	return nil
}

func (e *Engine) PurgeExecuted(_ context.Context) (int, error) {
	return e.queue.PurgeExecuted()
}

func (e *Engine) Renumber(_ context.Context) (int, error) {
	return e.queue.Renumber()
}

func (e *Engine) ClearQueue(_ context.Context) (int, error) {
	n, err := e.queue.Clear()
	e.metrics.QueuePending(e.queue.Stats().Pending)
	return n, err
}

// Perform runs remembered entries. The default mode runs the newest pending
// entry.
func (e *Engine) Perform(ctx context.Context, req PerformRequest) (remember.Report, error) {
	var (
		report remember.Report
		err    error
	)

	switch req.Mode {
	case "", PerformLast:
		report, err = e.queue.ExecuteLast(ctx)
	case PerformIndex:
		report, err = e.queue.ExecuteOne(ctx, req.Index)
	case PerformRange:
		report, err = e.queue.ExecuteRange(ctx, req.Start, req.End, req.Confirm)
	case PerformAll:
		report, err = e.queue.ExecuteAll(ctx, req.Confirm)
	default:
		return remember.Report{}, fmt.Errorf("perform: %w: unknown mode %q", core.ErrInvalidInput, req.Mode)
	}

	if errors.Is(err, core.ErrBatchTooLarge) {
		e.metrics.BatchRefused()
	}
	for _, entry := range report.Executed {
		if entry.Result != nil {
			e.metrics.Performed(string(entry.Result.Route), entry.Result.Success)
		}
	}
	e.metrics.QueuePending(e.queue.Stats().Pending)

	return report, err
}

func (e *Engine) Status(_ context.Context) (Status, error) {
	stats := e.queue.Stats()

	status := Status{
		Total:        stats.Total,
		Pending:      stats.Pending,
		Executed:     stats.Executed,
		ContextItems: e.context.Len(),
		Turns:        e.chat.Len(),
		Summaries:    len(e.chat.Summaries()),
		MaxBatch:     e.queue.MaxBatch(),
	}
	if stats.Last != nil {
		status.LastPreview = remember.Preview(stats.Last.Text)
	}

	return status, nil
}

// Clear empties the queue, then the chat summaries and stored snapshots,
// then the context store. Counts gathered before a failure are returned with
// the error.
func (e *Engine) Clear(ctx context.Context) (ClearResult, error) {
	var result ClearResult
	var err error

	if result.Entries, err = e.queue.Clear(); err != nil {
		return result, fmt.Errorf("clear queue: %w", err)
	}
	e.metrics.QueuePending(0)

	if result.Summaries, err = e.chat.ClearSummaries(); err != nil {
		return result, fmt.Errorf("clear summaries: %w", err)
	}
	if result.Snapshots, err = e.bridge.Clear(ctx); err != nil {
		return result, err
	}

	result.ContextItems = e.context.Clear()
	e.dirty.Store(true)

	return result, nil
}

// Snapshot writes the current state and prunes beyond the retain count.
func (e *Engine) Snapshot(ctx context.Context) (bridge.Info, error) {
	wasDirty := e.dirty.Swap(false)

	snap, err := e.bridge.Snapshot(ctx)
	if err != nil {
		if wasDirty {
			e.dirty.Store(true)
		}
		return bridge.Info{}, err
	}

	if e.retain > 0 {
		if _, err := e.bridge.Housekeep(ctx, e.retain); err != nil {
			slog.Warn("snapshot housekeeping failed", "error", err)
		}
	}

	return bridge.Info{ID: snap.ID, SnapshotAt: snap.SnapshotAt}, nil
}

func (e *Engine) Snapshots(ctx context.Context) ([]bridge.Info, error) {
	return e.bridge.List(ctx)
}

func (e *Engine) SnapshotDetail(ctx context.Context, id core.SnapshotID) (SnapshotDetail, error) {
	snap, err := e.bridge.Get(ctx, id)
	if err != nil {
		return SnapshotDetail{}, err
	}

	detail := SnapshotDetail{
		ID:           snap.ID,
		SnapshotAt:   snap.SnapshotAt,
		Version:      snap.Version,
		ContextItems: len(snap.ContextItems),
		Turns:        len(snap.Chat.Turns),
		Summaries:    len(snap.Chat.Summaries),
		Entries:      len(snap.Queue.Entries),
	}
	for _, entry := range snap.Queue.Entries {
		if entry.Pending() {
			detail.Pending++
		}
	}

	return detail, nil
}

func (e *Engine) PruneSnapshots(ctx context.Context, retain int) (int, error) {
	return e.bridge.Housekeep(ctx, retain)
}
