package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/metrics"
	"github.com/erg0nix/recall/internal/remember"
)

// Options configures a Bridge.
type Options struct {
	Store   Store
	Clock   core.Clock
	Context *contextstore.Store
	Chat    *conversation.Transcript
	Queue   *remember.Queue
	Metrics *metrics.Metrics
	// DisallowFreshStart makes Restore fail when snapshots exist but none
	// can be read, instead of starting empty.
	DisallowFreshStart bool
}

// Bridge reads from and writes into the three state owners; it keeps no
// copy of its own. Snapshot and Restore are serialized.
type Bridge struct {
	store              Store
	clock              core.Clock
	context            *contextstore.Store
	chat               *conversation.Transcript
	queue              *remember.Queue
	metrics            *metrics.Metrics
	disallowFreshStart bool

	mu sync.Mutex
}

func New(opts Options) *Bridge {
	b := &Bridge{
		store:              opts.Store,
		clock:              opts.Clock,
		context:            opts.Context,
		chat:               opts.Chat,
		queue:              opts.Queue,
		metrics:            opts.Metrics,
		disallowFreshStart: opts.DisallowFreshStart,
	}

	if b.clock == nil {
		b.clock = core.SystemClock
	}

	return b
}

// RestoreResult reports where the restored state came from.
type RestoreResult struct {
	SnapshotID        core.SnapshotID   `json:"snapshot_id,omitempty"`
	SnapshotAt        time.Time         `json:"snapshot_at,omitempty"`
	Skipped           []core.SnapshotID `json:"skipped,omitempty"`
	Fresh             bool              `json:"fresh"`
	ReplayedTurns     int               `json:"replayed_turns"`
	ReplayedMutations int               `json:"replayed_mutations"`
}

// Snapshot captures the current state and writes it to the store.
func (b *Bridge) Snapshot(ctx context.Context) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	now := b.clock.Now()

	snap := Snapshot{
		ID:           core.NewSnapshotID(now),
		Version:      FormatVersion,
		SnapshotAt:   now,
		ContextItems: b.context.All(),
		Chat:         b.chat.State(),
		Queue:        b.queue.State(),
	}

	data, err := encode(snap)
	if err != nil {
		b.metrics.SnapshotFailed("encode")
		return Snapshot{}, err
	}

	if err := b.store.Save(ctx, snap.ID, data); err != nil {
		b.metrics.SnapshotFailed("save")
		return Snapshot{}, err
	}

	b.metrics.SnapshotSaved(time.Since(start), len(data))
	slog.Debug("snapshot saved", "id", snap.ID, "bytes", len(data))

	return snap, nil
}

// Restore loads the newest readable snapshot into the state owners and then
// replays the turn and queue logs on top of it. Unreadable snapshots are
// skipped with a warning. With no readable snapshot the owners start empty.
func (b *Bridge) Restore(ctx context.Context) (RestoreResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos, err := b.store.List(ctx)
	if err != nil {
		b.metrics.SnapshotFailed("list")
		return RestoreResult{}, err
	}

	var result RestoreResult
	restored := false

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		snap, err := b.load(ctx, info.ID)
		if err == nil {
			err = b.apply(snap)
		}
		if err != nil {
			slog.Warn("snapshot unreadable, falling back", "id", info.ID, "error", err)
			b.metrics.SnapshotFallback()
			result.Skipped = append(result.Skipped, info.ID)
			continue
		}

		result.SnapshotID = snap.ID
		result.SnapshotAt = snap.SnapshotAt
		restored = true
		break
	}

	if !restored {
		if len(infos) > 0 && b.disallowFreshStart {
			return result, fmt.Errorf("restore: %w: none of %d snapshots could be read", core.ErrStorageCorruption, len(infos))
		}
		if len(infos) > 0 {
			slog.Warn("no readable snapshot, starting fresh", "skipped", len(result.Skipped))
		}
		if err := b.apply(Snapshot{}); err != nil {
			return result, err
		}
		result.Fresh = true
	}

	turns, err := b.chat.Replay()
	if err != nil {
		return result, fmt.Errorf("restore: %w", err)
	}
	result.ReplayedTurns = turns

	mutations, err := b.queue.Replay()
	if err != nil {
		return result, fmt.Errorf("restore: %w", err)
	}
	result.ReplayedMutations = mutations

	return result, nil
}

func (b *Bridge) load(ctx context.Context, id core.SnapshotID) (Snapshot, error) {
	data, err := b.store.Load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return decode(data)
}

// apply validates each part before touching any owner, so a snapshot that
// fails halfway leaves nothing half-restored.
func (b *Bridge) apply(snap Snapshot) error {
	scratchContext := contextstore.New(contextstore.Options{})
	if err := scratchContext.Restore(snap.ContextItems); err != nil {
		return err
	}
	if err := conversation.New(conversation.Options{}).Restore(snap.Chat); err != nil {
		return err
	}
	if err := remember.New(remember.Options{}).Restore(snap.Queue); err != nil {
		return err
	}

	if err := b.context.Restore(snap.ContextItems); err != nil {
		return err
	}
	if err := b.chat.Restore(snap.Chat); err != nil {
		return err
	}
	return b.queue.Restore(snap.Queue)
}

// Get loads and decodes one snapshot.
func (b *Bridge) Get(ctx context.Context, id core.SnapshotID) (Snapshot, error) {
	return b.load(ctx, id)
}

func (b *Bridge) List(ctx context.Context) ([]Info, error) {
	return b.store.List(ctx)
}

// Housekeep deletes every snapshot beyond the newest retain. The newest
// snapshot is always kept.
func (b *Bridge) Housekeep(ctx context.Context, retain int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos, err := b.store.List(ctx)
	if err != nil {
		return 0, err
	}

	retain = max(retain, 1)
	if len(infos) <= retain {
		return 0, nil
	}

	removed := 0
	for _, info := range infos[retain:] {
		if err := b.store.Delete(ctx, info.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return removed, fmt.Errorf("housekeep: %w", err)
		}
		removed++
	}

	return removed, nil
}

// Clear deletes every stored snapshot.
func (b *Bridge) Clear(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos, err := b.store.List(ctx)
	if err != nil {
		return 0, err
	}

	for i, info := range infos {
		if err := b.store.Delete(ctx, info.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return i, fmt.Errorf("clear snapshots: %w", err)
		}
	}

	return len(infos), nil
}
