// Package memory wires the context store, the chat transcript, the remember
// queue and the session bridge into one engine.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/commands"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/conversation"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/jsonl"
	"github.com/erg0nix/recall/internal/metrics"
	"github.com/erg0nix/recall/internal/remember"
)

// Options configures an Engine. Everything lives under DataDir.
type Options struct {
	DataDir string
	// WorkDir is where project-scoped commands run.
	WorkDir string

	// Store overrides the snapshot store selected by Backend.
	Store   bridge.Store
	Backend string
	// Retain is how many snapshots Checkpoint keeps; zero keeps all.
	Retain             int
	DisallowFreshStart bool

	Clock           core.Clock
	Estimator       core.TokenEstimator
	SummaryInterval int
	HalfLife        time.Duration
	MaxBatch        int
	AssumeYes       bool

	Metrics *metrics.Metrics
}

// Engine owns one instance of every component. It is safe for concurrent use.
type Engine struct {
	clock     core.Clock
	estimator core.TokenEstimator
	retain    int

	context  *contextstore.Store
	chat     *conversation.Transcript
	queue    *remember.Queue
	bridge   *bridge.Bridge
	store    bridge.Store
	exporter *remember.Exporter
	metrics  *metrics.Metrics

	// dirty is set when state that only snapshots persist has changed.
	dirty atomic.Bool
}

// Open builds an engine over DataDir. State is not loaded until Restore.
func Open(opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("open engine: %w: data dir is required", core.ErrInvalidInput)
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock
	}
	estimator := opts.Estimator
	if estimator == nil {
		estimator = core.HeuristicEstimator
	}

	store := opts.Store
	if store == nil {
		var err error
		if store, err = bridge.OpenStore(opts.Backend, opts.DataDir); err != nil {
			return nil, fmt.Errorf("open engine: %w", err)
		}
	}

	commandsDir := filepath.Join(opts.DataDir, "commands")
	if err := commands.EnsureDefaults(commandsDir); err != nil {
		slog.Warn("failed to install default commands", "dir", commandsDir, "error", err)
	}
	registry := commands.NewRegistry(commandsDir)
	if err := registry.Load(); err != nil {
		slog.Warn("failed to load commands", "dir", commandsDir, "error", err)
	}
	slog.Debug("commands loaded", "dir", commandsDir, "names", registry.Names())

	e := &Engine{
		clock:     clock,
		estimator: estimator,
		retain:    opts.Retain,
		store:     store,
		metrics:   opts.Metrics,
		exporter:  remember.NewExporter(filepath.Join(opts.DataDir, "exports"), clock),
	}

	e.context = contextstore.New(contextstore.Options{
		Estimator: estimator,
		Clock:     clock,
		HalfLife:  opts.HalfLife,
	})

	e.chat = conversation.New(conversation.Options{
		Log:       jsonl.NewFile[conversation.Record](filepath.Join(opts.DataDir, "chat.jsonl")),
		Estimator: estimator,
		Clock:     clock,
		Interval:  opts.SummaryInterval,
	})

	e.queue = remember.New(remember.Options{
		Log:       jsonl.NewFile[remember.Mutation](filepath.Join(opts.DataDir, "remember.jsonl")),
		Clock:     clock,
		Executor:  &commands.Executor{Registry: registry, WorkDir: opts.WorkDir},
		Commands:  registry,
		Chat:      chatSink{e},
		Notifier:  e.exporter,
		MaxBatch:  opts.MaxBatch,
		AssumeYes: opts.AssumeYes,
	})

	e.bridge = bridge.New(bridge.Options{
		Store:              store,
		Clock:              clock,
		Context:            e.context,
		Chat:               e.chat,
		Queue:              e.queue,
		Metrics:            opts.Metrics,
		DisallowFreshStart: opts.DisallowFreshStart,
	})

	return e, nil
}

// Close releases the snapshot store. It does not take a snapshot.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Restore loads the newest readable snapshot and replays the logs.
func (e *Engine) Restore(ctx context.Context) (bridge.RestoreResult, error) {
	result, err := e.bridge.Restore(ctx)
	if err != nil {
		return result, err
	}

	e.dirty.Store(false)
	e.metrics.QueuePending(e.queue.Stats().Pending)

	slog.Debug("session restored",
		"snapshot", result.SnapshotID,
		"fresh", result.Fresh,
		"skipped", len(result.Skipped),
		"replayed_turns", result.ReplayedTurns,
		"replayed_mutations", result.ReplayedMutations,
	)

	return result, nil
}

// Checkpoint takes a snapshot when context items changed since the last one,
// then prunes old snapshots. Turns and queue entries are already durable in
// their logs, so they alone never force a snapshot.
func (e *Engine) Checkpoint(ctx context.Context) (bool, error) {
	if !e.dirty.Load() {
		return false, nil
	}

	if _, err := e.Snapshot(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// chatSink posts free-text queue entries as user turns.
type chatSink struct {
	e *Engine
}

func (s chatSink) PostUserTurn(text string) error {
	_, err := s.e.appendTurn(core.RoleUser, text)
	return err
}
