package app

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/erg0nix/recall/internal/config"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/metrics"
)

// OpenEngine builds and restores the memory engine described by cfg.
func OpenEngine(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*memory.Engine, error) {
	workDir := cfg.Memory.WorkingDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	engine, err := memory.Open(memory.Options{
		DataDir:            cfg.DataDir,
		WorkDir:            workDir,
		Backend:            cfg.Snapshot.Backend,
		Retain:             cfg.Snapshot.Retain,
		DisallowFreshStart: !cfg.Snapshot.AllowFreshStart,
		SummaryInterval:    cfg.Memory.SummaryInterval,
		HalfLife:           cfg.Memory.HalfLife(),
		MaxBatch:           cfg.Memory.MaxBatchPerform,
		AssumeYes:          cfg.Memory.AssumeYes,
		Metrics:            m,
	})
	if err != nil {
		return nil, err
	}

	result, err := engine.Restore(ctx)
	if err != nil {
		engine.Close()
		return nil, err
	}

	if len(result.Skipped) > 0 {
		slog.Warn("skipped unreadable snapshots", "count", len(result.Skipped), "restored", result.SnapshotID)
	}

	return engine, nil
}

// AutoPerform runs every pending entry once at startup. An empty queue is not
// an error and an oversized batch is skipped with a warning.
func AutoPerform(ctx context.Context, engine *memory.Engine) error {
	report, err := engine.Perform(ctx, memory.PerformRequest{Mode: memory.PerformAll})
	switch {
	case errors.Is(err, core.ErrNothingToPerform):
		return nil
	case errors.Is(err, core.ErrBatchTooLarge):
		slog.Warn("auto perform skipped", "error", err)
		return nil
	case err != nil:
		return err
	}

	slog.Info("auto perform finished", "executed", len(report.Executed), "failed", report.Failed)
	return nil
}
