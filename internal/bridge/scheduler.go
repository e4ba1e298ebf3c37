package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Snapshotter saves a snapshot and applies its own retention policy.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Info, error)
}

// Scheduler takes snapshots on a cron schedule.
type Scheduler struct {
	target  Snapshotter
	timeout time.Duration
	cron    *cron.Cron
}

// NewScheduler parses spec, which accepts standard five-field cron lines and
// descriptors such as "@every 5m".
func NewScheduler(target Snapshotter, spec string) (*Scheduler, error) {
	s := &Scheduler{
		target:  target,
		timeout: time.Minute,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("snapshot schedule %q: %w", spec, err)
	}

	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	info, err := s.target.Snapshot(ctx)
	if err != nil {
		slog.Warn("scheduled snapshot failed", "error", err)
		return
	}
	slog.Debug("scheduled snapshot saved", "id", info.ID)
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running snapshot to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
