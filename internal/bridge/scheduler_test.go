package bridge

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type retainingBridge struct {
	*Bridge
	retain int
}

func (r retainingBridge) Snapshot(ctx context.Context) (Info, error) {
	snap, err := r.Bridge.Snapshot(ctx)
	if err != nil {
		return Info{}, err
	}
	if _, err := r.Housekeep(ctx, r.retain); err != nil {
		return Info{}, err
	}
	return Info{ID: snap.ID, SnapshotAt: snap.SnapshotAt}, nil
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(nil, "every five minutes")
	assert.Error(t, err)
}

func TestScheduler_SnapshotsAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)

	b, _ := newTestBridge(t, store, dir)
	s, err := NewScheduler(retainingBridge{Bridge: b, retain: 2}, "@every 1s")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		infos, err := store.List(context.Background())
		return err == nil && len(infos) >= 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(infos), 2)
}
