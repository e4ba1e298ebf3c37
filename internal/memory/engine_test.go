package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/metrics"
	"github.com/erg0nix/recall/internal/remember"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)
	return c.now
}

func openEngine(t *testing.T, dir string, tweak func(*Options)) *Engine {
	t.Helper()

	opts := Options{
		DataDir: dir,
		WorkDir: dir,
		Clock:   &stepClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
		Metrics: metrics.New(),
	}
	if tweak != nil {
		tweak(&opts)
	}

	e, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	_, err = e.Restore(context.Background())
	require.NoError(t, err)
	return e
}

func TestOpen_RequiresDataDir(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestOpen_RejectsUnknownBackend(t *testing.T) {
	_, err := Open(Options{DataDir: t.TempDir(), Backend: "redis"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestRememberThenPerformOne(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	for _, text := range []string{"build web app", "deploy it"} {
		res, err := e.Remember(ctx, text)
		require.NoError(t, err)
		assert.True(t, res.Created)
	}

	entries, err := e.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, 2, entries[1].Index)
	assert.True(t, entries[0].Pending())
	assert.True(t, entries[1].Pending())

	report, err := e.Perform(ctx, PerformRequest{Mode: PerformIndex, Index: 1})
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)

	entries, err = e.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, remember.StatusExecuted, entries[0].Status)
	assert.NotNil(t, entries[0].ExecutedAt)
	assert.True(t, entries[1].Pending())

	view, err := e.Chat(ctx, 1)
	require.NoError(t, err)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, "build web app", view.Turns[0].Text, "free text is posted to the chat")
}

func TestRemember_SideEffects(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	_, err := e.Remember(ctx, "write release notes")
	require.NoError(t, err)

	again, err := e.Remember(ctx, "write release notes")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, 1, again.Entry.Index)

	view, err := e.Chat(ctx, 0)
	require.NoError(t, err)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, core.RoleUser, view.Turns[0].Role)
	assert.Equal(t, "REMEMBER: write release notes", view.Turns[0].Text)

	items, err := e.ListContext(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].HasTag(contextstore.TagRememberedIntent))
}

func TestPerform_RangeOverBatchLimitRunsNothing(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), func(o *Options) { o.MaxBatch = 5 })

	for i := 1; i <= 10; i++ {
		_, err := e.Remember(ctx, strings.Repeat("x", i))
		require.NoError(t, err)
	}

	_, err := e.Perform(ctx, PerformRequest{Mode: PerformRange, Start: 1, End: 10})
	require.ErrorIs(t, err, core.ErrBatchTooLarge)

	var tooLarge *core.BatchTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 10, tooLarge.Requested)
	assert.Equal(t, 5, tooLarge.Limit)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, status.Pending)

	report, err := e.Perform(ctx, PerformRequest{Mode: PerformRange, Start: 1, End: 10, Confirm: true})
	require.NoError(t, err)
	assert.Len(t, report.Executed, 10)
}

func TestPerform_DefaultRunsNewestPending(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	_, err := e.Perform(ctx, PerformRequest{})
	require.ErrorIs(t, err, core.ErrNothingToPerform)

	for _, text := range []string{"first", "second"} {
		_, err := e.Remember(ctx, text)
		require.NoError(t, err)
	}

	report, err := e.Perform(ctx, PerformRequest{})
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, 2, report.Executed[0].Index)

	_, err = e.Perform(ctx, PerformRequest{Mode: "sideways"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestPerform_RefusesRecursivePerform(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	_, err := e.Remember(ctx, "perform all")
	require.NoError(t, err)

	report, err := e.Perform(ctx, PerformRequest{Mode: PerformAll})
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, remember.RouteRefused, report.Executed[0].Result.Route)
	assert.False(t, report.Executed[0].Result.Success)
	assert.Equal(t, 1, report.Failed)
}

func TestBuildPrompt_HeaderOnlyOnEmptyEngine(t *testing.T) {
	e := openEngine(t, t.TempDir(), nil)

	prompt, err := e.BuildPrompt(context.Background(), PromptRequest{MaxTokens: 100, ReservedTokens: 20, Header: "SYS"})
	require.NoError(t, err)

	assert.Equal(t, "SYS", prompt.Text)
	assert.Empty(t, prompt.IncludedIDs)
	assert.Equal(t, core.HeuristicEstimator.Estimate("SYS"), prompt.TokenCount)
	assert.False(t, prompt.Truncated)
}

func TestBuildPrompt_Mix(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	item, err := e.AddContext(ctx, "service listens on port 8080", []string{contextstore.TagFact})
	require.NoError(t, err)
	_, err = e.AppendTurn(ctx, core.RoleUser, "which port?")
	require.NoError(t, err)

	both, err := e.BuildPrompt(ctx, PromptRequest{MaxTokens: 1000, Header: "SYS"})
	require.NoError(t, err)
	assert.Equal(t, "SYS\nservice listens on port 8080\nUser: which port?", both.Text)
	assert.Equal(t, []string{string(item.ID), "turn-1"}, both.IncludedIDs)

	chatOnly, err := e.BuildPrompt(ctx, PromptRequest{MaxTokens: 1000, Mix: MixChat})
	require.NoError(t, err)
	assert.Equal(t, "User: which port?", chatOnly.Text)

	contextOnly, err := e.BuildPrompt(ctx, PromptRequest{MaxTokens: 1000, Mix: MixContext})
	require.NoError(t, err)
	assert.Equal(t, "service listens on port 8080", contextOnly.Text)
	require.Len(t, contextOnly.Stats.Sources, 1)
	assert.Equal(t, budget.SourceContext, contextOnly.Stats.Sources[0].Source)

	_, err = e.BuildPrompt(ctx, PromptRequest{MaxTokens: 1000, Mix: "everything"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestClear_ReportsCountsPerCategory(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	_, err := e.Remember(ctx, "one")
	require.NoError(t, err)
	_, err = e.Remember(ctx, "two")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := e.AppendTurn(ctx, core.RoleAssistant, "reply")
		require.NoError(t, err)
	}
	_, err = e.Snapshot(ctx)
	require.NoError(t, err)

	result, err := e.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClearResult{Entries: 2, Summaries: 1, Snapshots: 1, ContextItems: 2}, result)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Total)
	assert.Zero(t, status.ContextItems)
	assert.Zero(t, status.Summaries)
}

func TestCheckpointAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e := openEngine(t, dir, nil)
	_, err := e.AddContext(ctx, "deploys run on fridays", nil)
	require.NoError(t, err)
	_, err = e.Remember(ctx, "deploy it")
	require.NoError(t, err)

	saved, err := e.Checkpoint(ctx)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = e.Checkpoint(ctx)
	require.NoError(t, err)
	assert.False(t, saved, "nothing changed since the last snapshot")

	_, err = e.AppendTurn(ctx, core.RoleAssistant, "noted")
	require.NoError(t, err)

	wantContext, _ := e.ListContext(ctx)
	wantEntries, _ := e.Entries(ctx)
	wantChat, _ := e.Chat(ctx, 0)
	require.NoError(t, e.Close())

	reopened := openEngine(t, dir, nil)

	gotContext, _ := reopened.ListContext(ctx)
	gotEntries, _ := reopened.Entries(ctx)
	gotChat, _ := reopened.Chat(ctx, 0)

	if diff := cmp.Diff(wantContext, gotContext, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("context mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantEntries, gotEntries, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantChat, gotChat, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("chat mismatch (-want +got):\n%s", diff)
	}
}

func TestClearThenReopen_KeepsSummariesCleared(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e := openEngine(t, dir, func(o *Options) { o.SummaryInterval = 5 })
	for i := 0; i < 6; i++ {
		_, err := e.AppendTurn(ctx, core.RoleAssistant, "reply")
		require.NoError(t, err)
	}
	result, err := e.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.Summaries)

	saved, err := e.Checkpoint(ctx)
	require.NoError(t, err)
	require.True(t, saved)
	wantChat, _ := e.Chat(ctx, 0)
	require.NoError(t, e.Close())

	reopened := openEngine(t, dir, func(o *Options) { o.SummaryInterval = 5 })

	status, err := reopened.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Summaries)

	gotChat, _ := reopened.Chat(ctx, 0)
	if diff := cmp.Diff(wantChat, gotChat, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("chat mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduledSnapshot_ClearsCheckpointFlag(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), nil)

	_, err := e.AddContext(ctx, "deploys run on fridays", nil)
	require.NoError(t, err)

	s, err := bridge.NewScheduler(e, "@every 1s")
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(runCtx) }()

	require.Eventually(t, func() bool {
		infos, err := e.Snapshots(ctx)
		return err == nil && len(infos) >= 1
	}, 5*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	saved, err := e.Checkpoint(ctx)
	require.NoError(t, err)
	assert.False(t, saved, "scheduled snapshot already covered the change")
}

func TestSnapshotDetailAndPrune(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, t.TempDir(), func(o *Options) { o.Backend = bridge.BackendSQLite })

	_, err := e.Remember(ctx, "deploy it")
	require.NoError(t, err)

	var last bridge.Info
	for i := 0; i < 3; i++ {
		last, err = e.Snapshot(ctx)
		require.NoError(t, err)
	}

	detail, err := e.SnapshotDetail(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, detail.SnapshotAt.Equal(last.SnapshotAt))
	detail.SnapshotAt = time.Time{}
	assert.Equal(t, SnapshotDetail{
		ID:           last.ID,
		Version:      bridge.FormatVersion,
		ContextItems: 1,
		Turns:        1,
		Entries:      1,
		Pending:      1,
	}, detail)

	removed, err := e.PruneSnapshots(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = e.SnapshotDetail(ctx, "snap_missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestParseMix(t *testing.T) {
	tests := map[string]Mix{"": MixBoth, "Chat": MixChat, " context ": MixContext, "both": MixBoth}
	for input, want := range tests {
		got, err := ParseMix(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseMix("all")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
