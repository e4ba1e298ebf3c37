package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/remember"
)

func startServer(t *testing.T, tweak func(*memory.Options), daemon DaemonServer) *Client {
	t.Helper()

	opts := memory.Options{DataDir: t.TempDir()}
	if tweak != nil {
		tweak(&opts)
	}

	engine, err := memory.Open(opts)
	require.NoError(t, err)
	_, err = engine.Restore(context.Background())
	require.NoError(t, err)

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterMemoryService(server, engine)
	if daemon != nil {
		RegisterDaemonService(server, daemon)
	}

	go server.Serve(listener)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		server.Stop()
		engine.Close()
	})

	return NewClient(conn)
}

func TestClient_RememberPerformStatus(t *testing.T) {
	ctx := context.Background()
	client := startServer(t, nil, nil)

	res, err := client.Remember(ctx, "build web app")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.Entry.Index)

	_, err = client.Remember(ctx, "deploy it")
	require.NoError(t, err)

	report, err := client.Perform(ctx, memory.PerformRequest{Mode: memory.PerformIndex, Index: 1})
	require.NoError(t, err)
	require.Len(t, report.Executed, 1)
	assert.Equal(t, remember.RouteChat, report.Executed[0].Result.Route)

	entries, err := client.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, remember.StatusExecuted, entries[0].Status)
	require.NotNil(t, entries[0].ExecutedAt)
	assert.Equal(t, remember.StatusPending, entries[1].Status)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, memory.Status{
		Total:        2,
		Pending:      1,
		Executed:     1,
		LastPreview:  "deploy it",
		ContextItems: 2,
		Turns:        3,
		MaxBatch:     remember.DefaultMaxBatch,
	}, status)
}

func TestClient_ContextAndPrompt(t *testing.T) {
	ctx := context.Background()
	client := startServer(t, nil, nil)

	item, err := client.AddContext(ctx, "service listens on port 8080", []string{"fact"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fact"}, item.Tags)

	results, err := client.SearchContext(ctx, "port", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, item.ID, results[0].Item.ID)

	_, err = client.AppendTurn(ctx, core.RoleUser, "which port?")
	require.NoError(t, err)

	prompt, err := client.BuildPrompt(ctx, memory.PromptRequest{MaxTokens: 500, Header: "SYS"})
	require.NoError(t, err)
	assert.Equal(t, "SYS\nservice listens on port 8080\nUser: which port?", prompt.Text)
	assert.Len(t, prompt.IncludedIDs, 2)

	view, err := client.Chat(ctx, 0)
	require.NoError(t, err)
	require.Len(t, view.Turns, 1)
	assert.Equal(t, core.RoleUser, view.Turns[0].Role)
}

func TestClient_ErrorKindsSurviveTheWire(t *testing.T) {
	ctx := context.Background()
	client := startServer(t, func(o *memory.Options) { o.MaxBatch = 2 }, nil)

	_, err := client.Remember(ctx, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	err = client.RemoveEntry(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = client.Perform(ctx, memory.PerformRequest{Mode: memory.PerformAll})
	assert.ErrorIs(t, err, core.ErrNothingToPerform)

	_, err = client.AppendTurn(ctx, core.Role("narrator"), "hello")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	for _, text := range []string{"a", "b", "c"} {
		_, err := client.Remember(ctx, text)
		require.NoError(t, err)
	}

	_, err = client.Perform(ctx, memory.PerformRequest{Mode: memory.PerformRange, Start: 1, End: 3})
	require.ErrorIs(t, err, core.ErrBatchTooLarge)

	var tooLarge *core.BatchTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 3, tooLarge.Requested)
	assert.Equal(t, 2, tooLarge.Limit)
}

func TestClient_ClearAndSnapshots(t *testing.T) {
	ctx := context.Background()
	client := startServer(t, nil, nil)

	_, err := client.Remember(ctx, "one")
	require.NoError(t, err)

	info, err := client.Snapshot(ctx)
	require.NoError(t, err)

	infos, err := client.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, info.ID, infos[0].ID)

	detail, err := client.SnapshotDetail(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.Entries)
	assert.Equal(t, 1, detail.ContextItems)

	result, err := client.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, memory.ClearResult{Entries: 1, Snapshots: 1, ContextItems: 1}, result)
}

func TestDaemonService(t *testing.T) {
	stopped := make(chan struct{})
	handler := &DaemonHandler{
		Status:    DaemonStatus{Bind: ":50061", DataDir: "/tmp/recall", SnapshotBackend: "file", PID: 1234},
		StartTime: time.Now().Add(-time.Minute),
		StopFunc:  func() { close(stopped) },
	}
	client := startServer(t, nil, handler)

	status, err := client.DaemonStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ":50061", status.Bind)
	assert.Equal(t, 1234, status.PID)
	assert.GreaterOrEqual(t, status.UptimeSeconds, int64(59))

	msg, err := client.Shutdown(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shutting down", msg)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop func was not called")
	}
}

func TestFromStatus_PassesThroughPlainErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, fromStatus(plain))
}
