package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erg0nix/recall/internal/app"
	"github.com/erg0nix/recall/internal/config"
	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/core"
)

func writeConfig(t *testing.T, extra ...string) string {
	t.Helper()
	for _, key := range []string{"RECALL_DATA_DIR", "RECALL_ASSUME_YES", "RECALL_MAX_BATCH_PERFORM", "RECALL_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	lines := []string{
		fmt.Sprintf("data_dir = %q", filepath.Join(dir, "data")),
		"[memory]",
		fmt.Sprintf("working_dir = %q", dir),
		"max_batch_perform = 2",
		"[snapshot]",
		`schedule = ""`,
		"retain = 5",
		"[daemon]",
		`bind = "127.0.0.1:1"`,
		`metrics_bind = ""`,
		"[debug]",
		`log_level = "error"`,
	}
	lines = append(lines, extra...)

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath, "--local"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := execute(t, configPath, args...)
	require.NoError(t, err, "recall %s", strings.Join(args, " "))
	return out
}

func TestRememberAndPerform(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "remember", "build", "web", "app")
	assert.Contains(t, out, "remembered #1 build web app")

	mustExecute(t, cfg, "remember", "deploy it")

	out = mustExecute(t, cfg, "remember", "deploy it")
	assert.Contains(t, out, "already queued as #2")

	out = mustExecute(t, cfg, "remember", "list")
	assert.Contains(t, out, "build web app")
	assert.Contains(t, out, "deploy it")
	assert.Equal(t, 2, strings.Count(out, "pending"))

	out = mustExecute(t, cfg, "perform", "1")
	assert.Contains(t, out, "#1 sent to chat build web app")

	out = mustExecute(t, cfg, "remember", "list", "--pending")
	assert.NotContains(t, out, "build web app")
	assert.Contains(t, out, "deploy it")

	out = mustExecute(t, cfg, "memory", "status")
	assert.Contains(t, out, "2 (1 pending, 1 executed)")
	assert.Contains(t, out, "deploy it")

	out = mustExecute(t, cfg, "perform")
	assert.Contains(t, out, "#2 sent to chat deploy it")

	_, err := execute(t, cfg, "perform")
	assert.ErrorIs(t, err, core.ErrNothingToPerform)

	out = mustExecute(t, cfg, "remember", "purge")
	assert.Contains(t, out, "purged 2 executed entries")
}

func TestRemember_TextStartingWithSubcommandName(t *testing.T) {
	cfg := writeConfig(t)

	for _, args := range [][]string{
		{"list", "the", "files"},
		{"clear", "the", "cache"},
		{"compact", "the", "database"},
		{"purge", "old", "branches"},
		{"remove", "the", "temp", "files"},
		{"rm", "stale"},
	} {
		out := mustExecute(t, cfg, append([]string{"remember"}, args...)...)
		assert.Contains(t, out, "remembered", "remember %v", args)
	}

	out := mustExecute(t, cfg, "remember", "list")
	for _, text := range []string{"list the files", "clear the cache", "compact the database", "purge old branches", "remove the temp files", "rm stale"} {
		assert.Contains(t, out, text)
	}
	assert.Equal(t, 6, strings.Count(out, "pending"))
}

func TestRememberPurgeExecuted(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "remember", "deploy it")
	mustExecute(t, cfg, "perform")

	out := mustExecute(t, cfg, "remember", "purge", "executed")
	assert.Contains(t, out, "purged 1 executed entry")

	out = mustExecute(t, cfg, "remember", "list")
	assert.Contains(t, out, "nothing remembered")
}

func TestRemember_NoTextPerformsAllPending(t *testing.T) {
	cfg := writeConfig(t)
	for _, text := range []string{"a", "b", "c"} {
		mustExecute(t, cfg, "remember", text)
	}

	_, err := execute(t, cfg, "remember")
	require.ErrorIs(t, err, core.ErrBatchTooLarge)

	out := mustExecute(t, cfg, "remember", "list", "--pending")
	assert.Equal(t, 3, strings.Count(out, "pending"))

	out = mustExecute(t, cfg, "remember", "--yes")
	assert.Contains(t, out, "#1 sent to chat a")
	assert.Contains(t, out, "#3 sent to chat c")

	out = mustExecute(t, cfg, "remember", "list", "--pending")
	assert.Contains(t, out, "nothing remembered")
}

func TestPerformClear_RemovesOnlyNewestEntry(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "perform", "clear")
	assert.Contains(t, out, "nothing remembered")

	for _, text := range []string{"build web app", "deploy it"} {
		mustExecute(t, cfg, "remember", text)
	}

	out = mustExecute(t, cfg, "perform", "clear")
	assert.Contains(t, out, "removed #2 deploy it")

	out = mustExecute(t, cfg, "remember", "list")
	assert.Contains(t, out, "build web app")
	assert.NotContains(t, out, "deploy it")
}

func TestPerformRange_RequiresConfirmation(t *testing.T) {
	cfg := writeConfig(t)
	for _, text := range []string{"a", "b", "c"} {
		mustExecute(t, cfg, "remember", text)
	}

	_, err := execute(t, cfg, "perform", "range", "1", "3")
	require.ErrorIs(t, err, core.ErrBatchTooLarge)

	var tooLarge *core.BatchTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 3, tooLarge.Requested)
	assert.Contains(t, DescribeError(err), "re-run with --yes")

	out := mustExecute(t, cfg, "perform", "range", "1", "3", "--yes")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "#3")
}

func TestRememberQueueMaintenance(t *testing.T) {
	cfg := writeConfig(t)
	for _, text := range []string{"a", "b", "c"} {
		mustExecute(t, cfg, "remember", text)
	}

	out := mustExecute(t, cfg, "remember", "remove", "#2")
	assert.Contains(t, out, "removed #2")

	_, err := execute(t, cfg, "remember", "remove", "2")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = execute(t, cfg, "remember", "remove", "0")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	out = mustExecute(t, cfg, "remember", "compact")
	assert.Contains(t, out, "renumbered 2 entries")

	out = mustExecute(t, cfg, "perform", "2")
	assert.Contains(t, out, "#2 sent to chat c")

	out = mustExecute(t, cfg, "remember", "clear")
	assert.Contains(t, out, "cleared 2 entries")
}

func TestContextCommands(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "context", "add", "--tag", "code", "service listens on port 8080")
	assert.Contains(t, out, "added")
	mustExecute(t, cfg, "context", "add", "the deploy target is staging")

	out = mustExecute(t, cfg, "context", "list")
	assert.Contains(t, out, "service listens on port 8080")
	assert.Contains(t, out, "code")

	out = mustExecute(t, cfg, "context", "search", "port")
	assert.Contains(t, out, "service listens on port 8080")
	assert.NotContains(t, out, "staging")

	out = mustExecute(t, cfg, "context", "search", "kubernetes")
	assert.Contains(t, out, "no matches")

	exportPath := filepath.Join(t.TempDir(), "context.jsonl")
	out = mustExecute(t, cfg, "context", "export", "-o", exportPath)
	assert.Contains(t, out, "exported 2 items")

	f, err := os.Open(exportPath)
	require.NoError(t, err)
	defer f.Close()

	var contents []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var item contextstore.Item
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &item))
		contents = append(contents, item.Content)
	}
	require.NoError(t, scanner.Err())
	assert.ElementsMatch(t, []string{"service listens on port 8080", "the deploy target is staging"}, contents)
}

func TestChatAndPrompt(t *testing.T) {
	cfg := writeConfig(t)

	mustExecute(t, cfg, "context", "add", "service listens on port 8080")
	out := mustExecute(t, cfg, "chat", "append", "user", "which", "port?")
	assert.Contains(t, out, "turn 1")

	_, err := execute(t, cfg, "chat", "append", "narrator", "hello")
	assert.ErrorIs(t, err, core.ErrInvalidRole)

	out = mustExecute(t, cfg, "chat", "show")
	assert.Contains(t, out, "User: which port?")

	out = mustExecute(t, cfg, "prompt", "--header", "SYS", "--max-tokens", "500", "--reserve", "0")
	assert.Equal(t, "SYS\nservice listens on port 8080\nUser: which port?\n", out)

	out = mustExecute(t, cfg, "prompt", "--header", "SYS", "--mix", "chat", "--max-tokens", "500", "--reserve", "0", "--stats")
	assert.True(t, strings.HasPrefix(out, "SYS\nUser: which port?\n"))
	assert.Contains(t, out, "tokens used")

	_, err = execute(t, cfg, "prompt", "--mix", "everything")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSnapshotCommands(t *testing.T) {
	cfg := writeConfig(t)
	mustExecute(t, cfg, "context", "add", "fact one")

	out := mustExecute(t, cfg, "snapshot", "save")
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	assert.Equal(t, "saved", fields[0])
	id := fields[1]

	out = mustExecute(t, cfg, "snapshot", "list")
	assert.Contains(t, out, id)

	out = mustExecute(t, cfg, "snapshot", "show", id)
	assert.Contains(t, out, "context items")

	_, err := execute(t, cfg, "snapshot", "show", "01BX5ZZKBKACTAV9WEVGEMMVRZ")
	assert.ErrorIs(t, err, core.ErrNotFound)

	out = mustExecute(t, cfg, "snapshot", "prune", "--retain", "1")
	assert.Contains(t, out, "removed 1 snapshot")

	out = mustExecute(t, cfg, "memory", "clear")
	assert.Contains(t, out, "1 context item")

	out = mustExecute(t, cfg, "context", "list")
	assert.Contains(t, out, "no context items")
}

func TestStatusAndStop_NoDaemon(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "status")
	assert.Contains(t, out, "stopped")

	out = mustExecute(t, cfg, "stop")
	assert.Contains(t, out, "daemon not running")
}

func TestCommandsReachDaemon(t *testing.T) {
	path := writeConfig(t)
	cfg, err := config.LoadOrCreate(path)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	done := make(chan error, 1)
	go func() { done <- app.Serve(context.Background(), cfg, listener) }()

	remote := func(args ...string) (string, error) {
		return execute(t, path, append([]string{"--server", addr}, args...)...)
	}

	require.Eventually(t, func() bool {
		out, err := remote("status")
		return err == nil && strings.Contains(out, "running")
	}, 5*time.Second, 50*time.Millisecond)

	out, err := remote("remember", "ship it")
	require.NoError(t, err)
	assert.Contains(t, out, "remembered #1")

	out, err = remote("memory", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "daemon "+addr)
	assert.Contains(t, out, "1 (1 pending, 0 executed)")

	out, err = remote("stop")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped daemon")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	out = mustExecute(t, path, "remember", "list")
	assert.Contains(t, out, "ship it")
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"batch", &core.BatchTooLargeError{Requested: 30, Limit: 20}, "30 entries, limit is 20"},
		{"nothing", core.ErrNothingToPerform, "recall remember <text>"},
		{"not found", fmt.Errorf("remove 4: %w", core.ErrNotFound), "recall remember list"},
		{"corrupt", core.ErrStorageCorruption, "allow_fresh_start"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, DescribeError(tt.err), tt.want)
		})
	}
}

func TestClientAddrFromBind(t *testing.T) {
	tests := map[string]string{
		":50061":          "127.0.0.1:50061",
		"0.0.0.0:50061":   "127.0.0.1:50061",
		"10.0.0.5:50061":  "10.0.0.5:50061",
		"127.0.0.1:50061": "127.0.0.1:50061",
		"not-an-address":  "not-an-address",
	}

	for bind, want := range tests {
		if got := clientAddrFromBind(bind); got != want {
			t.Fatalf("clientAddrFromBind(%q) = %q, want %q", bind, got, want)
		}
	}
}

func TestCommandsListsBundledScripts(t *testing.T) {
	cfg := writeConfig(t)

	out := mustExecute(t, cfg, "commands")
	assert.Contains(t, out, "grep <pattern>")
	assert.Contains(t, out, "note <text>")
}
