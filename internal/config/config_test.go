package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erg0nix/recall/internal/core"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envDataDir, envAssumeYes, envMaxBatch, envLogLevel} {
		t.Setenv(key, "")
	}
}

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "config file is created")

	assert.Equal(t, 5, cfg.Memory.SummaryInterval)
	assert.Equal(t, 20, cfg.Memory.MaxBatchPerform)
	assert.Equal(t, 24*time.Hour, cfg.Memory.HalfLife())
	assert.Equal(t, "file", cfg.Snapshot.Backend)
	assert.Equal(t, "@every 5m", cfg.Snapshot.Schedule)
	assert.True(t, cfg.Snapshot.AllowFreshStart)

	again, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadOrCreate_ReadsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	data := strings.Join([]string{
		`data_dir = "~/recall-data"`,
		`[memory]`,
		`max_batch_perform = 5`,
		`assume_yes = true`,
		`[snapshot]`,
		`backend = "SQLite"`,
		`retain = 3`,
		`allow_fresh_start = false`,
		`[debug]`,
		`log_level = "debug"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	if home != "" {
		assert.Equal(t, filepath.Join(home, "recall-data"), cfg.DataDir)
	}
	assert.Equal(t, 5, cfg.Memory.MaxBatchPerform)
	assert.True(t, cfg.Memory.AssumeYes)
	assert.Equal(t, 5, cfg.Memory.SummaryInterval, "missing keys keep their defaults")
	assert.Equal(t, "sqlite", cfg.Snapshot.Backend)
	assert.Equal(t, 3, cfg.Snapshot.Retain)
	assert.False(t, cfg.Snapshot.AllowFreshStart)
	assert.Equal(t, slog.LevelDebug, cfg.Debug.Level())
}

func TestLoadOrCreate_RejectsBadValues(t *testing.T) {
	clearEnv(t)

	for name, data := range map[string]string{
		"backend":   "[snapshot]\nbackend = \"redis\"\n",
		"log level": "[debug]\nlog_level = \"loud\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

			_, err := LoadOrCreate(path)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[memory\n"), 0o644))
	_, err := LoadOrCreate(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envAssumeYes, "1")
	t.Setenv(envMaxBatch, "7")
	t.Setenv(envDataDir, "/tmp/recall-env")
	t.Setenv(envLogLevel, "warn")

	cfg := ApplyEnv(Default())
	assert.True(t, cfg.Memory.AssumeYes)
	assert.Equal(t, 7, cfg.Memory.MaxBatchPerform)
	assert.Equal(t, "/tmp/recall-env", cfg.DataDir)
	assert.Equal(t, slog.LevelWarn, cfg.Debug.Level())

	t.Setenv(envMaxBatch, "lots")
	t.Setenv(envAssumeYes, "0")
	cfg = ApplyEnv(Default())
	assert.Equal(t, 20, cfg.Memory.MaxBatchPerform)
	assert.False(t, cfg.Memory.AssumeYes)
}
