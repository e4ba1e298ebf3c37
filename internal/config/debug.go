package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/erg0nix/recall/internal/core"
)

const (
	envDataDir   = "RECALL_DATA_DIR"
	envAssumeYes = "RECALL_ASSUME_YES"
	envMaxBatch  = "RECALL_MAX_BATCH_PERFORM"
	envLogLevel  = "RECALL_LOG_LEVEL"
)

type DebugConfig struct {
	LogLevel string `toml:"log_level"`
}

// Level is the parsed log level; unknown names fall back to info.
func (d DebugConfig) Level() slog.Level {
	level, err := ParseLevel(d.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("debug.log_level %q: %w", name, core.ErrInvalidInput)
	}
}

// ApplyEnv overrides config values from RECALL_* environment variables.
func ApplyEnv(cfg Config) Config {
	if dir := strings.TrimSpace(os.Getenv(envDataDir)); dir != "" {
		cfg.DataDir = dir
	}
	if v := os.Getenv(envAssumeYes); v != "" {
		cfg.Memory.AssumeYes = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv(envMaxBatch); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Memory.MaxBatchPerform = n
		}
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Debug.LogLevel = v
	}
	return cfg
}
