package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/erg0nix/recall/internal/bridge"
	"github.com/erg0nix/recall/internal/core"
)

type MemoryConfig struct {
	SummaryInterval    int     `toml:"summary_interval"`
	HalfLifeHours      float64 `toml:"half_life_hours"`
	MaxBatchPerform    int     `toml:"max_batch_perform"`
	AssumeYes          bool    `toml:"assume_yes"`
	AutoPerformOnStart bool    `toml:"auto_perform_on_start"`
	WorkingDir         string  `toml:"working_dir"`
}

// HalfLife is the context decay half-life as a duration.
func (m MemoryConfig) HalfLife() time.Duration {
	return time.Duration(m.HalfLifeHours * float64(time.Hour))
}

type SnapshotConfig struct {
	Backend         string `toml:"backend"`
	Schedule        string `toml:"schedule"`
	Retain          int    `toml:"retain"`
	AllowFreshStart bool   `toml:"allow_fresh_start"`
}

type DaemonConfig struct {
	Bind        string `toml:"bind"`
	MetricsBind string `toml:"metrics_bind"`
}

type Config struct {
	DataDir  string         `toml:"data_dir"`
	Memory   MemoryConfig   `toml:"memory"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Daemon   DaemonConfig   `toml:"daemon"`
	Debug    DebugConfig    `toml:"debug"`
}

func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		Memory: MemoryConfig{
			SummaryInterval: 5,
			HalfLifeHours:   24,
			MaxBatchPerform: 20,
		},
		Snapshot: SnapshotConfig{
			Backend:         bridge.BackendFile,
			Schedule:        "@every 5m",
			Retain:          10,
			AllowFreshStart: true,
		},
		Daemon: DaemonConfig{
			Bind:        "127.0.0.1:50061",
			MetricsBind: "127.0.0.1:9464",
		},
		Debug: DebugConfig{
			LogLevel: "info",
		},
	}
}

// DefaultPath is config.toml in the default data dir.
func DefaultPath() string {
	return filepath.Join(Default().DataDir, "config.toml")
}

// LoadOrCreate reads the config at path, writing the defaults there first
// when the file does not exist. Environment overrides are applied last.
func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return config, err
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return config, err
		}

		configData, err := toml.Marshal(config)
		if err != nil {
			return config, err
		}

		if err := os.WriteFile(path, configData, 0o644); err != nil {
			return config, err
		}

		return normalize(ApplyEnv(config))
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, fmt.Errorf("parse %s: %w", path, err)
	}

	return normalize(ApplyEnv(config))
}

func normalize(config Config) (Config, error) {
	defaults := Default()

	config.DataDir = expandPath(strings.TrimSpace(config.DataDir))
	config.Memory.WorkingDir = expandPath(strings.TrimSpace(config.Memory.WorkingDir))
	config.Daemon.Bind = strings.TrimSpace(config.Daemon.Bind)
	config.Daemon.MetricsBind = strings.TrimSpace(config.Daemon.MetricsBind)
	config.Snapshot.Backend = strings.ToLower(strings.TrimSpace(config.Snapshot.Backend))
	config.Snapshot.Schedule = strings.TrimSpace(config.Snapshot.Schedule)

	if config.DataDir == "" {
		config.DataDir = defaults.DataDir
	}
	if config.Daemon.Bind == "" {
		config.Daemon.Bind = defaults.Daemon.Bind
	}
	if config.Memory.SummaryInterval <= 0 {
		config.Memory.SummaryInterval = defaults.Memory.SummaryInterval
	}
	if config.Memory.HalfLifeHours <= 0 {
		config.Memory.HalfLifeHours = defaults.Memory.HalfLifeHours
	}
	if config.Memory.MaxBatchPerform <= 0 {
		config.Memory.MaxBatchPerform = defaults.Memory.MaxBatchPerform
	}
	if config.Snapshot.Retain < 0 {
		config.Snapshot.Retain = 0
	}

	switch config.Snapshot.Backend {
	case "":
		config.Snapshot.Backend = bridge.BackendFile
	case bridge.BackendFile, bridge.BackendSQLite:
	default:
		return config, fmt.Errorf("snapshot.backend %q: %w: want file or sqlite", config.Snapshot.Backend, core.ErrInvalidInput)
	}

	if _, err := ParseLevel(config.Debug.LogLevel); err != nil {
		return config, err
	}

	return config, nil
}

func defaultDataDir() string {
	if dir := strings.TrimSpace(os.Getenv(envDataDir)); dir != "" {
		return expandPath(dir)
	}

	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".recall"
	}

	return filepath.Join(homeDir, ".recall")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
