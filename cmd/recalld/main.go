package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/erg0nix/recall/internal/app"
	"github.com/erg0nix/recall/internal/config"
)

func main() {
	app.SetupLogging(os.Stderr, slog.LevelInfo)

	var (
		configPathFlag  = flag.String("config", "", "path to config file (default ~/.recall/config.toml)")
		bindFlag        = flag.String("bind", "", "gRPC bind address")
		metricsBindFlag = flag.String("metrics-bind", "", "Prometheus /metrics bind address")
		dataDirFlag     = flag.String("data-dir", "", "base data dir (default ~/.recall)")
		backendFlag     = flag.String("snapshot-backend", "", "snapshot store: file or sqlite")
		autoPerformFlag = flag.Bool("auto-perform", false, "perform pending entries after restore")
	)
	flag.Parse()

	configPath := *configPathFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setIfNotEmpty := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}

	setIfNotEmpty(&cfg.Daemon.Bind, *bindFlag)
	setIfNotEmpty(&cfg.Daemon.MetricsBind, *metricsBindFlag)
	setIfNotEmpty(&cfg.DataDir, *dataDirFlag)
	setIfNotEmpty(&cfg.Snapshot.Backend, *backendFlag)
	if *autoPerformFlag {
		cfg.Memory.AutoPerformOnStart = true
	}

	app.SetupLogging(os.Stderr, cfg.Debug.Level())

	if err := app.RunServer(cfg); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}
