package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/app"
	"github.com/erg0nix/recall/internal/config"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/rpc"
)

type App struct {
	Config     config.Config
	ConfigPath string
	ServerAddr string
	// Remote routes service calls to the daemon at ServerAddr.
	Remote bool

	out io.Writer
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	serverOverride, _ := cmd.Flags().GetString("server")
	local, _ := cmd.Flags().GetBool("local")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	app.SetupLogging(os.Stderr, cfg.Debug.Level())

	remote := serverOverride != "" || (!local && runningPID(cfg.DataDir) != 0)

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		ServerAddr: resolveServer(serverOverride, cfg),
		Remote:     remote,
		out:        cmd.OutOrStdout(),
	}, nil
}

// withService runs fn against the daemon or a local engine. A local engine
// is checkpointed before it is closed so context changes survive the process.
func (a *App) withService(ctx context.Context, fn func(memory.Service) error) error {
	if a.Remote {
		client, err := rpc.Dial(a.ServerAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		return fn(client)
	}

	engine, err := app.OpenEngine(ctx, a.Config, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	runErr := fn(engine)

	if _, err := engine.Checkpoint(ctx); err != nil {
		slog.Warn("checkpoint failed", "error", err)
	}
	return runErr
}

// run loads the app for cmd and calls fn with a service.
func run(cmd *cobra.Command, fn func(a *App, svc memory.Service) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	return a.withService(cmd.Context(), func(svc memory.Service) error {
		return fn(a, svc)
	})
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
