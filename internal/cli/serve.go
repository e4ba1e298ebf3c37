package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/app"
	"github.com/erg0nix/recall/internal/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recall daemon",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}

	cmd.Flags().Bool("foreground", false, "run the daemon in the foreground")
	cmd.Flags().String("bind", "", "bind address (overrides config)")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	foreground, _ := cmd.Flags().GetBool("foreground")
	bindOverride, _ := cmd.Flags().GetString("bind")

	cfg := a.Config
	if bindOverride != "" {
		cfg.Daemon.Bind = bindOverride
	}

	if foreground {
		return app.RunServer(cfg)
	}

	return startServer(a, cfg, bindOverride)
}

func startServer(a *App, cfg config.Config, bindOverride string) error {
	if pid := runningPID(cfg.DataDir); pid != 0 {
		a.println(styleDim.Render(fmt.Sprintf("daemon already running at %s (pid %d)", resolveServer("", cfg), pid)))
		return nil
	}

	serverCmd := exec.Command(os.Args[0], "serve", "--foreground")
	if a.ConfigPath != "" {
		serverCmd.Args = append(serverCmd.Args, "--config", a.ConfigPath)
	}
	if bindOverride != "" {
		serverCmd.Args = append(serverCmd.Args, "--bind", bindOverride)
	}

	logFile := filepath.Join(cfg.DataDir, "server.log")
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("start server: create data dir: %w", err)
	}

	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("start server: open log: %w", err)
	}
	defer out.Close()

	serverCmd.Stdout = out
	serverCmd.Stderr = out

	if err := serverCmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	a.println(styleSuccess.Render("started daemon") + " " +
		stylePID.Render(fmt.Sprintf("pid %d", serverCmd.Process.Pid)) + " " +
		styleDim.Render("log "+logFile))
	return nil
}
