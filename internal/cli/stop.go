package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/rpc"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the recall daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			if err := shutdownDaemon(cmd.Context(), a.ServerAddr); err == nil {
				a.println(styleSuccess.Render("stopped daemon"))
				return nil
			}

			pid := runningPID(a.Config.DataDir)
			if pid == 0 {
				a.println(styleDim.Render("daemon not running"))
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("stop daemon: %w", err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("stop daemon: signal pid %d: %w", pid, err)
			}

			a.println(styleSuccess.Render("sent SIGTERM to daemon") + " " + stylePID.Render(fmt.Sprintf("pid %d", pid)))
			return nil
		},
	}
}

func shutdownDaemon(ctx context.Context, addr string) error {
	client, err := rpc.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = client.Shutdown(ctx)
	return err
}
