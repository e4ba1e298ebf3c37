package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/rpc"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			t := newTable("NAME", "STATUS", "PID", "ENDPOINT", "STARTED", "SNAPSHOTS")

			status, err := daemonStatus(cmd.Context(), a.ServerAddr)
			if err != nil {
				pid := "-"
				label := styleError.Render("stopped")
				if p := runningPID(a.Config.DataDir); p != 0 {
					pid = fmt.Sprint(p)
					label = styleWarning.Render("unreachable")
				}
				t.Row("recall", label, pid, a.ServerAddr, "-", "-")
				a.println(t.Render())
				return nil
			}

			snapshots := status.SnapshotBackend
			if status.SnapshotSchedule != "" {
				snapshots += " " + status.SnapshotSchedule
			}

			t.Row("recall",
				styleSuccess.Render("running"),
				fmt.Sprint(status.PID),
				status.Bind,
				humanize.Time(status.StartedAt),
				snapshots)
			a.println(t.Render())

			if status.MetricsBind != "" {
				a.println(styleDim.Render("metrics http://" + status.MetricsBind + "/metrics"))
			}
			a.println(styleDim.Render("data " + status.DataDir))
			return nil
		},
	}
}

func daemonStatus(ctx context.Context, addr string) (rpc.DaemonStatus, error) {
	client, err := rpc.Dial(addr)
	if err != nil {
		return rpc.DaemonStatus{}, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return client.DaemonStatus(ctx)
}
