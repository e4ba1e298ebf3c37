package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, inspect and prune durable snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Write a snapshot now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				info, err := svc.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render("saved") + " " + styleIndex.Render(string(info.ID)))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List snapshots, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				infos, err := svc.Snapshots(cmd.Context())
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					a.println(styleDim.Render("no snapshots"))
					return nil
				}

				t := newTable("ID", "TAKEN", "SIZE")
				for _, info := range infos {
					t.Row(string(info.ID), humanize.Time(info.SnapshotAt), humanize.Bytes(uint64(info.Size)))
				}
				a.println(t.Render())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Describe one snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				d, err := svc.SnapshotDetail(cmd.Context(), core.SnapshotID(args[0]))
				if err != nil {
					return err
				}

				t := newTable("FIELD", "VALUE")
				t.Row("id", string(d.ID))
				t.Row("taken", fmt.Sprintf("%s (%s)", d.SnapshotAt.Format("2006-01-02 15:04:05"), humanize.Time(d.SnapshotAt)))
				t.Row("version", fmt.Sprint(d.Version))
				t.Row("context items", fmt.Sprint(d.ContextItems))
				t.Row("chat turns", fmt.Sprint(d.Turns))
				t.Row("summaries", fmt.Sprint(d.Summaries))
				t.Row("remembered", fmt.Sprintf("%d (%d pending)", d.Entries, d.Pending))
				a.println(t.Render())
				return nil
			})
		},
	})

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Keep only the newest snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				retain := a.Config.Snapshot.Retain
				if cmd.Flags().Changed("retain") {
					retain, _ = cmd.Flags().GetInt("retain")
				}

				n, err := svc.PruneSnapshots(cmd.Context(), retain)
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("removed %s", plural(n, "snapshot", "snapshots"))))
				return nil
			})
		},
	}
	prune.Flags().Int("retain", 0, "snapshots to keep (default snapshot.retain)")
	cmd.AddCommand(prune)

	return cmd
}
