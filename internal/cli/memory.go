package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/memory"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or reset everything recall keeps",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show queue, chat and context counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				st, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}

				t := newTable("ITEM", "VALUE")
				t.Row("remembered", fmt.Sprintf("%d (%d pending, %d executed)", st.Total, st.Pending, st.Executed))
				t.Row("context items", fmt.Sprint(st.ContextItems))
				t.Row("chat turns", fmt.Sprint(st.Turns))
				t.Row("summaries", fmt.Sprint(st.Summaries))
				t.Row("max batch", fmt.Sprint(st.MaxBatch))
				if st.LastPreview != "" {
					t.Row("last", st.LastPreview)
				}
				t.Row("mode", a.mode())

				a.println(t.Render())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop the queue, summaries, snapshots and context items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				res, err := svc.Clear(cmd.Context())
				a.printf("cleared %s, %s, %s and %s\n",
					plural(res.Entries, "entry", "entries"),
					plural(res.Summaries, "summary", "summaries"),
					plural(res.Snapshots, "snapshot", "snapshots"),
					plural(res.ContextItems, "context item", "context items"))
				return err
			})
		},
	})

	return cmd
}

func (a *App) mode() string {
	if a.Remote {
		return "daemon " + a.ServerAddr
	}
	return "local " + a.Config.DataDir
}
