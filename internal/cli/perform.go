package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/remember"
)

func newPerformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perform [index]",
		Short: "Run the newest pending instruction, or the one at index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := memory.PerformRequest{Mode: memory.PerformLast}
			if len(args) == 1 {
				index, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				req = memory.PerformRequest{Mode: memory.PerformIndex, Index: index}
			}
			return runPerform(cmd, req)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every pending instruction in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPerform(cmd, memory.PerformRequest{Mode: memory.PerformAll, Confirm: confirmed(cmd)})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "range <start> <end>",
		Short: "Run pending instructions with index in start..end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			end, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return runPerform(cmd, memory.PerformRequest{
				Mode:    memory.PerformRange,
				Start:   start,
				End:     end,
				Confirm: confirmed(cmd),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove only the most recently remembered instruction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				entries, err := svc.Entries(cmd.Context())
				if err != nil {
					return err
				}

				var last *remember.Entry
				for i := range entries {
					if last == nil || entries[i].Index > last.Index {
						last = &entries[i]
					}
				}
				if last == nil {
					a.println(styleDim.Render("nothing remembered"))
					return nil
				}

				if err := svc.RemoveEntry(cmd.Context(), last.Index); err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("removed #%d", last.Index)) + " " + remember.Preview(last.Text))
				return nil
			})
		},
	})

	cmd.PersistentFlags().BoolP("yes", "y", false, "perform batches larger than memory.max_batch_perform")

	return cmd
}

func confirmed(cmd *cobra.Command) bool {
	yes, _ := cmd.Flags().GetBool("yes")
	return yes
}

func runPerform(cmd *cobra.Command, req memory.PerformRequest) error {
	return run(cmd, func(a *App, svc memory.Service) error {
		report, err := svc.Perform(cmd.Context(), req)
		printReport(a, report)
		return err
	})
}

func printReport(a *App, report remember.Report) {
	for _, e := range report.Executed {
		a.println(formatOutcome(e))
	}

	if report.Remaining > 0 {
		a.println(styleWarning.Render(fmt.Sprintf("stopped early, %s left pending", plural(report.Remaining, "entry", "entries"))))
	}
	if report.Failed > 0 {
		a.println(styleError.Render(fmt.Sprintf("%d of %d failed", report.Failed, len(report.Executed))))
	}
}

func formatOutcome(e remember.Entry) string {
	index := styleIndex.Render("#" + strconv.Itoa(e.Index))
	if e.Result == nil {
		return index + " " + remember.Preview(e.Text)
	}

	var label string
	switch {
	case e.Result.Route == remember.RouteRefused:
		label = styleError.Render("refused")
	case !e.Result.Success:
		label = styleError.Render("failed")
	case e.Result.Route == remember.RouteChat:
		label = styleSuccess.Render("sent to chat")
	default:
		label = styleSuccess.Render("ran")
	}

	line := index + " " + label + " " + remember.Preview(e.Text)
	if e.Result.Output != "" {
		line += "\n  " + styleDim.Render(remember.Preview(e.Result.Output))
	}
	return line
}
