package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/remember"
)

func newRememberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remember [text]",
		Short: "Queue an instruction, or perform every pending one when given no text",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runPerform(cmd, memory.PerformRequest{Mode: memory.PerformAll, Confirm: confirmed(cmd)})
			}
			return rememberText(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "perform batches larger than memory.max_batch_perform")

	cmd.AddCommand(newRememberListCmd())
	cmd.AddCommand(newRememberRemoveCmd())
	cmd.AddCommand(newRememberPurgeCmd())
	cmd.AddCommand(newRememberCompactCmd())
	cmd.AddCommand(newRememberClearCmd())

	return cmd
}

func rememberText(cmd *cobra.Command, text string) error {
	return run(cmd, func(a *App, svc memory.Service) error {
		res, err := svc.Remember(cmd.Context(), text)
		if err != nil {
			return err
		}

		if !res.Created {
			a.println(styleDim.Render(fmt.Sprintf("already queued as #%d", res.Entry.Index)))
			return nil
		}
		a.println(styleSuccess.Render("remembered") + " " +
			styleIndex.Render(fmt.Sprintf("#%d", res.Entry.Index)) + " " +
			remember.Preview(res.Entry.Text))
		return nil
	})
}

// rememberSentence queues the whole command line when a subcommand name is
// just the first word of an instruction, as in "remember list the files".
func rememberSentence(cmd *cobra.Command, args []string) error {
	return rememberText(cmd, strings.Join(append([]string{cmd.CalledAs()}, args...), " "))
}

func newRememberListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List queued instructions",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return rememberSentence(cmd, args)
			}
			pendingOnly, _ := cmd.Flags().GetBool("pending")

			return run(cmd, func(a *App, svc memory.Service) error {
				entries, err := svc.Entries(cmd.Context())
				if err != nil {
					return err
				}

				t := newTable("#", "STATUS", "CREATED", "TEXT")
				shown := 0
				for _, e := range entries {
					if pendingOnly && !e.Pending() {
						continue
					}
					t.Row(
						strconv.Itoa(e.Index),
						statusStyle(e.Pending()).Render(string(e.Status)),
						humanize.Time(e.CreatedAt),
						remember.Preview(e.Text),
					)
					shown++
				}

				if shown == 0 {
					a.println(styleDim.Render("nothing remembered"))
					return nil
				}
				a.println(t.Render())
				return nil
			})
		},
	}

	cmd.Flags().Bool("pending", false, "only show pending entries")
	return cmd
}

func newRememberRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <index>",
		Aliases: []string{"rm"},
		Short:   "Remove one queued instruction",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 || !looksLikeIndex(args[0]) {
				return rememberSentence(cmd, args)
			}
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			return run(cmd, func(a *App, svc memory.Service) error {
				if err := svc.RemoveEntry(cmd.Context(), index); err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("removed #%d", index)))
				return nil
			})
		},
	}
}

func newRememberPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge [executed]",
		Short: "Drop executed instructions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 || (len(args) == 1 && args[0] != "executed") {
				return rememberSentence(cmd, args)
			}
			return run(cmd, func(a *App, svc memory.Service) error {
				n, err := svc.PurgeExecuted(cmd.Context())
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("purged %s", plural(n, "executed entry", "executed entries"))))
				return nil
			})
		},
	}
}

func newRememberCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Renumber queued instructions from 1",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return rememberSentence(cmd, args)
			}
			return run(cmd, func(a *App, svc memory.Service) error {
				n, err := svc.Renumber(cmd.Context())
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("renumbered %s", plural(n, "entry", "entries"))))
				return nil
			})
		},
	}
}

func newRememberClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued instruction",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return rememberSentence(cmd, args)
			}
			return run(cmd, func(a *App, svc memory.Service) error {
				n, err := svc.ClearQueue(cmd.Context())
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("cleared %s", plural(n, "entry", "entries"))))
				return nil
			})
		},
	}
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || index < 1 {
		return 0, fmt.Errorf("%w: %q is not an entry index", core.ErrInvalidInput, arg)
	}
	return index, nil
}

func looksLikeIndex(arg string) bool {
	arg = strings.TrimPrefix(arg, "#")
	return arg != "" && (arg[0] == '-' || (arg[0] >= '0' && arg[0] <= '9'))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}
