package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/core"
	"github.com/erg0nix/recall/internal/memory"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Record and show the chat transcript",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "append <role> <text>",
		Short: "Append a turn as system, user or assistant",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := core.ParseRole(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")

			return run(cmd, func(a *App, svc memory.Service) error {
				turn, err := svc.AppendTurn(cmd.Context(), role, text)
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render(fmt.Sprintf("turn %d", turn.Index)) + " " +
					styleDim.Render(fmt.Sprintf("%d tokens", turn.TokenCost)))
				return nil
			})
		},
	})

	show := &cobra.Command{
		Use:   "show",
		Short: "Print summaries and recent turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tail, _ := cmd.Flags().GetInt("tail")

			return run(cmd, func(a *App, svc memory.Service) error {
				view, err := svc.Chat(cmd.Context(), tail)
				if err != nil {
					return err
				}

				for _, s := range view.Summaries {
					a.println(styleDim.Render(s.Render()))
				}
				for _, turn := range view.Turns {
					a.println(styleIndex.Render(fmt.Sprintf("%4d", turn.Index)) + " " +
						styleRole.Render(turn.Role.Label()+":") + " " + turn.Text)
				}
				if len(view.Summaries) == 0 && len(view.Turns) == 0 {
					a.println(styleDim.Render("no chat turns"))
				}
				return nil
			})
		},
	}
	show.Flags().IntP("tail", "n", 0, "only the last n turns, 0 for all")
	cmd.AddCommand(show)

	return cmd
}
