package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/budget"
	"github.com/erg0nix/recall/internal/memory"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Build the prompt that fits the token budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			maxTokens, _ := cmd.Flags().GetInt("max-tokens")
			reserved, _ := cmd.Flags().GetInt("reserve")
			header, _ := cmd.Flags().GetString("header")
			mixName, _ := cmd.Flags().GetString("mix")
			showStats, _ := cmd.Flags().GetBool("stats")

			mix, err := memory.ParseMix(mixName)
			if err != nil {
				return err
			}

			return run(cmd, func(a *App, svc memory.Service) error {
				prompt, err := svc.BuildPrompt(cmd.Context(), memory.PromptRequest{
					MaxTokens:      maxTokens,
					ReservedTokens: reserved,
					Header:         header,
					Mix:            mix,
				})
				if err != nil {
					return err
				}

				a.println(prompt.Text)
				if showStats {
					a.println()
					a.println(formatStats(prompt))
				}
				return nil
			})
		},
	}

	cmd.Flags().Int("max-tokens", 4096, "model context size in tokens")
	cmd.Flags().Int("reserve", 512, "tokens kept free for the reply")
	cmd.Flags().String("header", "", "system text placed first")
	cmd.Flags().String("mix", string(memory.MixBoth), "sources to draw from: context, chat or both")
	cmd.Flags().Bool("stats", false, "print token accounting after the prompt")

	return cmd
}

func formatStats(p budget.Prompt) string {
	st := p.Stats
	t := newTable("SOURCE", "CANDIDATES", "INCLUDED", "TOKENS")
	for _, src := range st.Sources {
		t.Row(src.Source, fmt.Sprint(src.Candidates), fmt.Sprint(src.Included), humanize.Comma(int64(src.IncludedTokens)))
	}

	summary := fmt.Sprintf("%s of %s tokens used (budget %s, header %s, reserved %s)",
		humanize.Comma(int64(p.TokenCount)),
		humanize.Comma(int64(st.MaxTokens)),
		humanize.Comma(int64(st.Budget)),
		humanize.Comma(int64(st.HeaderTokens)),
		humanize.Comma(int64(st.ReservedTokens)))
	if p.Truncated {
		summary += ", " + styleWarning.Render("truncated")
	}

	return t.Render() + "\n" + styleDim.Render(summary)
}
