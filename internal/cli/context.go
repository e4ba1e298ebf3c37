package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/contextstore"
	"github.com/erg0nix/recall/internal/memory"
	"github.com/erg0nix/recall/internal/remember"
)

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage context items offered to prompts",
	}

	cmd.AddCommand(newContextAddCmd())
	cmd.AddCommand(newContextListCmd())
	cmd.AddCommand(newContextSearchCmd())
	cmd.AddCommand(newContextExportCmd())

	return cmd
}

func newContextAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a context item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			content := strings.Join(args, " ")

			return run(cmd, func(a *App, svc memory.Service) error {
				item, err := svc.AddContext(cmd.Context(), content, tags)
				if err != nil {
					return err
				}
				a.println(styleSuccess.Render("added") + " " + styleIndex.Render(string(item.ID)) + " " +
					styleDim.Render(fmt.Sprintf("%d tokens, relevance %.2f", item.TokenCost, item.Relevance)))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceP("tag", "t", nil, "tag the item (error, code, task, user-input, summary, critical, ...)")
	return cmd
}

func newContextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List context items",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *App, svc memory.Service) error {
				items, err := svc.ListContext(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					a.println(styleDim.Render("no context items"))
					return nil
				}

				t := newTable("ID", "ADDED", "TOKENS", "TAGS", "CONTENT")
				for _, item := range items {
					t.Row(
						string(item.ID),
						humanize.Time(item.CreatedAt),
						humanize.Comma(int64(item.TokenCost)),
						strings.Join(item.Tags, ","),
						remember.Preview(item.Content),
					)
				}
				a.println(t.Render())
				return nil
			})
		},
	}
}

func newContextSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find context items by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			query := strings.Join(args, " ")

			return run(cmd, func(a *App, svc memory.Service) error {
				results, err := svc.SearchContext(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					a.println(styleDim.Render("no matches"))
					return nil
				}

				t := newTable("SCORE", "ID", "CONTENT")
				for _, r := range results {
					t.Row(fmt.Sprintf("%.2f", r.Similarity), string(r.Item.ID), remember.Preview(r.Item.Content))
				}
				a.println(t.Render())
				return nil
			})
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "maximum results, 0 for all")
	return cmd
}

func newContextExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every context item as JSONL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")

			return run(cmd, func(a *App, svc memory.Service) error {
				items, err := svc.ListContext(cmd.Context())
				if err != nil {
					return err
				}

				if path == "" || path == "-" {
					_, err := contextstore.WriteItems(a.out, items)
					return err
				}

				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("export context: %w", err)
				}
				n, err := contextstore.WriteItems(f, items)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return fmt.Errorf("export context: %w", err)
				}

				a.println(styleSuccess.Render(fmt.Sprintf("exported %s to %s", plural(n, "item", "items"), path)))
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "file to write, stdout when empty")
	return cmd
}
