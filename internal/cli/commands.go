package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/commands"
)

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List script commands that remembered text can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			dir := filepath.Join(a.Config.DataDir, "commands")
			if err := commands.EnsureDefaults(dir); err != nil {
				return err
			}
			registry := commands.NewRegistry(dir)
			if err := registry.Load(); err != nil {
				return err
			}

			t := newTable("USAGE", "RUNTIME", "TIMEOUT", "DESCRIPTION")
			for _, c := range registry.List() {
				t.Row(c.Usage(), c.Runtime, fmt.Sprintf("%ds", c.Timeout), c.Description)
			}
			a.println(t.Render())

			for _, s := range registry.Skipped() {
				a.println(styleWarning.Render("skipped "+s.Dir) + " " + styleDim.Render(s.Err.Error()))
			}
			a.println(styleDim.Render("commands dir " + dir))
			return nil
		},
	}
}
