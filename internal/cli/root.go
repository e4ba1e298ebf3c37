// Package cli is the recall command line. Commands run against a local engine
// or, when a daemon is running, against the daemon over gRPC.
package cli

import (
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/recall/internal/app"
	"github.com/erg0nix/recall/internal/config"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recall",
		Short:         "Token-budgeted memory for AI conversations",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("server", "", "daemon address; commands go to the daemon when set")
	rootCmd.PersistentFlags().Bool("local", false, "use the data dir directly even if a daemon is running")

	rootCmd.AddCommand(newRememberCmd())
	rootCmd.AddCommand(newPerformCmd())
	rootCmd.AddCommand(newMemoryCmd())
	rootCmd.AddCommand(newContextCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newPromptCmd())
	rootCmd.AddCommand(newSnapshotCmd())
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newStopCmd())

	return rootCmd
}

func loadConfig(path string) (config.Config, error) {
	configPath := path
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	return config.LoadOrCreate(configPath)
}

func resolveServer(override string, cfg config.Config) string {
	if override != "" {
		return override
	}
	return clientAddrFromBind(cfg.Daemon.Bind)
}

func clientAddrFromBind(bind string) string {
	host, port, err := netSplitHostPort(bind)
	if err != nil || port == "" {
		return bind
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1:" + port
	}
	return bind
}

func netSplitHostPort(addr string) (string, string, error) {
	if strings.HasPrefix(addr, ":") {
		return "", strings.TrimPrefix(addr, ":"), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	return host, port, nil
}

func runningPID(dataDir string) int {
	return app.ReadPID(app.PIDPath(dataDir))
}
