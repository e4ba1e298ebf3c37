package main

import (
	"fmt"
	"os"

	"github.com/erg0nix/recall/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.DescribeError(err))
		os.Exit(1)
	}
}
