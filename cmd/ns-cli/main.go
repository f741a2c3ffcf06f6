// Package main provides the entry point for ns-cli, the command-line
// management tool for ns-server nodes.
package main

import (
	"fmt"
	"os"

	"github.com/minddrive/ns-server/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
