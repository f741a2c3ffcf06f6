// Package command provides CLI command definitions for ns-cli.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// healthData mirrors the admin API health payload.
type healthData struct {
	Status string `json:"status"`
	Node   string `json:"node"`
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show node health",
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	resp, err := Client(c).Get(c.Context, "/healthz")
	if err != nil {
		return err
	}

	var data healthData
	if err := parseAndMaybeDump(c, resp, &data); err != nil {
		return err
	}
	if c.Bool("json") {
		return nil
	}

	fmt.Fprintf(c.App.Writer, "status: %s\n", data.Status)
	fmt.Fprintf(c.App.Writer, "node:   %s\n", data.Node)
	return nil
}
