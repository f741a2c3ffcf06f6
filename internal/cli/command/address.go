// Package command provides CLI command definitions for ns-cli.
package command

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/minddrive/ns-server/internal/cli/connection"
)

// addressData mirrors the admin API address payload.
type addressData struct {
	Address      string `json:"address"`
	UserSupplied bool   `json:"user_supplied"`
	Node         string `json:"node"`
}

// changeData mirrors the admin API change-address payload.
type changeData struct {
	Outcome string `json:"outcome"`
	Node    string `json:"node"`
}

// AddressCommand returns the address subcommand group.
func AddressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Inspect and change the node address",
		Subcommands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show the current node address",
				Action: addressGet,
			},
			{
				Name:      "change",
				Usage:     "Change the node address",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "auto",
						Usage: "Record the address as auto-detected instead of user-supplied",
					},
				},
				Action: addressChange,
			},
			{
				Name:   "reset",
				Usage:  "Clear the user-supplied flag on the current address",
				Action: addressReset,
			},
		},
	}
}

func addressGet(c *cli.Context) error {
	resp, err := Client(c).Get(c.Context, "/node/controller/address")
	if err != nil {
		return err
	}

	var data addressData
	if err := parseAndMaybeDump(c, resp, &data); err != nil {
		return err
	}
	if c.Bool("json") {
		return nil
	}

	fmt.Fprintf(c.App.Writer, "node:          %s\n", data.Node)
	fmt.Fprintf(c.App.Writer, "address:       %s\n", data.Address)
	fmt.Fprintf(c.App.Writer, "user supplied: %v\n", data.UserSupplied)
	return nil
}

func addressChange(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ns-cli address change <address>", 1)
	}

	body := map[string]any{
		"address":       c.Args().First(),
		"user_supplied": !c.Bool("auto"),
	}
	resp, err := Client(c).Post(c.Context, "/node/controller/change-address", body)
	if err != nil {
		return err
	}

	var data changeData
	if err := parseAndMaybeDump(c, resp, &data); err != nil {
		return err
	}
	if c.Bool("json") {
		return nil
	}

	fmt.Fprintf(c.App.Writer, "outcome: %s\n", data.Outcome)
	fmt.Fprintf(c.App.Writer, "node:    %s\n", data.Node)
	return nil
}

func addressReset(c *cli.Context) error {
	resp, err := Client(c).Post(c.Context, "/node/controller/reset-address", nil)
	if err != nil {
		return err
	}

	var data addressData
	if err := parseAndMaybeDump(c, resp, &data); err != nil {
		return err
	}
	if c.Bool("json") {
		return nil
	}

	fmt.Fprintf(c.App.Writer, "address:       %s\n", data.Address)
	fmt.Fprintf(c.App.Writer, "user supplied: %v\n", data.UserSupplied)
	return nil
}

// parseAndMaybeDump parses the enveloped response into target; with
// --json the parsed data is pretty-printed.
func parseAndMaybeDump(c *cli.Context, resp *http.Response, target any) error {
	if err := connection.ParseResponse(resp, target); err != nil {
		return err
	}
	if c.Bool("json") {
		out, err := json.MarshalIndent(target, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(out))
	}
	return nil
}
