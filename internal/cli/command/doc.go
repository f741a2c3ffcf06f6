// Package command provides CLI command definitions for ns-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command and global flags
//   - address.go: Node address subcommand group
//   - status.go: Node status and health commands
//
// Commands follow a consistent pattern of parsing flags,
// calling the admin API, and formatting output.
package command
