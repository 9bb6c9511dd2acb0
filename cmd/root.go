// Package cmd wires the editsync command tree.
package cmd

import (
	"github.com/grovetools/editsync/cli"
	"github.com/grovetools/editsync/pkg/profiling"
	"github.com/grovetools/editsync/version"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the editsync command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"editsync",
		"Embed an editor session and keep it in sync with a workspace",
	)
	cli.SetVersionTemplate(root, version.GetInfo())
	profiling.NewCobraProfiler().Attach(root)

	root.AddCommand(
		NewServeCmd(),
		NewStopCmd(),
		NewStatusCmd(),
		NewModulesCmd(),
		NewApplyCmd(),
		NewRunCmd(),
		NewCallbackCmd(),
		NewVimCmd(),
		NewConfigCmd(),
		NewPathsCmd(),
		NewLogsCmd(),
		cli.NewVersionCommand("editsync"),
	)
	cli.ApplyStyledHelpRecursive(root)
	return root
}
