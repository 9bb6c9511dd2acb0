package cmd

import (
	"fmt"
	"os"

	"github.com/grovetools/editsync/cli"
	"github.com/grovetools/editsync/config"
	"github.com/grovetools/editsync/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd groups the configuration helpers.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate editsync.yml",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigValidateCmd(), newConfigSchemaCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		Long: `Shows the configuration after merging layers:
1. Global config ($XDG_CONFIG_HOME/editsync/editsync.yml)
2. Project config (editsync.yml, searched upward)
3. Override files (editsync.override.yml)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			cwd, _ := os.Getwd()
			for _, file := range config.LayerFiles(cwd) {
				if _, err := os.Stat(file); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", file)
				}
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration against the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cli.LoadConfig(cmd); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Configuration is valid")
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of editsync.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
