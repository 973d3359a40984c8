package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("unitctl v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand creates the root command for unitctl.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "unitctl",
		Short: "Run and inspect a unit router",
		Long: `unitctl drives a set of units through their lifecycle as a location
changes. It serves a control API for navigating and inspecting units, and
can check offline which units a URL would activate.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (.yaml, .toml or .json)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "override the configured log format (json or console)")

	cmd.AddCommand(NewServeCommand(flags))
	cmd.AddCommand(NewCheckCommand(flags))
	cmd.AddCommand(NewValidateCommand(flags))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand prints version information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}
