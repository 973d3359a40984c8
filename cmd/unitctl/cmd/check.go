package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/unitrouter"
)

// NewCheckCommand lists the units a URL would activate, without loading
// anything.
func NewCheckCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <url>",
		Short: "Show which units a URL activates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			loc, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("parse url: %w", err)
			}

			out := cmd.OutOrStdout()
			active := 0
			for _, spec := range cfg.Units {
				mark := " "
				if spec.ActivityFunc()(loc) {
					mark = "*"
					active++
				}
				fmt.Fprintf(out, "%s %-20s %v\n", mark, spec.Name, spec.Paths)
			}
			fmt.Fprintf(out, "%d of %d units active for %s\n", active, len(cfg.Units), loc)
			return nil
		},
	}
}

// NewValidateCommand checks the configuration and the demo kinds it names.
func NewValidateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			logger := unitrouter.NewLevelFilterLoggerDecorator(newLogger(cfg, cmd.ErrOrStderr()), "error")
			resolve := demoLoader(logger)
			for _, spec := range cfg.Units {
				if _, err := resolve(spec); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d units\n", len(cfg.Units))
			return nil
		},
	}
}
