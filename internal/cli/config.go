package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/config"
)

func newConfigCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage portfolio configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  portfolio config init -o portfolio.yaml
  portfolio config validate portfolio.yaml`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default configuration file",
		Long: `Create a new configuration file with default settings. The format
follows the extension: .yaml/.yml for YAML, anything else for JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(w, "\nEdit the file and run with:")
			fmt.Fprintf(w, "  portfolio backtest -f %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "portfolio.yaml", "output config file path")

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Long: `Check that a configuration file loads and passes validation. With no
argument the file given by --config is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rc.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config file given")
			}

			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(w, "  Account: %s ($%.2f)\n", cfg.Account.ID, cfg.Account.Cash)
			fmt.Fprintf(w, "  Risk: %.1f%% per trade, %.1f%% per position, %.1f%% heat\n",
				cfg.Risk.MaxLossPct*100, cfg.Risk.MaxPositionPct*100, cfg.Risk.MaxPortfolioHeat*100)
			fmt.Fprintf(w, "  Backtest: %s on %s\n", cfg.Backtest.Strategy, cfg.Backtest.PricesFile)
			fmt.Fprintf(w, "  Live: %s every %s\n", cfg.Live.Strategy, cfg.Live.Interval)
			fmt.Fprintf(w, "  Journal: %s\n", cfg.Journal.Type)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
