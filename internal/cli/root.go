// Package cli implements the portfolio command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/config"
	"github.com/rustyeddy/portfolio/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// RootConfig carries the persistent flags and what PersistentPreRunE
// derives from them.
type RootConfig struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	LogJSON    bool

	Config *config.Config
	Log    zerolog.Logger
}

func NewRootCmd() *cobra.Command {
	rc := &RootConfig{}

	cmd := &cobra.Command{
		Use:           "portfolio",
		Short:         "Risk-managed position sizing, backtests and live paper trading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVarP(&rc.ConfigPath, "config", "f", "", "Path to config file (YAML or JSON; optional)")
	cmd.PersistentFlags().StringVar(&rc.EnvFile, "env", "", "Path to .env file (default ./.env if present)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&rc.LogJSON, "log-json", false, "Log JSON instead of console output")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return rc.load(cmd)
	}

	// Subcommands
	cmd.AddCommand(
		newBacktestCmd(rc),
		newLiveCmd(rc),
		newSizeCmd(rc),
		newReportCmd(rc),
		newJournalCmd(rc),
		newConfigCmd(rc),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "portfolio %s\n", Version)
		},
	})

	return cmd
}

// load reads .env, the config file and PORTFOLIO_* overrides, then sets
// up logging. Flags win over the config file's log section.
func (rc *RootConfig) load(cmd *cobra.Command) error {
	var envFiles []string
	if rc.EnvFile != "" {
		envFiles = append(envFiles, rc.EnvFile)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return err
	}

	cfg := config.Default()
	if rc.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(rc.ConfigPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	level := cfg.Log.Level
	if cmd.Flags().Changed("log-level") || level == "" {
		level = rc.LogLevel
	}
	rc.Log = logging.New(logging.Options{
		Level: level,
		JSON:  rc.LogJSON || cfg.Log.JSON,
		Out:   cmd.ErrOrStderr(),
	})
	rc.Config = cfg
	return nil
}

// Execute runs the root command, cancelling its context on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
