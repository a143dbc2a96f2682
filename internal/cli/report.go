package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/journal"
)

type reportFlags struct {
	journalFlags
	format string
	cash   float64
}

func newReportCmd(rc *RootConfig) *cobra.Command {
	var f reportFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute performance statistics from the journal",
		Example: `  portfolio report
  portfolio report --db trades.db --format json
  portfolio report --format org >> journal.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, rc, f)
		},
	}

	cmd.Flags().StringVarP(&f.db, "db", "d", "", "Journal database DSN (overrides journal.dsn)")
	cmd.Flags().StringVar(&f.driver, "driver", "", "Database driver for --db: sqlite|postgres (default sqlite)")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text|json|yaml|org")
	cmd.Flags().Float64Var(&f.cash, "cash", 0, "Initial capital (default account.cash)")

	return cmd
}

func runReport(cmd *cobra.Command, rc *RootConfig, f reportFlags) error {
	switch f.format {
	case "text", "json", "yaml", "org":
	default:
		return fmt.Errorf("unknown format %q (text|json|yaml|org)", f.format)
	}

	r, closeFn, err := openReader(f.config(rc))
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	trades, err := r.Trades(ctx)
	if err != nil {
		return fmt.Errorf("read trades: %w", err)
	}
	snaps, err := r.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}

	initial := rc.Config.Account.Cash
	if f.cash != 0 {
		initial = f.cash
	}
	rep := analytics.Analyze(snaps, trades, initial, rc.Config.Risk.RiskFreeRate)

	w := cmd.OutOrStdout()
	switch f.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep.Metrics())
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep.Metrics()); err != nil {
			return err
		}
		return enc.Close()
	case "org":
		text, err := journal.FormatReportOrg(journal.ReportOrg{
			Title:   "Journal",
			Created: time.Now(),
			Report:  rep,
		})
		if err != nil {
			return err
		}
		fmt.Fprint(w, text)
		return nil
	default:
		analytics.PrintReport(w, rep)
		return nil
	}
}
