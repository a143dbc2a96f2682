package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/backtest"
	"github.com/rustyeddy/portfolio/engine"
	"github.com/rustyeddy/portfolio/internal/id"
	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/strategies"
)

type backtestFlags struct {
	prices   string
	signals  string
	strategy string
	from     string
	to       string
	cash     float64
	out      string
	org      string
	noClose  bool
	journal  string
}

func newBacktestCmd(rc *RootConfig) *cobra.Command {
	var f backtestFlags

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay daily closing prices through the risk engine",
		Example: `  portfolio backtest --prices prices.csv --strategy momentum
  portfolio backtest --prices prices.csv --strategy scripted --signals signals.csv --from 2024-01-01 --to 2024-07-01
  portfolio backtest -f portfolio.yaml --out report.json --org report.org`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, rc, f)
		},
	}

	cmd.Flags().StringVar(&f.prices, "prices", "", "Daily closes CSV: date,ticker,close (overrides backtest.prices_file)")
	cmd.Flags().StringVar(&f.signals, "signals", "", "Scripted signals CSV (overrides backtest.signals_file)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Signal source: noop|scripted|momentum (overrides backtest.strategy)")
	cmd.Flags().StringVar(&f.from, "from", "", "First day, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day, exclusive (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&f.cash, "cash", 0, "Starting cash (overrides account.cash)")
	cmd.Flags().StringVar(&f.out, "out", "", "Write the report as JSON to this file")
	cmd.Flags().StringVar(&f.org, "org", "", "Append the report and closed trades as Org-mode to this file")
	cmd.Flags().BoolVar(&f.noClose, "no-close", false, "Leave positions open after the last day")
	cmd.Flags().StringVar(&f.journal, "journal", "", "Journal type: csv|sqlite|postgres|none (overrides journal.type)")

	return cmd
}

func runBacktest(cmd *cobra.Command, rc *RootConfig, f backtestFlags) (err error) {
	cfg := rc.Config
	bt := cfg.Backtest
	if f.prices != "" {
		bt.PricesFile = f.prices
	}
	if f.signals != "" {
		bt.SignalsFile = f.signals
	}
	if f.strategy != "" {
		bt.Strategy = f.strategy
	}
	if f.from != "" {
		bt.Start = f.from
	}
	if f.to != "" {
		bt.End = f.to
	}
	cash := cfg.Account.Cash
	if f.cash != 0 {
		cash = f.cash
	}
	jc := cfg.Journal
	if f.journal != "" {
		jc.Type = f.journal
	}

	from, to, err := bt.Window()
	if err != nil {
		return err
	}
	signals, err := strategies.ByName(bt.Strategy, bt.StrategyOptions())
	if err != nil {
		return err
	}
	feed, err := market.NewCSVBarFeed(bt.PricesFile)
	if err != nil {
		return fmt.Errorf("open prices: %w", err)
	}

	l, err := ledger.New(cash)
	if err != nil {
		feed.Close()
		return err
	}
	j, err := openJournal(jc, false)
	if err != nil {
		feed.Close()
		return err
	}
	defer closeJournal(j, &err)

	eng, err := engine.New(l, engine.Options{
		Policy:  cfg.Risk,
		Journal: j,
		Logger:  rc.Log,
	})
	if err != nil {
		feed.Close()
		return err
	}

	runID := id.New()
	log := rc.Log.With().Str("run_id", runID).Logger()
	log.Info().
		Str("prices", bt.PricesFile).
		Str("strategy", bt.Strategy).
		Float64("cash", cash).
		Msg("backtest starting")

	runner := &backtest.Runner{
		Engine:  eng,
		Feed:    feed,
		Signals: signals,
		Options: backtest.Options{
			From:     from,
			To:       to,
			CloseEnd: bt.CloseEnd && !f.noClose,
		},
		Logger: log,
	}
	res, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	summary := backtest.Summary{
		RunID:    runID,
		Created:  time.Now(),
		Strategy: bt.Strategy,
		Dataset:  filepath.Base(bt.PricesFile),
		Policy:   cfg.Risk,
		Result:   res,
	}
	backtest.PrintResult(cmd.OutOrStdout(), summary)

	if f.out != "" {
		if err := writeJSON(f.out, res.Report.Metrics()); err != nil {
			return err
		}
	}
	if f.org != "" {
		if err := appendOrg(f.org, summary, l.ClosedTrades()); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func appendOrg(path string, s backtest.Summary, closed []ledger.Trade) error {
	text, err := journal.FormatReportOrg(journal.ReportOrg{
		Title:    "Backtest " + s.RunID,
		Strategy: s.Strategy,
		Dataset:  s.Dataset,
		Created:  s.Created,
		Report:   s.Result.Report,
	})
	if err != nil {
		return err
	}
	text += journal.FormatTradesOrg(closed)

	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open org file: %w", err)
	}
	if _, err := fh.WriteString(text); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
