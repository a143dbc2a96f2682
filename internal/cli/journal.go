package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portfolio/config"
	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/ledger"
)

// Optional fast paths implemented by the SQL journal.
type (
	tradeGetter interface {
		Trade(ctx context.Context, id string) (ledger.Trade, error)
	}
	closedLister interface {
		TradesClosedBetween(ctx context.Context, start, end time.Time) ([]ledger.Trade, error)
	}
)

type journalFlags struct {
	db     string
	driver string
}

func newJournalCmd(rc *RootConfig) *cobra.Command {
	var f journalFlags

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query trade journal data",
		Long: `Query and display trade journal records as Org-mode.

Subcommands:
  trade  - Get details of a specific trade leg by ID
  today  - List trades closed today
  day    - List trades closed on a specific day

Examples:
  portfolio journal trade 01HV3K8Q0Z6P4M2R7N9T5W1XYZ
  portfolio journal today --db trades.db
  portfolio journal day 2024-01-15`,
	}
	cmd.PersistentFlags().StringVarP(&f.db, "db", "d", "", "Journal database DSN (overrides journal.dsn)")
	cmd.PersistentFlags().StringVar(&f.driver, "driver", "", "Database driver for --db: sqlite|postgres (default sqlite)")

	cmd.AddCommand(&cobra.Command{
		Use:   "trade <trade-id>",
		Short: "Get details of a specific trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openReader(f.config(rc))
			if err != nil {
				return err
			}
			defer closeFn()

			t, err := findTrade(cmd.Context(), r, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), journal.FormatTradeOrg(t))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "today",
		Short: "List trades closed today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printClosedOn(cmd, rc, f, time.Now().In(time.Local).Format(time.DateOnly))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List trades closed on a specific day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printClosedOn(cmd, rc, f, args[0])
		},
	})

	return cmd
}

func (f journalFlags) config(rc *RootConfig) config.JournalConfig {
	return withDB(rc.Config.Journal, f.db, f.driver)
}

func findTrade(ctx context.Context, r journal.Reader, id string) (ledger.Trade, error) {
	if g, ok := r.(tradeGetter); ok {
		return g.Trade(ctx, id)
	}
	trades, err := r.Trades(ctx)
	if err != nil {
		return ledger.Trade{}, fmt.Errorf("query trades: %w", err)
	}
	for _, t := range trades {
		if t.ID == id {
			return t, nil
		}
	}
	return ledger.Trade{}, fmt.Errorf("trade %q: %w", id, journal.ErrNotFound)
}

func printClosedOn(cmd *cobra.Command, rc *RootConfig, f journalFlags, day string) error {
	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	r, closeFn, err := openReader(f.config(rc))
	if err != nil {
		return err
	}
	defer closeFn()

	var recs []ledger.Trade
	if q, ok := r.(closedLister); ok {
		recs, err = q.TradesClosedBetween(cmd.Context(), start, end)
	} else {
		var all []ledger.Trade
		if all, err = r.Trades(cmd.Context()); err == nil {
			recs = journal.ClosedBetween(all, start, end)
		}
	}
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	if len(recs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no trades closed on %s\n", day)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

// dayBounds returns [start, end) for the calendar day in loc.
func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
