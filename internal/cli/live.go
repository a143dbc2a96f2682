package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/portfolio/engine"
	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/live"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/metrics"
	"github.com/rustyeddy/portfolio/server"
	"github.com/rustyeddy/portfolio/strategies"
)

type liveFlags struct {
	quotes   string
	url      string
	signals  string
	strategy string
	interval time.Duration
	listen   string
	once     bool
}

func newLiveCmd(rc *RootConfig) *cobra.Command {
	var f liveFlags

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Paper-trade against a quotes file, serving the book over HTTP",
		Long: `Poll mark prices on an interval, run exits and entries through the risk
engine and persist the ledger after every tick. The portfolio, trades,
report and Prometheus metrics are served on --listen.`,
		Example: `  portfolio live --quotes quotes.csv --interval 30s
  portfolio live --once --listen ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, rc, f)
		},
	}

	cmd.Flags().StringVar(&f.quotes, "quotes", "", "Quotes CSV: ticker,price[,time] (overrides live.quotes_file)")
	cmd.Flags().StringVar(&f.url, "quotes-url", "", "REST quotes base URL; token from PORTFOLIO_QUOTES_TOKEN (overrides live.quotes_url)")
	cmd.Flags().StringVar(&f.signals, "signals", "", "Scripted signals CSV (overrides live.signals_file)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Signal source: noop|scripted|momentum (overrides live.strategy)")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Polling interval (overrides live.interval)")
	cmd.Flags().StringVar(&f.listen, "listen", "", "HTTP listen address; \"\" with --once disables (overrides live.listen)")
	cmd.Flags().BoolVar(&f.once, "once", false, "Run a single tick and exit")

	return cmd
}

func runLive(cmd *cobra.Command, rc *RootConfig, f liveFlags) (err error) {
	cfg := rc.Config
	lc := cfg.Live
	if f.quotes != "" {
		lc.QuotesFile = f.quotes
	}
	if f.url != "" {
		lc.QuotesURL = f.url
	}
	if f.signals != "" {
		lc.SignalsFile = f.signals
	}
	if f.strategy != "" {
		lc.Strategy = f.strategy
	}
	if cmd.Flags().Changed("listen") {
		lc.Listen = f.listen
	}
	interval, err := lc.ParseInterval()
	if err != nil {
		return fmt.Errorf("live.interval: %w", err)
	}
	if f.interval > 0 {
		interval = f.interval
	}

	state := journal.StateFile{Path: cfg.Journal.StateFile}
	l, restored, err := state.LoadLedger(cfg.Account.Cash)
	if err != nil {
		return err
	}
	rc.Log.Info().
		Bool("restored", restored).
		Float64("cash", l.Cash()).
		Int("open", l.OpenCount()).
		Str("state", state.Path).
		Msg("ledger loaded")

	signals, err := strategies.ByName(lc.Strategy, strategies.Options{
		SignalsFile: lc.SignalsFile,
		Lookback:    cfg.Backtest.Lookback,
		Threshold:   cfg.Backtest.Threshold,
		Trend:       cfg.Backtest.Trend,
		Universe:    lc.Tickers,
	})
	if err != nil {
		return err
	}

	j, err := openJournal(cfg.Journal, true)
	if err != nil {
		return err
	}
	defer closeJournal(j, &err)

	rec := metrics.New(metrics.Options{Runtime: true})
	eng, err := engine.New(l, engine.Options{
		Policy:  cfg.Risk,
		Journal: j,
		Metrics: rec,
		Logger:  rc.Log,
	})
	if err != nil {
		return err
	}

	var upstream market.PriceSource = market.NewFileSource(lc.QuotesFile)
	if lc.QuotesURL != "" {
		upstream = market.NewHTTPSource(lc.QuotesURL, lc.QuotesToken)
	}
	src := market.NewGuard(upstream, market.GuardOptions{
		Name:  "quotes",
		RPS:   lc.RPS,
		Burst: lc.Burst,
	})
	loop := &live.Loop{
		Engine:  eng,
		Source:  src,
		Signals: signals,
		State:   state,
		Options: live.Options{
			Interval: interval,
			Workers:  lc.Workers,
			Tickers:  lc.Tickers,
		},
		Logger: rc.Log,
	}

	if f.once {
		res, err := loop.Tick(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exits=%d entries=%d rejected=%d value=%.2f heat=%.4f\n",
			len(res.Exits), len(res.Entries), len(res.Rejected), res.Snapshot.TotalValue, res.Heat)
		return nil
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return loop.Run(ctx) })
	if lc.Listen != "" {
		h := server.New(server.Options{
			Ledger:   l,
			Recorder: rec,
			Marks:    loop.LastPrices,
			RiskFree: cfg.Risk.RiskFreeRate,
			Logger:   rc.Log,
		})
		g.Go(func() error { return server.Serve(ctx, lc.Listen, h, rc.Log) })
	}
	return g.Wait()
}
