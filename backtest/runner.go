// Package backtest replays daily closing prices through the engine.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/engine"
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/strategies"
)

const defaultProgressEvery = 20

// Options controls how the runner behaves.
type Options struct {
	// From and To bound the replay to [From, To). Zero means unbounded.
	From time.Time
	To   time.Time

	// If true, close all open positions after the last bar.
	// Close reason will be CloseReason (or END_OF_RUN if empty).
	CloseEnd    bool
	CloseReason ledger.ExitReason

	// ProgressEvery logs progress every N days; default 20, < 0 disables.
	ProgressEvery int
}

// Runner drives an engine forward using a feed and a signal source.
type Runner struct {
	Engine  *engine.Engine
	Feed    market.BarFeed
	Signals strategies.SignalSource
	Options Options
	Logger  zerolog.Logger
}

// Result summarizes a run.
type Result struct {
	Report    analytics.Report
	Days      int
	Start     time.Time
	End       time.Time
	FinalCash float64

	Entries  int
	Exits    int
	Rejected int
}

// Run executes the backtest loop, one bar per trading day:
//  1. read next bar
//  2. ask the signal source for candidates
//  3. engine.Step(bar, signals)
//
// The feed is closed on return. Cancellation is checked between days.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: Engine is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	if r.Signals == nil {
		return Result{}, fmt.Errorf("backtest: Signals is required")
	}
	defer r.Feed.Close()

	opts := r.Options
	if !opts.From.IsZero() && !opts.To.IsZero() && !opts.From.Before(opts.To) {
		return Result{}, fmt.Errorf("backtest: From %s is not before To %s",
			opts.From.Format(time.DateOnly), opts.To.Format(time.DateOnly))
	}
	every := opts.ProgressEvery
	if every == 0 {
		every = defaultProgressEvery
	}

	var res Result
	last := make(market.Prices)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		bar, ok, err := r.Feed.Next()
		if err != nil {
			return res, fmt.Errorf("backtest: feed: %w", err)
		}
		if !ok {
			break
		}
		if !opts.From.IsZero() && bar.Time.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && !bar.Time.Before(opts.To) {
			break
		}

		if res.Start.IsZero() {
			res.Start = bar.Time
		}
		res.End = bar.Time
		res.Days++
		for t, px := range bar.Prices {
			last[t] = px
		}

		signals, err := r.Signals.Signals(ctx, bar.Time, bar.Prices)
		if err != nil {
			return res, fmt.Errorf("backtest: signals %s: %w", bar.Time.Format(time.DateOnly), err)
		}

		// Tickers missing from today's bar are marked at their last close.
		step, err := r.Engine.Step(ctx, engine.Tick{Time: bar.Time, Prices: last.Clone(), Signals: signals})
		if err != nil {
			return res, fmt.Errorf("backtest: %s: %w", bar.Time.Format(time.DateOnly), err)
		}
		res.Entries += len(step.Entries)
		res.Exits += len(step.Exits)
		res.Rejected += len(step.Rejected)

		if every > 0 && res.Days%every == 0 {
			r.Logger.Info().
				Int("day", res.Days).
				Str("date", bar.Time.Format(time.DateOnly)).
				Float64("value", step.Snapshot.TotalValue).
				Int("open", r.Engine.Ledger().OpenCount()).
				Msg("backtest progress")
		}
	}

	if opts.CloseEnd && res.Days > 0 {
		step, err := r.Engine.Close(ctx, res.End, last, opts.CloseReason)
		if err != nil {
			return res, fmt.Errorf("backtest: close: %w", err)
		}
		res.Exits += len(step.Exits)
	}

	res.FinalCash = r.Engine.Ledger().Cash()
	res.Report = r.Engine.Report()
	r.Logger.Info().
		Int("days", res.Days).
		Int("entries", res.Entries).
		Int("exits", res.Exits).
		Float64("return_pct", res.Report.TotalReturnPct).
		Msg("backtest complete")
	return res, nil
}
