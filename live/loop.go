// Package live polls a price source on an interval and steps the engine.
package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/portfolio/engine"
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/strategies"
)

const (
	defaultInterval = time.Minute
	defaultWorkers  = 4
)

// StateStore persists the ledger after each tick.
type StateStore interface {
	Save(ledger.State) error
}

type Options struct {
	Interval time.Duration // default 1m
	Workers  int           // concurrent price fetches; default 4
	Tickers  []string      // always priced, in addition to open positions
}

// Loop is the live driver. Prices for every ticker of interest are fetched
// concurrently; the engine is then called once, serially.
type Loop struct {
	Engine  *engine.Engine
	Source  market.PriceSource
	Signals strategies.SignalSource // optional
	State   StateStore              // optional
	Options Options
	Logger  zerolog.Logger

	mu   sync.Mutex
	last market.Prices
}

func (l *Loop) validate() error {
	if l.Engine == nil {
		return errors.New("live: Engine is required")
	}
	if l.Source == nil {
		return errors.New("live: Source is required")
	}
	return nil
}

// Run ticks once immediately and then every Interval until ctx is done.
// A failed tick is logged and the loop carries on.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.validate(); err != nil {
		return err
	}
	interval := l.Options.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	l.Logger.Info().Dur("interval", interval).Msg("live loop started")
	tick := func() {
		if _, err := l.Tick(ctx, time.Now().UTC()); err != nil && ctx.Err() == nil {
			l.Logger.Error().Err(err).Msg("tick failed")
		}
	}

	tick()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Logger.Info().Msg("live loop stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-t.C:
			tick()
		}
	}
}

// Tick runs one step at `at`.
func (l *Loop) Tick(ctx context.Context, at time.Time) (engine.StepResult, error) {
	if err := l.validate(); err != nil {
		return engine.StepResult{}, err
	}

	prices, err := l.fetch(ctx, l.tickers())
	if err != nil {
		return engine.StepResult{}, err
	}

	var signals []strategies.Signal
	if l.Signals != nil {
		signals, err = l.Signals.Signals(ctx, at, prices)
		if err != nil {
			return engine.StepResult{}, fmt.Errorf("live: signals: %w", err)
		}
		var missing []string
		for _, s := range signals {
			t := market.NormalizeTicker(s.Ticker)
			if _, ok := prices[t]; !ok {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			more, err := l.fetch(ctx, missing)
			if err != nil {
				return engine.StepResult{}, err
			}
			for t, px := range more {
				prices[t] = px
			}
		}
	}

	l.mu.Lock()
	l.last = prices.Clone()
	l.mu.Unlock()

	res, err := l.Engine.Step(ctx, engine.Tick{Time: at, Prices: prices, Signals: signals})
	if err != nil {
		return res, fmt.Errorf("live: %w", err)
	}

	if l.State != nil {
		if err := l.State.Save(l.Engine.Ledger().State()); err != nil {
			return res, fmt.Errorf("live: save state: %w", err)
		}
	}

	l.Logger.Info().
		Int("priced", len(prices)).
		Int("entries", len(res.Entries)).
		Int("exits", len(res.Exits)).
		Float64("value", res.Snapshot.TotalValue).
		Float64("heat", res.Heat).
		Msg("tick")
	return res, nil
}

// LastPrices returns the prices fetched by the most recent tick.
func (l *Loop) LastPrices() market.Prices {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last.Clone()
}

// tickers returns open positions, the configured tickers and the signal
// source's watchlist, deduplicated and sorted.
func (l *Loop) tickers() []string {
	set := make(map[string]bool)
	for _, p := range l.Engine.Ledger().Positions() {
		set[p.Ticker] = true
	}
	for _, t := range l.Options.Tickers {
		set[market.NormalizeTicker(t)] = true
	}
	if w, ok := l.Signals.(strategies.Watcher); ok {
		for _, t := range w.Watchlist() {
			set[market.NormalizeTicker(t)] = true
		}
	}
	delete(set, "")

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// fetch prices tickers concurrently. Tickers the source cannot price are
// left out; only cancellation fails the fetch.
func (l *Loop) fetch(ctx context.Context, tickers []string) (market.Prices, error) {
	workers := l.Options.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var (
		mu  sync.Mutex
		out = make(market.Prices, len(tickers))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, t := range tickers {
		t := t
		g.Go(func() error {
			q, err := l.Source.Price(gctx, t)
			switch {
			case err == nil:
			case gctx.Err() != nil:
				return gctx.Err()
			case errors.Is(err, market.ErrUnavailable):
				l.Logger.Debug().Str("ticker", t).Msg("price unavailable")
				return nil
			default:
				l.Logger.Warn().Err(err).Str("ticker", t).Msg("price fetch failed")
				return nil
			}
			if err := market.ValidatePrice(q.Price); err != nil {
				l.Logger.Warn().Err(err).Str("ticker", t).Msg("rejected price")
				return nil
			}
			mu.Lock()
			out[t] = q.Price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("live: fetch prices: %w", err)
	}
	return out, nil
}
