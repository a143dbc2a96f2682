// Package engine runs one portfolio tick: exits, equity snapshot, then
// sized and heat-gated entries. Both drivers call it the same way.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/journal"
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/metrics"
	"github.com/rustyeddy/portfolio/risk"
	"github.com/rustyeddy/portfolio/strategies"
)

// LedgerRejected is the rejection code for an admitted candidate the ledger
// refused to enter.
const LedgerRejected = "LEDGER_REJECTED"

// Tick is everything the engine needs for one step.
type Tick struct {
	Time    time.Time
	Prices  market.Prices
	Signals []strategies.Signal
}

// Rejection records why a candidate was not entered.
type Rejection struct {
	Ticker string
	Codes  []string
	Reason string
}

// StepResult summarizes one Step.
type StepResult struct {
	Time     time.Time
	Exits    []ledger.Trade
	Entries  []ledger.Trade
	Rejected []Rejection
	Dropped  []string // tickers whose tick price was invalid

	// Snapshot is taken after exits and before entries.
	Snapshot ledger.Snapshot
	Heat     float64 // after entries
}

// Options configures New. Journal defaults to journal.Discard and a nil
// Metrics recorder records nothing.
type Options struct {
	Policy  risk.Policy
	Journal journal.Journal
	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

type Engine struct {
	mu sync.Mutex

	ledger  *ledger.Ledger
	policy  risk.Policy
	journal journal.Journal
	metrics *metrics.Recorder
	log     zerolog.Logger
}

func New(l *ledger.Ledger, opts Options) (*Engine, error) {
	if l == nil {
		return nil, errors.New("engine: Ledger is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	j := opts.Journal
	if j == nil {
		j = journal.Discard{}
	}
	return &Engine{
		ledger:  l,
		policy:  opts.Policy,
		journal: j,
		metrics: opts.Metrics,
		log:     opts.Logger.With().Str("component", "engine").Logger(),
	}, nil
}

func (e *Engine) Ledger() *ledger.Ledger     { return e.ledger }
func (e *Engine) Policy() risk.Policy        { return e.policy }
func (e *Engine) Metrics() *metrics.Recorder { return e.metrics }
func (e *Engine) Journal() journal.Journal   { return e.journal }

// Step processes one tick. Invalid prices are dropped before anything else
// sees them. Candidates the policy or ledger refuse are reported in the
// result, not as errors; journal failures and ledger state violations on
// exit are returned.
func (e *Engine) Step(ctx context.Context, t Tick) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { e.metrics.ObserveStep(time.Since(start)) }()

	prices, dropped := t.Prices.Sanitize()
	res := StepResult{Time: t.Time, Dropped: dropped}
	if len(dropped) > 0 {
		e.log.Debug().Strs("tickers", dropped).Time("at", t.Time).Msg("dropped invalid prices")
	}

	signals := ledger.EvaluateExits(e.ledger.Positions(), prices, t.Time)
	exits, err := e.ledger.ApplyExits(signals)
	if err != nil {
		return res, fmt.Errorf("engine: apply exits: %w", err)
	}
	res.Exits = exits
	for _, x := range exits {
		e.log.Info().
			Str("ticker", x.Ticker).
			Int64("shares", x.Shares).
			Float64("price", x.Price).
			Float64("pnl", x.PnL).
			Str("reason", string(x.Reason)).
			Msg("exit")
	}

	fresh := e.snapshotLocked(&res, prices, t.Time)
	res.Entries, res.Rejected = e.enterLocked(t, prices)
	res.Heat = e.heatLocked(prices)

	if err := e.recordLocked(res, fresh); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) enterLocked(t Tick, prices market.Prices) ([]ledger.Trade, []Rejection) {
	var (
		entries  []ledger.Trade
		rejected []Rejection
	)

	limit := e.policy.MaxEntriesPerTick
	for _, c := range candidates(t.Signals, prices) {
		if limit > 0 && len(entries) >= limit {
			break
		}
		if e.policy.MaxOpenPositions > 0 && e.ledger.OpenCount() >= e.policy.MaxOpenPositions {
			break
		}
		if e.ledger.Holds(c.Ticker) {
			continue
		}

		book := risk.Book{
			PortfolioValue: e.ledger.Value(prices),
			Cash:           e.ledger.Cash(),
			OpenPositions:  e.ledger.OpenCount(),
			Heat:           e.heatLocked(prices),
		}
		d := risk.Admit(e.policy, risk.Candidate{
			Ticker:     c.Ticker,
			Price:      c.Price,
			Confidence: c.Annotation.Confidence,
		}, book)
		if !d.Allowed {
			r := Rejection{Ticker: c.Ticker, Codes: d.Codes(), Reason: d.Violations[0].Msg}
			rejected = append(rejected, r)
			for _, code := range r.Codes {
				e.metrics.Rejected(code)
			}
			e.log.Debug().Str("ticker", c.Ticker).Strs("codes", r.Codes).Msg("candidate rejected")
			continue
		}

		tr, err := e.ledger.Enter(ledger.EntryOrder{
			Ticker:     c.Ticker,
			Shares:     d.Size.Shares,
			Price:      c.Price,
			StopLoss:   d.StopLoss,
			Target:     d.Target,
			Time:       t.Time,
			Annotation: c.Annotation,
		})
		if err != nil {
			rejected = append(rejected, Rejection{Ticker: c.Ticker, Codes: []string{LedgerRejected}, Reason: err.Error()})
			e.metrics.Rejected(LedgerRejected)
			e.log.Warn().Err(err).Str("ticker", c.Ticker).Msg("entry refused by ledger")
			continue
		}
		entries = append(entries, tr)
		e.log.Info().
			Str("ticker", tr.Ticker).
			Int64("shares", tr.Shares).
			Float64("price", tr.Price).
			Float64("stop", tr.StopLoss).
			Float64("target", tr.Target).
			Str("binding", d.Size.Binding()).
			Float64("heat_after", d.HeatAfter).
			Msg("entry")
	}
	return entries, rejected
}

// candidates orders signals by confidence (highest first, ticker breaking
// ties) and prices each from the tick, falling back to the signal's own
// price. Unpriced and repeated tickers are dropped.
func candidates(signals []strategies.Signal, prices market.Prices) []strategies.Signal {
	out := make([]strategies.Signal, 0, len(signals))
	seen := make(map[string]bool, len(signals))
	for _, s := range signals {
		s.Ticker = market.NormalizeTicker(s.Ticker)
		if s.Ticker == "" || seen[s.Ticker] {
			continue
		}
		if px, ok := prices.Get(s.Ticker); ok {
			s.Price = px
		} else if market.ValidatePrice(s.Price) != nil {
			continue
		}
		seen[s.Ticker] = true
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Annotation.Confidence != out[j].Annotation.Confidence {
			return out[i].Annotation.Confidence > out[j].Annotation.Confidence
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

func (e *Engine) heatLocked(prices market.Prices) float64 {
	return risk.Heat(risk.Exposures(e.ledger.Positions(), prices), e.ledger.Value(prices))
}

// snapshotLocked takes the tick's snapshot. It reports false when the
// snapshot replaced one already logged at the same time.
func (e *Engine) snapshotLocked(res *StepResult, prices market.Prices, at time.Time) bool {
	prev, ok := e.ledger.LastSnapshot()
	res.Snapshot = e.ledger.Snapshot(prices, at)
	return !ok || !prev.Time.Equal(at)
}

func (e *Engine) recordLocked(res StepResult, equity bool) error {
	for _, tr := range append(append([]ledger.Trade(nil), res.Exits...), res.Entries...) {
		e.metrics.Trade(string(tr.Action), string(tr.Reason))
		if err := e.journal.RecordTrade(tr); err != nil {
			return fmt.Errorf("engine: journal trade %s: %w", tr.ID, err)
		}
	}
	if equity {
		if err := e.journal.RecordEquity(res.Snapshot); err != nil {
			return fmt.Errorf("engine: journal equity: %w", err)
		}
	}

	e.metrics.ObserveBook(metrics.Book{
		Cash:          e.ledger.Cash(),
		Equity:        res.Snapshot.TotalValue,
		Heat:          res.Heat,
		OpenPositions: e.ledger.OpenCount(),
	})
	return nil
}

// Close exits every open position at prices (entry price where a ticker
// has none) and takes a final snapshot. An empty reason is END_OF_RUN.
func (e *Engine) Close(ctx context.Context, at time.Time, prices market.Prices, reason ledger.ExitReason) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if reason == "" {
		reason = ledger.EndOfRun
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prices, dropped := prices.Sanitize()
	res := StepResult{Time: at, Dropped: dropped}

	positions := e.ledger.Positions()
	signals := make([]ledger.ExitSignal, 0, len(positions))
	for _, p := range positions {
		px, ok := prices.Get(p.Ticker)
		if !ok {
			px = p.EntryPrice
		}
		signals = append(signals, ledger.ExitSignal{Ticker: p.Ticker, Price: px, Reason: reason, Time: at})
	}
	exits, err := e.ledger.ApplyExits(signals)
	if err != nil {
		return res, fmt.Errorf("engine: close: %w", err)
	}
	res.Exits = exits
	if len(exits) > 0 {
		e.log.Info().Int("positions", len(exits)).Str("reason", string(reason)).Msg("closed all positions")
	}

	fresh := e.snapshotLocked(&res, prices, at)
	if err := e.recordLocked(res, fresh); err != nil {
		return res, err
	}
	return res, nil
}

// Report runs the analytics over the ledger's full history.
func (e *Engine) Report() analytics.Report {
	return analytics.Analyze(e.ledger.Snapshots(), e.ledger.Trades(), e.ledger.InitialCash(), e.policy.RiskFreeRate)
}
