// Package ledger tracks cash, open positions, the trade log and equity
// snapshots for a long-only stock portfolio.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/portfolio/internal/id"
	"github.com/rustyeddy/portfolio/market"
)

// Ledger is safe for concurrent use; every method takes the same lock.
type Ledger struct {
	mu          sync.Mutex
	initialCash float64
	cash        float64
	positions   map[string]*Position
	trades      []Trade
	snapshots   []Snapshot
}

// New returns an empty ledger holding initialCash.
func New(initialCash float64) (*Ledger, error) {
	if math.IsNaN(initialCash) || math.IsInf(initialCash, 0) || initialCash < 0 {
		return nil, fmt.Errorf("new ledger: initial cash %v: %w", initialCash, ErrInvalidOrder)
	}
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*Position),
	}, nil
}

// Enter opens a position, debiting shares*price from cash and appending an
// OPEN trade. Nothing changes when an error is returned.
func (l *Ledger) Enter(o EntryOrder) (Trade, error) {
	o.Ticker = market.NormalizeTicker(o.Ticker)

	if o.Ticker == "" || o.Shares <= 0 || market.ValidatePrice(o.Price) != nil {
		return Trade{}, fmt.Errorf("enter %q: shares=%d price=%v: %w", o.Ticker, o.Shares, o.Price, ErrInvalidOrder)
	}
	if !levelsOrdered(o.StopLoss, o.Price, o.Target) {
		return Trade{}, fmt.Errorf("enter %s: stop=%v entry=%v target=%v: %w",
			o.Ticker, o.StopLoss, o.Price, o.Target, ErrInvalidLevels)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[o.Ticker]; ok {
		return Trade{}, fmt.Errorf("enter %s: %w", o.Ticker, ErrAlreadyHeld)
	}
	cost := float64(o.Shares) * o.Price
	if cost > l.cash {
		return Trade{}, fmt.Errorf("enter %s: cost %.2f > cash %.2f: %w", o.Ticker, cost, l.cash, ErrInsufficientCash)
	}

	ann := o.Annotation.Clone()
	t := Trade{
		ID:         id.NewAt(o.Time),
		Ticker:     o.Ticker,
		Action:     Buy,
		Status:     Open,
		Shares:     o.Shares,
		Price:      o.Price,
		Amount:     cost,
		Time:       o.Time,
		StopLoss:   o.StopLoss,
		Target:     o.Target,
		Annotation: ann,
	}

	l.cash -= cost
	l.positions[o.Ticker] = &Position{
		Ticker:       o.Ticker,
		Shares:       o.Shares,
		EntryPrice:   o.Price,
		EntryTime:    o.Time,
		StopLoss:     o.StopLoss,
		Target:       o.Target,
		EntryTradeID: t.ID,
		Annotation:   ann.Clone(),
	}
	l.trades = append(l.trades, t)
	return t.clone(), nil
}

// Exit closes the position in ticker at price, crediting the proceeds and
// appending a CLOSED trade. An empty reason is recorded as MANUAL.
func (l *Ledger) Exit(ticker string, price float64, at time.Time, reason ExitReason) (Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ticker = market.NormalizeTicker(ticker)
	if err := l.checkExitLocked(ticker, price); err != nil {
		return Trade{}, err
	}
	return l.exitLocked(ticker, price, at, reason).clone(), nil
}

// ApplyExits applies signals in order under a single lock. Every signal is
// checked before any is applied, so either all exits happen or none do.
func (l *Ledger) ApplyExits(signals []ExitSignal) ([]Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(signals))
	for _, s := range signals {
		ticker := market.NormalizeTicker(s.Ticker)
		if seen[ticker] {
			return nil, fmt.Errorf("exit %s: duplicate signal: %w", ticker, ErrNoOpenPosition)
		}
		seen[ticker] = true
		if err := l.checkExitLocked(ticker, s.Price); err != nil {
			return nil, err
		}
	}

	out := make([]Trade, 0, len(signals))
	for _, s := range signals {
		t := l.exitLocked(market.NormalizeTicker(s.Ticker), s.Price, s.Time, s.Reason)
		out = append(out, t.clone())
	}
	return out, nil
}

func (l *Ledger) checkExitLocked(ticker string, price float64) error {
	if err := market.ValidatePrice(price); err != nil {
		return fmt.Errorf("exit %s: %v: %w", ticker, err, ErrInvalidOrder)
	}
	if _, ok := l.positions[ticker]; !ok {
		return fmt.Errorf("exit %s: %w", ticker, ErrNoOpenPosition)
	}
	return nil
}

// exitLocked assumes checkExitLocked passed.
func (l *Ledger) exitLocked(ticker string, price float64, at time.Time, reason ExitReason) Trade {
	p := l.positions[ticker]
	if reason == "" {
		reason = Manual
	}

	proceeds := float64(p.Shares) * price
	t := Trade{
		ID:         id.NewAt(at),
		EntryID:    p.EntryTradeID,
		Ticker:     ticker,
		Action:     Sell,
		Status:     Closed,
		Shares:     p.Shares,
		Price:      price,
		Amount:     proceeds,
		Time:       at,
		PnL:        (price - p.EntryPrice) * float64(p.Shares),
		PnLPct:     (price/p.EntryPrice - 1) * 100,
		Reason:     reason,
		EntryTime:  p.EntryTime,
		EntryPrice: p.EntryPrice,
		Annotation: p.Annotation.Clone(),
	}

	l.cash += proceeds
	delete(l.positions, ticker)
	l.trades = append(l.trades, t)
	return t
}

// Value is cash plus every position marked at prices. A position without a
// valid price is marked at its entry price.
func (l *Ledger) Value(prices market.Prices) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.valueLocked(prices)
}

func (l *Ledger) valueLocked(prices market.Prices) float64 {
	total := l.cash
	for _, p := range l.positions {
		total += p.Value(markOf(*p, prices))
	}
	return total
}

func markOf(p Position, prices market.Prices) float64 {
	if v, ok := prices.Get(p.Ticker); ok && market.ValidatePrice(v) == nil {
		return v
	}
	return p.EntryPrice
}

// Mark values the portfolio at prices without recording anything.
func (l *Ledger) Mark(prices market.Prices, at time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markLocked(prices, at)
}

func (l *Ledger) markLocked(prices market.Prices, at time.Time) Snapshot {
	total := l.valueLocked(prices)
	ret := 0.0
	if l.initialCash > 0 {
		ret = (total/l.initialCash - 1) * 100
	}
	return Snapshot{
		Time:          at,
		TotalValue:    total,
		Cash:          l.cash,
		OpenPositions: len(l.positions),
		ReturnPct:     ret,
	}
}

// Snapshot is Mark plus an append to the snapshot log. The log holds one
// snapshot per instant: one taken at the time of the latest replaces it.
func (l *Ledger) Snapshot(prices market.Prices, at time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.markLocked(prices, at)
	if n := len(l.snapshots); n > 0 && l.snapshots[n-1].Time.Equal(at) {
		l.snapshots[n-1] = s
		return s
	}
	l.snapshots = append(l.snapshots, s)
	return s
}

// LastSnapshot returns the most recent snapshot, if any.
func (l *Ledger) LastSnapshot() (Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.snapshots) == 0 {
		return Snapshot{}, false
	}
	return l.snapshots[len(l.snapshots)-1], true
}

// View is Mark plus the open positions, taken under one lock so the two
// always agree.
func (l *Ledger) View(prices market.Prices, at time.Time) (Snapshot, []Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markLocked(prices, at), l.positionsLocked()
}

func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

func (l *Ledger) InitialCash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialCash
}

// Positions returns a copy of the open positions sorted by ticker.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

func (l *Ledger) positionsLocked() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (l *Ledger) Position(ticker string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[market.NormalizeTicker(ticker)]
	if !ok {
		return Position{}, false
	}
	return p.clone(), true
}

func (l *Ledger) Holds(ticker string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.positions[market.NormalizeTicker(ticker)]
	return ok
}

func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.positions)
}

// Trades returns a copy of the full trade log in insertion order.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneTrades(l.trades)
}

// ClosedTrades returns only the SELL legs.
func (l *Ledger) ClosedTrades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Trade
	for _, t := range l.trades {
		if t.IsClosed() {
			out = append(out, t.clone())
		}
	}
	return out
}

func (l *Ledger) Snapshots() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Snapshot(nil), l.snapshots...)
}

func cloneTrades(in []Trade) []Trade {
	out := make([]Trade, len(in))
	for i, t := range in {
		out[i] = t.clone()
	}
	return out
}
