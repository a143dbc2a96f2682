package ledger

import (
	"fmt"
	"math"

	"github.com/rustyeddy/portfolio/market"
)

// State is a deep copy of a ledger, suitable for persistence.
type State struct {
	InitialCash float64    `json:"initial_cash" yaml:"initial_cash"`
	Cash        float64    `json:"cash" yaml:"cash"`
	Positions   []Position `json:"positions" yaml:"positions"`
	Trades      []Trade    `json:"trades" yaml:"trades"`
	Snapshots   []Snapshot `json:"snapshots" yaml:"snapshots"`
}

func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		InitialCash: l.initialCash,
		Cash:        l.cash,
		Positions:   l.positionsLocked(),
		Trades:      cloneTrades(l.trades),
		Snapshots:   append([]Snapshot(nil), l.snapshots...),
	}
}

// Restore rebuilds a ledger from s after checking that the trade log, the
// open positions and the cash balance agree with each other.
func Restore(s State) (*Ledger, error) {
	if err := Verify(s); err != nil {
		return nil, err
	}
	l := &Ledger{
		initialCash: s.InitialCash,
		cash:        s.Cash,
		positions:   make(map[string]*Position, len(s.Positions)),
		trades:      cloneTrades(s.Trades),
		snapshots:   append([]Snapshot(nil), s.Snapshots...),
	}
	for _, p := range s.Positions {
		p := p.clone()
		l.positions[p.Ticker] = &p
	}
	return l, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrCorruptState)
}

// Verify checks the ledger invariants on s:
//   - cash is finite and non-negative
//   - every CLOSED trade closes exactly one earlier OPEN trade for the same ticker
//   - the OPEN trades that are not closed are exactly the open positions
//   - cash equals initial cash minus costs plus proceeds
func Verify(s State) error {
	if !isFinite(s.InitialCash) || s.InitialCash < 0 {
		return corrupt("initial cash %v", s.InitialCash)
	}
	if !isFinite(s.Cash) || s.Cash < 0 {
		return corrupt("cash %v", s.Cash)
	}

	open := make(map[string]Trade) // entry ID -> BUY leg still open
	ids := make(map[string]bool, len(s.Trades))
	flow := s.InitialCash
	for i, t := range s.Trades {
		if t.ID == "" || ids[t.ID] {
			return corrupt("trade %d: missing or duplicate id %q", i, t.ID)
		}
		ids[t.ID] = true
		if t.Shares <= 0 || market.ValidatePrice(t.Price) != nil {
			return corrupt("trade %s: shares=%d price=%v", t.ID, t.Shares, t.Price)
		}

		switch {
		case t.Action == Buy && t.Status == Open:
			open[t.ID] = t
			flow -= t.Amount
		case t.Action == Sell && t.Status == Closed:
			entry, ok := open[t.EntryID]
			if !ok {
				return corrupt("trade %s closes unknown or already closed entry %q", t.ID, t.EntryID)
			}
			if entry.Ticker != t.Ticker || entry.Shares != t.Shares {
				return corrupt("trade %s does not match entry %s", t.ID, entry.ID)
			}
			delete(open, t.EntryID)
			flow += t.Amount
		default:
			return corrupt("trade %s: action %q with status %q", t.ID, t.Action, t.Status)
		}
	}

	if len(open) != len(s.Positions) {
		return corrupt("%d open entries but %d positions", len(open), len(s.Positions))
	}
	seen := make(map[string]bool, len(s.Positions))
	for _, p := range s.Positions {
		if seen[p.Ticker] {
			return corrupt("position %s held twice", p.Ticker)
		}
		seen[p.Ticker] = true
		if p.Shares <= 0 || !levelsOrdered(p.StopLoss, p.EntryPrice, p.Target) {
			return corrupt("position %s: shares=%d stop=%v entry=%v target=%v",
				p.Ticker, p.Shares, p.StopLoss, p.EntryPrice, p.Target)
		}
		entry, ok := open[p.EntryTradeID]
		if !ok || entry.Ticker != p.Ticker || entry.Shares != p.Shares {
			return corrupt("position %s has no matching open entry", p.Ticker)
		}
	}

	tol := 1e-6 * math.Max(1, s.InitialCash)
	if math.Abs(flow-s.Cash) > tol {
		return corrupt("cash %.6f does not match trade flow %.6f", s.Cash, flow)
	}
	return nil
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
