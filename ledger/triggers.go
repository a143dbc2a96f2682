package ledger

import (
	"sort"
	"time"

	"github.com/rustyeddy/portfolio/market"
)

// ExitSignal says a position should be closed at Price.
type ExitSignal struct {
	Ticker string
	Price  float64
	Reason ExitReason
	Time   time.Time
}

func hitStopLoss(p Position, price float64) bool { return price <= p.StopLoss }

func hitTarget(p Position, price float64) bool { return price >= p.Target }

// EvaluateExits checks each position against its stop and target. The stop
// is checked first, so a price satisfying both closes as STOP_LOSS.
// Positions without a valid price are skipped. Signals are sorted by ticker.
func EvaluateExits(positions []Position, prices market.Prices, asOf time.Time) []ExitSignal {
	var out []ExitSignal
	for _, p := range positions {
		price, ok := prices.Get(p.Ticker)
		if !ok || market.ValidatePrice(price) != nil {
			continue
		}

		var reason ExitReason
		switch {
		case hitStopLoss(p, price):
			reason = StopLoss
		case hitTarget(p, price):
			reason = TargetReached
		default:
			continue
		}
		out = append(out, ExitSignal{Ticker: p.Ticker, Price: price, Reason: reason, Time: asOf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
