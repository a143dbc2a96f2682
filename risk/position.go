package risk

import "math"

// maxShares bounds a share count so float64 arithmetic on it stays exact.
const maxShares = 1 << 53

// SizeInputs are the values the sizer needs for one candidate entry.
type SizeInputs struct {
	PortfolioValue float64 // total value (cash + marked positions)
	EntryPrice     float64
	StopPrice      float64
	MaxLossPct     float64 // 0.02: lose at most 2% of PortfolioValue if stopped out
	MaxPositionPct float64 // 0.10: position worth at most 10% of PortfolioValue
	AvailableCash  float64
}

// SizeResult is the sizer's answer. Shares == 0 means "no trade".
type SizeResult struct {
	Shares        int64
	PositionValue float64 // Shares * EntryPrice
	MaxLossAmount float64 // loss budget: PortfolioValue * MaxLossPct
	RiskAmount    float64 // Shares * StopDistance
	StopDistance  float64

	// The three independent caps; Shares is their minimum.
	RiskShares int64
	CapShares  int64
	CashShares int64
}

// OK reports whether the result allows a trade.
func (r SizeResult) OK() bool { return r.Shares > 0 }

// Binding names the cap that determined Shares ("risk", "position", "cash"),
// or "" for a no-trade result.
func (r SizeResult) Binding() string {
	switch {
	case !r.OK():
		return ""
	case r.Shares == r.RiskShares:
		return "risk"
	case r.Shares == r.CapShares:
		return "position"
	default:
		return "cash"
	}
}

// Size computes the share count for an entry as the minimum of three caps:
// the stop-out loss budget, the per-position concentration limit, and the
// cash on hand. A stop at or above entry yields zero shares.
func Size(in SizeInputs) SizeResult {
	res := SizeResult{}
	if !finitePositive(in.EntryPrice) || !finite(in.StopPrice) || !finitePositive(in.PortfolioValue) {
		return res
	}

	res.StopDistance = in.EntryPrice - in.StopPrice
	if res.StopDistance <= 0 {
		return res
	}

	res.MaxLossAmount = in.PortfolioValue * in.MaxLossPct
	res.RiskShares = floorShares(res.MaxLossAmount, res.StopDistance)
	res.CapShares = floorShares(in.PortfolioValue*in.MaxPositionPct, in.EntryPrice)
	res.CashShares = floorShares(in.AvailableCash, in.EntryPrice)

	shares := min(res.RiskShares, res.CapShares, res.CashShares)
	if shares <= 0 {
		return res
	}

	res.Shares = shares
	res.PositionValue = float64(shares) * in.EntryPrice
	res.RiskAmount = float64(shares) * res.StopDistance
	return res
}

// floorShares returns the largest n with n*unit <= budget. The correction
// loop absorbs division rounding that would otherwise overshoot by one.
func floorShares(budget, unit float64) int64 {
	if !finitePositive(budget) || !finitePositive(unit) {
		return 0
	}
	q := math.Floor(budget / unit)
	if q > maxShares {
		q = maxShares
	}
	n := int64(q)
	for n > 0 && float64(n)*unit > budget {
		n--
	}
	return n
}

// Levels derives absolute stop-loss and target prices from percentages of
// the entry price.
func Levels(entry, stopPct, targetPct float64) (stop, target float64) {
	return entry * (1 - stopPct), entry * (1 + targetPct)
}

// RR is the reward-to-risk multiple of a setup, 0 when risk is zero.
func RR(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func finitePositive(x float64) bool { return finite(x) && x > 0 }
