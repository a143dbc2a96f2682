// Package analytics computes performance statistics from a ledger's
// snapshot and trade logs. Every function is pure and total: undefined
// ratios come back as 0, never NaN or Inf.
package analytics

import (
	"math"

	"github.com/rustyeddy/portfolio/ledger"
)

// TradingDays is the number of trading days used to annualize.
const TradingDays = 252

// zeroStd is the threshold below which a standard deviation counts as zero.
const zeroStd = 1e-12

// Returns is the period-over-period fractional change in total value.
// A period starting from a non-positive value is skipped.
func Returns(snaps []ledger.Snapshot) []float64 {
	if len(snaps) < 2 {
		return nil
	}
	out := make([]float64, 0, len(snaps)-1)
	for i := 1; i < len(snaps); i++ {
		prev := snaps[i-1].TotalValue
		if prev <= 0 || !finite(prev) || !finite(snaps[i].TotalValue) {
			continue
		}
		out = append(out, (snaps[i].TotalValue-prev)/prev)
	}
	return out
}

// Sharpe is sqrt(252) * mean(excess) / stdev(excess) where excess is each
// daily return less riskFree/252.
func Sharpe(returns []float64, riskFree float64) float64 {
	excess := excessReturns(returns, riskFree)
	sd := stdev(excess)
	if sd < zeroStd {
		return 0
	}
	return safe(math.Sqrt(TradingDays) * mean(excess) / sd)
}

// Sortino is Sharpe with the denominator restricted to negative excess
// returns. Fewer than two negative returns gives 0.
func Sortino(returns []float64, riskFree float64) float64 {
	excess := excessReturns(returns, riskFree)
	var downside []float64
	for _, r := range excess {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	sd := stdev(downside)
	if sd < zeroStd {
		return 0
	}
	return safe(math.Sqrt(TradingDays) * mean(excess) / sd)
}

// VolatilityPct is the annualized standard deviation of returns, in percent.
func VolatilityPct(returns []float64) float64 {
	return safe(stdev(returns) * math.Sqrt(TradingDays) * 100)
}

// Calmar is |totalReturnPct / maxDrawdownPct|, 0 when there was no drawdown.
func Calmar(totalReturnPct, maxDrawdownPct float64) float64 {
	if maxDrawdownPct == 0 {
		return 0
	}
	return safe(math.Abs(totalReturnPct / maxDrawdownPct))
}

// ReturnVolatilityRatio is totalReturnPct / volatilityPct, 0 when flat.
func ReturnVolatilityRatio(totalReturnPct, volatilityPct float64) float64 {
	if volatilityPct == 0 {
		return 0
	}
	return safe(totalReturnPct / volatilityPct)
}

// TotalReturnPct is the percent change from initial to final.
func TotalReturnPct(initial, final float64) float64 {
	if initial <= 0 {
		return 0
	}
	return safe((final/initial - 1) * 100)
}

// AnnualizedReturnPct compounds the total return over days trading days
// to a 252-day year.
func AnnualizedReturnPct(initial, final float64, days int) float64 {
	if initial <= 0 || final <= 0 || days <= 0 {
		return 0
	}
	return safe((math.Pow(final/initial, float64(TradingDays)/float64(days)) - 1) * 100)
}

func excessReturns(returns []float64, riskFree float64) []float64 {
	daily := riskFree / TradingDays
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r - daily
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev is the sample standard deviation (n-1), 0 for fewer than two points.
func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func safe(x float64) float64 {
	if !finite(x) {
		return 0
	}
	return x
}
