package risk

import (
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
)

// Exposure is one open position's contribution to portfolio heat.
type Exposure struct {
	Ticker       string
	Value        float64 // shares * mark
	StopFraction float64 // fraction of Value lost if the stop is hit
}

// AtRisk is the capital lost if this position is stopped out.
func (e Exposure) AtRisk() float64 { return e.Value * e.StopFraction }

// ExposureOf builds the exposure for p marked at mark. The stop fraction is
// measured from entry, matching how the stop was sized.
func ExposureOf(p ledger.Position, mark float64) Exposure {
	frac := 0.0
	if p.EntryPrice > 0 {
		frac = (p.EntryPrice - p.StopLoss) / p.EntryPrice
	}
	if frac < 0 {
		frac = 0
	}
	return Exposure{
		Ticker:       p.Ticker,
		Value:        float64(p.Shares) * mark,
		StopFraction: frac,
	}
}

// Exposures marks each position at prices, falling back to entry price.
func Exposures(positions []ledger.Position, prices market.Prices) []Exposure {
	out := make([]Exposure, 0, len(positions))
	for _, p := range positions {
		mark, ok := prices.Get(p.Ticker)
		if !ok {
			mark = p.EntryPrice
		}
		out = append(out, ExposureOf(p, mark))
	}
	return out
}

// Heat is the fraction of portfolioValue lost if every exposure were stopped
// out at once. It can exceed 1 for leveraged or gapped books.
func Heat(exposures []Exposure, portfolioValue float64) float64 {
	if !finitePositive(portfolioValue) {
		return 0
	}
	var atRisk float64
	for _, e := range exposures {
		atRisk += e.AtRisk()
	}
	return atRisk / portfolioValue
}
