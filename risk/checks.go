package risk

import (
	"fmt"

	"github.com/rustyeddy/portfolio/market"
)

// Violation codes.
const (
	InvalidSetup     = "INVALID_SETUP"
	NoShares         = "NO_SHARES"
	LowConfidence    = "LOW_CONFIDENCE"
	TooManyPositions = "TOO_MANY_POSITIONS"
	HeatTooHigh      = "HEAT_TOO_HIGH"
)

// heatSlack absorbs float noise when heat lands exactly on the limit.
const heatSlack = 1e-12

type Violation struct {
	Code string
	Msg  string
}

func (v Violation) String() string { return v.Code + ": " + v.Msg }

type Decision struct {
	Allowed    bool
	Violations []Violation

	Size      SizeResult
	StopLoss  float64
	Target    float64
	RR        float64
	HeatAfter float64
	HeatNow   float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Codes returns the violation codes in the order they were raised.
func (d Decision) Codes() []string {
	out := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		out = append(out, v.Code)
	}
	return out
}

// Admit sizes candidate c under policy p and checks it against the book.
// All applicable violations are collected; the decision is allowed only
// when there are none.
func Admit(p Policy, c Candidate, b Book) Decision {
	d := Decision{Allowed: true, HeatNow: b.Heat, HeatAfter: b.Heat}

	if err := market.ValidatePrice(c.Price); err != nil {
		d.add(InvalidSetup, fmt.Sprintf("%s: %v", c.Ticker, err))
		return d
	}

	d.StopLoss, d.Target = Levels(c.Price, p.StopLossPct, p.TargetPct)
	d.RR = RR(c.Price, d.StopLoss, d.Target)
	if !(d.StopLoss < c.Price && c.Price < d.Target) {
		d.add(InvalidSetup, fmt.Sprintf("levels stop=%.4f entry=%.4f target=%.4f are not ordered",
			d.StopLoss, c.Price, d.Target))
		return d
	}

	d.Size = Size(SizeInputs{
		PortfolioValue: b.PortfolioValue,
		EntryPrice:     c.Price,
		StopPrice:      d.StopLoss,
		MaxLossPct:     p.MaxLossPct,
		MaxPositionPct: p.MaxPositionPct,
		AvailableCash:  b.Cash,
	})
	if !d.Size.OK() {
		d.add(NoShares, fmt.Sprintf("no shares: risk=%d position=%d cash=%d",
			d.Size.RiskShares, d.Size.CapShares, d.Size.CashShares))
	}

	if p.MinConfidence > 0 && c.Confidence < p.MinConfidence {
		d.add(LowConfidence, fmt.Sprintf("confidence %.1f below minimum %.1f", c.Confidence, p.MinConfidence))
	}

	if p.MaxOpenPositions > 0 && b.OpenPositions >= p.MaxOpenPositions {
		d.add(TooManyPositions, fmt.Sprintf("open positions %d >= max %d", b.OpenPositions, p.MaxOpenPositions))
	}

	if d.Size.OK() && finitePositive(b.PortfolioValue) {
		add := Exposure{Ticker: c.Ticker, Value: d.Size.PositionValue, StopFraction: d.Size.StopDistance / c.Price}
		d.HeatAfter = b.Heat + add.AtRisk()/b.PortfolioValue
	}
	if p.MaxPortfolioHeat > 0 && d.HeatAfter > p.MaxPortfolioHeat+heatSlack {
		d.add(HeatTooHigh, fmt.Sprintf("heat %.2f%% would exceed max %.2f%%",
			100*d.HeatAfter, 100*p.MaxPortfolioHeat))
	}

	return d
}
