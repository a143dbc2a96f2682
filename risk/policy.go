package risk

import (
	"errors"
	"fmt"
)

// Policy holds the portfolio's risk limits. Percentages are fractions
// (0.02 == 2%).
type Policy struct {
	MaxLossPct     float64 `yaml:"max_loss_pct" json:"max_loss_pct"`         // loss budget per trade
	MaxPositionPct float64 `yaml:"max_position_pct" json:"max_position_pct"` // concentration cap
	StopLossPct    float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`       // stop below entry
	TargetPct      float64 `yaml:"target_pct" json:"target_pct"`             // target above entry

	// Heat limit across all open positions; 0 disables the check.
	MaxPortfolioHeat float64 `yaml:"max_portfolio_heat" json:"max_portfolio_heat"`

	MaxOpenPositions  int `yaml:"max_open_positions" json:"max_open_positions"`
	MaxEntriesPerTick int `yaml:"max_entries_per_tick" json:"max_entries_per_tick"`

	// Candidates below MinConfidence are rejected; 0 disables the check.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`

	// Annual risk-free rate used by Sharpe and Sortino.
	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
}

// Default returns a conservative policy: 2% loss budget, 10% per position,
// 10% stop, 15% target, 6% total heat, 5 positions, one new entry per tick.
func Default() Policy {
	return Policy{
		MaxLossPct:        0.02,
		MaxPositionPct:    0.10,
		StopLossPct:       0.10,
		TargetPct:         0.15,
		MaxPortfolioHeat:  0.06,
		MaxOpenPositions:  5,
		MaxEntriesPerTick: 1,
		MinConfidence:     7,
		RiskFreeRate:      0.02,
	}
}

// Validate checks that every limit is in range.
func (p Policy) Validate() error {
	var errs []error
	frac := func(name string, v float64, allowZero bool) {
		if !finite(v) || v < 0 || v > 1 || (!allowZero && v == 0) {
			errs = append(errs, fmt.Errorf("%s must be in (0,1], got %v", name, v))
		}
	}
	frac("max_loss_pct", p.MaxLossPct, false)
	frac("max_position_pct", p.MaxPositionPct, false)
	frac("stop_loss_pct", p.StopLossPct, false)
	if p.StopLossPct == 1 {
		errs = append(errs, errors.New("stop_loss_pct must be below 1"))
	}
	if !finitePositive(p.TargetPct) {
		errs = append(errs, fmt.Errorf("target_pct must be > 0, got %v", p.TargetPct))
	}
	frac("max_portfolio_heat", p.MaxPortfolioHeat, true)
	if p.MaxOpenPositions < 1 {
		errs = append(errs, fmt.Errorf("max_open_positions must be >= 1, got %d", p.MaxOpenPositions))
	}
	if p.MaxEntriesPerTick < 1 {
		errs = append(errs, fmt.Errorf("max_entries_per_tick must be >= 1, got %d", p.MaxEntriesPerTick))
	}
	if !finite(p.MinConfidence) || p.MinConfidence < 0 {
		errs = append(errs, fmt.Errorf("min_confidence must be >= 0, got %v", p.MinConfidence))
	}
	if !finite(p.RiskFreeRate) {
		errs = append(errs, errors.New("risk_free_rate must be finite"))
	}
	return errors.Join(errs...)
}

// Candidate is a proposed entry.
type Candidate struct {
	Ticker     string
	Price      float64
	Confidence float64
}

// Book is the portfolio state an admission decision is made against.
type Book struct {
	PortfolioValue float64
	Cash           float64
	OpenPositions  int
	Heat           float64 // current heat, see Heat
}
