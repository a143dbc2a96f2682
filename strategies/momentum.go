package strategies

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rustyeddy/portfolio/indicators"
	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
)

type MomentumConfig struct {
	Lookback  int     // bars; default 20
	Threshold float64 // minimum gain over Lookback; default 0.05
	Trend     string  // trend filter average: "ema" (default) or "sma"
	Universe  []string
}

// Momentum signals tickers whose close rose at least Threshold over the
// last Lookback bars while trading above their Lookback moving average.
// Confidence scales with the gain: a gain equal to Threshold scores 7,
// capped at 10.
type Momentum struct {
	cfg      MomentumConfig
	universe map[string]bool
	roc      map[string]*indicators.RateOfChange
	trend    map[string]indicators.Indicator
}

func NewMomentum(cfg MomentumConfig) (*Momentum, error) {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 20
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.05
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Trend)) {
	case "", "ema":
		cfg.Trend = "ema"
	case "sma", "ma":
		cfg.Trend = "sma"
	default:
		return nil, fmt.Errorf("momentum: unknown trend filter %q (ema|sma)", cfg.Trend)
	}
	m := &Momentum{
		cfg:   cfg,
		roc:   make(map[string]*indicators.RateOfChange),
		trend: make(map[string]indicators.Indicator),
	}
	if len(cfg.Universe) > 0 {
		m.universe = make(map[string]bool, len(cfg.Universe))
		for _, t := range cfg.Universe {
			m.universe[market.NormalizeTicker(t)] = true
		}
	}
	return m, nil
}

func (m *Momentum) Signals(ctx context.Context, at time.Time, prices market.Prices) ([]Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Signal
	for _, ticker := range prices.Tickers() {
		if m.universe != nil && !m.universe[ticker] {
			continue
		}
		px := prices[ticker]

		roc, ok := m.roc[ticker]
		if !ok {
			avg, err := indicators.New(m.cfg.Trend, m.cfg.Lookback)
			if err != nil {
				return nil, err
			}
			roc = indicators.NewROC(m.cfg.Lookback)
			m.roc[ticker] = roc
			m.trend[ticker] = avg
		}
		avg := m.trend[ticker]

		// The trend filter compares against the average before this close.
		trendReady, trend := avg.Ready(), avg.Value()
		roc.Update(px)
		avg.Update(px)

		if !roc.Ready() || !trendReady {
			continue
		}
		gain := roc.Value()
		if gain < m.cfg.Threshold || px <= trend {
			continue
		}

		out = append(out, Signal{
			Ticker: ticker,
			Price:  px,
			Annotation: ledger.Annotation{
				Confidence: m.confidence(gain),
				Reasoning:  fmt.Sprintf("%.1f%% over %d bars, above %s", gain*100, m.cfg.Lookback, avg.Name()),
				Meta:       map[string]string{"strategy": "momentum"},
			},
		})
	}
	return out, nil
}

func (m *Momentum) confidence(gain float64) float64 {
	c := math.Round(7 * gain / m.cfg.Threshold)
	return math.Max(1, math.Min(10, c))
}

// Watchlist is the configured universe, if any.
func (m *Momentum) Watchlist() []string { return append([]string(nil), m.cfg.Universe...) }
