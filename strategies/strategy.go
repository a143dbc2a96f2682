// Package strategies supplies entry signals to the engine. A signal is only
// a suggestion: the engine sizes and admits it under the risk policy.
package strategies

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
)

// Signal proposes buying Ticker at Price.
type Signal struct {
	Ticker     string
	Price      float64
	Annotation ledger.Annotation
}

// SignalSource produces signals for the tick at `at` given that tick's
// prices. Sources may keep state between calls and are called from one
// goroutine at a time.
type SignalSource interface {
	Signals(ctx context.Context, at time.Time, prices market.Prices) ([]Signal, error)
}

// Watcher is implemented by sources that know which tickers they want
// priced each tick.
type Watcher interface {
	Watchlist() []string
}

// Options configures ByName.
type Options struct {
	SignalsFile string   // scripted
	Lookback    int      // momentum
	Threshold   float64  // momentum
	Trend       string   // momentum; "ema" or "sma"
	Universe    []string // momentum; empty means every priced ticker
}

// Names lists the strategies ByName understands.
func Names() []string {
	names := []string{"noop", "scripted", "momentum"}
	sort.Strings(names)
	return names
}

// Known reports whether ByName accepts name.
func Known(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none", "", "scripted", "script", "momentum":
		return true
	}
	return false
}

func ByName(name string, opts Options) (SignalSource, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none", "":
		return Noop{}, nil

	case "scripted", "script":
		if opts.SignalsFile == "" {
			return nil, fmt.Errorf("strategy scripted: signals file is required")
		}
		return LoadScripted(opts.SignalsFile)

	case "momentum":
		m, err := NewMomentum(MomentumConfig{
			Lookback:  opts.Lookback,
			Threshold: opts.Threshold,
			Trend:     opts.Trend,
			Universe:  opts.Universe,
		})
		if err != nil {
			return nil, err
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}
