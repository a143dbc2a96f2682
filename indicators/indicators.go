// Package indicators provides streaming indicators over daily closes.
package indicators

import (
	"fmt"
	"strings"
)

// Indicator computes a single streaming value from closing prices.
// It is deterministic and safe to use in live and backtest runs.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ROC(10)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next close.
	Update(close float64)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 before warmup.
	Value() float64
}

// New returns the streaming indicator named by kind ("ema", "sma" or
// "roc"). An empty kind is "ema".
func New(kind string, period int) (Indicator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "ema":
		return NewEMA(period), nil
	case "sma", "ma":
		return NewMA(period), nil
	case "roc":
		return NewROC(period), nil
	default:
		return nil, fmt.Errorf("unknown indicator %q (supported: ema, sma, roc)", kind)
	}
}
