package strategies

import (
	"context"
	"time"

	"github.com/rustyeddy/portfolio/market"
)

// Noop never signals. The engine still manages exits for open positions.
type Noop struct{}

func (Noop) Signals(ctx context.Context, at time.Time, prices market.Prices) ([]Signal, error) {
	return nil, ctx.Err()
}
