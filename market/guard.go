package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardOptions configures Guard.
type GuardOptions struct {
	Name string

	// RPS <= 0 disables rate limiting.
	RPS   float64
	Burst int

	// MaxFailures consecutive failures open the breaker; default 3.
	MaxFailures uint32
	// OpenFor is how long the breaker stays open before probing; default 60s.
	OpenFor time.Duration
}

// Guard wraps a PriceSource with a token-bucket rate limiter and a circuit
// breaker. Gaps (ErrUnavailable) do not count as failures; an open breaker
// is reported as ErrUnavailable so callers skip the ticker for this tick.
type Guard struct {
	src     PriceSource
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuard(src PriceSource, opts GuardOptions) *Guard {
	g := &Guard{src: src}

	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	name := opts.Name
	if name == "" {
		name = "prices"
	}
	maxFail := opts.MaxFailures
	if maxFail == 0 {
		maxFail = 3
	}
	openFor := opts.OpenFor
	if openFor <= 0 {
		openFor = 60 * time.Second
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFail
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// State reports the breaker state ("closed", "half-open", "open").
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) Price(ctx context.Context, ticker string) (Quote, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return Quote{}, err
		}
	}

	v, err := g.breaker.Execute(func() (interface{}, error) {
		q, err := g.src.Price(ctx, ticker)
		if err != nil {
			return nil, err
		}
		if err := ValidatePrice(q.Price); err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
		return q, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Quote{}, fmt.Errorf("%s: %w: %v", ticker, ErrUnavailable, err)
		}
		return Quote{}, err
	}
	return v.(Quote), nil
}
