package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnavailable means the source has no price for the ticker right now.
	// Callers treat it as a data gap, not a failure.
	ErrUnavailable = errors.New("price unavailable")

	// ErrInvalidPrice is returned for zero, negative or non-finite prices.
	ErrInvalidPrice = errors.New("invalid price")
)

// Quote is a single mark price for a ticker.
type Quote struct {
	Ticker string
	Price  float64
	Time   time.Time
}

// PriceSource supplies mark prices. Implementations return an error wrapping
// ErrUnavailable when a price is missing.
type PriceSource interface {
	Price(ctx context.Context, ticker string) (Quote, error)
}

// Prices maps ticker to mark price for a single tick.
type Prices map[string]float64

// Get returns the price for ticker and whether one is present.
func (p Prices) Get(ticker string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	v, ok := p[ticker]
	return v, ok
}

// Tickers returns the tickers in ascending order.
func (p Prices) Tickers() []string {
	out := make([]string, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy of p.
func (p Prices) Clone() Prices {
	out := make(Prices, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Sanitize returns the valid subset of p along with the tickers that were
// dropped. Nothing downstream of this call ever sees a bad price.
func (p Prices) Sanitize() (Prices, []string) {
	out := make(Prices, len(p))
	var dropped []string
	for t, v := range p {
		if ValidatePrice(v) != nil {
			dropped = append(dropped, t)
			continue
		}
		out[t] = v
	}
	sort.Strings(dropped)
	return out, dropped
}

// ValidatePrice rejects zero, negative, NaN and infinite prices.
func ValidatePrice(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, v)
	}
	return nil
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Store is an in-memory PriceSource. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStore() *Store {
	return &Store{quotes: make(map[string]Quote)}
}

// Set records q, replacing any earlier quote for the same ticker.
func (s *Store) Set(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[NormalizeTicker(q.Ticker)] = q
}

// SetPrices records every entry of p stamped with at.
func (s *Store) SetPrices(p Prices, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, v := range p {
		t = NormalizeTicker(t)
		s.quotes[t] = Quote{Ticker: t, Price: v, Time: at}
	}
}

// Delete removes any quote for ticker.
func (s *Store) Delete(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, NormalizeTicker(ticker))
}

func (s *Store) Price(ctx context.Context, ticker string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[NormalizeTicker(ticker)]
	if !ok {
		return Quote{}, fmt.Errorf("%s: %w", ticker, ErrUnavailable)
	}
	return q, nil
}
