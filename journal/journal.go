// Package journal persists the trade log, equity snapshots and ledger
// state.
package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rustyeddy/portfolio/ledger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Journal records trades and snapshots as they happen.
type Journal interface {
	RecordTrade(ledger.Trade) error
	RecordEquity(ledger.Snapshot) error
	Close() error
}

// Reader loads what a Journal recorded, in recording order.
type Reader interface {
	Trades(ctx context.Context) ([]ledger.Trade, error)
	Snapshots(ctx context.Context) ([]ledger.Snapshot, error)
}

// Discard is a Journal that records nothing.
type Discard struct{}

func (Discard) RecordTrade(ledger.Trade) error      { return nil }
func (Discard) RecordEquity(ledger.Snapshot) error { return nil }
func (Discard) Close() error                        { return nil }

// Multi fans every record out to each journal in order, stopping at the
// first error.
func Multi(js ...Journal) Journal { return multi(js) }

type multi []Journal

func (m multi) RecordTrade(t ledger.Trade) error {
	for _, j := range m {
		if err := j.RecordTrade(t); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) RecordEquity(s ledger.Snapshot) error {
	for _, j := range m {
		if err := j.RecordEquity(s); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}

// Memory keeps everything in memory. It implements Journal and Reader and
// is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	trades []ledger.Trade
	snaps  []ledger.Snapshot
	closed bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t ledger.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}

func (m *Memory) RecordEquity(s ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Memory) Trades(ctx context.Context) ([]ledger.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Trade(nil), m.trades...), nil
}

func (m *Memory) Snapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Snapshot(nil), m.snaps...), nil
}

// ClosedBetween filters trades to CLOSED legs with Time in [start, end).
func ClosedBetween(trades []ledger.Trade, start, end time.Time) []ledger.Trade {
	var out []ledger.Trade
	for _, t := range trades {
		if t.IsClosed() && !t.Time.Before(start) && t.Time.Before(end) {
			out = append(out, t)
		}
	}
	return out
}
