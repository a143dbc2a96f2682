package ledger

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portfolio/market"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.AddDate(0, 0, n) }

func newLedger(t *testing.T, cash float64) *Ledger {
	t.Helper()
	l, err := New(cash)
	require.NoError(t, err)
	return l
}

func enter(t *testing.T, l *Ledger, ticker string, shares int64, price float64, at time.Time) Trade {
	t.Helper()
	tr, err := l.Enter(EntryOrder{
		Ticker:   ticker,
		Shares:   shares,
		Price:    price,
		StopLoss: price * 0.9,
		Target:   price * 1.15,
		Time:     at,
	})
	require.NoError(t, err)
	return tr
}

func TestNewRejectsBadCash(t *testing.T) {
	t.Parallel()

	for _, c := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := New(c)
		assert.ErrorIs(t, err, ErrInvalidOrder)
	}
}

func TestEnterAndExit(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	ann := Annotation{Confidence: 8, Reasoning: "breakout", Meta: map[string]string{"src": "test"}}

	buy, err := l.Enter(EntryOrder{
		Ticker: "aapl", Shares: 100, Price: 150, StopLoss: 135, Target: 172.5, Time: day(0), Annotation: ann,
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", buy.Ticker)
	assert.Equal(t, Buy, buy.Action)
	assert.Equal(t, Open, buy.Status)
	assert.InDelta(t, 15000.0, buy.Amount, 1e-9)
	assert.InDelta(t, 85000.0, l.Cash(), 1e-9)
	assert.True(t, l.Holds("AAPL"))
	assert.Equal(t, 1, l.OpenCount())

	p, ok := l.Position("aapl")
	require.True(t, ok)
	assert.Equal(t, buy.ID, p.EntryTradeID)
	assert.Equal(t, "breakout", p.Annotation.Reasoning)

	sell, err := l.Exit("AAPL", 160, day(3), "")
	require.NoError(t, err)

	assert.Equal(t, Sell, sell.Action)
	assert.Equal(t, Closed, sell.Status)
	assert.Equal(t, Manual, sell.Reason)
	assert.Equal(t, buy.ID, sell.EntryID)
	assert.InDelta(t, 1000.0, sell.PnL, 1e-9)
	assert.InDelta(t, 6.6667, sell.PnLPct, 1e-4)
	assert.Equal(t, day(0), sell.EntryTime)
	assert.InDelta(t, 150.0, sell.EntryPrice, 1e-12)
	assert.Equal(t, 72*time.Hour, sell.HoldingPeriod())
	assert.Equal(t, "test", sell.Annotation.Meta["src"])

	assert.InDelta(t, 101000.0, l.Cash(), 1e-9)
	assert.False(t, l.Holds("AAPL"))
	assert.Len(t, l.Trades(), 2)
	assert.Len(t, l.ClosedTrades(), 1)
}

func TestEnterErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		o    EntryOrder
		want error
	}{
		{"zero shares", EntryOrder{Ticker: "X", Shares: 0, Price: 10, StopLoss: 9, Target: 12}, ErrInvalidOrder},
		{"bad price", EntryOrder{Ticker: "X", Shares: 1, Price: math.NaN(), StopLoss: 9, Target: 12}, ErrInvalidOrder},
		{"no ticker", EntryOrder{Ticker: " ", Shares: 1, Price: 10, StopLoss: 9, Target: 12}, ErrInvalidOrder},
		{"stop above entry", EntryOrder{Ticker: "X", Shares: 1, Price: 10, StopLoss: 11, Target: 12}, ErrInvalidLevels},
		{"target below entry", EntryOrder{Ticker: "X", Shares: 1, Price: 10, StopLoss: 9, Target: 10}, ErrInvalidLevels},
		{"too expensive", EntryOrder{Ticker: "X", Shares: 101, Price: 10, StopLoss: 9, Target: 12}, ErrInsufficientCash},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newLedger(t, 1000)
			_, err := l.Enter(tt.o)
			assert.ErrorIs(t, err, tt.want)
			assert.InDelta(t, 1000.0, l.Cash(), 0)
			assert.Empty(t, l.Trades())
			assert.Zero(t, l.OpenCount())
		})
	}
}

func TestEnterExactCash(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 1000)
	enter(t, l, "X", 100, 10, day(0))
	assert.Zero(t, l.Cash())
}

func TestNoDoubleEntry(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	enter(t, l, "AAPL", 10, 100, day(0))
	before := l.State()

	_, err := l.Enter(EntryOrder{Ticker: "AAPL", Shares: 5, Price: 101, StopLoss: 90, Target: 120, Time: day(1)})
	assert.ErrorIs(t, err, ErrAlreadyHeld)
	assert.Equal(t, before, l.State())
}

func TestExitErrors(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	_, err := l.Exit("AAPL", 100, day(0), Manual)
	assert.ErrorIs(t, err, ErrNoOpenPosition)

	enter(t, l, "AAPL", 10, 100, day(0))
	_, err = l.Exit("AAPL", 0, day(1), Manual)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.True(t, l.Holds("AAPL"))
}

func TestApplyExitsAllOrNothing(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	enter(t, l, "AAA", 10, 100, day(0))
	enter(t, l, "BBB", 10, 50, day(0))
	before := l.State()

	_, err := l.ApplyExits([]ExitSignal{
		{Ticker: "AAA", Price: 120, Reason: TargetReached, Time: day(1)},
		{Ticker: "ZZZ", Price: 10, Reason: StopLoss, Time: day(1)},
	})
	assert.ErrorIs(t, err, ErrNoOpenPosition)
	assert.Equal(t, before, l.State())

	_, err = l.ApplyExits([]ExitSignal{
		{Ticker: "AAA", Price: 120, Reason: TargetReached, Time: day(1)},
		{Ticker: "AAA", Price: 121, Reason: TargetReached, Time: day(1)},
	})
	assert.Error(t, err)
	assert.Equal(t, before, l.State())

	trades, err := l.ApplyExits([]ExitSignal{
		{Ticker: "AAA", Price: 120, Reason: TargetReached, Time: day(1)},
		{Ticker: "BBB", Price: 44, Reason: StopLoss, Time: day(1)},
	})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, TargetReached, trades[0].Reason)
	assert.Equal(t, StopLoss, trades[1].Reason)
	assert.InDelta(t, 100000+200-60, l.Cash(), 1e-9)
}

func TestMarkFallsBackToEntryPrice(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	enter(t, l, "AAA", 100, 50, day(0))
	enter(t, l, "BBB", 10, 200, day(0))

	s := l.Mark(market.Prices{"AAA": 55, "BBB": math.NaN()}, day(1))
	// 93000 cash + 100*55 + 10*200 (entry fallback)
	assert.InDelta(t, 100500.0, s.TotalValue, 1e-9)
	assert.InDelta(t, 93000.0, s.Cash, 1e-9)
	assert.Equal(t, 2, s.OpenPositions)
	assert.InDelta(t, 0.5, s.ReturnPct, 1e-9)
	assert.Empty(t, l.Snapshots(), "Mark must not record")

	assert.InDelta(t, s.TotalValue, l.Value(market.Prices{"AAA": 55}), 1e-9)

	l.Snapshot(market.Prices{"AAA": 55}, day(1))
	l.Snapshot(nil, day(2))
	snaps := l.Snapshots()
	require.Len(t, snaps, 2)
	assert.InDelta(t, 100000.0, snaps[1].TotalValue, 1e-9)
}

func TestReadersReturnCopies(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	_, err := l.Enter(EntryOrder{
		Ticker: "AAA", Shares: 1, Price: 10, StopLoss: 9, Target: 12, Time: day(0),
		Annotation: Annotation{Meta: map[string]string{"k": "v"}},
	})
	require.NoError(t, err)

	ps := l.Positions()
	ps[0].Annotation.Meta["k"] = "changed"
	ps[0].Shares = 99
	trades := l.Trades()
	trades[0].Annotation.Meta["k"] = "changed"

	p, _ := l.Position("AAA")
	assert.Equal(t, int64(1), p.Shares)
	assert.Equal(t, "v", p.Annotation.Meta["k"])
	assert.Equal(t, "v", l.Trades()[0].Annotation.Meta["k"])
}

// cash + Σ cost of open positions == initial + realized P/L after any
// sequence of operations.
func TestConservation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	tickers := []string{"AAA", "BBB", "CCC", "DDD"}
	l := newLedger(t, 50000)

	for i := 0; i < 2000; i++ {
		tk := tickers[rng.Intn(len(tickers))]
		price := 1 + rng.Float64()*200
		if l.Holds(tk) {
			_, err := l.Exit(tk, price, day(i), StopLoss)
			require.NoError(t, err)
		} else {
			_, _ = l.Enter(EntryOrder{
				Ticker: tk, Shares: int64(1 + rng.Intn(100)), Price: price,
				StopLoss: price * 0.9, Target: price * 1.1, Time: day(i),
			})
		}

		var openCost, realized float64
		for _, p := range l.Positions() {
			openCost += p.Cost()
		}
		for _, tr := range l.ClosedTrades() {
			realized += tr.PnL
		}
		require.InDelta(t, 50000+realized, l.Cash()+openCost, 1e-6, "step %d", i)
		require.GreaterOrEqual(t, l.Cash(), 0.0)
	}
	require.NoError(t, Verify(l.State()))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 1e6)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk := string(rune('A' + i))
			for j := 0; j < 50; j++ {
				_, _ = l.Enter(EntryOrder{Ticker: tk, Shares: 1, Price: 10, StopLoss: 9, Target: 11, Time: day(j)})
				_ = l.Value(market.Prices{tk: 10.5})
				_, _ = l.Exit(tk, 10.5, day(j), Manual)
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, l.OpenCount())
	assert.InDelta(t, 1e6+8*50*0.5, l.Cash(), 1e-6)
}

func TestSnapshotOnePerInstant(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 100000)
	enter(t, l, "AAA", 100, 50, day(0))
	l.Snapshot(market.Prices{"AAA": 50}, day(0))
	l.Snapshot(market.Prices{"AAA": 52}, day(1))

	_, err := l.Exit("AAA", 52, day(1), EndOfRun)
	require.NoError(t, err)
	s := l.Snapshot(market.Prices{"AAA": 52}, day(1))

	snaps := l.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, s, snaps[1])
	assert.Equal(t, 0, snaps[1].OpenPositions)
	assert.InDelta(t, 100200.0, snaps[1].TotalValue, 1e-9)

	last, ok := l.LastSnapshot()
	require.True(t, ok)
	assert.Equal(t, day(1), last.Time)

	_, ok = newLedger(t, 1).LastSnapshot()
	assert.False(t, ok)
}

func TestViewIsConsistent(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 1e6)
	prices := market.Prices{"A": 12, "B": 12, "C": 12, "D": 12}

	var wg sync.WaitGroup
	for _, tk := range prices.Tickers() {
		wg.Add(1)
		go func(tk string) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = l.Enter(EntryOrder{Ticker: tk, Shares: 10, Price: 10, StopLoss: 9, Target: 13, Time: day(0)})
				_, _ = l.Exit(tk, 12, day(0), Manual)
			}
		}(tk)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		snap, positions := l.View(prices, day(0))
		require.Len(t, positions, snap.OpenPositions)
		invested := 0.0
		for _, p := range positions {
			invested += p.Value(12)
		}
		require.InDelta(t, snap.Cash+invested, snap.TotalValue, 1e-6)

		select {
		case <-done:
			return
		default:
		}
	}
}

func TestEnterFarFutureTime(t *testing.T) {
	t.Parallel()

	l := newLedger(t, 1000)
	far := time.Date(20000, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NotPanics(t, func() { enter(t, l, "AAA", 1, 10, far) })
	assert.Equal(t, far, l.Trades()[0].Time)
}
