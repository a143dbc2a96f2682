package analytics

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portfolio/ledger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func snaps(values ...float64) []ledger.Snapshot {
	out := make([]ledger.Snapshot, len(values))
	for i, v := range values {
		out[i] = ledger.Snapshot{Time: t0.AddDate(0, 0, i), TotalValue: v}
	}
	return out
}

func closed(pnl, pnlPct float64, entry, exit time.Time) ledger.Trade {
	return ledger.Trade{
		Action: ledger.Sell, Status: ledger.Closed,
		PnL: pnl, PnLPct: pnlPct, EntryTime: entry, Time: exit,
	}
}

func TestReturns(t *testing.T) {
	t.Parallel()

	got := Returns(snaps(100, 110, 0, 50, 55))
	// 100->110, then 110->0, 0->50 is skipped, 50->55
	require.Len(t, got, 3)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -1.0, got[1], 1e-12)
	assert.InDelta(t, 0.10, got[2], 1e-12)

	assert.Empty(t, Returns(snaps(100)))
	assert.Empty(t, Returns(nil))
}

func TestSharpeSortinoZeroVariance(t *testing.T) {
	t.Parallel()

	flat := []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	assert.Zero(t, Sharpe(flat, 0.02))
	assert.Zero(t, Sortino(flat, 0.02))

	assert.Zero(t, Sharpe(nil, 0.02))
	assert.Zero(t, Sharpe([]float64{0.05}, 0.02))
	assert.Zero(t, Sortino([]float64{0.05, -0.01}, 0))
}

func TestSharpeSortino(t *testing.T) {
	t.Parallel()

	r := []float64{0.01, -0.02, 0.03, -0.01, 0.02}
	// mean 0.006, sample sd sqrt(0.00043) with rf = 0
	want := math.Sqrt(252) * 0.006 / math.Sqrt(0.00043)
	assert.InDelta(t, want, Sharpe(r, 0), 1e-9)

	// downside {-0.02,-0.01}: mean -0.015, sample sd sqrt(0.00005)
	wantSortino := math.Sqrt(252) * 0.006 / math.Sqrt(0.00005)
	assert.InDelta(t, wantSortino, Sortino(r, 0), 1e-9)

	// The risk-free rate lowers both.
	assert.Less(t, Sharpe(r, 0.05), Sharpe(r, 0))
}

func TestMaxDrawdown(t *testing.T) {
	t.Parallel()

	dd := MaxDrawdown(snaps(100000, 101000, 99000, 102000, 105000))
	assert.InDelta(t, -1.980198, dd.Pct, 1e-6)
	assert.InDelta(t, 101000.0, dd.Peak, 0)
	assert.Equal(t, t0.AddDate(0, 0, 1), dd.PeakTime)
	assert.InDelta(t, 99000.0, dd.Trough, 0)
	assert.Equal(t, t0.AddDate(0, 0, 2), dd.TroughTime)
	assert.True(t, dd.Recovered)
	assert.Equal(t, t0.AddDate(0, 0, 3), dd.RecoveryTime)
	assert.Equal(t, 1, dd.Days)
}

func TestMaxDrawdownEdges(t *testing.T) {
	t.Parallel()

	rising := MaxDrawdown(snaps(100, 101, 102))
	assert.Zero(t, rising.Pct)
	assert.True(t, rising.PeakTime.IsZero())
	assert.True(t, rising.TroughTime.IsZero())

	assert.Equal(t, Drawdown{}, MaxDrawdown(nil))

	never := MaxDrawdown(snaps(100, 120, 90, 110))
	assert.InDelta(t, -25.0, never.Pct, 1e-9)
	assert.False(t, never.Recovered)
	assert.True(t, never.RecoveryTime.IsZero())

	// The first of equal peaks is the peak.
	eq := MaxDrawdown(snaps(100, 100, 80))
	assert.Equal(t, t0, eq.PeakTime)
	assert.Equal(t, 2, eq.Days)
}

func TestWinLoss(t *testing.T) {
	t.Parallel()

	trades := []ledger.Trade{
		closed(1000, 5, time.Time{}, time.Time{}),
		closed(-500, -2, time.Time{}, time.Time{}),
		closed(2000, 8, time.Time{}, time.Time{}),
		{Action: ledger.Buy, Status: ledger.Open, PnL: 99999},
	}
	s := WinLoss(trades)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Winners)
	assert.Equal(t, 1, s.Losers)
	assert.InDelta(t, 66.67, s.WinRate, 0.01)
	assert.InDelta(t, 6.5, s.AvgWin, 1e-12)
	assert.InDelta(t, -2.0, s.AvgLoss, 1e-12)
	assert.InDelta(t, 6.0, s.ProfitFactor, 1e-12)
	assert.InDelta(t, 3.6667, s.Expectancy, 1e-4)
	assert.InDelta(t, 8.0, s.Best, 0)
	assert.InDelta(t, -2.0, s.Worst, 0)
}

func TestWinLossDegenerate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, WinLossStats{}, WinLoss(nil))

	onlyWins := WinLoss([]ledger.Trade{closed(10, 1, time.Time{}, time.Time{})})
	assert.Zero(t, onlyWins.ProfitFactor)
	assert.Zero(t, onlyWins.AvgLoss)
	assert.InDelta(t, 100.0, onlyWins.WinRate, 0)

	// Break-even counts as a loss.
	flat := WinLoss([]ledger.Trade{closed(0, 0, time.Time{}, time.Time{})})
	assert.Equal(t, 1, flat.Losers)
	assert.Zero(t, flat.ProfitFactor)
}

func TestCalmar(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 2.5, Calmar(5, -2), 1e-12)
	assert.Zero(t, Calmar(5, 0))
}

func TestAvgHoldingDays(t *testing.T) {
	t.Parallel()

	trades := []ledger.Trade{
		closed(1, 1, t0, t0.AddDate(0, 0, 3)),
		closed(1, 1, t0.Add(20*time.Hour), t0.AddDate(0, 0, 2).Add(time.Hour)),
		closed(1, 1, time.Time{}, t0.AddDate(0, 0, 9)),
	}
	// 3 and 2 calendar days; the third trade has no entry date.
	assert.InDelta(t, 2.5, AvgHoldingDays(trades), 1e-12)
	assert.Zero(t, AvgHoldingDays(nil))
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	s := snaps(100000, 101000, 99000, 102000, 105000)
	trades := []ledger.Trade{
		closed(1000, 5, t0, t0.AddDate(0, 0, 2)),
		closed(-500, -2, t0, t0.AddDate(0, 0, 1)),
		closed(2000, 8, t0.AddDate(0, 0, 1), t0.AddDate(0, 0, 4)),
	}
	r := Analyze(s, trades, 100000, 0.02)

	assert.InDelta(t, 5.0, r.TotalReturnPct, 1e-9)
	assert.Equal(t, 5, r.TradingDays)
	assert.InDelta(t, 0.6, r.TradesPerDay, 1e-12)
	assert.InDelta(t, 105000.0, r.FinalCapital, 0)
	assert.InDelta(t, 105000.0, r.MaxCapital, 0)
	assert.InDelta(t, 99000.0, r.MinCapital, 0)
	assert.InDelta(t, 5.0/1.980198, r.Calmar, 1e-4)
	assert.InDelta(t, 2.0, r.AvgHoldingDays, 1e-12)
	assert.Greater(t, r.AnnualizedReturnPct, r.TotalReturnPct)
	assert.Greater(t, r.VolatilityPct, 0.0)
	assert.Equal(t, t0, r.Start)

	m := r.Metrics()
	assert.Equal(t, "2024-01-02T00:00:00Z", m["peak_date"])
	assert.Equal(t, 3, m["total_trades"])
	assert.InDelta(t, 66.67, m["win_rate"].(float64), 0.01)
}

func TestAnalyzeEmpty(t *testing.T) {
	t.Parallel()

	r := Analyze(nil, nil, 1000, 0.02)
	assert.Zero(t, r.TotalReturnPct)
	assert.InDelta(t, 1000.0, r.FinalCapital, 0)
	assert.Nil(t, r.Metrics()["peak_date"])
	for k, v := range r.Metrics() {
		if f, ok := v.(float64); ok {
			assert.False(t, math.IsNaN(f) || math.IsInf(f, 0), k)
		}
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	t.Parallel()

	s := snaps(100000, 100500, 99800, 101200, 100900, 102500)
	trades := []ledger.Trade{
		closed(300, 3, t0, t0.AddDate(0, 0, 2)),
		closed(-100, -1, t0, t0.AddDate(0, 0, 3)),
	}
	a := Analyze(s, trades, 100000, 0.02)
	b := Analyze(s, trades, 100000, 0.02)
	assert.Equal(t, a, b)
	assert.Equal(t, math.Float64bits(a.Sharpe), math.Float64bits(b.Sharpe))
	assert.Equal(t, math.Float64bits(a.Sortino), math.Float64bits(b.Sortino))
}

func TestPrintReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintReport(&buf, Analyze(snaps(100000, 101000, 99000, 102000), nil, 100000, 0.02))
	out := buf.String()
	assert.Contains(t, out, "Performance Report")
	assert.Contains(t, out, "Max Drawdown:  -1.98%")
	assert.Contains(t, out, "Peak:        101000.00 on 2024-01-02")
}
