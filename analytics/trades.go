package analytics

import (
	"math"

	"github.com/rustyeddy/portfolio/ledger"
)

// WinLossStats summarizes closed trades. Percentages are P/L percent of the
// entry price, averaged per trade.
type WinLossStats struct {
	Total        int     `json:"total_trades" yaml:"total_trades"`
	Winners      int     `json:"winning_trades" yaml:"winning_trades"`
	Losers       int     `json:"losing_trades" yaml:"losing_trades"`
	WinRate      float64 `json:"win_rate" yaml:"win_rate"`
	AvgWin       float64 `json:"avg_win" yaml:"avg_win"`
	AvgLoss      float64 `json:"avg_loss" yaml:"avg_loss"`
	Best         float64 `json:"best_trade" yaml:"best_trade"`
	Worst        float64 `json:"worst_trade" yaml:"worst_trade"`
	GrossProfit  float64 `json:"gross_profit" yaml:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss" yaml:"gross_loss"`
	ProfitFactor float64 `json:"profit_factor" yaml:"profit_factor"`
	Expectancy   float64 `json:"expectancy" yaml:"expectancy"`
}

// WinLoss partitions closed trades into winners (P/L > 0) and losers
// (P/L <= 0). OPEN legs in the input are ignored.
func WinLoss(trades []ledger.Trade) WinLossStats {
	var s WinLossStats
	var winPct, lossPct float64
	s.Best, s.Worst = math.Inf(-1), math.Inf(1)

	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		s.Total++
		if t.PnL > 0 {
			s.Winners++
			s.GrossProfit += t.PnL
			winPct += t.PnLPct
		} else {
			s.Losers++
			s.GrossLoss += t.PnL
			lossPct += t.PnLPct
		}
		s.Best = math.Max(s.Best, t.PnLPct)
		s.Worst = math.Min(s.Worst, t.PnLPct)
	}

	if s.Total == 0 {
		return WinLossStats{}
	}

	s.WinRate = float64(s.Winners) / float64(s.Total) * 100
	if s.Winners > 0 {
		s.AvgWin = winPct / float64(s.Winners)
	}
	if s.Losers > 0 {
		s.AvgLoss = lossPct / float64(s.Losers)
	}
	if s.GrossLoss != 0 {
		s.ProfitFactor = safe(s.GrossProfit / math.Abs(s.GrossLoss))
	}
	s.Expectancy = safe(s.WinRate/100*s.AvgWin + (1-s.WinRate/100)*s.AvgLoss)
	return s
}

// AvgHoldingDays is the mean number of calendar days between entry and
// exit over closed trades that carry both dates.
func AvgHoldingDays(trades []ledger.Trade) float64 {
	var sum, n int
	for _, t := range trades {
		if !t.IsClosed() || t.EntryTime.IsZero() || t.Time.IsZero() {
			continue
		}
		sum += calendarDays(t.EntryTime, t.Time)
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
