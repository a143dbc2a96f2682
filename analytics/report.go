package analytics

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rustyeddy/portfolio/ledger"
)

// Report is the full set of performance statistics for one run.
type Report struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`

	TotalReturnPct      float64 `json:"total_return_pct" yaml:"total_return_pct"`
	AnnualizedReturnPct float64 `json:"annualized_return_pct" yaml:"annualized_return_pct"`
	VolatilityPct       float64 `json:"volatility_annualized_pct" yaml:"volatility_annualized_pct"`

	Sharpe                float64  `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	Sortino               float64  `json:"sortino_ratio" yaml:"sortino_ratio"`
	Drawdown              Drawdown `json:"drawdown" yaml:"drawdown"`
	Calmar                float64  `json:"calmar_ratio" yaml:"calmar_ratio"`
	ReturnVolatilityRatio float64  `json:"return_volatility_ratio" yaml:"return_volatility_ratio"`

	Trades WinLossStats `json:"trades" yaml:"trades"`

	TradingDays    int     `json:"trading_days" yaml:"trading_days"`
	TradesPerDay   float64 `json:"trades_per_day" yaml:"trades_per_day"`
	AvgHoldingDays float64 `json:"avg_holding_period_days" yaml:"avg_holding_period_days"`

	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	FinalCapital   float64 `json:"final_capital" yaml:"final_capital"`
	MaxCapital     float64 `json:"max_capital" yaml:"max_capital"`
	MinCapital     float64 `json:"min_capital" yaml:"min_capital"`
}

// Analyze computes a Report from the snapshot log and the trade log.
// riskFree is the annual risk-free rate (0.02 == 2%).
func Analyze(snaps []ledger.Snapshot, trades []ledger.Trade, initialCapital, riskFree float64) Report {
	r := Report{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		MaxCapital:     initialCapital,
		MinCapital:     initialCapital,
		Trades:         WinLoss(trades),
		AvgHoldingDays: AvgHoldingDays(trades),
		TradingDays:    len(snaps),
	}
	if len(snaps) == 0 {
		return r
	}

	r.Start, r.End = snaps[0].Time, snaps[len(snaps)-1].Time
	r.FinalCapital = snaps[len(snaps)-1].TotalValue
	r.MaxCapital, r.MinCapital = math.Inf(-1), math.Inf(1)
	for _, s := range snaps {
		r.MaxCapital = math.Max(r.MaxCapital, s.TotalValue)
		r.MinCapital = math.Min(r.MinCapital, s.TotalValue)
	}
	r.MaxCapital, r.MinCapital = safe(r.MaxCapital), safe(r.MinCapital)

	returns := Returns(snaps)
	r.TotalReturnPct = TotalReturnPct(initialCapital, r.FinalCapital)
	r.AnnualizedReturnPct = AnnualizedReturnPct(initialCapital, r.FinalCapital, len(snaps))
	r.VolatilityPct = VolatilityPct(returns)
	r.Sharpe = Sharpe(returns, riskFree)
	r.Sortino = Sortino(returns, riskFree)
	r.Drawdown = MaxDrawdown(snaps)
	r.Calmar = Calmar(r.TotalReturnPct, r.Drawdown.Pct)
	r.ReturnVolatilityRatio = ReturnVolatilityRatio(r.TotalReturnPct, r.VolatilityPct)
	r.TradesPerDay = float64(r.Trades.Total) / float64(r.TradingDays)
	return r
}

// Metrics flattens the report into one level of named values. Dates are
// RFC3339 strings or nil when absent.
func (r Report) Metrics() map[string]any {
	return map[string]any{
		"total_return_pct":          r.TotalReturnPct,
		"annualized_return_pct":     r.AnnualizedReturnPct,
		"volatility_annualized_pct": r.VolatilityPct,
		"sharpe_ratio":              r.Sharpe,
		"sortino_ratio":             r.Sortino,
		"max_drawdown_pct":          r.Drawdown.Pct,
		"peak_date":                 dateOrNil(r.Drawdown.PeakTime),
		"trough_date":               dateOrNil(r.Drawdown.TroughTime),
		"recovery_date":             dateOrNil(r.Drawdown.RecoveryTime),
		"drawdown_days":             r.Drawdown.Days,
		"calmar_ratio":              r.Calmar,
		"return_volatility_ratio":   r.ReturnVolatilityRatio,
		"total_trades":              r.Trades.Total,
		"winning_trades":            r.Trades.Winners,
		"losing_trades":             r.Trades.Losers,
		"win_rate":                  r.Trades.WinRate,
		"avg_win":                   r.Trades.AvgWin,
		"avg_loss":                  r.Trades.AvgLoss,
		"best_trade":                r.Trades.Best,
		"worst_trade":               r.Trades.Worst,
		"profit_factor":             r.Trades.ProfitFactor,
		"expectancy":                r.Trades.Expectancy,
		"trading_days":              r.TradingDays,
		"trades_per_day":            r.TradesPerDay,
		"avg_holding_period_days":   r.AvgHoldingDays,
		"initial_capital":           r.InitialCapital,
		"final_capital":             r.FinalCapital,
		"max_capital":               r.MaxCapital,
		"min_capital":               r.MinCapital,
	}
}

func dateOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Performance Report")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Start:         %s\n", fmtDate(r.Start))
	fmt.Fprintf(w, "End:           %s\n", fmtDate(r.End))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Returns")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total Return:  %.2f%%\n", r.TotalReturnPct)
	fmt.Fprintf(w, "Annualized:    %.2f%%\n", r.AnnualizedReturnPct)
	fmt.Fprintf(w, "Volatility:    %.2f%%\n", r.VolatilityPct)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Risk")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Sharpe:        %.2f\n", r.Sharpe)
	fmt.Fprintf(w, "Sortino:       %.2f\n", r.Sortino)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.Drawdown.Pct)
	if r.Drawdown.Pct < 0 {
		fmt.Fprintf(w, "  Peak:        %.2f on %s\n", r.Drawdown.Peak, fmtDate(r.Drawdown.PeakTime))
		fmt.Fprintf(w, "  Trough:      %.2f on %s (%d days)\n", r.Drawdown.Trough, fmtDate(r.Drawdown.TroughTime), r.Drawdown.Days)
		fmt.Fprintf(w, "  Recovered:   %s\n", fmtDate(r.Drawdown.RecoveryTime))
	}
	fmt.Fprintf(w, "Calmar:        %.2f\n", r.Calmar)
	fmt.Fprintf(w, "Return/Vol:    %.2f\n", r.ReturnVolatilityRatio)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades.Total)
	fmt.Fprintf(w, "Wins:          %d\n", r.Trades.Winners)
	fmt.Fprintf(w, "Losses:        %d\n", r.Trades.Losers)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.Trades.WinRate)
	fmt.Fprintf(w, "Avg Win:       %.2f%%\n", r.Trades.AvgWin)
	fmt.Fprintf(w, "Avg Loss:      %.2f%%\n", r.Trades.AvgLoss)
	fmt.Fprintf(w, "Best / Worst:  %.2f%% / %.2f%%\n", r.Trades.Best, r.Trades.Worst)
	if r.Trades.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", r.Trades.ProfitFactor)
	}
	fmt.Fprintf(w, "Expectancy:    %.2f%%\n", r.Trades.Expectancy)
	fmt.Fprintf(w, "Trading Days:  %d\n", r.TradingDays)
	fmt.Fprintf(w, "Trades/Day:    %.2f\n", r.TradesPerDay)
	fmt.Fprintf(w, "Avg Holding:   %.1f days\n", r.AvgHoldingDays)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Capital")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Initial:       %.2f\n", r.InitialCapital)
	fmt.Fprintf(w, "Final:         %.2f\n", r.FinalCapital)
	fmt.Fprintf(w, "Max:           %.2f\n", r.MaxCapital)
	fmt.Fprintf(w, "Min:           %.2f\n", r.MinCapital)
	fmt.Fprintln(w)
}
