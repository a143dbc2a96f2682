package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/risk"
)

// Summary is what PrintResult shows about a run.
type Summary struct {
	RunID    string
	Created  time.Time
	Strategy string
	Dataset  string
	Policy   risk.Policy
	Result   Result
}

func PrintResult(w io.Writer, s Summary) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if s.RunID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", s.RunID)
	}
	if !s.Created.IsZero() {
		fmt.Fprintf(w, "Created:       %s\n", s.Created.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Strategy:      %s\n", s.Strategy)
	fmt.Fprintf(w, "Dataset:       %s\n", s.Dataset)
	fmt.Fprintf(w, "Days:          %d\n", s.Result.Days)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Risk Policy")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Risk per Trade: %.2f%%\n", s.Policy.MaxLossPct*100)
	fmt.Fprintf(w, "Max Position:  %.2f%%\n", s.Policy.MaxPositionPct*100)
	fmt.Fprintf(w, "Stop Loss:     %.2f%%\n", s.Policy.StopLossPct*100)
	fmt.Fprintf(w, "Target:        %.2f%%\n", s.Policy.TargetPct*100)
	fmt.Fprintf(w, "Max Heat:      %.2f%%\n", s.Policy.MaxPortfolioHeat*100)
	fmt.Fprintf(w, "Max Open:      %d\n", s.Policy.MaxOpenPositions)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Activity")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Entries:       %d\n", s.Result.Entries)
	fmt.Fprintf(w, "Exits:         %d\n", s.Result.Exits)
	fmt.Fprintf(w, "Rejected:      %d\n", s.Result.Rejected)
	fmt.Fprintf(w, "Final Cash:    %.2f\n", s.Result.FinalCash)
	fmt.Fprintln(w)

	analytics.PrintReport(w, s.Result.Report)
}
