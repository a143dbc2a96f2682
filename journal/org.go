package journal

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/ledger"
)

// FormatTradeOrg renders a closed trade as an Org-mode entry. Facts go in
// the PROPERTIES drawer; the Thesis/Execution/Review headings are left for
// the reader to fill in.
func FormatTradeOrg(t ledger.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s (%s)\n", t.Ticker, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":ID: %s\n", t.ID)
	if t.EntryID != "" {
		fmt.Fprintf(&b, ":ENTRY_ID: %s\n", t.EntryID)
	}
	fmt.Fprintf(&b, ":TICKER: %s\n", t.Ticker)
	fmt.Fprintf(&b, ":ACTION: %s\n", t.Action)
	fmt.Fprintf(&b, ":SHARES: %d\n", t.Shares)
	if t.IsClosed() {
		fmt.Fprintf(&b, ":ENTRY_PRICE: %.4f\n", t.EntryPrice)
		fmt.Fprintf(&b, ":EXIT_PRICE: %.4f\n", t.Price)
		fmt.Fprintf(&b, ":OPEN_TIME: %s\n", orgTime(t.EntryTime))
		fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", orgTime(t.Time))
		fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.PnL)
		fmt.Fprintf(&b, ":REALIZED_PL_PCT: %.2f\n", t.PnLPct)
		fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	} else {
		fmt.Fprintf(&b, ":ENTRY_PRICE: %.4f\n", t.Price)
		fmt.Fprintf(&b, ":OPEN_TIME: %s\n", orgTime(t.Time))
		fmt.Fprintf(&b, ":STOP_LOSS: %.4f\n", t.StopLoss)
		fmt.Fprintf(&b, ":TARGET: %.4f\n", t.Target)
	}
	if t.Annotation.Confidence != 0 {
		fmt.Fprintf(&b, ":CONFIDENCE: %.1f\n", t.Annotation.Confidence)
	}
	b.WriteString(":END:\n\n")

	b.WriteString("*** Thesis\n")
	if t.Annotation.Reasoning != "" {
		fmt.Fprintf(&b, "- %s\n\n", t.Annotation.Reasoning)
	} else {
		b.WriteString("- \n\n")
	}
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []ledger.Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

func orgTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ReportOrg is the data behind FormatReportOrg.
type ReportOrg struct {
	Title    string
	Strategy string
	Dataset  string
	Created  time.Time
	Report   analytics.Report
	Notes    []string
}

var reportOrgFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.Format("2006-01-02")
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var reportOrgTmpl = template.Must(template.New("report").Funcs(reportOrgFuncs).Parse(reportOrgTemplate))

// FormatReportOrg renders a performance report as an Org-mode heading.
func FormatReportOrg(v ReportOrg) (string, error) {
	var buf bytes.Buffer
	if err := reportOrgTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("org report: %w", err)
	}
	return buf.String(), nil
}

const reportOrgTemplate = `* REPORT: {{if .Title}}{{.Title}}{{else}}Portfolio{{end}}
:PROPERTIES:
:STRATEGY:    {{if .Strategy}}{{.Strategy}}{{else}}(strategy?){{end}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{date .Report.Start}}
:END_DATE:    {{date .Report.End}}
:START_BAL:   {{printf "%.2f" .Report.InitialCapital}}
:END_BAL:     {{printf "%.2f" .Report.FinalCapital}}
:RETURN_PCT:  {{printf "%.2f" .Report.TotalReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .Report.Drawdown.Pct}}
:TRADES:      {{.Report.Trades.Total}}
:WINS:        {{.Report.Trades.Winners}}
:LOSSES:      {{.Report.Trades.Losers}}
:WIN_RATE:    {{printf "%.2f" .Report.Trades.WinRate}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
| Metric            | Value |
|-------------------+-------|
| Total Return %    | {{printf "%.2f" .Report.TotalReturnPct}} |
| Annualized %      | {{printf "%.2f" .Report.AnnualizedReturnPct}} |
| Volatility %      | {{printf "%.2f" .Report.VolatilityPct}} |
| Sharpe            | {{printf "%.2f" .Report.Sharpe}} |
| Sortino           | {{printf "%.2f" .Report.Sortino}} |
| Max Drawdown %    | {{printf "%.2f" .Report.Drawdown.Pct}} |
| Calmar            | {{printf "%.2f" .Report.Calmar}} |
| Profit Factor     | {{printf "%.2f" .Report.Trades.ProfitFactor}} |
| Expectancy %      | {{printf "%.2f" .Report.Trades.Expectancy}} |
| Avg Holding (days)| {{printf "%.1f" .Report.AvgHoldingDays}} |

** Drawdown
- Peak:     {{date .Report.Drawdown.PeakTime}}
- Trough:   {{date .Report.Drawdown.TroughTime}} ({{.Report.Drawdown.Days}} days)
- Recovery: {{if .Report.Drawdown.Recovered}}{{date .Report.Drawdown.RecoveryTime}}{{else}}not recovered{{end}}

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Report.Trades.Winners}} |
| Losses  | {{.Report.Trades.Losers}} |
| Total   | {{.Report.Trades.Total}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
