package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/portfolio/analytics"
	"github.com/rustyeddy/portfolio/ledger"
)

func TestFormatTradeOrgClosed(t *testing.T) {
	t.Parallel()

	out := FormatTradeOrg(sampleTrades()[1])

	assert.Contains(t, out, "** Trade: AAPL (01HV0000)")
	assert.Contains(t, out, ":TRADE_ID: 01HV000000000000000000SEL1")
	assert.Contains(t, out, ":ENTRY_ID: 01HV000000000000000000BUY1")
	assert.Contains(t, out, ":SHARES: 100")
	assert.Contains(t, out, ":ENTRY_PRICE: 150.2500")
	assert.Contains(t, out, ":EXIT_PRICE: 172.8000")
	assert.Contains(t, out, ":OPEN_TIME: 2024-03-15T00:00:00Z")
	assert.Contains(t, out, ":CLOSE_TIME: 2024-03-19T00:00:00Z")
	assert.Contains(t, out, ":REALIZED_PL: 2255.00")
	assert.Contains(t, out, ":REASON: TARGET_REACHED")
	assert.Contains(t, out, ":CONFIDENCE: 8.0")
	assert.Contains(t, out, "*** Thesis\n- breakout, volume")
}

func TestFormatTradeOrgOpen(t *testing.T) {
	t.Parallel()

	out := FormatTradeOrg(sampleTrades()[0])
	assert.Contains(t, out, ":STOP_LOSS: 135.2250")
	assert.Contains(t, out, ":TARGET: 172.7875")
	assert.NotContains(t, out, ":REASON:")
}

func TestFormatTradeOrgStructure(t *testing.T) {
	t.Parallel()

	lines := strings.Split(FormatTradeOrg(ledger.Trade{ID: "short", Ticker: "X", Status: ledger.Closed}), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "** Trade: X (short)", lines[0])

	idx := func(s string) int {
		for i, l := range lines {
			if l == s {
				return i
			}
		}
		return -1
	}
	assert.Greater(t, idx(":END:"), idx(":PROPERTIES:"))
	assert.Greater(t, idx("*** Thesis"), idx(":END:"))
	assert.Greater(t, idx("*** Execution"), idx("*** Thesis"))
	assert.Greater(t, idx("*** Review"), idx("*** Execution"))
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	out := FormatTradesOrg(sampleTrades())
	assert.Equal(t, 2, strings.Count(out, "** Trade:"))
	assert.NotContains(t, out, "\n\n\n\n")
}

func TestFormatReportOrg(t *testing.T) {
	t.Parallel()

	r := analytics.Analyze(sampleSnapshots(), sampleTrades(), 100000, 0.02)
	out, err := FormatReportOrg(ReportOrg{Title: "Q1", Strategy: "scripted", Created: t0, Report: r, Notes: []string{"one winner"}})
	require.NoError(t, err)

	assert.Contains(t, out, "* REPORT: Q1")
	assert.Contains(t, out, ":STRATEGY:    scripted")
	assert.Contains(t, out, ":DATASET:     (dataset?)")
	assert.Contains(t, out, ":START_BAL:   100000.00")
	assert.Contains(t, out, ":END_BAL:     102255.00")
	assert.Contains(t, out, ":TRADES:      1")
	assert.Contains(t, out, ":CREATED:     [2024-03-15 Fri 00:00]")
	assert.Contains(t, out, "- Recovery: not recovered")
	assert.Contains(t, out, "** Observations\n- one winner")
}
