package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVJournalRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tp, ep := filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tp, ep)
	require.NoError(t, err)
	for _, tr := range sampleTrades() {
		require.NoError(t, j.RecordTrade(tr))
	}
	for _, s := range sampleSnapshots() {
		require.NoError(t, j.RecordEquity(s))
	}
	require.NoError(t, j.Close())

	raw, err := os.ReadFile(tp)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,entry_id,ticker,"))
	assert.Contains(t, lines[1], `"breakout, volume"`)

	r := CSVReader{TradesPath: tp, EquityPath: ep}
	trades, err := r.Trades(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleTrades(), trades)

	snaps, err := r.Snapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshots(), snaps)
}

func TestCSVJournalHeadersOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tp, ep := filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv")
	j, err := NewCSV(tp, ep)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	raw, err := os.ReadFile(ep)
	require.NoError(t, err)
	assert.Equal(t, "time,total_value,cash,open_positions,return_pct\n", string(raw))

	trades, err := CSVReader{TradesPath: tp}.Trades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestCSVReaderErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := CSVReader{TradesPath: filepath.Join(dir, "missing.csv")}.Trades(context.Background())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("time,total_value,cash,open_positions,return_pct\nnot-a-time,1,1,0,0\n"), 0o644))
	_, err = CSVReader{EquityPath: bad}.Snapshots(context.Background())
	assert.ErrorContains(t, err, "line 2")
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(filepath.Join(t.TempDir(), "no", "such", "dir.csv"), "x.csv")
	assert.Error(t, err)
}

func TestAppendCSVKeepsHistory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tp, ep := filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv")
	trades, snaps := sampleTrades(), sampleSnapshots()

	j, err := AppendCSV(tp, ep)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(trades[0]))
	require.NoError(t, j.RecordEquity(snaps[0]))
	require.NoError(t, j.Close())

	j, err = AppendCSV(tp, ep)
	require.NoError(t, err)
	require.NoError(t, j.RecordTrade(trades[1]))
	require.NoError(t, j.Close())

	raw, err := os.ReadFile(tp)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "id,entry_id,ticker,"))

	r := CSVReader{TradesPath: tp, EquityPath: ep}
	got, err := r.Trades(context.Background())
	require.NoError(t, err)
	assert.Equal(t, trades[:2], got)

	gotSnaps, err := r.Snapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snaps[:1], gotSnaps)

	// NewCSV starts over
	j, err = NewCSV(tp, ep)
	require.NoError(t, err)
	require.NoError(t, j.Close())
	got, err = r.Trades(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
