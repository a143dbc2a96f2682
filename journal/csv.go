package journal

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rustyeddy/portfolio/ledger"
)

var (
	tradeHeader = []string{
		"id", "entry_id", "ticker", "action", "status", "shares", "price", "amount",
		"time", "stop_loss", "target", "pnl", "pnl_pct", "reason", "entry_time",
		"entry_price", "confidence", "reasoning", "meta",
	}
	equityHeader = []string{"time", "total_value", "cash", "open_positions", "return_pct"}
)

// CSVJournal appends trades and snapshots to two CSV files.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

// NewCSV creates (truncating) both files and writes their headers.
func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	return openCSV(tradesPath, equityPath, os.O_TRUNC)
}

// AppendCSV opens both files for appending, creating them if needed. A
// header is written only to an empty file.
func AppendCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	return openCSV(tradesPath, equityPath, os.O_APPEND)
}

func openCSV(tradesPath, equityPath string, mode int) (*CSVJournal, error) {
	tf, err := os.OpenFile(tradesPath, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return nil, err
	}
	ef, err := os.OpenFile(equityPath, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	j := &CSVJournal{trades: csv.NewWriter(tf), equity: csv.NewWriter(ef), tf: tf, ef: ef}
	for _, h := range []struct {
		f      *os.File
		w      *csv.Writer
		header []string
	}{{tf, j.trades, tradeHeader}, {ef, j.equity, equityHeader}} {
		fi, err := h.f.Stat()
		if err != nil {
			_ = j.Close()
			return nil, err
		}
		if fi.Size() > 0 {
			continue
		}
		if err := j.write(h.w, h.header); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordTrade(t ledger.Trade) error {
	meta, err := encodeMeta(t.Annotation.Meta)
	if err != nil {
		return err
	}
	return j.write(j.trades, []string{
		t.ID,
		t.EntryID,
		t.Ticker,
		string(t.Action),
		string(t.Status),
		strconv.FormatInt(t.Shares, 10),
		f(t.Price),
		f(t.Amount),
		ts(t.Time),
		f(t.StopLoss),
		f(t.Target),
		f(t.PnL),
		f(t.PnLPct),
		string(t.Reason),
		ts(t.EntryTime),
		f(t.EntryPrice),
		f(t.Annotation.Confidence),
		t.Annotation.Reasoning,
		meta,
	})
}

func (j *CSVJournal) RecordEquity(s ledger.Snapshot) error {
	return j.write(j.equity, []string{
		ts(s.Time),
		f(s.TotalValue),
		f(s.Cash),
		strconv.Itoa(s.OpenPositions),
		f(s.ReturnPct),
	})
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	j.equity.Flush()
	var first error
	for _, err := range []error{j.trades.Error(), j.equity.Error(), j.tf.Close(), j.ef.Close()} {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CSVReader reads the files a CSVJournal wrote.
type CSVReader struct {
	TradesPath string
	EquityPath string
}

func (r CSVReader) Trades(ctx context.Context) ([]ledger.Trade, error) {
	recs, err := readCSV(r.TradesPath, len(tradeHeader))
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Trade, 0, len(recs))
	for i, rec := range recs {
		t, err := parseTrade(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", r.TradesPath, i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r CSVReader) Snapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	recs, err := readCSV(r.EquityPath, len(equityHeader))
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Snapshot, 0, len(recs))
	for i, rec := range recs {
		var p parser
		s := ledger.Snapshot{
			Time:          p.time(rec[0]),
			TotalValue:    p.float(rec[1]),
			Cash:          p.float(rec[2]),
			OpenPositions: int(p.int(rec[3])),
			ReturnPct:     p.float(rec[4]),
		}
		if p.err != nil {
			return nil, fmt.Errorf("%s line %d: %w", r.EquityPath, i+2, p.err)
		}
		out = append(out, s)
	}
	return out, nil
}

// readCSV returns the data rows (header skipped) of a file with n columns.
func readCSV(path string, n int) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	cr := csv.NewReader(fh)
	cr.FieldsPerRecord = n
	var out [][]string
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if first {
			first = false
			if rec[0] == "id" || rec[0] == "time" {
				continue
			}
		}
		out = append(out, rec)
	}
}

func parseTrade(rec []string) (ledger.Trade, error) {
	var p parser
	t := ledger.Trade{
		ID:         rec[0],
		EntryID:    rec[1],
		Ticker:     rec[2],
		Action:     ledger.Action(rec[3]),
		Status:     ledger.Status(rec[4]),
		Shares:     p.int(rec[5]),
		Price:      p.float(rec[6]),
		Amount:     p.float(rec[7]),
		Time:       p.time(rec[8]),
		StopLoss:   p.float(rec[9]),
		Target:     p.float(rec[10]),
		PnL:        p.float(rec[11]),
		PnLPct:     p.float(rec[12]),
		Reason:     ledger.ExitReason(rec[13]),
		EntryTime:  p.time(rec[14]),
		EntryPrice: p.float(rec[15]),
		Annotation: ledger.Annotation{
			Confidence: p.float(rec[16]),
			Reasoning:  rec[17],
		},
	}
	if p.err != nil {
		return ledger.Trade{}, p.err
	}
	meta, err := decodeMeta(rec[18])
	if err != nil {
		return ledger.Trade{}, err
	}
	t.Annotation.Meta = meta
	return t, nil
}

// parser keeps the first conversion error so a row can be parsed in one
// expression.
type parser struct{ err error }

func (p *parser) float(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) int(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) time(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func encodeMeta(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	return string(b), nil
}

func decodeMeta(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return m, nil
}

// f renders floats with the shortest exact representation so values
// survive a round trip.
func f(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
