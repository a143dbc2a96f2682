package strategies

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/portfolio/ledger"
	"github.com/rustyeddy/portfolio/market"
)

// Scripted replays pre-computed signals from a CSV file:
//
//	date,ticker,confidence,reasoning
//
// A signal fires on its date, at that day's price for the ticker. Signals
// for tickers without a price that day are dropped.
type Scripted struct {
	byDay   map[string][]scriptRow
	tickers []string
}

type scriptRow struct {
	ticker     string
	confidence float64
	reasoning  string
}

func LoadScripted(path string) (*Scripted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("signals file: %w", err)
	}
	defer f.Close()

	s, err := ReadScripted(f)
	if err != nil {
		return nil, fmt.Errorf("signals file %s: %w", path, err)
	}
	return s, nil
}

func ReadScripted(r io.Reader) (*Scripted, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := &Scripted{byDay: make(map[string][]scriptRow)}
	seen := make(map[string]bool)
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 3 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}

		t, err := market.ParseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad confidence %q: %w", line, rec[2], err)
		}
		row := scriptRow{ticker: market.NormalizeTicker(rec[1]), confidence: conf}
		if len(rec) > 3 {
			row.reasoning = strings.TrimSpace(rec[3])
		}
		if row.ticker == "" {
			continue
		}

		key := dayKey(t)
		s.byDay[key] = append(s.byDay[key], row)
		if !seen[row.ticker] {
			seen[row.ticker] = true
			s.tickers = append(s.tickers, row.ticker)
		}
	}
	sort.Strings(s.tickers)
	return s, nil
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (s *Scripted) Signals(ctx context.Context, at time.Time, prices market.Prices) ([]Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Signal
	for _, r := range s.byDay[dayKey(at)] {
		px, ok := prices.Get(r.ticker)
		if !ok {
			continue
		}
		out = append(out, Signal{
			Ticker: r.ticker,
			Price:  px,
			Annotation: ledger.Annotation{
				Confidence: r.confidence,
				Reasoning:  r.reasoning,
				Meta:       map[string]string{"strategy": "scripted"},
			},
		})
	}
	return out, nil
}

// Watchlist is every ticker that appears in the script.
func (s *Scripted) Watchlist() []string { return append([]string(nil), s.tickers...) }
