package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FileSource serves quotes from a CSV file that some external fetcher keeps
// up to date:
//
//	ticker,price[,time]
//
// The file is re-read whenever its modification time changes. A header row
// starting with "ticker" is allowed. Rows with a bad price are skipped so a
// single corrupt line cannot halt the live loop.
type FileSource struct {
	Path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	quotes  map[string]Quote
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Price(ctx context.Context, ticker string) (Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.refreshLocked(); err != nil {
		return Quote{}, err
	}
	q, ok := f.quotes[NormalizeTicker(ticker)]
	if !ok {
		return Quote{}, fmt.Errorf("%s: %w", ticker, ErrUnavailable)
	}
	return q, nil
}

func (f *FileSource) refreshLocked() error {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return fmt.Errorf("quotes file: %w", err)
	}
	if f.quotes != nil && fi.ModTime().Equal(f.modTime) && fi.Size() == f.size {
		return nil
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("quotes file: %w", err)
	}
	defer fh.Close()

	quotes, err := readQuotes(fh, fi.ModTime())
	if err != nil {
		return fmt.Errorf("quotes file %s: %w", f.Path, err)
	}

	f.quotes = quotes
	f.modTime = fi.ModTime()
	f.size = fi.Size()
	return nil
}

func readQuotes(r io.Reader, fallback time.Time) (map[string]Quote, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := make(map[string]Quote)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}
		ticker := NormalizeTicker(row[0])
		if ticker == "" || ticker == "TICKER" {
			continue
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil || ValidatePrice(px) != nil {
			continue
		}
		at := fallback
		if len(row) > 2 {
			if t, err := ParseTime(row[2]); err == nil {
				at = t
			}
		}
		out[ticker] = Quote{Ticker: ticker, Price: px, Time: at}
	}
}

// ParseTime accepts a date (2006-01-02), RFC3339 or RFC3339Nano timestamp.
// Dates are interpreted as midnight UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t, nil
}
