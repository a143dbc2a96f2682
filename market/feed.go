package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Bar is the set of closing prices for one trading day.
type Bar struct {
	Time   time.Time
	Prices Prices
}

// BarFeed yields bars in time order. Implementations return
// (ok=false, err=nil) at EOF.
type BarFeed interface {
	Next() (b Bar, ok bool, err error)
	Close() error
}

// CSVBarFeed reads daily closing prices:
//
//	date,ticker,close
//
// where date is 2006-01-02, RFC3339 or RFC3339Nano. Rows for the same date
// are grouped into one Bar, so the file must be sorted by date; a date that
// goes backwards is an error. A header row ("date,...") is allowed and
// empty/short rows are skipped.
type CSVBarFeed struct {
	f *os.File
	r *csv.Reader

	pending  *row
	sawFirst bool
	last     time.Time
	done     bool
}

type row struct {
	t      time.Time
	ticker string
	close  float64
}

func NewCSVBarFeed(path string) (*CSVBarFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newCSVBarFeed(f), nil
}

func newCSVBarFeed(f *os.File) *CSVBarFeed {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &CSVBarFeed{f: f, r: r}
}

func (c *CSVBarFeed) Close() error {
	if c.f != nil {
		return c.f.Close()
	}
	return nil
}

func (c *CSVBarFeed) Next() (Bar, bool, error) {
	if c.done && c.pending == nil {
		return Bar{}, false, nil
	}

	first := c.pending
	c.pending = nil
	if first == nil {
		var err error
		first, err = c.readRow()
		if err != nil {
			return Bar{}, false, err
		}
		if first == nil {
			return Bar{}, false, nil
		}
	}

	if !c.last.IsZero() && first.t.Before(c.last) {
		return Bar{}, false, fmt.Errorf("bars out of order: %s after %s",
			first.t.Format(time.RFC3339), c.last.Format(time.RFC3339))
	}

	bar := Bar{Time: first.t, Prices: Prices{first.ticker: first.close}}
	for {
		next, err := c.readRow()
		if err != nil {
			return Bar{}, false, err
		}
		if next == nil {
			break
		}
		if !next.t.Equal(bar.Time) {
			c.pending = next
			break
		}
		bar.Prices[next.ticker] = next.close
	}

	c.last = bar.Time
	return bar, true, nil
}

// readRow returns the next usable row, or nil at EOF.
func (c *CSVBarFeed) readRow() (*row, error) {
	for {
		rec, err := c.r.Read()
		if err == io.EOF {
			c.done = true
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}

		if !c.sawFirst {
			c.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
				continue
			}
		}

		if len(rec) < 3 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t, err := ParseTime(rec[0])
		if err != nil {
			return nil, err
		}
		ticker := NormalizeTicker(rec[1])
		if ticker == "" {
			continue
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad close %q: %w", rec[2], err)
		}
		if err := ValidatePrice(px); err != nil {
			return nil, fmt.Errorf("%s %s: %w", rec[0], ticker, err)
		}
		return &row{t: t, ticker: ticker, close: px}, nil
	}
}

// BarSlice is an in-memory BarFeed.
type BarSlice struct {
	Bars   []Bar
	i      int
	Closed bool
}

func (s *BarSlice) Next() (Bar, bool, error) {
	if s.i >= len(s.Bars) {
		return Bar{}, false, nil
	}
	b := s.Bars[s.i]
	s.i++
	return b, true, nil
}

func (s *BarSlice) Close() error {
	s.Closed = true
	return nil
}
