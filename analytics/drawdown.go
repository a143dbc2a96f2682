package analytics

import (
	"time"

	"github.com/rustyeddy/portfolio/ledger"
)

// Drawdown describes the deepest peak-to-trough decline in a snapshot log.
// Pct is negative (or 0). Times are zero when there was no drawdown, and
// RecoveryTime is zero when the peak was never regained.
type Drawdown struct {
	Pct          float64   `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	Peak         float64   `json:"peak" yaml:"peak"`
	PeakTime     time.Time `json:"peak_date" yaml:"peak_date"`
	Trough       float64   `json:"trough" yaml:"trough"`
	TroughTime   time.Time `json:"trough_date" yaml:"trough_date"`
	Recovered    bool      `json:"recovered" yaml:"recovered"`
	RecoveryTime time.Time `json:"recovery_date" yaml:"recovery_date"`
	Days         int       `json:"drawdown_days" yaml:"drawdown_days"`
}

// MaxDrawdown scans snapshots in order keeping the running maximum. The
// peak is the first snapshot reaching the maximum that precedes the trough;
// recovery is the first snapshot at or after the trough that regains it.
func MaxDrawdown(snaps []ledger.Snapshot) Drawdown {
	var dd Drawdown
	if len(snaps) == 0 {
		return dd
	}

	peakIdx, worstPeak, worstTrough := -1, -1, -1
	worst := 0.0
	for i, s := range snaps {
		v := s.TotalValue
		if !finite(v) {
			continue
		}
		if peakIdx < 0 || v > snaps[peakIdx].TotalValue {
			peakIdx = i
			continue
		}
		peak := snaps[peakIdx].TotalValue
		if peak <= 0 {
			continue
		}
		if d := (v - peak) / peak; d < worst {
			worst, worstPeak, worstTrough = d, peakIdx, i
		}
	}
	if worstTrough < 0 {
		return dd
	}

	p, tr := snaps[worstPeak], snaps[worstTrough]
	dd.Pct = worst * 100
	dd.Peak, dd.PeakTime = p.TotalValue, p.Time
	dd.Trough, dd.TroughTime = tr.TotalValue, tr.Time
	dd.Days = calendarDays(p.Time, tr.Time)

	for _, s := range snaps[worstTrough:] {
		if s.TotalValue >= p.TotalValue {
			dd.Recovered, dd.RecoveryTime = true, s.Time
			break
		}
	}
	return dd
}

// calendarDays counts whole days between the calendar dates of a and b.
func calendarDays(a, b time.Time) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
