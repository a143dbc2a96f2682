package ledger

import "time"

// Annotation is caller-supplied context carried on positions and trades.
// The ledger stores it but never reads it.
type Annotation struct {
	Confidence float64           `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Meta       map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Clone returns a deep copy of a.
func (a Annotation) Clone() Annotation {
	if a.Meta != nil {
		m := make(map[string]string, len(a.Meta))
		for k, v := range a.Meta {
			m[k] = v
		}
		a.Meta = m
	}
	return a
}

// Position is an open long holding. Positions are never modified after
// entry; an exit removes them.
type Position struct {
	Ticker       string     `json:"ticker" yaml:"ticker"`
	Shares       int64      `json:"shares" yaml:"shares"`
	EntryPrice   float64    `json:"entry_price" yaml:"entry_price"`
	EntryTime    time.Time  `json:"entry_time" yaml:"entry_time"`
	StopLoss     float64    `json:"stop_loss" yaml:"stop_loss"`
	Target       float64    `json:"target" yaml:"target"`
	EntryTradeID string     `json:"entry_trade_id" yaml:"entry_trade_id"`
	Annotation   Annotation `json:"annotation" yaml:"annotation"`
}

// Cost is the cash paid at entry.
func (p Position) Cost() float64 { return float64(p.Shares) * p.EntryPrice }

// Value is the position marked at mark.
func (p Position) Value(mark float64) float64 { return float64(p.Shares) * mark }

func (p Position) UnrealizedPnL(mark float64) float64 {
	return (mark - p.EntryPrice) * float64(p.Shares)
}

func (p Position) clone() Position {
	p.Annotation = p.Annotation.Clone()
	return p
}

func levelsOrdered(stop, entry, target float64) bool {
	return stop < entry && entry < target
}
