package ledger

import "time"

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

type Status string

const (
	Open   Status = "OPEN"
	Closed Status = "CLOSED"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	StopLoss      ExitReason = "STOP_LOSS"
	TargetReached ExitReason = "TARGET_REACHED"
	Manual        ExitReason = "MANUAL"
	EndOfRun      ExitReason = "END_OF_RUN"
)

// Trade is one leg in the append-only trade log. A BUY leg has Status OPEN;
// the SELL leg that closes it has Status CLOSED and EntryID set to the BUY
// leg's ID.
type Trade struct {
	ID      string `json:"id" yaml:"id"`
	EntryID string `json:"entry_id,omitempty" yaml:"entry_id,omitempty"`
	Ticker  string `json:"ticker" yaml:"ticker"`
	Action  Action `json:"action" yaml:"action"`
	Status  Status `json:"status" yaml:"status"`

	Shares int64     `json:"shares" yaml:"shares"`
	Price  float64   `json:"price" yaml:"price"`
	Amount float64   `json:"amount" yaml:"amount"` // cost for BUY, proceeds for SELL
	Time   time.Time `json:"time" yaml:"time"`

	// BUY only.
	StopLoss float64 `json:"stop_loss,omitempty" yaml:"stop_loss,omitempty"`
	Target   float64 `json:"target,omitempty" yaml:"target,omitempty"`

	// SELL only.
	PnL        float64    `json:"pnl,omitempty" yaml:"pnl,omitempty"`
	PnLPct     float64    `json:"pnl_pct,omitempty" yaml:"pnl_pct,omitempty"`
	Reason     ExitReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	EntryTime  time.Time  `json:"entry_time,omitempty" yaml:"entry_time,omitempty"`
	EntryPrice float64    `json:"entry_price,omitempty" yaml:"entry_price,omitempty"`

	Annotation Annotation `json:"annotation" yaml:"annotation"`
}

func (t Trade) IsClosed() bool { return t.Status == Closed }

// HoldingPeriod is the time between entry and exit of a closed trade, or 0.
func (t Trade) HoldingPeriod() time.Duration {
	if !t.IsClosed() || t.EntryTime.IsZero() || t.Time.IsZero() {
		return 0
	}
	return t.Time.Sub(t.EntryTime)
}

func (t Trade) clone() Trade {
	t.Annotation = t.Annotation.Clone()
	return t
}

// Snapshot is the portfolio's value at one point in time.
type Snapshot struct {
	Time          time.Time `json:"time" yaml:"time" db:"time"`
	TotalValue    float64   `json:"total_value" yaml:"total_value" db:"total_value"`
	Cash          float64   `json:"cash" yaml:"cash" db:"cash"`
	OpenPositions int       `json:"open_positions" yaml:"open_positions" db:"open_positions"`
	ReturnPct     float64   `json:"return_pct" yaml:"return_pct" db:"return_pct"`
}

// EntryOrder asks the ledger to open a position.
type EntryOrder struct {
	Ticker     string
	Shares     int64
	Price      float64
	StopLoss   float64
	Target     float64
	Time       time.Time
	Annotation Annotation
}
