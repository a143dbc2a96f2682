package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/portfolio/ledger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const defaultTimeout = 10 * time.Second

// SQL is a Journal and Reader backed by sqlite3 or postgres.
type SQL struct {
	db      *sqlx.DB
	timeout time.Duration
}

type tradeRow struct {
	ID         string       `db:"id"`
	EntryID    string       `db:"entry_id"`
	Ticker     string       `db:"ticker"`
	Action     string       `db:"action"`
	Status     string       `db:"status"`
	Shares     int64        `db:"shares"`
	Price      float64      `db:"price"`
	Amount     float64      `db:"amount"`
	Time       time.Time    `db:"time"`
	StopLoss   float64      `db:"stop_loss"`
	Target     float64      `db:"target"`
	PnL        float64      `db:"pnl"`
	PnLPct     float64      `db:"pnl_pct"`
	Reason     string       `db:"reason"`
	EntryTime  sql.NullTime `db:"entry_time"`
	EntryPrice float64      `db:"entry_price"`
	Confidence float64      `db:"confidence"`
	Reasoning  string       `db:"reasoning"`
	Meta       string       `db:"meta"`
}

const tradeColumns = `id, entry_id, ticker, action, status, shares, price, amount, time,
	stop_loss, target, pnl, pnl_pct, reason, entry_time, entry_price, confidence, reasoning, meta`

const equityColumns = `time, total_value, cash, open_positions, return_pct`

// OpenSQL connects with driver ("sqlite3" or "postgres") and creates the
// schema if needed. For sqlite3 the dsn is a file path.
func OpenSQL(driver, dsn string) (*SQL, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverSQLite, "sqlite":
		driver = DriverSQLite
	case DriverPostgres, "postgresql", "pg":
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("journal: DSN is required")
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	j := NewSQL(db)
	if err := j.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// NewSQL wraps an existing connection without touching the schema.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db, timeout: defaultTimeout}
}

func (j *SQL) DB() *sqlx.DB { return j.db }

// Migrate creates the tables and indexes for the connection's driver.
func (j *SQL) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if j.db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

func (j *SQL) RecordTrade(t ledger.Trade) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	row, err := toRow(t)
	if err != nil {
		return err
	}
	_, err = j.db.NamedExecContext(ctx, `INSERT INTO trades (`+tradeColumns+`) VALUES (
		:id, :entry_id, :ticker, :action, :status, :shares, :price, :amount, :time,
		:stop_loss, :target, :pnl, :pnl_pct, :reason, :entry_time, :entry_price, :confidence, :reasoning, :meta)`, row)
	if err != nil {
		return fmt.Errorf("journal: insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (j *SQL) RecordEquity(s ledger.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	s.Time = s.Time.UTC()
	_, err := j.db.NamedExecContext(ctx, `INSERT INTO equity (`+equityColumns+`)
		VALUES (:time, :total_value, :cash, :open_positions, :return_pct)`, s)
	if err != nil {
		return fmt.Errorf("journal: insert equity: %w", err)
	}
	return nil
}

func (j *SQL) Trades(ctx context.Context) ([]ledger.Trade, error) {
	return j.selectTrades(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY seq`)
}

// TradesClosedBetween returns CLOSED legs with time in [start, end).
func (j *SQL) TradesClosedBetween(ctx context.Context, start, end time.Time) ([]ledger.Trade, error) {
	q := j.db.Rebind(`SELECT ` + tradeColumns + ` FROM trades
		WHERE status = ? AND time >= ? AND time < ? ORDER BY time, seq`)
	return j.selectTrades(ctx, q, string(ledger.Closed), start.UTC(), end.UTC())
}

// Trade returns one leg by ID, or an error wrapping ErrNotFound.
func (j *SQL) Trade(ctx context.Context, id string) (ledger.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var row tradeRow
	err := j.db.GetContext(ctx, &row, j.db.Rebind(`SELECT `+tradeColumns+` FROM trades WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Trade{}, fmt.Errorf("trade %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return ledger.Trade{}, fmt.Errorf("journal: get trade %q: %w", id, err)
	}
	return fromRow(row)
}

func (j *SQL) selectTrades(ctx context.Context, q string, args ...any) ([]ledger.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var rows []tradeRow
	if err := j.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("journal: query trades: %w", err)
	}
	out := make([]ledger.Trade, 0, len(rows))
	for _, r := range rows {
		t, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (j *SQL) Snapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var out []ledger.Snapshot
	if err := j.db.SelectContext(ctx, &out, `SELECT `+equityColumns+` FROM equity ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("journal: query equity: %w", err)
	}
	return out, nil
}

func (j *SQL) Close() error { return j.db.Close() }

func toRow(t ledger.Trade) (tradeRow, error) {
	meta, err := encodeMeta(t.Annotation.Meta)
	if err != nil {
		return tradeRow{}, err
	}
	r := tradeRow{
		ID:         t.ID,
		EntryID:    t.EntryID,
		Ticker:     t.Ticker,
		Action:     string(t.Action),
		Status:     string(t.Status),
		Shares:     t.Shares,
		Price:      t.Price,
		Amount:     t.Amount,
		Time:       t.Time.UTC(),
		StopLoss:   t.StopLoss,
		Target:     t.Target,
		PnL:        t.PnL,
		PnLPct:     t.PnLPct,
		Reason:     string(t.Reason),
		EntryPrice: t.EntryPrice,
		Confidence: t.Annotation.Confidence,
		Reasoning:  t.Annotation.Reasoning,
		Meta:       meta,
	}
	if !t.EntryTime.IsZero() {
		r.EntryTime = sql.NullTime{Time: t.EntryTime.UTC(), Valid: true}
	}
	return r, nil
}

func fromRow(r tradeRow) (ledger.Trade, error) {
	meta, err := decodeMeta(r.Meta)
	if err != nil {
		return ledger.Trade{}, fmt.Errorf("trade %s: %w", r.ID, err)
	}
	t := ledger.Trade{
		ID:         r.ID,
		EntryID:    r.EntryID,
		Ticker:     r.Ticker,
		Action:     ledger.Action(r.Action),
		Status:     ledger.Status(r.Status),
		Shares:     r.Shares,
		Price:      r.Price,
		Amount:     r.Amount,
		Time:       r.Time.UTC(),
		StopLoss:   r.StopLoss,
		Target:     r.Target,
		PnL:        r.PnL,
		PnLPct:     r.PnLPct,
		Reason:     ledger.ExitReason(r.Reason),
		EntryPrice: r.EntryPrice,
		Annotation: ledger.Annotation{
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
			Meta:       meta,
		},
	}
	if r.EntryTime.Valid {
		t.EntryTime = r.EntryTime.Time.UTC()
	}
	return t, nil
}
