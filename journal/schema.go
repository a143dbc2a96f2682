package journal

// Schemas per driver. Rows carry a seq column so reads return records in
// the order they were written.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	entry_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	shares INTEGER NOT NULL,
	price REAL NOT NULL,
	amount REAL NOT NULL,
	time DATETIME NOT NULL,
	stop_loss REAL NOT NULL,
	target REAL NOT NULL,
	pnl REAL NOT NULL,
	pnl_pct REAL NOT NULL,
	reason TEXT NOT NULL,
	entry_time DATETIME,
	entry_price REAL NOT NULL,
	confidence REAL NOT NULL,
	reasoning TEXT NOT NULL,
	meta TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);

CREATE TABLE IF NOT EXISTS equity (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	time DATETIME NOT NULL,
	total_value REAL NOT NULL,
	cash REAL NOT NULL,
	open_positions INTEGER NOT NULL,
	return_pct REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	entry_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	shares BIGINT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	time TIMESTAMPTZ NOT NULL,
	stop_loss DOUBLE PRECISION NOT NULL,
	target DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL,
	pnl_pct DOUBLE PRECISION NOT NULL,
	reason TEXT NOT NULL,
	entry_time TIMESTAMPTZ,
	entry_price DOUBLE PRECISION NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	reasoning TEXT NOT NULL,
	meta TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);

CREATE TABLE IF NOT EXISTS equity (
	seq BIGSERIAL PRIMARY KEY,
	time TIMESTAMPTZ NOT NULL,
	total_value DOUBLE PRECISION NOT NULL,
	cash DOUBLE PRECISION NOT NULL,
	open_positions INTEGER NOT NULL,
	return_pct DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
