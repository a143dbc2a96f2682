package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 100000.0, cfg.Account.Cash)
	assert.Equal(t, 0.02, cfg.Risk.MaxLossPct)
	assert.Equal(t, "momentum", cfg.Backtest.Strategy)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"zero cash", func(c *Config) { c.Account.Cash = 0 }, "account.cash must be positive"},
		{"bad risk", func(c *Config) { c.Risk.MaxLossPct = 1.5 }, "risk: max_loss_pct must be in (0,1]"},
		{"unknown backtest strategy", func(c *Config) { c.Backtest.Strategy = "martingale" }, `backtest.strategy: unknown strategy "martingale"`},
		{"sma trend", func(c *Config) { c.Backtest.Trend = "sma" }, ""},
		{"unknown trend", func(c *Config) { c.Backtest.Trend = "wma" }, `backtest.trend: unknown trend filter "wma"`},
		{"bad start", func(c *Config) { c.Backtest.Start = "yesterday" }, "backtest.start"},
		{"start after end", func(c *Config) {
			c.Backtest.Start, c.Backtest.End = "2024-02-01", "2024-01-01"
		}, "backtest.start must be before backtest.end"},
		{"unknown live strategy", func(c *Config) { c.Live.Strategy = "x" }, "live.strategy"},
		{"bad interval", func(c *Config) { c.Live.Interval = "soon" }, "live.interval"},
		{"negative interval", func(c *Config) { c.Live.Interval = "-1s" }, "live.interval must not be negative"},
		{"negative workers", func(c *Config) { c.Live.Workers = -1 }, "must not be negative"},
		{"csv without files", func(c *Config) { c.Journal.EquityFile = "" }, "journal trades_file and equity_file required for CSV type"},
		{"sqlite without dsn", func(c *Config) { c.Journal.Type = "sqlite" }, "journal dsn required for sqlite type"},
		{"postgres with dsn", func(c *Config) { c.Journal.Type, c.Journal.DSN = "postgres", "postgres://localhost/p" }, ""},
		{"none", func(c *Config) { c.Journal.Type = "none" }, ""},
		{"bad journal", func(c *Config) { c.Journal.Type = "redis" }, "journal.type must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Backtest.Universe = []string{"AAA", "BBB"}
			cfg.Risk.MaxOpenPositions = 3
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  cash: 25000
risk:
  max_open_positions: 2
backtest:
  strategy: scripted
  signals_file: ./signals.csv
  start: "2024-01-01"
  end: "2024-07-01"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, cfg.Account.Cash)
	assert.Equal(t, 2, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, 0.02, cfg.Risk.MaxLossPct, "unset fields keep defaults")
	assert.Equal(t, "csv", cfg.Journal.Type)

	from, to, err := cfg.Backtest.Window()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, "./signals.csv", cfg.Backtest.StrategyOptions().SignalsFile)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [1, 2"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config")

	require.NoError(t, os.WriteFile(path, []byte("account:\n  cash: -5\n"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		interval string
		expected string
		wantErr  bool
	}{
		{"1h", "1h0m0s", false},
		{"30m", "30m0s", false},
		{"1s", "1s", false},
		{"", "0s", false},
		{"invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			d, err := LiveConfig{Interval: tt.interval}.ParseInterval()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, d.String())
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvJournalType, "Postgres")
	t.Setenv(EnvJournalDSN, "postgres://u:p@localhost/portfolio?sslmode=disable")
	t.Setenv(EnvCash, " 5000 ")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvListen, "127.0.0.1:9090")
	t.Setenv(EnvQuotesURL, "https://quotes.example.com")
	t.Setenv(EnvQuotesToken, "secret")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "postgres", cfg.Journal.Type)
	assert.Equal(t, "postgres://u:p@localhost/portfolio?sslmode=disable", cfg.Journal.DSN)
	assert.Equal(t, 5000.0, cfg.Account.Cash)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Live.Listen)
	assert.Equal(t, "https://quotes.example.com", cfg.Live.QuotesURL)
	assert.Equal(t, "secret", cfg.Live.QuotesToken)

	// the token never round-trips through a saved file
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
}

func TestApplyEnvErrors(t *testing.T) {
	t.Setenv(EnvCash, "lots")
	assert.ErrorContains(t, Default().ApplyEnv(), EnvCash)

	t.Setenv(EnvCash, "-1")
	assert.ErrorContains(t, Default().ApplyEnv(), "invalid config after env")
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORTFOLIO_TEST_LOADENV=from-file\n"), 0o644))
	t.Setenv("PORTFOLIO_TEST_LOADENV", "")
	require.NoError(t, os.Unsetenv("PORTFOLIO_TEST_LOADENV"))

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("PORTFOLIO_TEST_LOADENV"))

	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
