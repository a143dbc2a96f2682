package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/portfolio/market"
	"github.com/rustyeddy/portfolio/risk"
	"github.com/rustyeddy/portfolio/strategies"
)

// Config is the complete portfolio configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     risk.Policy    `json:"risk" yaml:"risk"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Live     LiveConfig     `json:"live" yaml:"live"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID   string  `json:"id" yaml:"id"`
	Cash float64 `json:"cash" yaml:"cash"`
}

// BacktestConfig describes a historical replay. Start and End are dates
// (2006-01-02); End is exclusive.
type BacktestConfig struct {
	PricesFile  string `json:"prices_file" yaml:"prices_file"`
	SignalsFile string `json:"signals_file,omitempty" yaml:"signals_file,omitempty"`
	Strategy    string `json:"strategy" yaml:"strategy"`
	Start       string `json:"start,omitempty" yaml:"start,omitempty"`
	End         string `json:"end,omitempty" yaml:"end,omitempty"`
	CloseEnd    bool   `json:"close_end" yaml:"close_end"`

	Lookback  int      `json:"lookback,omitempty" yaml:"lookback,omitempty"`
	Threshold float64  `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Trend     string   `json:"trend,omitempty" yaml:"trend,omitempty"` // ema|sma
	Universe  []string `json:"universe,omitempty" yaml:"universe,omitempty"`
}

// Window parses Start and End. Empty values are zero times.
func (b BacktestConfig) Window() (from, to time.Time, err error) {
	if b.Start != "" {
		if from, err = market.ParseTime(b.Start); err != nil {
			return from, to, fmt.Errorf("backtest.start: %w", err)
		}
	}
	if b.End != "" {
		if to, err = market.ParseTime(b.End); err != nil {
			return from, to, fmt.Errorf("backtest.end: %w", err)
		}
	}
	return from, to, nil
}

// StrategyOptions maps the backtest section onto strategies.ByName options.
func (b BacktestConfig) StrategyOptions() strategies.Options {
	return strategies.Options{
		SignalsFile: b.SignalsFile,
		Lookback:    b.Lookback,
		Threshold:   b.Threshold,
		Trend:       b.Trend,
		Universe:    b.Universe,
	}
}

// LiveConfig describes the polling driver.
type LiveConfig struct {
	QuotesFile  string   `json:"quotes_file" yaml:"quotes_file"`
	QuotesURL   string   `json:"quotes_url,omitempty" yaml:"quotes_url,omitempty"` // REST quotes; wins over QuotesFile
	QuotesToken string   `json:"-" yaml:"-"`                                       // from PORTFOLIO_QUOTES_TOKEN only
	SignalsFile string   `json:"signals_file,omitempty" yaml:"signals_file,omitempty"`
	Strategy    string   `json:"strategy" yaml:"strategy"`
	Tickers     []string `json:"tickers,omitempty" yaml:"tickers,omitempty"`
	Interval    string   `json:"interval" yaml:"interval"` // e.g. "1m", "30s"
	RPS         float64  `json:"rps,omitempty" yaml:"rps,omitempty"`
	Burst       int      `json:"burst,omitempty" yaml:"burst,omitempty"`
	Workers     int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Listen      string   `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// ParseInterval converts Interval to a time.Duration; empty is 0.
func (l LiveConfig) ParseInterval() (time.Duration, error) {
	if l.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(l.Interval)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite", "postgres" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DSN        string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	StateFile  string `json:"state_file,omitempty" yaml:"state_file,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// LoadFromFile loads configuration from a file (YAML, or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine format by extension
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}

	if !strategies.Known(c.Backtest.Strategy) {
		return fmt.Errorf("backtest.strategy: unknown strategy %q", c.Backtest.Strategy)
	}
	switch strings.ToLower(c.Backtest.Trend) {
	case "", "ema", "sma", "ma":
	default:
		return fmt.Errorf("backtest.trend: unknown trend filter %q (ema|sma)", c.Backtest.Trend)
	}
	if _, _, err := c.Backtest.Window(); err != nil {
		return err
	}
	if from, to, _ := c.Backtest.Window(); !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("backtest.start must be before backtest.end")
	}

	if !strategies.Known(c.Live.Strategy) {
		return fmt.Errorf("live.strategy: unknown strategy %q", c.Live.Strategy)
	}
	if d, err := c.Live.ParseInterval(); err != nil {
		return fmt.Errorf("live.interval: %w", err)
	} else if d < 0 {
		return fmt.Errorf("live.interval must not be negative")
	}
	if c.Live.RPS < 0 || c.Live.Burst < 0 || c.Live.Workers < 0 {
		return fmt.Errorf("live rps, burst and workers must not be negative")
	}

	switch c.Journal.Type {
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite", "postgres":
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal dsn required for %s type", c.Journal.Type)
		}
	case "none", "":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite', 'postgres' or 'none'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:   "PAPER-001",
			Cash: 100000,
		},
		Risk: risk.Default(),
		Backtest: BacktestConfig{
			PricesFile: "./prices.csv",
			Strategy:   "momentum",
			CloseEnd:   true,
			Lookback:   20,
			Threshold:  0.05,
		},
		Live: LiveConfig{
			QuotesFile: "./quotes.csv",
			Strategy:   "noop",
			Interval:   "1m",
			Workers:    4,
			Listen:     ":8080",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
			EquityFile: "./equity.csv",
			StateFile:  "./state.json",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Environment overrides applied by ApplyEnv.
const (
	EnvJournalDSN  = "PORTFOLIO_JOURNAL_DSN"
	EnvJournalType = "PORTFOLIO_JOURNAL_TYPE"
	EnvCash        = "PORTFOLIO_CASH"
	EnvLogLevel    = "PORTFOLIO_LOG_LEVEL"
	EnvListen      = "PORTFOLIO_LISTEN"
	EnvQuotesURL   = "PORTFOLIO_QUOTES_URL"
	EnvQuotesToken = "PORTFOLIO_QUOTES_TOKEN"
)

// LoadEnv reads .env files into the process environment. With no
// arguments it reads ./.env, and a missing file is not an error.
// Variables already set in the environment win.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if len(files) == 0 && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides c from PORTFOLIO_* environment variables and
// re-validates.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvJournalDSN); ok {
		c.Journal.DSN = v
	}
	if v, ok := os.LookupEnv(EnvJournalType); ok {
		c.Journal.Type = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(EnvCash); ok {
		cash, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCash, err)
		}
		c.Account.Cash = cash
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvListen); ok {
		c.Live.Listen = v
	}
	if v, ok := os.LookupEnv(EnvQuotesURL); ok {
		c.Live.QuotesURL = v
	}
	if v, ok := os.LookupEnv(EnvQuotesToken); ok {
		c.Live.QuotesToken = v
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config after env: %w", err)
	}
	return nil
}
