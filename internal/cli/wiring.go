package cli

import (
	"fmt"

	"github.com/rustyeddy/portfolio/config"
	"github.com/rustyeddy/portfolio/journal"
)

// openJournal returns the writer configured by jc. CSV files are
// truncated unless appendCSV is set.
func openJournal(jc config.JournalConfig, appendCSV bool) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		open := journal.NewCSV
		if appendCSV {
			open = journal.AppendCSV
		}
		j, err := open(jc.TradesFile, jc.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case "sqlite", "postgres":
		j, err := journal.OpenSQL(jc.Type, jc.DSN)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "none", "":
		return journal.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}

// openReader returns a reader over what jc's journal recorded, and a
// closer for it.
func openReader(jc config.JournalConfig) (journal.Reader, func() error, error) {
	switch jc.Type {
	case "csv":
		return journal.CSVReader{TradesPath: jc.TradesFile, EquityPath: jc.EquityFile}, func() error { return nil }, nil
	case "sqlite", "postgres":
		j, err := journal.OpenSQL(jc.Type, jc.DSN)
		if err != nil {
			return nil, nil, err
		}
		return j, j.Close, nil
	default:
		return nil, nil, fmt.Errorf("journal type %q cannot be read", jc.Type)
	}
}

// withDB overrides jc with --db / --driver when set. A --db alone means a
// sqlite file.
func withDB(jc config.JournalConfig, db, driver string) config.JournalConfig {
	if db == "" {
		return jc
	}
	if driver == "" {
		driver = "sqlite"
	}
	jc.Type, jc.DSN = driver, db
	return jc
}

// closeJournal closes j, reporting a failed final flush through err unless
// it already holds an error.
func closeJournal(j journal.Journal, err *error) {
	if cerr := j.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close journal: %w", cerr)
	}
}
