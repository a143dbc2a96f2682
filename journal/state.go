package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rustyeddy/portfolio/ledger"
)

// StateFile stores a ledger.State as JSON at Path. Saves go through a
// temporary file and a rename, so a crash mid-write leaves the previous
// state in place.
type StateFile struct {
	Path string
}

func (s StateFile) Save(st ledger.State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("state: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("state: %w", err)
	}
	return nil
}

// Load reads the state. A missing file is reported as ErrNotFound.
func (s StateFile) Load() (ledger.State, error) {
	var st ledger.State
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, fmt.Errorf("state %s: %w", s.Path, ErrNotFound)
	}
	if err != nil {
		return st, fmt.Errorf("state: %w", err)
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("state %s: decode: %w", s.Path, err)
	}
	return st, nil
}

// LoadLedger restores a ledger from the state file, or starts a new one
// with initialCash when there is no file yet.
func (s StateFile) LoadLedger(initialCash float64) (*ledger.Ledger, bool, error) {
	st, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		l, err := ledger.New(initialCash)
		return l, false, err
	}
	if err != nil {
		return nil, false, err
	}
	l, err := ledger.Restore(st)
	if err != nil {
		return nil, false, fmt.Errorf("state %s: %w", s.Path, err)
	}
	return l, true, nil
}
