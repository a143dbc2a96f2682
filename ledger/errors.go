package ledger

import "errors"

var (
	ErrAlreadyHeld      = errors.New("position already held")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNoOpenPosition   = errors.New("no open position")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrInvalidLevels    = errors.New("invalid stop/target levels")

	// ErrCorruptState is returned by Restore when a saved state breaks a
	// ledger invariant.
	ErrCorruptState = errors.New("corrupt ledger state")
)
