package scoring

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrAlreadyResolved marks a precondition violation: a resolver was
	// invoked on a goal whose points are already fixed. Callers log and
	// discard; retrying would double-award.
	ErrAlreadyResolved = errors.New("goal already resolved")

	// ErrUnknownGoalType marks a goal record with a type outside the enum.
	ErrUnknownGoalType = errors.New("unknown goal type")
)
