package core

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller mistakes: missing prompt, unknown enumeration, bad record.
var ErrValidation = errors.New("validation failed")

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RelayError terminates a completion stream that the provider failed to finish.
type RelayError struct {
	// Fragments is how many fragments were delivered before the failure.
	Fragments int
	Err       error
}

func (e *RelayError) Error() string {
	if e.Fragments == 0 {
		return fmt.Sprintf("completion failed before first fragment: %v", e.Err)
	}
	return fmt.Sprintf("completion failed after %d fragments: %v", e.Fragments, e.Err)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}
