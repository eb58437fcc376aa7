package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks the one hard failure the engine reports: a malformed
// top-level input, such as a request body whose rows field is not a list of
// records. Row-level problems never produce it; they filter the row instead.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError wraps ErrInvalidInput with the name of the offending
// argument so callers can report which part of the request was malformed.
func InvalidInputError(argument, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, argument, reason)
}
