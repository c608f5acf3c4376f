package bisca

import (
	"errors"
	"fmt"
)

// ValidationError covers rejected plays and joins: not-your-turn,
// card-not-held, and similar. Validation failures never mutate state and
// are never retried.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Reason
}

func validationError(code, format string, args ...any) error {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// FatalError marks an invariant violation beyond tolerance, e.g. a card
// count mismatch. The match must be terminated and cleaned up.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return "FATAL_GAME_ERROR: " + e.Reason
}

func fatalError(format string, args ...any) error {
	return &FatalError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
