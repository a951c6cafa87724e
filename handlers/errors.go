package handlers

import (
	"fmt"

	"github.com/pkg/errors"
)

// RecoverableError is an error that is explicitly marked as recoverable. Deliveries that fail
// with a recoverable error are requeued.
type RecoverableError struct {
	message string
}

// Error returns the error message for a RecoverableError.
func (e RecoverableError) Error() string {
	return e.message
}

// NewRecoverableError returns a new error that is marked as being recoverable.
func NewRecoverableError(formatString string, a ...interface{}) RecoverableError {
	return RecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// UnrecoverableError is an error that we do not expect to be able to recover from. Deliveries
// that fail with an unrecoverable error are discarded.
type UnrecoverableError struct {
	message string
}

// Error returns the error message for an UnrecoverableError.
func (e UnrecoverableError) Error() string {
	return e.message
}

// NewUnrecoverableError returns a new error that is marked as being unrecoverable.
func NewUnrecoverableError(formatString string, a ...interface{}) UnrecoverableError {
	return UnrecoverableError{message: fmt.Sprintf(formatString, a...)}
}

// IsRecoverable reports whether a delivery that failed with err should be retried. Errors that
// aren't explicitly marked as recoverable are treated as unrecoverable.
func IsRecoverable(err error) bool {
	_, ok := errors.Cause(err).(RecoverableError)
	return ok
}
