package analysis

import (
	"errors"
	"fmt"
)

// ValidationError reports a request that failed validation before any SQL was
// built: unknown table or column, unsupported aggregation function, bad
// detection method. Callers branch on the error kind, not on message text.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// QueryError reports that the database rejected or failed a query. The
// underlying driver error is preserved for SQLSTATE classification at the
// tool boundary; only its message text leaks past this package.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *QueryError) Unwrap() error { return e.Err }

// queryErrf wraps a driver error with the failing operation name.
func queryErrf(op string, err error) *QueryError {
	return &QueryError{Op: op, Err: err}
}
