package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySource is returned when a source file has no usable data rows
	// left after the header skip. Run-fatal.
	ErrEmptySource = errors.New("source file contains no data rows")

	// ErrUnreadableSource is returned when a source file cannot be parsed as
	// tabular data at all. Run-fatal.
	ErrUnreadableSource = errors.New("source file could not be parsed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

// ValidationError marks a single row as failing schema or reference rules.
// It is row-scoped: callers capture it as a RowError and keep going.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a row-scoped validation failure for a field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StoreWriteError wraps a failed create/update call against the record store.
// Row-scoped, same as any other unexpected error during row processing.
type StoreWriteError struct {
	Schema string
	Err    error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("failed to write %s record: %v", e.Schema, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }
