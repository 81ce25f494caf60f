package storage

import (
	"errors"
	"fmt"
)

// Common storage errors that can be checked using errors.Is()
var (
	// ErrNotFound is returned when a key is not present in the arena.
	ErrNotFound = errors.New("record not found")

	// ErrCollision is returned when inserting a key that already exists.
	ErrCollision = errors.New("record already exists")

	// ErrReadFault is returned when the backing store could not be read.
	ErrReadFault = errors.New("storage read failed")

	// ErrWriteFault is returned when the backing store could not be written.
	ErrWriteFault = errors.New("storage write failed")
)

// Error represents a storage error with additional context.
type Error struct {
	// The underlying error.
	err error

	// The operation being performed when the error occurred.
	op Op

	// The arena the operation ran against.
	arena string

	// The key involved, if any.
	key string
}

// NewError creates a new Error for the given operation.
func NewError(err error, op Op, arena string) *Error {
	return &Error{err: err, op: op, arena: arena}
}

// WithKey adds key information to the error.
func (e *Error) WithKey(key string) *Error {
	e.key = key
	return e
}

// Op returns the operation that failed.
func (e *Error) Op() Op { return e.op }

// Error returns the error message.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.arena, e.op)
	if e.key != "" {
		msg = fmt.Sprintf("%s [key=%s]", msg, e.key)
	}
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// Is matches the common storage errors through the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return e == nil
	}

	switch target {
	case ErrNotFound, ErrCollision, ErrReadFault, ErrWriteFault:
		return errors.Is(e.err, target)
	}

	return false
}

// IsFault reports whether err is a read or write fault rather than a
// missing or duplicate key.
func IsFault(err error) bool {
	return errors.Is(err, ErrReadFault) || errors.Is(err, ErrWriteFault)
}
