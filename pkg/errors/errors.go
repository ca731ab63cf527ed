package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// ContextError annotates an error with a description of the operation that
// caused it. The full chain of contexts is included in the error message so
// that logs read like a stack of operations.
type ContextError struct {
	Context string
	Err     error
}

func (err ContextError) Error() string {
	return fmt.Sprintf("%s: %s", err.Context, err.Err)
}

// Unwrap returns the wrapped error so that ContextError cooperates with
// errors.Is and errors.As.
func (err ContextError) Unwrap() error {
	return err.Err
}

// WithContext wraps `err` with a description of the operation that caused it.
func WithContext(err error, context string) error {
	return ContextError{Context: context, Err: err}
}

// RootCause returns the innermost error in a chain of ContextErrors. It's
// used to make decisions based on the type of the original failure without
// the caller having to know how many times it was annotated on the way up.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(ContextError)
		if !ok {
			return err
		}
		err = ctxErr.Err
	}
}
