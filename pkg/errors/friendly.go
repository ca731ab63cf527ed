package errors

import "fmt"

// FriendlyError is an error with a message meant to be shown directly to the
// user. Errors that don't implement friendlyError are printed with a generic
// preamble instead.
type FriendlyError struct {
	Message string
}

func (err FriendlyError) Error() string {
	return err.Message
}

// FriendlyMessage implements the friendlyError interface.
func (err FriendlyError) FriendlyMessage() string {
	return err.Message
}

type friendlyError interface {
	FriendlyMessage() string
}

// NewFriendlyError creates an error whose message is shown to the user as-is.
func NewFriendlyError(format string, args ...interface{}) error {
	return FriendlyError{Message: fmt.Sprintf(format, args...)}
}

// GetPrintableMessage returns the message that should be shown to the user
// for the given error.
func GetPrintableMessage(err error) string {
	for curr := err; curr != nil; {
		if friendly, ok := curr.(friendlyError); ok {
			return friendly.FriendlyMessage()
		}

		ctxErr, ok := curr.(ContextError)
		if !ok {
			break
		}
		curr = ctxErr.Err
	}
	return err.Error()
}
