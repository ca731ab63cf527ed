package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/driftsync/driftsync/pkg/errors"
)

// HandleFatalError prints the error in a user-friendly format, and exits
// with a non-zero exit code.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	os.Exit(1)
}

// HandlePanic recovers panics in the calling goroutine and prints the stack
// trace before exiting. It should be deferred at the top of every spawned
// goroutine so that a panic in a background thread doesn't vanish silently.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "driftsync hit an unexpected error: %v\n", r)
	fmt.Fprintln(os.Stderr, string(debug.Stack()))
	os.Exit(1)
}
