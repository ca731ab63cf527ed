package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ProgressPrinter prints a message followed by a slowly growing trail of
// dots, for long-running operations that would otherwise look hung.
type ProgressPrinter struct {
	out     io.Writer
	message string
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgressPrinter creates a progress printer. The caller should invoke
// Run in a goroutine, and Stop when the operation finishes.
func NewProgressPrinter(out io.Writer, message string) *ProgressPrinter {
	return &ProgressPrinter{
		out:     out,
		message: message,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run prints the message and a dot every second until Stop is called.
func (pp *ProgressPrinter) Run() {
	defer close(pp.stopped)

	fmt.Fprint(pp.out, pp.message)
	for {
		select {
		case <-pp.stop:
			fmt.Fprintln(pp.out)
			return
		case <-time.After(1 * time.Second):
			fmt.Fprint(pp.out, ".")
		}
	}
}

// Stop terminates the printer and waits for its final newline.
func (pp *ProgressPrinter) Stop() {
	close(pp.stop)
	<-pp.stopped
}

// PromptYesOrNo asks the user the given question, and only accepts a yes or
// no answer.
func PromptYesOrNo(question string) (bool, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s (y/n): ", question)
		resp, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(resp)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
