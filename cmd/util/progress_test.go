package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter(t *testing.T) {
	out := bytes.NewBuffer(nil)
	pp := NewProgressPrinter(out, "Working")

	done := make(chan struct{})
	go func() {
		pp.Run()
		close(done)
	}()
	pp.Stop()
	<-done

	assert.True(t, strings.HasPrefix(out.String(), "Working"))
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}
