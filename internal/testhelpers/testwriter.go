package testhelpers

import (
	"io"
	"strings"
	"testing"
)

// Writer implements io.Writer and writes to t.Log so that logs are only shown for failed tests.
type Writer struct {
	t        *testing.T
	testDone chan struct{}
}

// NewWriter creates a Writer that logs to t. Writing after the test has finished panics, which catches servers
// and background generation goroutines that outlive their test.
func NewWriter(t *testing.T) io.Writer {
	w := &Writer{
		t:        t,
		testDone: make(chan struct{}),
	}
	t.Cleanup(func() {
		close(w.testDone)
	})
	return w
}

// Write logs each line of p separately. Multi-line prompts are common in the logs and would otherwise be
// indented oddly by t.Log.
func (w *Writer) Write(p []byte) (int, error) {
	select {
	case <-w.testDone:
		panic("testwriter: attempted to write after test completion. Did you remember to t.Cleanup(server.Shutdown)?")
	default:
		for line := range strings.Lines(string(p)) {
			if line = strings.TrimRight(line, "\r\n"); line != "" {
				w.t.Log(line)
			}
		}
		return len(p), nil
	}
}
