package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/myrjola/fitcoach/internal/logging"
)

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := logging.WithAttrs(t.Context(), slog.String("trace_id", "abc"))
	first := logging.WithAttrs(ctx, slog.String("user_id", "u1"))
	second := logging.WithAttrs(ctx, slog.String("user_id", "u2"))

	logger.InfoContext(first, "first")
	logger.InfoContext(second, "second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if got, want := len(lines), 2; got != want {
		t.Fatalf("got %d log lines, want %d", got, want)
	}
	if !strings.Contains(lines[0], "trace_id=abc user_id=u1") {
		t.Errorf("first line %q is missing context attributes", lines[0])
	}
	if !strings.Contains(lines[1], "trace_id=abc user_id=u2") || strings.Contains(lines[1], "u1") {
		t.Errorf("second line %q leaked attributes from a sibling context", lines[1])
	}
}
