package errors_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/testhelpers"
)

func TestWrap_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "sentinel",
			err:  errors.NewSentinel("draft not found"),
			want: "draft not found",
		},
		{
			name: "wrapped with annotations",
			err:  errors.Wrap(errors.NewSentinel("draft not found"), "complete draft", slog.String("id", "w1")),
			want: "complete draft: draft not found",
		},
		{
			name: "nested",
			err: errors.Wrap(
				errors.Wrap(errors.NewSentinel("refused"), "generate workout"),
				"create draft",
			),
			want: "create draft: generate workout: refused",
		},
		{
			name: "wrap nil",
			err:  errors.Wrap(nil, "no cause"),
			want: "no cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsAndAs(t *testing.T) {
	root := errors.NewSentinel("upstream unavailable")
	wrapped := errors.Wrap(fmt.Errorf("call: %w", root), "generate")

	if !errors.Is(wrapped, root) {
		t.Error("Is() = false, want true for wrapped sentinel")
	}
	if errors.Is(wrapped, errors.NewSentinel("upstream unavailable")) {
		t.Error("Is() = true, want false for a distinct sentinel with the same text")
	}

	custom := &statusError{code: 502}
	var target *statusError
	if !errors.As(errors.Wrap(custom, "context"), &target) {
		t.Fatal("As() = false, want true")
	}
	if target != custom {
		t.Errorf("As() target = %v, want %v", target, custom)
	}
}

func TestSlogError(t *testing.T) {
	err := errors.Wrap(errors.NewSentinel("root cause"), "context",
		slog.String("user_id", "u1"), slog.Duration("duration", time.Second))
	var buf bytes.Buffer
	logger := testhelpers.NewLogger(&buf)
	logger.Info("test", errors.SlogError(err))

	logLine := buf.String()
	for _, want := range []string{
		"error.message=\"context: root cause\"",
		"error.annotations.user_id=u1",
		"error.annotations.duration=1s",
		"annotatederror_test.go:",
	} {
		if !strings.Contains(logLine, want) {
			t.Errorf("log line %q does not contain %q", logLine, want)
		}
	}
	if strings.Contains(logLine, "annotatederror.go") {
		t.Error("source location points inside the errors package")
	}

	// Degenerate inputs must not panic.
	_ = errors.SlogError(nil)
	_ = errors.SlogError(errors.Join(nil, errors.NewSentinel("a"), errors.New("b")))
	_ = errors.SlogError(errors.Wrap(errors.Join(nil, nil), "wrap"))
}

func TestDecoratePanic(t *testing.T) {
	if got := errors.DecoratePanic(nil); got != nil {
		t.Fatalf("DecoratePanic(nil) = %v, want nil", got)
	}
	defer func() {
		err := errors.DecoratePanic(recover())
		if err == nil {
			t.Fatal("expected error")
		}
		if got, want := err.Error(), "panic: boom"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if got := errors.SlogError(err).String(); !strings.Contains(got, "annotatederror_test.go:") {
			t.Errorf("SlogError() = %q, want the panicking test file as source", got)
		}
	}()
	panic("boom")
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}
