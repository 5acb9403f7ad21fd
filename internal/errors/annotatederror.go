// Package errors annotates errors with structured slog attributes and the source location where they were
// wrapped. It re-exports the standard library helpers so that callers only need one import.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// New, Is, As, Unwrap and Join behave exactly like their standard library counterparts.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

type annotatedError struct {
	msg   string
	err   error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

type sentinelError struct {
	msg string
}

func (e *sentinelError) Error() string {
	return e.msg
}

// NewSentinel creates a comparable error value meant to be declared at package level and matched with [Is].
func NewSentinel(msg string) error {
	return &sentinelError{msg: msg}
}

// Wrap adds msg as context to err together with attrs that are emitted by [SlogError].
// The location of the Wrap call is recorded.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and Wrap.
	return &annotatedError{msg: msg, err: err, attrs: attrs, pc: pcs[0]}
}

// DecoratePanic converts a recovered panic value into an error pointing at the line that panicked.
func DecoratePanic(excp any) error {
	if excp == nil {
		return nil
	}
	pcs := make([]uintptr, 32) //nolint:mnd // deep enough for the panic frames.
	n := runtime.Callers(2, pcs) //nolint:mnd // skip runtime.Callers and DecoratePanic.
	frames := runtime.CallersFrames(pcs[:n])
	var (
		pc         uintptr
		afterPanic bool
	)
	for {
		frame, more := frames.Next()
		if afterPanic {
			pc = frame.PC
			break
		}
		if frame.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			break
		}
	}
	return &annotatedError{msg: fmt.Sprintf("panic: %v", excp), err: nil, attrs: nil, pc: pc}
}

// SlogError returns an "error" group attribute with the message, every annotation found in the chain and the
// source location of the innermost annotated error.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}
	var (
		annotations []any
		source      string
	)
	walk(err, func(ae *annotatedError) {
		for _, attr := range ae.attrs {
			annotations = append(annotations, attr)
		}
		if ae.pc != 0 {
			source = location(ae.pc)
		}
	})
	attrs := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		attrs = append(attrs, slog.Group("annotations", annotations...))
	}
	if source != "" {
		attrs = append(attrs, slog.String("source", source))
	}
	return slog.Group("error", attrs...)
}

// walk visits every annotated error in the tree, outermost first.
func walk(err error, visit func(*annotatedError)) {
	if err == nil {
		return
	}
	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // walking the tree manually.
		visit(ae)
	}
	switch x := err.(type) { //nolint:errorlint // walking the tree manually.
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			walk(inner, visit)
		}
	case interface{ Unwrap() error }:
		walk(x.Unwrap(), visit)
	}
}

func location(pc uintptr) string {
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.Itoa(frame.Line)
}
