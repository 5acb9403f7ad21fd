package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrConfiguration is returned before any call when the completion service cannot be used at all.
	ErrConfiguration = errors.New("generation misconfigured")
	// ErrUpstreamUnavailable wraps completion failures that persisted after retries.
	ErrUpstreamUnavailable = errors.New("completion service unavailable")
	// ErrInvalidOutput marks refusals and output that could not be turned into a valid result.
	ErrInvalidOutput = errors.New("invalid generation output")
	// ErrInvalidWorkout marks an athlete-edited workout that breaks the structured workout bounds.
	ErrInvalidWorkout = errors.New("invalid workout")
)

// ErrorType groups completion service failures by how they should be handled.
type ErrorType string

const (
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeServer         ErrorType = "server_error"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeCanceled       ErrorType = "canceled"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// APIError wraps a completion service error with its classification.
type APIError struct {
	Type       ErrorType
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion error (%s): %v", e.Type, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

const (
	maxAttempts     = 3
	rateLimitExtra  = 5 * time.Second
	backoffBaseStep = time.Second
)

// classify maps err onto an APIError. Errors that already are an APIError pass through.
func classify(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	classified := &APIError{Type: ErrorTypeUnknown, StatusCode: 0, Retryable: false, Err: err}

	var oaErr *openai.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		classified.Type = ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		classified.Type = ErrorTypeTimeout
		classified.Retryable = true
	case errors.As(err, &oaErr):
		classified.StatusCode = oaErr.StatusCode
		switch {
		case oaErr.StatusCode == http.StatusTooManyRequests:
			classified.Type = ErrorTypeRateLimit
			classified.Retryable = true
		case oaErr.StatusCode == http.StatusUnauthorized || oaErr.StatusCode == http.StatusForbidden:
			classified.Type = ErrorTypeAuthentication
		case oaErr.StatusCode == http.StatusRequestTimeout:
			classified.Type = ErrorTypeTimeout
			classified.Retryable = true
		case oaErr.StatusCode >= http.StatusInternalServerError:
			classified.Type = ErrorTypeServer
			classified.Retryable = true
		case oaErr.StatusCode >= http.StatusBadRequest:
			classified.Type = ErrorTypeInvalidRequest
		}
	case errors.As(err, &netErr):
		classified.Type = ErrorTypeConnection
		classified.Retryable = true
	default:
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof") {
			classified.Type = ErrorTypeConnection
			classified.Retryable = true
		}
	}
	return classified
}

// backoff returns the delay before the next attempt: 1s, 2s, ... with extra room for rate limits.
func backoff(attempt int, err *APIError) time.Duration {
	delay := backoffBaseStep << attempt
	if err.Type == ErrorTypeRateLimit {
		delay += rateLimitExtra
	}
	return delay
}

// complete calls the completer, retrying transient failures with bounded exponential backoff.
func (g *Gateway) complete(ctx context.Context, op string, req CompletionRequest) (Completion, error) {
	var lastErr *APIError
	for attempt := range maxAttempts {
		resp, err := g.completer.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = classify(err)
		g.logAPIError(ctx, op, lastErr, attempt)
		if !lastErr.Retryable || attempt == maxAttempts-1 {
			break
		}

		delay := backoff(attempt, lastErr)
		select {
		case <-ctx.Done():
			return Completion{}, fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, ctx.Err())
		case <-time.After(delay):
		}
	}
	return Completion{}, fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, lastErr)
}

func (g *Gateway) logAPIError(ctx context.Context, op string, err *APIError, attempt int) {
	attrs := []slog.Attr{
		slog.String("operation", op),
		slog.String("error_type", string(err.Type)),
		slog.Bool("retryable", err.Retryable),
		slog.Int("attempt", attempt+1),
		slog.Any("error", err.Err),
	}
	if err.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status_code", err.StatusCode))
	}
	level := slog.LevelInfo
	switch err.Type {
	case ErrorTypeAuthentication:
		level = slog.LevelError
	case ErrorTypeRateLimit, ErrorTypeServer, ErrorTypeTimeout, ErrorTypeConnection:
		level = slog.LevelWarn
	case ErrorTypeInvalidRequest, ErrorTypeCanceled, ErrorTypeUnknown:
	}
	g.logger.LogAttrs(ctx, level, "completion call failed", attrs...)
}
