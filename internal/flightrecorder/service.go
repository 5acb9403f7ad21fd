// Package flightrecorder keeps a rolling execution trace and writes it to disk when a request runs out of time.
// Generation requests wait on the completion service for minutes, so a snapshot of the last moments before a
// timeout is the quickest way to tell a slow upstream from a stuck handler.
package flightrecorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/fitcoach/internal/errors"
)

const (
	defaultMinAge   = 5 * time.Minute
	defaultMaxBytes = 64 * 1024 * 1024 // 64MB
	defaultCooldown = 30 * time.Minute
)

// Service manages flight recording for timeout detection.
type Service struct {
	logger          *slog.Logger
	flightRecorder  *trace.FlightRecorder
	tracesDirectory string
	minAge          time.Duration
	maxBytes        uint64
	cooldown        time.Duration
	now             func() time.Time

	mu sync.Mutex
	// lastCapture is keyed by route so that a flood of timeouts on one route does not hide another.
	lastCapture map[string]time.Time
}

// Config configures the flight recorder service. Zero durations and sizes use defaults.
type Config struct {
	Logger          *slog.Logger
	MinAge          time.Duration
	MaxBytes        uint64
	TracesDirectory string
	// Cooldown is the minimum time between captures for the same route.
	Cooldown time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// New creates a new flight recorder service.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.TracesDirectory == "" {
		return nil, errors.New("traces directory is required")
	}

	if stat, err := os.Stat(cfg.TracesDirectory); err != nil {
		if err = os.MkdirAll(cfg.TracesDirectory, 0o750); err != nil {
			return nil, errors.Wrap(err, "create traces directory", slog.String("dir", cfg.TracesDirectory))
		}
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("traces path is not a directory: %s", cfg.TracesDirectory)
	}

	s := &Service{
		logger:          cfg.Logger,
		flightRecorder:  nil,
		tracesDirectory: cfg.TracesDirectory,
		minAge:          cfg.MinAge,
		maxBytes:        cfg.MaxBytes,
		cooldown:        cfg.Cooldown,
		now:             cfg.Now,
		mu:              sync.Mutex{},
		lastCapture:     make(map[string]time.Time),
	}
	if s.minAge == 0 {
		s.minAge = defaultMinAge
	}
	if s.maxBytes == 0 {
		s.maxBytes = defaultMaxBytes
	}
	if s.cooldown == 0 {
		s.cooldown = defaultCooldown
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.flightRecorder = trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   s.minAge,
		MaxBytes: s.maxBytes,
	})
	return s, nil
}

// Start begins flight recording.
func (s *Service) Start(ctx context.Context) error {
	if err := s.flightRecorder.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.Duration("min_age", s.minAge),
		slog.Uint64("max_bytes", s.maxBytes),
		slog.Duration("cooldown", s.cooldown))
	return nil
}

// Stop ends flight recording.
func (s *Service) Stop(ctx context.Context) {
	s.flightRecorder.Stop()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// CaptureTimeoutTrace writes the recorded trace for a request to route that timed out. Captures for the same route
// within the cooldown are skipped.
func (s *Service) CaptureTimeoutTrace(ctx context.Context, route string) {
	now := s.now()
	s.mu.Lock()
	last, seen := s.lastCapture[route]
	if seen && now.Sub(last) < s.cooldown {
		s.mu.Unlock()
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture due to cooldown",
			slog.String("route", route),
			slog.Time("last_capture", last),
			slog.Duration("remaining_cooldown", s.cooldown-now.Sub(last)))
		return
	}
	s.lastCapture[route] = now
	s.mu.Unlock()

	fPath := filepath.Join(s.tracesDirectory, TraceFileName(route, now))
	if err := s.writeTrace(ctx, fPath); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to capture timeout trace",
			slog.String("route", route), errors.SlogError(err))
	}
}

func (s *Service) writeTrace(ctx context.Context, fPath string) (err error) {
	file, err := os.Create(fPath)
	if err != nil {
		return errors.Wrap(err, "create trace file", slog.String("file", fPath))
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close trace file", slog.String("file", fPath)))
		}
	}()

	bytesWritten, err := s.flightRecorder.WriteTo(file)
	if err != nil {
		return errors.Wrap(err, "write trace", slog.String("file", fPath))
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "captured timeout trace",
		slog.String("file", fPath),
		slog.Int64("bytes", bytesWritten))
	return nil
}

// TraceFileName names the trace of a route timing out at t, e.g.
// "timeout-POST_api_workouts_drafts-20261015-100000.trace".
func TraceFileName(route string, t time.Time) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		case r == '{' || r == '}':
			return -1
		default:
			return '_'
		}
	}, strings.ReplaceAll(route, " /", "_"))
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "request"
	}
	return fmt.Sprintf("timeout-%s-%s.trace", slug, t.UTC().Format("20060102-150405"))
}
