package workout

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/myrjola/fitcoach/internal/cache"
	"github.com/myrjola/fitcoach/internal/contexthelpers"
)

const (
	attendanceWindowDays = 30
	attendanceFetchLimit = 100
	daysPerWeek          = 7
)

// attendanceHistory is the history derived part of Attendance. It is what gets cached; the profile derived part
// is recombined on every read.
type attendanceHistory struct {
	RealFrequency   int     `json:"real_frequency"`
	TotalWorkouts   int     `json:"total_workouts"`
	AverageWeekly   float64 `json:"average_weekly"`
	LastWorkoutDate string  `json:"last_workout_date,omitempty"`
}

type attendanceCalculator struct {
	workouts workoutRepository
	cache    cache.Cache
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func attendanceKey(ctx context.Context) string {
	return "attendance:" + contexthelpers.AuthenticatedUserID(ctx)
}

// history never fails. Read errors fall back to the default frequency with an empty history and are not cached.
func (c *attendanceCalculator) history(ctx context.Context) attendanceHistory {
	key := attendanceKey(ctx)
	var h attendanceHistory
	found, err := c.cache.Get(ctx, key, &h)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "attendance cache read failed", slog.Any("error", err))
	}
	if found {
		return h
	}

	dates, err := c.workouts.CompletedDates(ctx, attendanceFetchLimit)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "attendance history unavailable, using default frequency",
			slog.Any("error", err))
		return attendanceHistory{RealFrequency: defaultFrequency, TotalWorkouts: 0, AverageWeekly: 0,
			LastWorkoutDate: ""}
	}
	h = computeAttendance(dates, c.now())
	if err = c.cache.Set(ctx, key, h, c.ttl); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "attendance cache write failed", slog.Any("error", err))
	}
	return h
}

// invalidate drops the cached history so the next read sees a new completion.
func (c *attendanceCalculator) invalidate(ctx context.Context) {
	if err := c.cache.Delete(ctx, attendanceKey(ctx)); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "attendance cache invalidation failed", slog.Any("error", err))
	}
}

// computeAttendance counts completed workouts dated within the trailing window. dates are newest first and
// unparseable dates are ignored. Dates before the window count for nothing, not even the last workout date.
func computeAttendance(dates []string, now time.Time) attendanceHistory {
	cutoff := now.AddDate(0, 0, -attendanceWindowDays)
	var h attendanceHistory
	for _, s := range dates {
		d, err := time.ParseInLocation(time.DateOnly, s, now.Location())
		if err != nil {
			continue
		}
		if d.Before(cutoff) {
			continue
		}
		if h.LastWorkoutDate == "" {
			h.LastWorkoutDate = s
		}
		h.TotalWorkouts++
	}
	if h.TotalWorkouts == 0 {
		return h
	}
	average := float64(h.TotalWorkouts) / (attendanceWindowDays / float64(daysPerWeek))
	h.AverageWeekly = math.Round(average*10) / 10 //nolint:mnd // one decimal.
	h.RealFrequency = min(max(int(math.Round(average)), minFrequency), maxFrequency)
	return h
}

// attendance combines the cached history with the profile's split override and superset preference.
func (s *Service) attendance(ctx context.Context, p Profile) Attendance {
	h := s.calculator.history(ctx)
	a := Attendance{
		RealFrequency:               h.RealFrequency,
		TotalWorkouts:               h.TotalWorkouts,
		AverageWeekly:               h.AverageWeekly,
		LastWorkoutDate:             h.LastWorkoutDate,
		RecommendedSplit:            nil,
		RecommendedSplitDescription: "",
		CustomSplitFrequency:        nil,
		CustomSplitGroups:           nil,
		IsCustomSplit:               false,
		SupersetsEnabled:            supersetsEnabled(p),
	}
	display := h.RealFrequency
	if custom := p.CustomSplitFrequency; custom != nil && *custom >= minFrequency && *custom <= maxFrequency {
		a.CustomSplitFrequency = custom
		a.CustomSplitGroups = s.rotator.Split(*custom)
		if *custom != h.RealFrequency {
			a.IsCustomSplit = true
			display = *custom
		}
	}
	a.RecommendedSplit = s.rotator.Split(display)
	a.RecommendedSplitDescription = s.rotator.Description(display)
	return a
}

// displayFrequency is the frequency the recommended split was chosen for.
func (a Attendance) displayFrequency() int {
	switch {
	case a.IsCustomSplit && a.CustomSplitFrequency != nil:
		return *a.CustomSplitFrequency
	case a.RealFrequency == 0:
		return defaultFrequency
	}
	return a.RealFrequency
}
