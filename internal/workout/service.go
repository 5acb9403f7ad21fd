// Package workout owns the draft and completed workout lifecycle together with the attendance and rotation
// signals that decide what the next draft trains.
package workout

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/fitcoach/internal/cache"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/sqlite"
)

const (
	defaultAttendanceTTL = 5 * time.Minute
	historyContextSize   = 3
	defaultListLimit     = 10
	maxListLimit         = 100
	streakFetchLimit     = 60
)

// Config tunes a Service. The zero value is usable.
type Config struct {
	// Cache stores attendance signals. Nil uses an in-process cache.
	Cache cache.Cache
	// AttendanceTTL defaults to five minutes.
	AttendanceTTL time.Duration
	// Now defaults to [time.Now].
	Now func() time.Time
	// RandIntN picks the fallback group of wellbeing drafts. Defaults to [rand.IntN].
	RandIntN func(n int) int
}

// Service handles the business logic for workout management.
type Service struct {
	repo       *repository
	gateway    *generation.Gateway
	rotator    *Rotator
	calculator *attendanceCalculator
	logger     *slog.Logger
	now        func() time.Time
	randIntN   func(n int) int
	background sync.WaitGroup
}

// NewService creates a new workout service.
func NewService(db *sqlite.Database, logger *slog.Logger, gateway *generation.Gateway, cfg Config) (*Service, error) {
	rotator, err := NewRotator()
	if err != nil {
		return nil, fmt.Errorf("new rotator: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory(cfg.Now)
	}
	if cfg.AttendanceTTL <= 0 {
		cfg.AttendanceTTL = defaultAttendanceTTL
	}
	if cfg.RandIntN == nil {
		cfg.RandIntN = rand.IntN
	}
	repo := newRepositoryFactory(db, logger).newRepository()
	return &Service{
		repo:    repo,
		gateway: gateway,
		rotator: rotator,
		calculator: &attendanceCalculator{
			workouts: repo.workouts,
			cache:    cfg.Cache,
			ttl:      cfg.AttendanceTTL,
			now:      cfg.Now,
			logger:   logger,
		},
		logger:     logger,
		now:        cfg.Now,
		randIntN:   cfg.RandIntN,
		background: sync.WaitGroup{},
	}, nil
}

// Wait blocks until background writes started by MarkActive have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Attendance returns the training frequency signal of the authenticated user. History read failures degrade to
// the default frequency instead of failing.
func (s *Service) Attendance(ctx context.Context) (Attendance, error) {
	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return Attendance{}, fmt.Errorf("get profile: %w", err)
	}
	return s.attendance(ctx, p), nil
}

// NextMuscleGroup returns the group the next rotation draft would train without advancing the rotation.
func (s *Service) NextMuscleGroup(ctx context.Context) (string, error) {
	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return s.rotator.Next(p), nil
}

// GetWorkout returns a workout of the authenticated user in any status.
func (s *Service) GetWorkout(ctx context.Context, id string) (Workout, error) {
	w, err := s.repo.workouts.Get(ctx, id)
	if err != nil {
		return Workout{}, fmt.Errorf("get workout %s: %w", id, err)
	}
	return w, nil
}

// ListWorkouts lists completed workouts, newest first. limit is clamped to [1, 100] and defaults to 10.
func (s *Service) ListWorkouts(ctx context.Context, limit int) ([]Workout, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	workouts, err := s.repo.workouts.List(ctx, StatusCompleted, min(limit, maxListLimit))
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return workouts, nil
}

// RecentWorkouts lists workouts in any status, newest first.
func (s *Service) RecentWorkouts(ctx context.Context, limit int) ([]Workout, error) {
	workouts, err := s.repo.workouts.List(ctx, "", limit)
	if err != nil {
		return nil, fmt.Errorf("list recent workouts: %w", err)
	}
	return workouts, nil
}

// RateWorkout rates a completed workout from 1 to 5.
func (s *Service) RateWorkout(ctx context.Context, id string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d: %w", rating, ErrInvalidInput)
	}
	if err := s.repo.workouts.Rate(ctx, id, rating, comment); err != nil {
		return fmt.Errorf("rate workout %s: %w", id, err)
	}
	return nil
}

// Stats summarises the completed history.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.workouts.CountCompleted(ctx, time.Time{})
	if err != nil {
		return Stats{}, fmt.Errorf("count total: %w", err)
	}
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	month, err := s.repo.workouts.CountCompleted(ctx, monthStart)
	if err != nil {
		return Stats{}, fmt.Errorf("count month: %w", err)
	}
	dates, err := s.repo.workouts.CompletedDates(ctx, streakFetchLimit)
	if err != nil {
		return Stats{}, fmt.Errorf("completed dates: %w", err)
	}
	stats := Stats{
		TotalWorkouts:   total,
		MonthWorkouts:   month,
		CurrentStreak:   currentStreak(dates),
		LastWorkoutDate: "",
	}
	if len(dates) > 0 {
		stats.LastWorkoutDate = dates[0]
	}
	return stats, nil
}

// currentStreak counts consecutive training days ending at the latest date. dates are newest first and may repeat.
func currentStreak(dates []string) int {
	var (
		streak int
		prev   time.Time
	)
	for _, s := range dates {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			continue
		}
		switch {
		case streak == 0:
			streak = 1
		case d.Equal(prev):
			continue
		case prev.AddDate(0, 0, -1).Equal(d):
			streak++
		default:
			return streak
		}
		prev = d
	}
	return streak
}

// Profile returns the user signal. Users without a stored profile get the zero value.
func (s *Service) Profile(ctx context.Context) (Profile, error) {
	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// SaveProfile stores the profile fields owned by the profile collaborator.
func (s *Service) SaveProfile(ctx context.Context, p Profile) error {
	if f := p.CustomSplitFrequency; f != nil && (*f < minFrequency || *f > maxFrequency) {
		return fmt.Errorf("custom split frequency %d: %w", *f, ErrInvalidInput)
	}
	if err := s.repo.profiles.Save(ctx, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// AddMeal records a meal used as trainer chat context. The date defaults to today.
func (s *Service) AddMeal(ctx context.Context, m Meal) (Meal, error) {
	if m.Description == "" {
		return Meal{}, fmt.Errorf("empty description: %w", ErrInvalidInput)
	}
	m.ID = uuid.NewString()
	if m.Date.IsZero() {
		m.Date = s.now()
	}
	m, err := s.repo.meals.Create(ctx, m)
	if err != nil {
		return Meal{}, fmt.Errorf("add meal: %w", err)
	}
	return m, nil
}

// RecentMeals lists meals newest first.
func (s *Service) RecentMeals(ctx context.Context, limit int) ([]Meal, error) {
	meals, err := s.repo.meals.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	return meals, nil
}

// WeeklyMenu plans seven days of meals for the authenticated user.
func (s *Service) WeeklyMenu(ctx context.Context, targets generation.NutritionTargets) ([]generation.DayMenu, error) {
	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	days, err := s.gateway.WeeklyMenu(ctx, generation.MenuBrief{Athlete: p.Athlete, Targets: targets})
	if err != nil {
		return nil, fmt.Errorf("weekly menu: %w", err)
	}
	return days, nil
}

// pastWorkouts returns the completed history used as generation context.
func (s *Service) pastWorkouts(ctx context.Context) ([]generation.PastWorkout, error) {
	workouts, err := s.repo.workouts.List(ctx, StatusCompleted, historyContextSize)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	history := make([]generation.PastWorkout, 0, len(workouts))
	for _, w := range workouts {
		history = append(history, generation.PastWorkout{
			Date:      formatDate(w.Date),
			Type:      string(w.Type),
			Rating:    w.Rating,
			Comment:   w.Comment,
			Details:   w.Details.String(),
			Exercises: w.Details.ExerciseNames(),
		})
	}
	return history, nil
}
