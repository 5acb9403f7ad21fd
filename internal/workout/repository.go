package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/fitcoach/internal/sqlite"
)

var (
	// ErrNotFound is returned when a workout is missing, owned by someone else or not in the required status.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// TxFunc runs further statements in the transaction that updates a draft. Returning an error rolls the whole
// transaction back.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// workoutRepository persists workouts of the authenticated user.
type workoutRepository interface {
	// Create inserts w and returns it with the timestamps set by the database.
	Create(ctx context.Context, w Workout) (Workout, error)
	// Get returns a workout in any status.
	Get(ctx context.Context, id string) (Workout, error)
	// List returns workouts in status, newest first. An empty status lists all workouts.
	List(ctx context.Context, status Status, limit int) ([]Workout, error)
	// CompletedDates returns the dates of completed workouts, newest first.
	CompletedDates(ctx context.Context, limit int) ([]string, error)
	// CountCompleted counts completed workouts dated on or after since.
	CountCompleted(ctx context.Context, since time.Time) (int, error)
	// UpdateDraft applies updateFn to a draft and saves it only if the row is still a draft. A workout that is
	// missing or no longer a draft yields ErrNotFound. inTx, when not nil, runs in the same transaction after the
	// update and its error rolls the update back.
	UpdateDraft(ctx context.Context, id string, updateFn func(w *Workout) (bool, error), inTx TxFunc) (Workout, error)
	// Rate sets the rating and comment of a completed workout.
	Rate(ctx context.Context, id string, rating int, comment string) error
	// DeleteDraft removes a draft.
	DeleteDraft(ctx context.Context, id string) error
}

// profileRepository reads the user signal and performs the two write-backs this package owns.
type profileRepository interface {
	// Get returns the profile or a zero Profile when the user has none.
	Get(ctx context.Context) (Profile, error)
	Save(ctx context.Context, p Profile) error
	SetLastMuscleGroup(ctx context.Context, group string) error
	TouchActive(ctx context.Context, at time.Time) error
}

type mealRepository interface {
	Create(ctx context.Context, m Meal) (Meal, error)
	// ListRecent returns meals newest first.
	ListRecent(ctx context.Context, limit int) ([]Meal, error)
}

// repository provides access to all repositories.
type repository struct {
	workouts workoutRepository
	profiles profileRepository
	meals    mealRepository
}

// repositoryFactory creates repositories.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{db: db, logger: logger}
}

func (f *repositoryFactory) newRepository() *repository {
	base := baseRepository{db: f.db, logger: f.logger}
	return &repository{
		workouts: &sqliteWorkoutRepository{baseRepository: base},
		profiles: &sqliteProfileRepository{baseRepository: base},
		meals:    &sqliteMealRepository{baseRepository: base},
	}
}

type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

// closeRows is meant to be deferred with the named error return of the querying function.
func closeRows(rows *sql.Rows, err *error) {
	if closeErr := rows.Close(); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("close rows: %w", closeErr))
	}
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{Int64: 0, Valid: false}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
