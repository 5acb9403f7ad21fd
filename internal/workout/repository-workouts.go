package workout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/fitcoach/internal/contexthelpers"
	"github.com/myrjola/fitcoach/internal/generation"
)

// sqliteWorkoutRepository implements workoutRepository.
type sqliteWorkoutRepository struct {
	baseRepository
}

const workoutColumns = `id, user_id, date, workout_type, status, details, details_format, calories_burned, rating,
       comment, wellbeing_advice, generation_context, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteWorkoutRepository) Create(ctx context.Context, w Workout) (Workout, error) {
	details, format, err := w.Details.Encode()
	if err != nil {
		return Workout{}, err
	}
	genCtx, err := json.Marshal(w.Context)
	if err != nil {
		return Workout{}, fmt.Errorf("encode generation context: %w", err)
	}
	w.UserID = contexthelpers.AuthenticatedUserID(ctx)

	var createdAt, updatedAt string
	err = r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO workouts (id, user_id, date, workout_type, status, details, details_format, calories_burned,
		                      rating, comment, wellbeing_advice, generation_context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`,
		w.ID, w.UserID, formatDate(w.Date), w.Type, w.Status, details, format, nullInt(w.CaloriesBurned),
		nullInt(w.Rating), nullString(w.Comment), nullString(w.WellbeingAdvice), string(genCtx),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return Workout{}, fmt.Errorf("insert workout: %w", err)
	}
	if w.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Workout{}, err
	}
	if w.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Workout{}, err
	}
	return w, nil
}

func (r *sqliteWorkoutRepository) Get(ctx context.Context, id string) (Workout, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	row := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT `+workoutColumns+`
		FROM workouts
		WHERE id = ? AND user_id = ?`, id, userID)
	w, err := scanWorkout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Workout{}, ErrNotFound
	}
	if err != nil {
		return Workout{}, fmt.Errorf("query workout: %w", err)
	}
	return w, nil
}

func (r *sqliteWorkoutRepository) List(ctx context.Context, status Status, limit int) (_ []Workout, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT `+workoutColumns+`
		FROM workouts
		WHERE user_id = ? AND (? = '' OR status = ?)
		ORDER BY date DESC, created_at DESC, rowid DESC
		LIMIT ?`, userID, status, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query workouts: %w", err)
	}
	defer closeRows(rows, &err)

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if w, err = scanWorkout(rows); err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return workouts, nil
}

func (r *sqliteWorkoutRepository) CompletedDates(ctx context.Context, limit int) (_ []string, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT date
		FROM workouts
		WHERE user_id = ? AND status = 'completed'
		ORDER BY date DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query completed dates: %w", err)
	}
	defer closeRows(rows, &err)

	var dates []string
	for rows.Next() {
		var date string
		if err = rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, date)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return dates, nil
}

func (r *sqliteWorkoutRepository) CountCompleted(ctx context.Context, since time.Time) (int, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	var n int
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM workouts
		WHERE user_id = ? AND status = 'completed' AND date >= ?`, userID, formatDate(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed workouts: %w", err)
	}
	return n, nil
}

func (r *sqliteWorkoutRepository) UpdateDraft(
	ctx context.Context,
	id string,
	updateFn func(w *Workout) (bool, error),
	inTx TxFunc,
) (Workout, error) {
	w, err := r.Get(ctx, id)
	if err != nil {
		return Workout{}, fmt.Errorf("get workout for update: %w", err)
	}
	if w.Status != StatusDraft {
		return Workout{}, ErrNotFound
	}

	updated, err := updateFn(&w)
	if err != nil {
		return Workout{}, fmt.Errorf("update function: %w", err)
	}
	if !updated {
		return w, nil
	}

	details, format, err := w.Details.Encode()
	if err != nil {
		return Workout{}, err
	}
	genCtx, err := json.Marshal(w.Context)
	if err != nil {
		return Workout{}, fmt.Errorf("encode generation context: %w", err)
	}

	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return Workout{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer r.db.Rollback(ctx, tx)()

	// The status guard loses against a concurrent completion, clone source or delete.
	var updatedAt string
	err = tx.QueryRowContext(ctx, `
		UPDATE workouts
		SET date               = ?,
		    workout_type       = ?,
		    status             = ?,
		    details            = ?,
		    details_format     = ?,
		    calories_burned    = ?,
		    rating             = ?,
		    comment            = ?,
		    wellbeing_advice   = ?,
		    generation_context = ?,
		    updated_at         = STRFTIME('%Y-%m-%dT%H:%M:%fZ')
		WHERE id = ? AND user_id = ? AND status = 'draft'
		RETURNING updated_at`,
		formatDate(w.Date), w.Type, w.Status, details, format, nullInt(w.CaloriesBurned), nullInt(w.Rating),
		nullString(w.Comment), nullString(w.WellbeingAdvice), string(genCtx), w.ID, w.UserID,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Workout{}, ErrNotFound
	}
	if err != nil {
		return Workout{}, fmt.Errorf("update draft: %w", err)
	}
	if inTx != nil {
		if err = inTx(ctx, tx); err != nil {
			return Workout{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return Workout{}, fmt.Errorf("commit transaction: %w", err)
	}
	if w.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Workout{}, err
	}
	return w, nil
}

func (r *sqliteWorkoutRepository) Rate(ctx context.Context, id string, rating int, comment string) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	res, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE workouts
		SET rating = ?, comment = ?, updated_at = STRFTIME('%Y-%m-%dT%H:%M:%fZ')
		WHERE id = ? AND user_id = ? AND status = 'completed'`, rating, nullString(comment), id, userID)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	return requireAffected(res)
}

func (r *sqliteWorkoutRepository) DeleteDraft(ctx context.Context, id string) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	res, err := r.db.ReadWrite.ExecContext(ctx, `
		DELETE FROM workouts
		WHERE id = ? AND user_id = ? AND status = 'draft'`, id, userID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWorkout(row rowScanner) (Workout, error) {
	var (
		w                             Workout
		date, details, format, genCtx string
		createdAt, updatedAt          string
		calories, rating              sql.NullInt64
		comment, advice               sql.NullString
	)
	if err := row.Scan(&w.ID, &w.UserID, &date, &w.Type, &w.Status, &details, &format, &calories, &rating,
		&comment, &advice, &genCtx, &createdAt, &updatedAt); err != nil {
		return Workout{}, err //nolint:wrapcheck // callers wrap and match sql.ErrNoRows.
	}

	var err error
	if w.Date, err = time.Parse(time.DateOnly, date); err != nil {
		return Workout{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if w.Details, err = DecodeDetails(details, DetailsFormat(format)); err != nil {
		return Workout{}, err
	}
	// Legacy rows may carry an empty or foreign context.
	if genCtx != "" {
		if err = json.Unmarshal([]byte(genCtx), &w.Context); err != nil {
			w.Context = GenerationContext{}
		}
	}
	w.CaloriesBurned = intPtr(calories)
	w.Rating = intPtr(rating)
	w.Comment = comment.String
	w.WellbeingAdvice = advice.String
	if w.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Workout{}, err
	}
	if w.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Workout{}, err
	}
	return w, nil
}

// Encode serializes d for storage.
func (d Details) Encode() (string, DetailsFormat, error) {
	if d.Structured == nil {
		return d.Text, FormatText, nil
	}
	b, err := json.Marshal(d.Structured)
	if err != nil {
		return "", "", fmt.Errorf("encode details: %w", err)
	}
	return string(b), FormatStructured, nil
}

// DecodeDetails is the inverse of [Details.Encode].
func DecodeDetails(s string, format DetailsFormat) (Details, error) {
	if format != FormatStructured {
		return Details{Structured: nil, Text: s}, nil
	}
	var sw generation.StructuredWorkout
	if err := json.Unmarshal([]byte(s), &sw); err != nil {
		return Details{}, fmt.Errorf("decode details: %w", err)
	}
	return Details{Structured: &sw, Text: ""}, nil
}
