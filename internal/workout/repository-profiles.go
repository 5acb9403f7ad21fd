package workout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/fitcoach/internal/contexthelpers"
)

// sqliteProfileRepository implements profileRepository.
type sqliteProfileRepository struct {
	baseRepository
}

func (r *sqliteProfileRepository) Get(ctx context.Context) (Profile, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)

	var (
		p                                        Profile
		perWeek, height, weight, age, customFreq sql.NullInt64
		supersets                                sql.NullBool
		lastGroup, lastActive                    sql.NullString
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT gender, level, goal, equipment, workout_formats, health_issues, location, workout_duration,
		       workouts_per_week, height_cm, weight_kg, age, supersets_enabled, custom_split_frequency, is_pro,
		       last_muscle_group, last_active_at
		FROM users
		WHERE id = ?`, userID).Scan(
		&p.Gender, &p.Level, &p.Goal, &p.Equipment, &p.WorkoutFormats, &p.HealthIssues, &p.Location,
		&p.WorkoutDuration, &perWeek, &height, &weight, &age, &supersets, &customFreq, &p.IsPro,
		&lastGroup, &lastActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}

	p.WorkoutsPerWeek = int(perWeek.Int64)
	p.HeightCm = int(height.Int64)
	p.WeightKg = int(weight.Int64)
	p.Age = int(age.Int64)
	if supersets.Valid {
		p.SupersetsEnabled = &supersets.Bool
	}
	p.CustomSplitFrequency = intPtr(customFreq)
	p.LastMuscleGroup = lastGroup.String
	if lastActive.Valid {
		var t time.Time
		if t, err = parseTimestamp(lastActive.String); err != nil {
			return Profile{}, err
		}
		p.LastActiveAt = &t
	}
	return p, nil
}

// Save upserts the profile fields owned by the profile collaborator. The write-back fields are left alone.
func (r *sqliteProfileRepository) Save(ctx context.Context, p Profile) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	var supersets sql.NullBool
	if p.SupersetsEnabled != nil {
		supersets = sql.NullBool{Bool: *p.SupersetsEnabled, Valid: true}
	}
	positive := func(n int) sql.NullInt64 {
		return sql.NullInt64{Int64: int64(n), Valid: n > 0}
	}

	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO users (id, gender, level, goal, equipment, workout_formats, health_issues, location,
		                   workout_duration, workouts_per_week, height_cm, weight_kg, age, supersets_enabled,
		                   custom_split_frequency, is_pro)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			gender                 = excluded.gender,
			level                  = excluded.level,
			goal                   = excluded.goal,
			equipment              = excluded.equipment,
			workout_formats        = excluded.workout_formats,
			health_issues          = excluded.health_issues,
			location               = excluded.location,
			workout_duration       = excluded.workout_duration,
			workouts_per_week      = excluded.workouts_per_week,
			height_cm              = excluded.height_cm,
			weight_kg              = excluded.weight_kg,
			age                    = excluded.age,
			supersets_enabled      = excluded.supersets_enabled,
			custom_split_frequency = excluded.custom_split_frequency,
			is_pro                 = excluded.is_pro`,
		userID, p.Gender, p.Level, p.Goal, p.Equipment, p.WorkoutFormats, p.HealthIssues, p.Location,
		p.WorkoutDuration, positive(p.WorkoutsPerWeek), positive(p.HeightCm), positive(p.WeightKg), positive(p.Age),
		supersets, nullInt(p.CustomSplitFrequency), p.IsPro,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepository) SetLastMuscleGroup(ctx context.Context, group string) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if _, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO users (id, last_muscle_group) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET last_muscle_group = excluded.last_muscle_group`,
		userID, group); err != nil {
		return fmt.Errorf("update last muscle group: %w", err)
	}
	return nil
}

func (r *sqliteProfileRepository) TouchActive(ctx context.Context, at time.Time) error {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	if _, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO users (id, last_active_at) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET last_active_at = excluded.last_active_at`,
		userID, formatTimestamp(at)); err != nil {
		return fmt.Errorf("update last active: %w", err)
	}
	return nil
}
