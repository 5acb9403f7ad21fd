package workout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/myrjola/fitcoach/internal/contexthelpers"
)

// sqliteMealRepository implements mealRepository.
type sqliteMealRepository struct {
	baseRepository
}

func (r *sqliteMealRepository) Create(ctx context.Context, m Meal) (Meal, error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	var createdAt string
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO meals (id, user_id, date, description, calories, proteins, fats, carbs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		m.ID, userID, formatDate(m.Date), m.Description, nullInt(m.Calories),
		nullFloat(m.Proteins), nullFloat(m.Fats), nullFloat(m.Carbs),
	).Scan(&createdAt)
	if err != nil {
		return Meal{}, fmt.Errorf("insert meal: %w", err)
	}
	if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Meal{}, err
	}
	return m, nil
}

func (r *sqliteMealRepository) ListRecent(ctx context.Context, limit int) (_ []Meal, err error) {
	userID := contexthelpers.AuthenticatedUserID(ctx)
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, date, description, calories, proteins, fats, carbs, created_at
		FROM meals
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	defer closeRows(rows, &err)

	var meals []Meal
	for rows.Next() {
		var (
			m                     Meal
			date, createdAt       string
			calories              sql.NullInt64
			proteins, fats, carbs sql.NullFloat64
		)
		if err = rows.Scan(&m.ID, &date, &m.Description, &calories, &proteins, &fats, &carbs,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		if m.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if m.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		m.Calories = intPtr(calories)
		m.Proteins = floatPtr(proteins)
		m.Fats = floatPtr(fats)
		m.Carbs = floatPtr(carbs)
		meals = append(meals, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return meals, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{Float64: 0, Valid: false}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
