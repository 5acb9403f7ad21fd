package main

import (
	"net/http"
	"time"

	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/workout"
)

type profileBody struct {
	generation.Athlete
	SupersetsEnabled     *bool  `json:"supersets_enabled"`
	CustomSplitFrequency *int   `json:"custom_split_frequency"`
	IsPro                bool   `json:"is_pro"`
	LastMuscleGroup      string `json:"last_muscle_group,omitempty"`
}

func (app *application) profileGET(w http.ResponseWriter, r *http.Request) {
	p, err := app.workouts.Profile(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, profileBody{
		Athlete:              p.Athlete,
		SupersetsEnabled:     p.SupersetsEnabled,
		CustomSplitFrequency: p.CustomSplitFrequency,
		IsPro:                p.IsPro,
		LastMuscleGroup:      p.LastMuscleGroup,
	})
}

// profilePUT replaces the profile fields used for generation. The rotation position is owned by the workout
// lifecycle and cannot be set here.
func (app *application) profilePUT(w http.ResponseWriter, r *http.Request) {
	var req profileBody
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	if err := app.workouts.SaveProfile(r.Context(), workout.Profile{
		Athlete:              req.Athlete,
		SupersetsEnabled:     req.SupersetsEnabled,
		CustomSplitFrequency: req.CustomSplitFrequency,
		IsPro:                req.IsPro,
		LastMuscleGroup:      "",
		LastActiveAt:         nil,
	}); err != nil {
		app.handleError(w, r, err)
		return
	}
	app.profileGET(w, r)
}

type mealBody struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Calories    *int     `json:"calories"`
	Proteins    *float64 `json:"proteins"`
	Fats        *float64 `json:"fats"`
	Carbs       *float64 `json:"carbs"`
}

func (app *application) mealPOST(w http.ResponseWriter, r *http.Request) {
	var req mealBody
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	m := workout.Meal{
		ID:          "",
		Date:        time.Time{},
		Description: req.Description,
		Calories:    req.Calories,
		Proteins:    req.Proteins,
		Fats:        req.Fats,
		Carbs:       req.Carbs,
		CreatedAt:   time.Time{},
	}
	if date != nil {
		m.Date = *date
	}
	if m, err = app.workouts.AddMeal(r.Context(), m); err != nil {
		app.handleError(w, r, err)
		return
	}
	req.ID = m.ID
	req.Date = m.Date.Format(time.DateOnly)
	app.writeJSON(w, r, http.StatusCreated, req)
}

func (app *application) weeklyMenuPOST(w http.ResponseWriter, r *http.Request) {
	var targets generation.NutritionTargets
	if err := decodeJSON(r, &targets); err != nil {
		app.handleError(w, r, err)
		return
	}
	days, err := app.workouts.WeeklyMenu(r.Context(), targets)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, days)
}
