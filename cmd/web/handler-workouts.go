package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/workout"
)

type workoutResponse struct {
	ID                string                        `json:"id"`
	UserID            string                        `json:"user_id"`
	Date              string                        `json:"date"`
	WorkoutType       workout.Type                  `json:"workout_type"`
	Status            workout.Status                `json:"status"`
	Details           string                        `json:"details"`
	DetailsStructured *generation.StructuredWorkout `json:"details_structured"`
	CaloriesBurned    *int                          `json:"calories_burned"`
	Rating            *int                          `json:"rating"`
	Comment           string                        `json:"comment,omitempty"`
	WellbeingAdvice   string                        `json:"wellbeing_advice,omitempty"`
	TargetMuscleGroup string                        `json:"target_muscle_group"`
	CreatedAt         time.Time                     `json:"created_at"`
}

func newWorkoutResponse(w workout.Workout) workoutResponse {
	return workoutResponse{
		ID:                w.ID,
		UserID:            w.UserID,
		Date:              w.Date.Format(time.DateOnly),
		WorkoutType:       w.Type,
		Status:            w.Status,
		Details:           w.Details.String(),
		DetailsStructured: w.Details.Structured,
		CaloriesBurned:    w.CaloriesBurned,
		Rating:            w.Rating,
		Comment:           w.Comment,
		WellbeingAdvice:   w.WellbeingAdvice,
		TargetMuscleGroup: w.TargetMuscleGroup(),
		CreatedAt:         w.CreatedAt,
	}
}

func newWorkoutResponses(workouts []workout.Workout) []workoutResponse {
	resp := make([]workoutResponse, 0, len(workouts))
	for _, w := range workouts {
		resp = append(resp, newWorkoutResponse(w))
	}
	return resp
}

type draftRequest struct {
	Mode            workout.Mode `json:"mode"`
	MuscleGroups    []string     `json:"muscle_groups"`
	WellbeingReason string       `json:"wellbeing_reason"`
	Date            string       `json:"date"`
}

func (app *application) draftPOST(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	draft, err := app.workouts.CreateDraft(r.Context(), workout.DraftRequest{
		Mode:            req.Mode,
		MuscleGroups:    req.MuscleGroups,
		WellbeingReason: req.WellbeingReason,
		Date:            date,
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, newWorkoutResponse(draft))
}

func (app *application) draftReplacePOST(w http.ResponseWriter, r *http.Request) {
	draft, err := app.workouts.ReplaceDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(draft))
}

func (app *application) exerciseReplacePOST(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndexParam(r)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	draft, err := app.workouts.ReplaceExercise(r.Context(), r.PathValue("id"), index)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(draft))
}

type completeRequest struct {
	Details        generation.StructuredWorkout `json:"details"`
	Date           string                       `json:"date"`
	CaloriesBurned *int                         `json:"calories_burned"`
	Rating         *int                         `json:"rating"`
	Comment        string                       `json:"comment"`
}

func (app *application) draftCompletePOST(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	completed, err := app.workouts.CompleteDraft(r.Context(), r.PathValue("id"), workout.CompleteRequest{
		Details:        req.Details,
		Date:           date,
		CaloriesBurned: req.CaloriesBurned,
		Rating:         req.Rating,
		Comment:        req.Comment,
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(completed))
}

type cloneRequest struct {
	Date string `json:"date"`
}

func (app *application) workoutClonePOST(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	draft, err := app.workouts.CloneToDraft(r.Context(), r.PathValue("id"), date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, newWorkoutResponse(draft))
}

func (app *application) draftDELETE(w http.ResponseWriter, r *http.Request) {
	if err := app.workouts.DeleteDraft(r.Context(), r.PathValue("id")); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) workoutsGET(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil {
			app.writeError(w, r, http.StatusBadRequest, "limit must be a number")
			return
		}
	}
	workouts, err := app.workouts.ListWorkouts(r.Context(), limit)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponses(workouts))
}

func (app *application) workoutGET(w http.ResponseWriter, r *http.Request) {
	wo, err := app.workouts.GetWorkout(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newWorkoutResponse(wo))
}

type ratingRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (app *application) workoutRatingPOST(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	if err := app.workouts.RateWorkout(r.Context(), r.PathValue("id"), req.Rating, req.Comment); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exerciseRequest struct {
	MuscleGroup       string   `json:"muscle_group"`
	ExistingExercises []string `json:"existing_exercises"`
}

func (app *application) exerciseGeneratePOST(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	exercise, err := app.workouts.GenerateExercise(r.Context(), req.MuscleGroup, req.ExistingExercises)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, exercise)
}

type statsResponse struct {
	TotalWorkouts   int    `json:"total_workouts"`
	MonthWorkouts   int    `json:"month_workouts"`
	CurrentStreak   int    `json:"current_streak"`
	LastWorkoutDate string `json:"last_workout_date,omitempty"`
}

func (app *application) statsGET(w http.ResponseWriter, r *http.Request) {
	stats, err := app.workouts.Stats(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, statsResponse(stats))
}

func (app *application) attendanceGET(w http.ResponseWriter, r *http.Request) {
	attendance, err := app.workouts.Attendance(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, attendance)
}

type rotationResponse struct {
	MuscleGroup string `json:"muscle_group"`
}

func (app *application) rotationNextGET(w http.ResponseWriter, r *http.Request) {
	group, err := app.workouts.NextMuscleGroup(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, rotationResponse{MuscleGroup: group})
}
