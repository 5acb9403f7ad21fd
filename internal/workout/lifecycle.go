package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/fitcoach/internal/generation"
)

// CreateDraft generates a new draft for the authenticated user.
func (s *Service) CreateDraft(ctx context.Context, req DraftRequest) (Workout, error) {
	if req.Mode == "" {
		req.Mode = ModeRotation
	}
	if !req.Mode.Valid() {
		return Workout{}, fmt.Errorf("mode %q: %w", req.Mode, ErrInvalidInput)
	}
	genCtx := GenerationContext{Mode: req.Mode, SelectedMuscleGroups: nil, TargetMuscleGroup: "", WellbeingReason: ""}
	switch req.Mode {
	case ModeSelected:
		for _, g := range req.MuscleGroups {
			if g = strings.TrimSpace(g); g != "" {
				genCtx.SelectedMuscleGroups = append(genCtx.SelectedMuscleGroups, g)
			}
		}
	case ModeWellbeing:
		genCtx.WellbeingReason = strings.TrimSpace(req.WellbeingReason)
	case ModeRotation:
	}

	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return Workout{}, fmt.Errorf("get profile: %w", err)
	}
	if genCtx, err = s.resolveTarget(ctx, p, genCtx); err != nil {
		return Workout{}, err
	}
	sw, err := s.generateDraft(ctx, p, genCtx, nil)
	if err != nil {
		return Workout{}, fmt.Errorf("create draft: %w", err)
	}

	date := s.now()
	if req.Date != nil {
		date = *req.Date
	}
	w, err := s.repo.workouts.Create(ctx, Workout{
		ID:              uuid.NewString(),
		UserID:          "",
		Date:            date,
		Type:            req.Mode.workoutType(),
		Status:          StatusDraft,
		Details:         Details{Structured: &sw, Text: ""},
		CaloriesBurned:  sw.EstimatedCalories,
		Rating:          nil,
		Comment:         "",
		WellbeingAdvice: sw.WellbeingAdvice,
		Context:         genCtx,
		CreatedAt:       time.Time{},
		UpdatedAt:       time.Time{},
	})
	if err != nil {
		return Workout{}, fmt.Errorf("create draft: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "created draft", slog.String("id", w.ID),
		slog.String("mode", string(genCtx.Mode)), slog.String("target", genCtx.TargetMuscleGroup))
	s.MarkActive(ctx)
	return w, nil
}

// ReplaceDraft regenerates a draft in the mode it was created with. Rotation drafts advance the rotation.
func (s *Service) ReplaceDraft(ctx context.Context, id string) (Workout, error) {
	current, err := s.draft(ctx, id)
	if err != nil {
		return Workout{}, err
	}
	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return Workout{}, fmt.Errorf("get profile: %w", err)
	}
	genCtx := current.Context
	if !genCtx.Mode.Valid() {
		genCtx.Mode = ModeRotation
	}
	if genCtx, err = s.resolveTarget(ctx, p, genCtx); err != nil {
		return Workout{}, err
	}
	var avoid []string
	if genCtx.Mode == ModeWellbeing {
		avoid = current.Details.ExerciseNames()
	}
	sw, err := s.generateDraft(ctx, p, genCtx, avoid)
	if err != nil {
		return Workout{}, fmt.Errorf("replace draft %s: %w", id, err)
	}

	w, err := s.repo.workouts.UpdateDraft(ctx, id, func(w *Workout) (bool, error) {
		w.Details = Details{Structured: &sw, Text: ""}
		w.CaloriesBurned = sw.EstimatedCalories
		w.WellbeingAdvice = sw.WellbeingAdvice
		w.Context = genCtx
		return true, nil
	}, nil)
	if err != nil {
		return Workout{}, fmt.Errorf("replace draft %s: %w", id, err)
	}
	s.MarkActive(ctx)
	return w, nil
}

// resolveTarget fills in the target group of genCtx according to its mode.
//
// Rotation and selected drafts record the target as the last trained group before generation, so a failed
// generation still advances the rotation. Wellbeing drafts record the groups the model chose after generation
// in generateDraft.
func (s *Service) resolveTarget(ctx context.Context, p Profile, genCtx GenerationContext) (GenerationContext, error) {
	switch genCtx.Mode {
	case ModeSelected:
		if len(genCtx.SelectedMuscleGroups) == 0 {
			return genCtx, fmt.Errorf("no muscle groups selected: %w", ErrInvalidInput)
		}
		genCtx.TargetMuscleGroup = joinGroups(genCtx.SelectedMuscleGroups)
	case ModeWellbeing:
		if genCtx.WellbeingReason == "" {
			return genCtx, fmt.Errorf("empty wellbeing reason: %w", ErrInvalidInput)
		}
		split := s.attendance(ctx, p).RecommendedSplit
		genCtx.TargetMuscleGroup = generation.GeneralMuscleGroup
		if len(split) > 0 {
			genCtx.TargetMuscleGroup = split[s.randIntN(len(split))]
		}
		return genCtx, nil
	case ModeRotation:
		genCtx.TargetMuscleGroup = s.rotator.Next(p)
	}
	if err := s.repo.profiles.SetLastMuscleGroup(ctx, genCtx.TargetMuscleGroup); err != nil {
		return genCtx, fmt.Errorf("record last muscle group: %w", err)
	}
	return genCtx, nil
}

func (s *Service) generateDraft(
	ctx context.Context, p Profile, genCtx GenerationContext, avoid []string) (generation.StructuredWorkout, error) {
	history, err := s.pastWorkouts(ctx)
	if err != nil {
		return generation.StructuredWorkout{}, err
	}
	a := s.attendance(ctx, p)
	sw, err := s.gateway.GenerateWorkout(ctx, generation.WorkoutBrief{
		Athlete:         p.Athlete,
		Target:          genCtx.TargetMuscleGroup,
		WellbeingReason: genCtx.WellbeingReason,
		AvoidExercises:  avoid,
		Split: generation.SplitFraming{
			Frequency:   a.displayFrequency(),
			Description: a.RecommendedSplitDescription,
			Custom:      a.IsCustomSplit,
		},
		Supersets: a.SupersetsEnabled,
		History:   history,
	})
	if err != nil {
		return generation.StructuredWorkout{}, fmt.Errorf("generate workout: %w", err)
	}
	if genCtx.Mode == ModeWellbeing {
		if err = s.repo.profiles.SetLastMuscleGroup(ctx, joinGroups(sw.MuscleGroups)); err != nil {
			return generation.StructuredWorkout{}, fmt.Errorf("record last muscle group: %w", err)
		}
	}
	return sw, nil
}

// ReplaceExercise swaps the exercise at index for a newly generated one that avoids the names already in the
// draft.
func (s *Service) ReplaceExercise(ctx context.Context, id string, index int) (Workout, error) {
	current, err := s.draft(ctx, id)
	if err != nil {
		return Workout{}, err
	}
	if current.Details.Structured == nil {
		return Workout{}, fmt.Errorf("replace exercise in text workout: %w", ErrInvalidInput)
	}
	if index < 0 || index >= len(current.Details.Structured.Exercises) {
		return Workout{}, fmt.Errorf("exercise index %d: %w", index, ErrInvalidInput)
	}

	e, err := s.GenerateExercise(ctx, current.TargetMuscleGroup(), current.Details.ExerciseNames())
	if err != nil {
		return Workout{}, fmt.Errorf("replace exercise %d of %s: %w", index, id, err)
	}

	w, err := s.repo.workouts.UpdateDraft(ctx, id, func(w *Workout) (bool, error) {
		// The draft may have been replaced while the exercise was generated.
		if w.Details.Structured == nil || index >= len(w.Details.Structured.Exercises) {
			return false, fmt.Errorf("exercise index %d: %w", index, ErrInvalidInput)
		}
		sw := *w.Details.Structured
		sw.Exercises = slices.Clone(sw.Exercises)
		// A name colliding with another slot is kept so the exercise count and order never change.
		sw.Exercises[index] = e
		w.Details = Details{Structured: &sw, Text: ""}
		return true, nil
	}, nil)
	if err != nil {
		return Workout{}, fmt.Errorf("replace exercise %d of %s: %w", index, id, err)
	}
	s.MarkActive(ctx)
	return w, nil
}

// GenerateExercise generates one exercise for target whose name is not in existing.
func (s *Service) GenerateExercise(ctx context.Context, target string, existing []string) (generation.Exercise, error) {
	p, err := s.repo.profiles.Get(ctx)
	if err != nil {
		return generation.Exercise{}, fmt.Errorf("get profile: %w", err)
	}
	history, err := s.pastWorkouts(ctx)
	if err != nil {
		return generation.Exercise{}, err
	}
	if strings.TrimSpace(target) == "" {
		target = generation.DefaultTitle
	}
	e, err := s.gateway.GenerateSingleExercise(ctx, generation.ExerciseBrief{
		Athlete:   p.Athlete,
		Target:    target,
		Supersets: supersetsEnabled(p),
		History:   history,
		Existing:  existing,
	})
	if err != nil {
		return generation.Exercise{}, fmt.Errorf("generate exercise: %w", err)
	}
	return e, nil
}

// CompleteDraft commits the final content of a draft to history. A draft that was completed or deleted
// concurrently yields ErrNotFound.
func (s *Service) CompleteDraft(ctx context.Context, id string, req CompleteRequest) (Workout, error) {
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return Workout{}, fmt.Errorf("rating %d: %w", *req.Rating, ErrInvalidInput)
	}
	if req.CaloriesBurned != nil {
		req.Details.EstimatedCalories = req.CaloriesBurned
	}
	details, err := generation.NormalizeUserWorkout(req.Details)
	if errors.Is(err, generation.ErrInvalidWorkout) {
		return Workout{}, fmt.Errorf("complete draft %s: %w: %w", id, ErrInvalidInput, err)
	}
	if err != nil {
		return Workout{}, fmt.Errorf("complete draft %s: %w", id, err)
	}

	w, err := s.repo.workouts.UpdateDraft(ctx, id, func(w *Workout) (bool, error) {
		w.Status = StatusCompleted
		w.Details = Details{Structured: &details, Text: ""}
		if details.EstimatedCalories != nil {
			w.CaloriesBurned = details.EstimatedCalories
		}
		if details.WellbeingAdvice != "" {
			w.WellbeingAdvice = details.WellbeingAdvice
		}
		if req.Date != nil {
			w.Date = *req.Date
		}
		w.Rating = req.Rating
		w.Comment = strings.TrimSpace(req.Comment)
		return true, nil
	}, nil)
	if err != nil {
		return Workout{}, fmt.Errorf("complete draft %s: %w", id, err)
	}
	s.calculator.invalidate(ctx)
	s.MarkActive(ctx)
	return w, nil
}

// CloneToDraft copies a completed workout into a new draft dated date, or today when date is nil. The source is
// left untouched.
func (s *Service) CloneToDraft(ctx context.Context, id string, date *time.Time) (Workout, error) {
	src, err := s.repo.workouts.Get(ctx, id)
	if err != nil {
		return Workout{}, fmt.Errorf("get workout %s: %w", id, err)
	}
	if src.Status != StatusCompleted {
		return Workout{}, fmt.Errorf("clone workout %s: %w", id, ErrNotFound)
	}

	details := Details{Structured: nil, Text: src.Details.Text}
	if src.Details.Structured != nil {
		sw := *src.Details.Structured
		sw.MuscleGroups = slices.Clone(sw.MuscleGroups)
		sw.Exercises = slices.Clone(sw.Exercises)
		details.Structured = &sw
	}
	clone := Workout{
		ID:              uuid.NewString(),
		UserID:          "",
		Date:            s.now(),
		Type:            src.Type,
		Status:          StatusDraft,
		Details:         details,
		CaloriesBurned:  src.CaloriesBurned,
		Rating:          nil,
		Comment:         "",
		WellbeingAdvice: src.WellbeingAdvice,
		Context:         src.Context,
		CreatedAt:       time.Time{},
		UpdatedAt:       time.Time{},
	}
	if date != nil {
		clone.Date = *date
	}
	w, err := s.repo.workouts.Create(ctx, clone)
	if err != nil {
		return Workout{}, fmt.Errorf("clone workout %s: %w", id, err)
	}
	s.MarkActive(ctx)
	return w, nil
}

// DeleteDraft removes a draft. Completed workouts cannot be deleted.
func (s *Service) DeleteDraft(ctx context.Context, id string) error {
	if err := s.repo.workouts.DeleteDraft(ctx, id); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// RewriteDraft replaces the content of a draft with a workout produced elsewhere, such as a trainer chat. inTx
// runs in the same transaction and can veto the rewrite.
func (s *Service) RewriteDraft(
	ctx context.Context, id string, sw generation.StructuredWorkout, inTx TxFunc) (Workout, error) {
	w, err := s.repo.workouts.UpdateDraft(ctx, id, func(w *Workout) (bool, error) {
		w.Details = Details{Structured: &sw, Text: ""}
		if sw.EstimatedCalories != nil {
			w.CaloriesBurned = sw.EstimatedCalories
		}
		return true, nil
	}, inTx)
	if err != nil {
		return Workout{}, fmt.Errorf("rewrite draft %s: %w", id, err)
	}
	return w, nil
}

// RestoreDraft puts earlier details back into a draft. inTx runs in the same transaction and can veto the
// restore.
func (s *Service) RestoreDraft(ctx context.Context, id string, details Details, inTx TxFunc) (Workout, error) {
	w, err := s.repo.workouts.UpdateDraft(ctx, id, func(w *Workout) (bool, error) {
		w.Details = details
		return true, nil
	}, inTx)
	if err != nil {
		return Workout{}, fmt.Errorf("restore draft %s: %w", id, err)
	}
	return w, nil
}

// draft loads a workout that must still be a draft.
func (s *Service) draft(ctx context.Context, id string) (Workout, error) {
	w, err := s.repo.workouts.Get(ctx, id)
	if err != nil {
		return Workout{}, fmt.Errorf("get workout %s: %w", id, err)
	}
	if w.Status != StatusDraft {
		return Workout{}, fmt.Errorf("workout %s is %s: %w", id, w.Status, ErrNotFound)
	}
	return w, nil
}
