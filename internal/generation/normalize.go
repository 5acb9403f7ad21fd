package generation

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

const (
	// DefaultTitle replaces a missing workout title.
	DefaultTitle = "Тренировка"
	// GeneralMuscleGroup labels a workout when neither the model nor the request names a group.
	GeneralMuscleGroup = "Общий комплекс"

	MinCalories = 20
	MaxCalories = 2000

	maxExercises       = 12
	maxUserExercises   = 30
	maxMuscleGroups    = 4
	maxTitleRunes      = 120
	maxAdviceRunes     = 500
	structuredVersion1 = 1
)

//nolint:gochecknoglobals // fixed filter list.
var advicePrefixes = []string{
	"*", "совет", "важно", "следите", "не забудь", "обратите внимание", "рекоменд", "старайтесь", "помните",
}

// Normalize enforces the invariants of a usable workout. requested holds the comma separated muscle groups the
// workout was generated for; it fills in and overrides the model's groups when they drift off topic.
//
// Normalize is idempotent. It returns ErrInvalidOutput when no exercise survives filtering.
func Normalize(w StructuredWorkout, requested string) (StructuredWorkout, error) {
	return normalize(w, requested, maxExercises)
}

// NormalizeUserWorkout validates a workout edited by the athlete and normalizes it like Normalize. Edited
// workouts may hold up to 30 exercises and lower sets and reps than generation allows, but never more.
// Violations yield ErrInvalidWorkout.
func NormalizeUserWorkout(w StructuredWorkout) (StructuredWorkout, error) {
	if len(w.Exercises) == 0 || len(w.Exercises) > maxUserExercises {
		return StructuredWorkout{}, fmt.Errorf("%w: %d exercises, want 1 to %d",
			ErrInvalidWorkout, len(w.Exercises), maxUserExercises)
	}
	maxSets, maxReps := slices.Max(schemaSets), slices.Max(schemaReps)
	for _, e := range w.Exercises {
		switch {
		case e.WeightKg < 0 || e.WeightKg > maxSchemaWeightKg:
			return StructuredWorkout{}, fmt.Errorf("%w: exercise %q weight %v kg out of range 0 to %d",
				ErrInvalidWorkout, e.Name, e.WeightKg, maxSchemaWeightKg)
		case e.Sets < 1 || e.Sets > maxSets:
			return StructuredWorkout{}, fmt.Errorf("%w: exercise %q sets %d out of range 1 to %d",
				ErrInvalidWorkout, e.Name, e.Sets, maxSets)
		case e.Reps < 1 || e.Reps > maxReps:
			return StructuredWorkout{}, fmt.Errorf("%w: exercise %q reps %d out of range 1 to %d",
				ErrInvalidWorkout, e.Name, e.Reps, maxReps)
		}
	}
	out, err := normalize(w, "", maxUserExercises)
	if err != nil {
		return StructuredWorkout{}, fmt.Errorf("%w: workout has no valid exercises", ErrInvalidWorkout)
	}
	return out, nil
}

func normalize(w StructuredWorkout, requested string, limit int) (StructuredWorkout, error) {
	out := StructuredWorkout{
		Version:           max(w.Version, structuredVersion1),
		Title:             truncateRunes(strings.TrimSpace(w.Title), maxTitleRunes),
		MuscleGroups:      normalizeMuscleGroups(w.MuscleGroups, requested),
		Exercises:         nil,
		EstimatedCalories: clampCalories(w.EstimatedCalories),
		WellbeingAdvice:   truncateRunes(strings.TrimSpace(w.WellbeingAdvice), maxAdviceRunes),
	}
	if out.Title == "" {
		out.Title = DefaultTitle
	}

	seen := make(map[string]bool)
	for _, e := range w.Exercises[:min(len(w.Exercises), limit)] {
		e.Name = strings.TrimSpace(e.Name)
		key := strings.ToLower(e.Name)
		if key == "" || seen[key] || isAdvice(key) {
			continue
		}
		seen[key] = true
		out.Exercises = append(out.Exercises, e)
	}
	if len(out.Exercises) == 0 {
		return StructuredWorkout{}, fmt.Errorf("%w: workout has no valid exercises", ErrInvalidOutput)
	}
	return out, nil
}

func isAdvice(lowerName string) bool {
	for _, prefix := range advicePrefixes {
		if strings.HasPrefix(lowerName, prefix) {
			return true
		}
	}
	return false
}

// SplitMuscleGroups splits a comma separated group label into trimmed parts.
func SplitMuscleGroups(label string) []string {
	var parts []string
	for part := range strings.SplitSeq(label, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func normalizeMuscleGroups(groups []string, requested string) []string {
	var kept []string
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			kept = append(kept, g)
		}
	}
	kept = kept[:min(len(kept), maxMuscleGroups)]
	want := SplitMuscleGroups(requested)
	switch {
	case len(kept) == 0 && len(want) == 0:
		return []string{GeneralMuscleGroup}
	case len(kept) == 0, len(want) > 0 && !overlaps(kept, want):
		kept = want
	}
	return kept[:min(len(kept), maxMuscleGroups)]
}

// overlaps reports whether any model group shares a word with, or contains, a requested group.
func overlaps(groups, requested []string) bool {
	for _, g := range groups {
		g = strings.ToLower(g)
		for _, r := range requested {
			r = strings.ToLower(r)
			if strings.Contains(g, r) || strings.Contains(r, g) || sharesWord(g, r) {
				return true
			}
		}
	}
	return false
}

func sharesWord(a, b string) bool {
	notLetter := func(r rune) bool { return !unicode.IsLetter(r) }
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(a, notLetter) {
		words[w] = true
	}
	for _, w := range strings.FieldsFunc(b, notLetter) {
		if words[w] {
			return true
		}
	}
	return false
}

func clampCalories(c *int) *int {
	if c == nil || *c == 0 {
		return nil
	}
	v := min(max(*c, MinCalories), MaxCalories)
	return &v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// structured converts a decoded model answer into a StructuredWorkout using the strategy's numeric rules.
func (raw rawWorkout) structured(output outputStrategy) (StructuredWorkout, error) {
	w := StructuredWorkout{
		Version:           structuredVersion1,
		Title:             raw.Title,
		MuscleGroups:      raw.MuscleGroups,
		Exercises:         make([]Exercise, 0, len(raw.Exercises)),
		EstimatedCalories: parseCalories(raw.CaloriesBurned),
		WellbeingAdvice:   "",
	}
	if raw.WellbeingAdvice != nil {
		w.WellbeingAdvice = *raw.WellbeingAdvice
	}
	for _, re := range raw.Exercises {
		e, err := output.exercise(re)
		if err != nil {
			return StructuredWorkout{}, err
		}
		w.Exercises = append(w.Exercises, e)
	}
	return w, nil
}
