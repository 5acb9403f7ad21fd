package generation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Exercise is one slot of a structured workout.
type Exercise struct {
	Name     string  `json:"name"`
	WeightKg float64 `json:"weight_kg"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
}

// StructuredWorkout is the validated generation output stored as workout details.
type StructuredWorkout struct {
	Version           int        `json:"version"`
	Title             string     `json:"title"`
	MuscleGroups      []string   `json:"muscle_groups"`
	Exercises         []Exercise `json:"exercises"`
	EstimatedCalories *int       `json:"estimated_calories,omitempty"`
	WellbeingAdvice   string     `json:"wellbeing_advice,omitempty"`
}

// ExerciseNames lists the exercise names in order.
func (w StructuredWorkout) ExerciseNames() []string {
	names := make([]string, 0, len(w.Exercises))
	for _, e := range w.Exercises {
		names = append(names, e.Name)
	}
	return names
}

// Text renders the workout the way it is shown in chats and history summaries.
func (w StructuredWorkout) Text() string {
	var b strings.Builder
	b.WriteString(w.Title)
	if len(w.MuscleGroups) > 0 {
		b.WriteString("\nГруппы мышц: ")
		b.WriteString(strings.Join(w.MuscleGroups, ", "))
	}
	for i, e := range w.Exercises {
		fmt.Fprintf(&b, "\n%d. %s — %d×%d, %s", i+1, e.Name, e.Sets, e.Reps, formatWeight(e.WeightKg))
	}
	return b.String()
}

func formatWeight(kg float64) string {
	if kg <= 0 {
		return "собственный вес"
	}
	return strconv.FormatFloat(kg, 'f', -1, 64) + " кг"
}

var numberedLine = regexp.MustCompile(`^\s*\d+\.\s*(.+)$`)

// ExerciseNamesFromText harvests exercise names from numbered lines of a rendered or legacy workout.
func ExerciseNamesFromText(text string) []string {
	var names []string
	for line := range strings.SplitSeq(text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, _, _ := strings.Cut(m[1], " — ")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Athlete is the part of the user profile that shapes prompts.
type Athlete struct {
	Gender          string `json:"gender"`
	Level           string `json:"level"`
	Goal            string `json:"goal"`
	Equipment       string `json:"equipment"`
	WorkoutFormats  string `json:"workout_formats"`
	HealthIssues    string `json:"health_issues"`
	Location        string `json:"location"`
	WorkoutDuration string `json:"workout_duration"`
	WorkoutsPerWeek int    `json:"workouts_per_week"`
	HeightCm        int    `json:"height_cm"`
	WeightKg        int    `json:"weight_kg"`
	Age             int    `json:"age"`
}

// ProfileLines renders the athlete as a bullet list, one characteristic per line.
func (a Athlete) ProfileLines() []string {
	return []string{
		"- Цель: " + orUnset(a.Goal),
		"- Уровень: " + orUnset(a.Level),
		"- Ограничения по здоровью: " + or(a.HealthIssues, "нет"),
		"- Место занятий: " + orUnset(a.Location),
		"- Частота тренировок: " + orUnsetInt(a.WorkoutsPerWeek) + " раз в неделю",
		"- Время на тренировку: " + orUnset(a.WorkoutDuration),
		"- Оборудование: " + orUnset(a.Equipment),
		"- Формат тренировок: " + orUnset(a.WorkoutFormats),
		"- Рост: " + orUnsetInt(a.HeightCm) + " см",
		"- Вес: " + orUnsetInt(a.WeightKg) + " кг",
		"- Возраст: " + orUnsetInt(a.Age),
		"- Пол: " + orUnset(a.Gender),
	}
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func orUnset(s string) string { return or(s, "не указано") }

func orUnsetInt(n int) string {
	if n <= 0 {
		return "не указано"
	}
	return strconv.Itoa(n)
}

// PastWorkout summarises a completed workout for generation context.
type PastWorkout struct {
	Date      string
	Type      string
	Rating    *int
	Comment   string
	Details   string
	Exercises []string
}

// SplitFraming describes the weekly split the generated workout belongs to.
type SplitFraming struct {
	Frequency   int
	Description string
	Custom      bool
}

// WorkoutBrief carries everything a workout prompt is assembled from.
type WorkoutBrief struct {
	Athlete Athlete
	// Target is the muscle group (or comma separated groups) to train. For wellbeing requests the model picks the
	// focus and Target is only the fallback for normalization.
	Target          string
	WellbeingReason string
	AvoidExercises  []string
	Split           SplitFraming
	Supersets       bool
	History         []PastWorkout
}

// ExerciseBrief describes a single replacement exercise.
type ExerciseBrief struct {
	Athlete   Athlete
	Target    string
	Supersets bool
	History   []PastWorkout
	Existing  []string
}

// NutritionTargets are daily macro targets in kcal and grams.
type NutritionTargets struct {
	Calories int `json:"target_calories"`
	Proteins int `json:"target_proteins"`
	Fats     int `json:"target_fats"`
	Carbs    int `json:"target_carbs"`
}

func (t NutritionTargets) withDefaults() NutritionTargets {
	if t.Calories <= 0 {
		t.Calories = 2000
	}
	if t.Proteins <= 0 {
		t.Proteins = 100
	}
	if t.Fats <= 0 {
		t.Fats = 70
	}
	if t.Carbs <= 0 {
		t.Carbs = 250
	}
	return t
}

// MenuBrief describes the menu to plan.
type MenuBrief struct {
	Athlete Athlete
	Targets NutritionTargets
}

type MenuItem struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"`
	Proteins int    `json:"proteins"`
	Fats     int    `json:"fats"`
	Carbs    int    `json:"carbs"`
}

type MenuSection struct {
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	TimeRange string     `json:"time_range"`
	Items     []MenuItem `json:"items"`
}

// DayMenu is one day of a meal plan. DayOfWeek starts from 0 for Monday.
type DayMenu struct {
	DayOfWeek int    `json:"day_of_week"`
	DayName   string `json:"day_name"`
	NutritionTargets
	Sections []MenuSection `json:"sections"`
	TipOfDay string        `json:"tip_of_day"`
}
