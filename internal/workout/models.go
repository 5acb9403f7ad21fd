package workout

import (
	"time"

	"github.com/myrjola/fitcoach/internal/generation"
)

// Status is the lifecycle state of a workout. Only drafts are mutable and only completed workouts count as
// history.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

// Type tells how a workout came to be.
type Type string

const (
	TypeAI        Type = "ai"
	TypePersonal  Type = "personal"
	TypeWellbeing Type = "wellbeing"
	TypeManual    Type = "manual"
)

// Mode is how the target muscle group of a draft is chosen.
type Mode string

const (
	// ModeRotation picks the next group from the rotation.
	ModeRotation Mode = "rotation"
	// ModeSelected trains the groups the user selected.
	ModeSelected Mode = "selected"
	// ModeWellbeing lets the model choose a safe focus around a constraint the user states.
	ModeWellbeing Mode = "wellbeing"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeRotation, ModeSelected, ModeWellbeing:
		return true
	}
	return false
}

func (m Mode) workoutType() Type {
	switch m {
	case ModeSelected:
		return TypePersonal
	case ModeWellbeing:
		return TypeWellbeing
	case ModeRotation:
	}
	return TypeAI
}

// DetailsFormat tells how details are stored.
type DetailsFormat string

const (
	FormatStructured DetailsFormat = "structured"
	// FormatText is used by legacy rows that only have a rendered description.
	FormatText DetailsFormat = "text"
)

// Details holds either a structured workout or legacy free text.
type Details struct {
	Structured *generation.StructuredWorkout
	Text       string
}

func (d Details) Format() DetailsFormat {
	if d.Structured != nil {
		return FormatStructured
	}
	return FormatText
}

// String renders the details as text.
func (d Details) String() string {
	if d.Structured != nil {
		return d.Structured.Text()
	}
	return d.Text
}

// ExerciseNames lists the exercises of structured details, or the numbered lines of legacy text.
func (d Details) ExerciseNames() []string {
	if d.Structured != nil {
		return d.Structured.ExerciseNames()
	}
	return generation.ExerciseNamesFromText(d.Text)
}

// GenerationContext records what a draft was generated for so that it can be regenerated consistently.
type GenerationContext struct {
	Mode                 Mode     `json:"mode,omitempty"`
	SelectedMuscleGroups []string `json:"selected_muscle_groups,omitempty"`
	TargetMuscleGroup    string   `json:"target_muscle_group,omitempty"`
	WellbeingReason      string   `json:"wellbeing_reason,omitempty"`
}

// Workout is the persisted aggregate.
type Workout struct {
	ID              string
	UserID          string
	Date            time.Time
	Type            Type
	Status          Status
	Details         Details
	CaloriesBurned  *int
	Rating          *int
	Comment         string
	WellbeingAdvice string
	Context         GenerationContext
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TargetMuscleGroup resolves the group a draft trains: the generation context first, then the first two
// structured groups, then the generic title.
func (w Workout) TargetMuscleGroup() string {
	if w.Context.TargetMuscleGroup != "" {
		return w.Context.TargetMuscleGroup
	}
	if w.Details.Structured != nil && len(w.Details.Structured.MuscleGroups) > 0 {
		groups := w.Details.Structured.MuscleGroups
		return joinGroups(groups[:min(len(groups), 2)]) //nolint:mnd // primary and secondary group.
	}
	return generation.DefaultTitle
}

// Profile is the user signal consumed by generation. It is owned by the profile collaborator; this package only
// writes back LastMuscleGroup and LastActiveAt.
type Profile struct {
	generation.Athlete
	// SupersetsEnabled is the explicit preference. Nil means it is inferred from WorkoutFormats and Level.
	SupersetsEnabled *bool
	// CustomSplitFrequency overrides the attendance derived weekly frequency, 1 to 5.
	CustomSplitFrequency *int
	IsPro                bool
	LastMuscleGroup      string
	LastActiveAt         *time.Time
}

// Attendance is the recent training frequency signal.
type Attendance struct {
	RealFrequency               int      `json:"real_frequency"`
	TotalWorkouts               int      `json:"total_workouts"`
	AverageWeekly               float64  `json:"average_weekly"`
	LastWorkoutDate             string   `json:"last_workout_date,omitempty"`
	RecommendedSplit            []string `json:"recommended_split"`
	RecommendedSplitDescription string   `json:"recommended_split_description"`
	CustomSplitFrequency        *int     `json:"custom_split_frequency,omitempty"`
	CustomSplitGroups           []string `json:"custom_split_groups,omitempty"`
	IsCustomSplit               bool     `json:"is_custom_split"`
	SupersetsEnabled            bool     `json:"supersets_enabled"`
}

// Stats summarises completed workouts.
type Stats struct {
	TotalWorkouts   int
	MonthWorkouts   int
	CurrentStreak   int
	LastWorkoutDate string
}

type Meal struct {
	ID          string
	Date        time.Time
	Description string
	Calories    *int
	Proteins    *float64
	Fats        *float64
	Carbs       *float64
	CreatedAt   time.Time
}

// DraftRequest asks for a new draft.
type DraftRequest struct {
	Mode Mode
	// MuscleGroups are required for ModeSelected.
	MuscleGroups []string
	// WellbeingReason is required for ModeWellbeing.
	WellbeingReason string
	// Date defaults to today.
	Date *time.Time
}

// CompleteRequest carries the final content of a draft, including client side edits.
type CompleteRequest struct {
	Details        generation.StructuredWorkout
	Date           *time.Time
	CaloriesBurned *int
	Rating         *int
	Comment        string
}
