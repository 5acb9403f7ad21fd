package workout_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/myrjola/fitcoach/internal/contexthelpers"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/ptr"
	"github.com/myrjola/fitcoach/internal/sqlite"
	"github.com/myrjola/fitcoach/internal/testhelpers"
	"github.com/myrjola/fitcoach/internal/workout"
)

//nolint:gochecknoglobals // fixed clock for all tests.
var today = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

// fakeCompleter answers workout requests with workoutReply and exercise requests with exerciseReply.
type fakeCompleter struct {
	mu            sync.Mutex
	workoutReply  func() (generation.Completion, error)
	exerciseReply func() (generation.Completion, error)
	calls         []generation.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req generation.CompletionRequest) (generation.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if req.Schema != nil && req.Schema.Name == "exercise" && f.exerciseReply != nil {
		return f.exerciseReply()
	}
	if f.workoutReply != nil {
		return f.workoutReply()
	}
	return generation.Completion{Content: workoutJSON("Грудь"), Refusal: ""}, nil
}

func (f *fakeCompleter) Stream(context.Context, generation.CompletionRequest, func(string) error) error {
	return errors.New("not implemented")
}

// lastPrompt returns the user message of the latest request.
func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	msgs := f.calls[len(f.calls)-1].Messages
	return msgs[len(msgs)-1].Content
}

func workoutJSON(groups ...string) string {
	encoded, err := json.Marshal(groups)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf(`{
  "title": "Силовая",
  "muscle_groups": %s,
  "exercises": [
    {"name": "Жим лёжа", "weight_kg": 40, "sets": 4, "reps": 10},
    {"name": "Тяга штанги в наклоне", "weight_kg": 35, "sets": 3, "reps": 12},
    {"name": "Приседания", "weight_kg": 50, "sets": 4, "reps": 8}
  ],
  "calories_burned": 320,
  "wellbeing_advice": null
}`, encoded)
}

type fixture struct {
	svc *workout.Service
	db  *sqlite.Database
	llm *fakeCompleter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(t.Context(), ":memory:", logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	llm := &fakeCompleter{} //nolint:exhaustruct // replies are set per test.
	svc, err := workout.NewService(db, logger, generation.NewGateway(llm, true, logger), workout.Config{
		Cache:         nil,
		AttendanceTTL: 0,
		Now:           func() time.Time { return today },
		RandIntN:      func(int) int { return 0 },
	})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(svc.Wait)
	return fixture{svc: svc, db: db, llm: llm}
}

func userContext(t *testing.T, userID string) context.Context {
	t.Helper()
	return contexthelpers.WithUserID(t.Context(), userID)
}

func (f fixture) insertCompleted(t *testing.T, userID string, dates ...string) {
	t.Helper()
	for _, date := range dates {
		if _, err := f.db.ReadWrite.ExecContext(t.Context(), `
			INSERT INTO workouts (id, user_id, date, workout_type, status, details, details_format)
			VALUES (?, ?, ?, 'ai', 'completed', ?, 'text')`,
			uuid.NewString(), userID, date, "Кардио\n1. Бег — 1×20, собственный вес"); err != nil {
			t.Fatalf("Failed to insert workout: %v", err)
		}
	}
}

func (f fixture) setLastMuscleGroup(t *testing.T, userID, group string) {
	t.Helper()
	if _, err := f.db.ReadWrite.ExecContext(t.Context(),
		`INSERT INTO users (id, last_muscle_group) VALUES (?, ?)`, userID, group); err != nil {
		t.Fatalf("Failed to set last muscle group: %v", err)
	}
}

func TestService_CreateDraft_rotation(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	f.setLastMuscleGroup(t, "u1", "Спина")

	next, err := f.svc.NextMuscleGroup(ctx)
	if err != nil {
		t.Fatalf("NextMuscleGroup() error = %v", err)
	}
	if got, want := next, "Плечи, Пресс"; got != want {
		t.Errorf("NextMuscleGroup() = %q, want %q", got, want)
	}

	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{Mode: workout.ModeRotation}) //nolint:exhaustruct // defaults.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if got, want := draft.Context.TargetMuscleGroup, "Плечи, Пресс"; got != want {
		t.Errorf("TargetMuscleGroup = %q, want %q", got, want)
	}
	if !strings.Contains(f.llm.lastPrompt(), "Плечи, Пресс") {
		t.Errorf("prompt does not mention the target:\n%s", f.llm.lastPrompt())
	}
	// The model answered with an unrelated group, so normalization enforces the requested one.
	if diff := cmp.Diff([]string{"Плечи", "Пресс"}, draft.Details.Structured.MuscleGroups); diff != "" {
		t.Errorf("MuscleGroups mismatch (-want +got):\n%s", diff)
	}
	if draft.Status != workout.StatusDraft || draft.Type != workout.TypeAI {
		t.Errorf("draft status, type = %s, %s, want draft, ai", draft.Status, draft.Type)
	}
	if got, want := draft.Date.Format(time.DateOnly), "2026-10-15"; got != want {
		t.Errorf("Date = %s, want %s", got, want)
	}

	next, err = f.svc.NextMuscleGroup(ctx)
	if err != nil {
		t.Fatalf("NextMuscleGroup() error = %v", err)
	}
	if got, want := next, "Бицепс, Трицепс"; got != want {
		t.Errorf("NextMuscleGroup() after draft = %q, want %q", got, want)
	}
}

func TestService_CreateDraft_rotationAdvancesOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	f.llm.workoutReply = func() (generation.Completion, error) {
		return generation.Completion{Content: "", Refusal: "не могу"}, nil
	}

	_, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if !errors.Is(err, generation.ErrInvalidOutput) {
		t.Fatalf("CreateDraft() error = %v, want ErrInvalidOutput", err)
	}
	p, err := f.svc.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got, want := p.LastMuscleGroup, "Грудь, Трицепс"; got != want {
		t.Errorf("LastMuscleGroup = %q, want %q", got, want)
	}
	workouts, err := f.svc.RecentWorkouts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentWorkouts() error = %v", err)
	}
	if len(workouts) != 0 {
		t.Errorf("got %d workouts, want none after a failed generation", len(workouts))
	}
}

func TestService_CreateDraft_selected(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")

	_, err := f.svc.CreateDraft(ctx, workout.DraftRequest{ //nolint:exhaustruct // no groups.
		Mode:         workout.ModeSelected,
		MuscleGroups: []string{" ", ""},
	})
	if !errors.Is(err, workout.ErrInvalidInput) {
		t.Fatalf("CreateDraft() without groups error = %v, want ErrInvalidInput", err)
	}

	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{ //nolint:exhaustruct // date defaults to today.
		Mode:         workout.ModeSelected,
		MuscleGroups: []string{"Грудь", " Бицепс "},
	})
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if got, want := draft.Type, workout.TypePersonal; got != want {
		t.Errorf("Type = %s, want %s", got, want)
	}
	p, err := f.svc.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got, want := p.LastMuscleGroup, "Грудь, Бицепс"; got != want {
		t.Errorf("LastMuscleGroup = %q, want %q", got, want)
	}
}

func TestService_CreateDraft_wellbeing(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	f.setLastMuscleGroup(t, "u1", "Ноги, Ягодицы")

	_, err := f.svc.CreateDraft(ctx, workout.DraftRequest{Mode: workout.ModeWellbeing}) //nolint:exhaustruct // no reason.
	if !errors.Is(err, workout.ErrInvalidInput) {
		t.Fatalf("CreateDraft() without reason error = %v, want ErrInvalidInput", err)
	}

	// A failed wellbeing generation leaves the rotation alone.
	f.llm.workoutReply = func() (generation.Completion, error) {
		return generation.Completion{Content: "", Refusal: "нет"}, nil
	}
	req := workout.DraftRequest{Mode: workout.ModeWellbeing, WellbeingReason: "болит колено"} //nolint:exhaustruct // defaults.
	if _, err = f.svc.CreateDraft(ctx, req); !errors.Is(err, generation.ErrInvalidOutput) {
		t.Fatalf("CreateDraft() error = %v, want ErrInvalidOutput", err)
	}
	p, err := f.svc.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got, want := p.LastMuscleGroup, "Ноги, Ягодицы"; got != want {
		t.Errorf("LastMuscleGroup after failure = %q, want %q", got, want)
	}

	f.llm.workoutReply = func() (generation.Completion, error) {
		content := strings.Replace(workoutJSON("Спина", "Пресс"), `"wellbeing_advice": null`,
			`"wellbeing_advice": "Не нагружайте колено"`, 1)
		return generation.Completion{Content: content, Refusal: ""}, nil
	}
	draft, err := f.svc.CreateDraft(ctx, req)
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if !strings.Contains(f.llm.lastPrompt(), "болит колено") {
		t.Errorf("prompt does not mention the wellbeing reason:\n%s", f.llm.lastPrompt())
	}
	if got, want := draft.Type, workout.TypeWellbeing; got != want {
		t.Errorf("Type = %s, want %s", got, want)
	}
	if got, want := draft.WellbeingAdvice, "Не нагружайте колено"; got != want {
		t.Errorf("WellbeingAdvice = %q, want %q", got, want)
	}
	// The model's focus is kept rather than forced to the fallback group.
	if diff := cmp.Diff([]string{"Спина", "Пресс"}, draft.Details.Structured.MuscleGroups); diff != "" {
		t.Errorf("MuscleGroups mismatch (-want +got):\n%s", diff)
	}
	if p, err = f.svc.Profile(ctx); err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if got, want := p.LastMuscleGroup, "Спина, Пресс"; got != want {
		t.Errorf("LastMuscleGroup = %q, want %q", got, want)
	}
}

func TestService_draftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")

	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}

	replaced, err := f.svc.ReplaceDraft(ctx, draft.ID)
	if err != nil {
		t.Fatalf("ReplaceDraft() error = %v", err)
	}
	if got, want := replaced.Context.TargetMuscleGroup, "Ноги, Ягодицы"; got != want {
		t.Errorf("replaced TargetMuscleGroup = %q, want %q", got, want)
	}
	if replaced.ID != draft.ID {
		t.Errorf("ReplaceDraft() changed the id from %s to %s", draft.ID, replaced.ID)
	}

	final := *replaced.Details.Structured
	final.Exercises = final.Exercises[:2]
	completed, err := f.svc.CompleteDraft(ctx, draft.ID, workout.CompleteRequest{
		Details:        final,
		Date:           nil,
		CaloriesBurned: ptr.Ref(5000),
		Rating:         ptr.Ref(4),
		Comment:        " тяжело ",
	})
	if err != nil {
		t.Fatalf("CompleteDraft() error = %v", err)
	}
	if completed.Status != workout.StatusCompleted {
		t.Errorf("Status = %s, want completed", completed.Status)
	}
	if got, want := len(completed.Details.Structured.Exercises), 2; got != want {
		t.Errorf("got %d exercises, want %d", got, want)
	}
	if got, want := *completed.CaloriesBurned, generation.MaxCalories; got != want {
		t.Errorf("CaloriesBurned = %d, want clamped %d", got, want)
	}
	if got, want := completed.Comment, "тяжело"; got != want {
		t.Errorf("Comment = %q, want %q", got, want)
	}

	// Everything that requires a draft now fails without touching the workout.
	if _, err = f.svc.CompleteDraft(ctx, draft.ID, workout.CompleteRequest{ //nolint:exhaustruct // minimal.
		Details: final,
	}); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("second CompleteDraft() error = %v, want ErrNotFound", err)
	}
	if _, err = f.svc.ReplaceDraft(ctx, draft.ID); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("ReplaceDraft() on completed error = %v, want ErrNotFound", err)
	}
	if _, err = f.svc.ReplaceExercise(ctx, draft.ID, 0); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("ReplaceExercise() on completed error = %v, want ErrNotFound", err)
	}
	if err = f.svc.DeleteDraft(ctx, draft.ID); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("DeleteDraft() on completed error = %v, want ErrNotFound", err)
	}
	got, err := f.svc.GetWorkout(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetWorkout() error = %v", err)
	}
	if diff := cmp.Diff(completed, got); diff != "" {
		t.Errorf("completed workout changed (-want +got):\n%s", diff)
	}

	cloneDate := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	clone, err := f.svc.CloneToDraft(ctx, draft.ID, &cloneDate)
	if err != nil {
		t.Fatalf("CloneToDraft() error = %v", err)
	}
	if clone.ID == draft.ID || clone.Status != workout.StatusDraft || clone.Rating != nil {
		t.Errorf("clone = %+v, want a new unrated draft", clone)
	}
	if diff := cmp.Diff(completed.Details, clone.Details); diff != "" {
		t.Errorf("clone details mismatch (-want +got):\n%s", diff)
	}
	if got, want := clone.Date.Format(time.DateOnly), "2026-10-17"; got != want {
		t.Errorf("clone Date = %s, want %s", got, want)
	}
	if _, err = f.svc.CloneToDraft(ctx, clone.ID, nil); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("CloneToDraft() of a draft error = %v, want ErrNotFound", err)
	}

	if err = f.svc.DeleteDraft(ctx, clone.ID); err != nil {
		t.Fatalf("DeleteDraft() error = %v", err)
	}
	if _, err = f.svc.GetWorkout(ctx, clone.ID); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("GetWorkout() after delete error = %v, want ErrNotFound", err)
	}

	listed, err := f.svc.ListWorkouts(ctx, 0)
	if err != nil {
		t.Fatalf("ListWorkouts() error = %v", err)
	}
	if len(listed) != 1 || listed[0].ID != draft.ID {
		t.Errorf("ListWorkouts() = %v, want only the completed workout", listed)
	}
}

func TestService_CompleteDraft_invalid(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}

	tests := []struct {
		name string
		req  workout.CompleteRequest
	}{
		{
			name: "no exercises",
			req: workout.CompleteRequest{ //nolint:exhaustruct // minimal.
				Details: generation.StructuredWorkout{Title: "Пусто"}, //nolint:exhaustruct // no exercises.
			},
		},
		{
			name: "rating out of range",
			req: workout.CompleteRequest{ //nolint:exhaustruct // minimal.
				Details: *draft.Details.Structured,
				Rating:  ptr.Ref(6),
			},
		},
		{
			name: "negative weight",
			req: workout.CompleteRequest{ //nolint:exhaustruct // minimal.
				Details: withExercises(*draft.Details.Structured,
					generation.Exercise{Name: "Жим лёжа", WeightKg: -50, Sets: 3, Reps: 10}),
			},
		},
		{
			name: "negative sets",
			req: workout.CompleteRequest{ //nolint:exhaustruct // minimal.
				Details: withExercises(*draft.Details.Structured,
					generation.Exercise{Name: "Жим лёжа", WeightKg: 40, Sets: -3, Reps: 10}),
			},
		},
		{
			name: "absurd reps",
			req: workout.CompleteRequest{ //nolint:exhaustruct // minimal.
				Details: withExercises(*draft.Details.Structured,
					generation.Exercise{Name: "Жим лёжа", WeightKg: 40, Sets: 3, Reps: 100000}),
			},
		},
		{
			name: "too many exercises",
			req: workout.CompleteRequest{ //nolint:exhaustruct // minimal.
				Details: withExercises(*draft.Details.Structured, numberedExercises(31)...),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err = f.svc.CompleteDraft(ctx, draft.ID, tt.req); !errors.Is(err, workout.ErrInvalidInput) {
				t.Errorf("CompleteDraft() error = %v, want ErrInvalidInput", err)
			}
		})
	}
	got, err := f.svc.GetWorkout(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetWorkout() error = %v", err)
	}
	if got.Status != workout.StatusDraft {
		t.Errorf("Status = %s, want draft after rejected completions", got.Status)
	}
}

func withExercises(sw generation.StructuredWorkout, exercises ...generation.Exercise) generation.StructuredWorkout {
	sw.Exercises = exercises
	return sw
}

func numberedExercises(n int) []generation.Exercise {
	out := make([]generation.Exercise, 0, n)
	for i := range n {
		out = append(out, generation.Exercise{Name: fmt.Sprintf("Упражнение %d", i+1), WeightKg: 10, Sets: 3, Reps: 12})
	}
	return out
}

func TestService_CompleteDraft_longWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}

	// The athlete may add more exercises than generation ever produces.
	details := withExercises(*draft.Details.Structured, numberedExercises(20)...)
	completed, err := f.svc.CompleteDraft(ctx, draft.ID, workout.CompleteRequest{ //nolint:exhaustruct // minimal.
		Details: details,
	})
	if err != nil {
		t.Fatalf("CompleteDraft() error = %v", err)
	}
	if diff := cmp.Diff(details.Exercises, completed.Details.Structured.Exercises); diff != "" {
		t.Errorf("exercises mismatch (-want +got):\n%s", diff)
	}
}

func TestService_ReplaceExercise(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	f.llm.exerciseReply = func() (generation.Completion, error) {
		return generation.Completion{Content: `{"name": "Отжимания", "weight_kg": 0, "sets": 3, "reps": 15}`,
			Refusal: ""}, nil
	}
	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}

	for _, index := range []int{-1, 3} {
		if _, err = f.svc.ReplaceExercise(ctx, draft.ID, index); !errors.Is(err, workout.ErrInvalidInput) {
			t.Errorf("ReplaceExercise(%d) error = %v, want ErrInvalidInput", index, err)
		}
	}

	got, err := f.svc.ReplaceExercise(ctx, draft.ID, 1)
	if err != nil {
		t.Fatalf("ReplaceExercise() error = %v", err)
	}
	want := []string{"Жим лёжа", "Отжимания", "Приседания"}
	if diff := cmp.Diff(want, got.Details.ExerciseNames()); diff != "" {
		t.Errorf("exercises mismatch (-want +got):\n%s", diff)
	}
	prompt := f.llm.lastPrompt()
	for _, name := range []string{"Жим лёжа", "Тяга штанги в наклоне", "Приседания"} {
		if !strings.Contains(prompt, name) {
			t.Errorf("exercise prompt does not list existing exercise %q", name)
		}
	}
}

func TestService_ReplaceExercise_collision(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	f.llm.exerciseReply = func() (generation.Completion, error) {
		return generation.Completion{Content: `{"name": "Жим лёжа", "weight_kg": 30, "sets": 3, "reps": 12}`,
			Refusal: ""}, nil
	}

	got, err := f.svc.ReplaceExercise(ctx, draft.ID, 1)
	if err != nil {
		t.Fatalf("ReplaceExercise() error = %v", err)
	}
	want := []generation.Exercise{
		draft.Details.Structured.Exercises[0],
		{Name: "Жим лёжа", WeightKg: 30, Sets: 3, Reps: 12},
		draft.Details.Structured.Exercises[2],
	}
	if diff := cmp.Diff(want, got.Details.Structured.Exercises); diff != "" {
		t.Errorf("exercises mismatch (-want +got):\n%s", diff)
	}
	stored, err := f.svc.GetWorkout(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetWorkout() error = %v", err)
	}
	if diff := cmp.Diff(want, stored.Details.Structured.Exercises); diff != "" {
		t.Errorf("stored exercises mismatch (-want +got):\n%s", diff)
	}
}

func TestService_ownership(t *testing.T) {
	f := newFixture(t)
	owner := userContext(t, "owner")
	other := userContext(t, "other")

	draft, err := f.svc.CreateDraft(owner, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if _, err = f.svc.GetWorkout(other, draft.ID); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("GetWorkout() by other user error = %v, want ErrNotFound", err)
	}
	if err = f.svc.DeleteDraft(other, draft.ID); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("DeleteDraft() by other user error = %v, want ErrNotFound", err)
	}
	if _, err = f.svc.CompleteDraft(other, draft.ID, workout.CompleteRequest{ //nolint:exhaustruct // minimal.
		Details: *draft.Details.Structured,
	}); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("CompleteDraft() by other user error = %v, want ErrNotFound", err)
	}
}

func TestService_Attendance(t *testing.T) {
	tests := []struct {
		name       string
		dates      []string
		customFreq *int
		want       workout.Attendance
	}{
		{
			name:  "no history",
			dates: nil,
			want: workout.Attendance{
				RecommendedSplit:            []string{"Грудь, Трицепс", "Спина, Бицепс", "Ноги, Плечи"},
				RecommendedSplitDescription: "3 тренировки в неделю: грудь и трицепс / спина и бицепс / ноги и плечи",
				SupersetsEnabled:            false,
			},
		},
		{
			name: "old workouts are outside the window",
			dates: []string{"2026-10-14", "2026-10-12", "2026-10-10", "2026-10-07", "2026-10-03", "2026-09-28",
				"2026-09-24", "2026-09-20", "2026-09-16", "2026-09-15", "2026-08-01"},
			want: workout.Attendance{
				RealFrequency:               2,
				TotalWorkouts:               9,
				AverageWeekly:               2.1,
				LastWorkoutDate:             "2026-10-14",
				RecommendedSplit:            []string{"Верх тела", "Низ тела"},
				RecommendedSplitDescription: "2 тренировки в неделю: верх тела / низ тела",
			},
		},
		{
			name:       "custom split overrides the display frequency",
			dates:      []string{"2026-10-14"},
			customFreq: ptr.Ref(4),
			want: workout.Attendance{
				RealFrequency:   1,
				TotalWorkouts:   1,
				AverageWeekly:   0.2,
				LastWorkoutDate: "2026-10-14",
				RecommendedSplit: []string{
					"Грудь, Трицепс", "Спина, Бицепс", "Ноги, Ягодицы", "Плечи, Пресс",
				},
				RecommendedSplitDescription: "4 тренировки в неделю: грудь и трицепс / спина и бицепс / " +
					"ноги и ягодицы / плечи и пресс",
				CustomSplitFrequency: ptr.Ref(4),
				CustomSplitGroups:    []string{"Грудь, Трицепс", "Спина, Бицепс", "Ноги, Ягодицы", "Плечи, Пресс"},
				IsCustomSplit:        true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := userContext(t, "u1")
			f.insertCompleted(t, "u1", tt.dates...)
			f.insertCompleted(t, "someone-else", "2026-10-13", "2026-10-12")
			if tt.customFreq != nil {
				if err := f.svc.SaveProfile(ctx, workout.Profile{ //nolint:exhaustruct // only the override.
					CustomSplitFrequency: tt.customFreq,
				}); err != nil {
					t.Fatalf("SaveProfile() error = %v", err)
				}
			}

			got, err := f.svc.Attendance(ctx)
			if err != nil {
				t.Fatalf("Attendance() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Attendance() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestService_Attendance_cached(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	f.insertCompleted(t, "u1", "2026-10-14")

	first, err := f.svc.Attendance(ctx)
	if err != nil {
		t.Fatalf("Attendance() error = %v", err)
	}
	f.insertCompleted(t, "u1", "2026-10-13")
	second, err := f.svc.Attendance(ctx)
	if err != nil {
		t.Fatalf("Attendance() error = %v", err)
	}
	if got, want := second.TotalWorkouts, first.TotalWorkouts; got != want {
		t.Errorf("TotalWorkouts = %d, want cached %d", got, want)
	}

	// Completing a draft invalidates the cached value.
	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if _, err = f.svc.CompleteDraft(ctx, draft.ID, workout.CompleteRequest{ //nolint:exhaustruct // minimal.
		Details: *draft.Details.Structured,
	}); err != nil {
		t.Fatalf("CompleteDraft() error = %v", err)
	}
	third, err := f.svc.Attendance(ctx)
	if err != nil {
		t.Fatalf("Attendance() error = %v", err)
	}
	if got, want := third.TotalWorkouts, 3; got != want {
		t.Errorf("TotalWorkouts after completion = %d, want %d", got, want)
	}
}

func TestService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	f.insertCompleted(t, "u1", "2026-10-14", "2026-10-13", "2026-10-13", "2026-10-12", "2026-10-09",
		"2026-09-30")

	got, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := workout.Stats{TotalWorkouts: 6, MonthWorkouts: 5, CurrentStreak: 3, LastWorkoutDate: "2026-10-14"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestService_RateWorkout(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")
	draft, err := f.svc.CreateDraft(ctx, workout.DraftRequest{}) //nolint:exhaustruct // rotation by default.
	if err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}
	if err = f.svc.RateWorkout(ctx, draft.ID, 5, ""); !errors.Is(err, workout.ErrNotFound) {
		t.Errorf("RateWorkout() on draft error = %v, want ErrNotFound", err)
	}
	if _, err = f.svc.CompleteDraft(ctx, draft.ID, workout.CompleteRequest{ //nolint:exhaustruct // minimal.
		Details: *draft.Details.Structured,
	}); err != nil {
		t.Fatalf("CompleteDraft() error = %v", err)
	}
	if err = f.svc.RateWorkout(ctx, draft.ID, 0, ""); !errors.Is(err, workout.ErrInvalidInput) {
		t.Errorf("RateWorkout(0) error = %v, want ErrInvalidInput", err)
	}
	if err = f.svc.RateWorkout(ctx, draft.ID, 5, "отлично"); err != nil {
		t.Fatalf("RateWorkout() error = %v", err)
	}
	got, err := f.svc.GetWorkout(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetWorkout() error = %v", err)
	}
	if *got.Rating != 5 || got.Comment != "отлично" {
		t.Errorf("rating, comment = %d, %q, want 5, отлично", *got.Rating, got.Comment)
	}
}

func TestService_MarkActive(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")

	f.svc.MarkActive(ctx)
	f.svc.Wait()

	p, err := f.svc.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if p.LastActiveAt == nil || !p.LastActiveAt.Equal(today) {
		t.Errorf("LastActiveAt = %v, want %v", p.LastActiveAt, today)
	}
}

func TestService_profileAndMeals(t *testing.T) {
	f := newFixture(t)
	ctx := userContext(t, "u1")

	want := workout.Profile{ //nolint:exhaustruct // write-back fields are not saved.
		Athlete: generation.Athlete{
			Gender: "женский", Level: "средний", Goal: "похудение", Equipment: "гантели",
			WorkoutFormats: "круговая", HealthIssues: "", Location: "дом", WorkoutDuration: "45 минут",
			WorkoutsPerWeek: 3, HeightCm: 168, WeightKg: 60, Age: 31,
		},
		SupersetsEnabled:     ptr.Ref(false),
		CustomSplitFrequency: ptr.Ref(2),
		IsPro:                true,
	}
	if err := f.svc.SaveProfile(ctx, want); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	got, err := f.svc.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Profile() mismatch (-want +got):\n%s", diff)
	}
	if err = f.svc.SaveProfile(ctx, workout.Profile{ //nolint:exhaustruct // only the override.
		CustomSplitFrequency: ptr.Ref(7),
	}); !errors.Is(err, workout.ErrInvalidInput) {
		t.Errorf("SaveProfile() with frequency 7 error = %v, want ErrInvalidInput", err)
	}

	for _, desc := range []string{"Овсянка", "Курица с рисом"} {
		if _, err = f.svc.AddMeal(ctx, workout.Meal{ //nolint:exhaustruct // id and timestamps are set by AddMeal.
			Description: desc, Calories: ptr.Ref(400), Proteins: ptr.Ref(25.5),
		}); err != nil {
			t.Fatalf("AddMeal() error = %v", err)
		}
	}
	meals, err := f.svc.RecentMeals(ctx, 3)
	if err != nil {
		t.Fatalf("RecentMeals() error = %v", err)
	}
	if len(meals) != 2 || meals[0].Description != "Курица с рисом" {
		t.Errorf("RecentMeals() = %+v, want newest first", meals)
	}
	if _, err = f.svc.AddMeal(ctx, workout.Meal{}); !errors.Is(err, workout.ErrInvalidInput) { //nolint:exhaustruct // empty.
		t.Errorf("AddMeal() without description error = %v, want ErrInvalidInput", err)
	}
}
