// Package generation talks to the completion service and turns its unreliable output into validated workouts,
// exercises and menus.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	workoutTemperature = 0.4
	workoutMaxTokens   = 1100

	exerciseAttempts         = 3
	exerciseTemperatureStart = 0.6
	exerciseTemperatureStep  = 0.15
	exerciseMaxTemperature   = 1.0
	exerciseMaxTokens        = 350

	chatTemperature = 0.4
	chatMaxTokens   = 450

	menuTemperature = 0.8
	menuMaxTokens   = 2000

	placeholderTip = "Пейте достаточно воды в течение дня."
)

//nolint:gochecknoglobals // fixed week layout.
var weekDays = []string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

// Gateway produces validated generation results from a Completer.
type Gateway struct {
	completer Completer
	output    outputStrategy
	logger    *slog.Logger
}

// NewGateway creates a gateway. When structured is false the model is asked for free-text JSON which is extracted
// and repaired once, for models without structured output support.
func NewGateway(completer Completer, structured bool, logger *slog.Logger) *Gateway {
	var output outputStrategy = schemaOutput{}
	if !structured {
		output = freeTextOutput{}
	}
	return &Gateway{completer: completer, output: output, logger: logger}
}

func singleTurn(system, user string) []Message {
	return []Message{{Role: RoleSystem, Content: system}, {Role: RoleUser, Content: user}}
}

// GenerateWorkout generates and normalizes a workout for brief.
func (g *Gateway) GenerateWorkout(ctx context.Context, brief WorkoutBrief) (StructuredWorkout, error) {
	g.logger.LogAttrs(ctx, slog.LevelInfo, "generating workout",
		slog.String("target", brief.Target),
		slog.Bool("wellbeing", brief.WellbeingReason != ""),
		slog.Bool("supersets", brief.Supersets))

	messages := singleTurn(defaultSystemPrompt, workoutPrompt(brief))
	if brief.WellbeingReason != "" {
		// The model picks the focus; Target only fills in missing groups.
		return g.generateWorkout(ctx, "generate workout", messages, "", brief.Target)
	}
	return g.generateWorkout(ctx, "generate workout", messages, brief.Target, "")
}

// GenerateFromConversation rewrites a workout from a chat transcript. messages must start with the system framing.
func (g *Gateway) GenerateFromConversation(
	ctx context.Context, messages []Message, target string) (StructuredWorkout, error) {
	return g.generateWorkout(ctx, "generate workout from conversation", messages, target, "")
}

func (g *Gateway) generateWorkout(
	ctx context.Context, op string, messages []Message, target, fallback string) (StructuredWorkout, error) {
	var raw rawWorkout
	req := CompletionRequest{Messages: messages, Temperature: workoutTemperature, MaxTokens: workoutMaxTokens}
	if err := g.output.decode(ctx, g, op, req, workoutSchema, &raw); err != nil {
		return StructuredWorkout{}, err
	}
	w, err := raw.structured(g.output)
	if err != nil {
		return StructuredWorkout{}, fmt.Errorf("%s: %w", op, err)
	}
	if fallback != "" && len(SplitMuscleGroups(strings.Join(w.MuscleGroups, ","))) == 0 {
		w.MuscleGroups = SplitMuscleGroups(fallback)
	}
	if w, err = Normalize(w, target); err != nil {
		return StructuredWorkout{}, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

// GenerateSingleExercise asks for one exercise whose name is not in brief.Existing. Collisions are retried with a
// rising temperature. When every attempt collides the last answer is returned anyway.
func (g *Gateway) GenerateSingleExercise(ctx context.Context, brief ExerciseBrief) (Exercise, error) {
	existing := make(map[string]bool, len(brief.Existing))
	for _, name := range brief.Existing {
		existing[strings.ToLower(strings.TrimSpace(name))] = true
	}
	messages := singleTurn(defaultSystemPrompt, exercisePrompt(brief))

	var last Exercise
	temperature := exerciseTemperatureStart
	for attempt := range exerciseAttempts {
		var raw rawExercise
		req := CompletionRequest{Messages: messages, Temperature: temperature, MaxTokens: exerciseMaxTokens}
		if err := g.output.decode(ctx, g, "generate exercise", req, exerciseSchema, &raw); err != nil {
			return Exercise{}, err
		}
		e, err := g.output.exercise(raw)
		if err != nil {
			return Exercise{}, fmt.Errorf("generate exercise: %w", err)
		}
		if e.Name = strings.TrimSpace(e.Name); e.Name == "" {
			return Exercise{}, fmt.Errorf("generate exercise: %w: empty name", ErrInvalidOutput)
		}
		last = e
		if !existing[strings.ToLower(e.Name)] {
			return e, nil
		}
		g.logger.LogAttrs(ctx, slog.LevelWarn, "replacement exercise duplicates existing one",
			slog.Int("attempt", attempt+1), slog.String("name", e.Name))
		temperature = min(temperature+exerciseTemperatureStep, exerciseMaxTemperature)
	}
	return last, nil
}

// ChatStream forwards a free-form conversation and delivers the reply to onChunk as it arrives.
// Streams are not retried because chunks may already have reached the caller.
func (g *Gateway) ChatStream(ctx context.Context, messages []Message, onChunk func(string) error) error {
	var sinkErr error
	err := g.completer.Stream(ctx, CompletionRequest{
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
		Schema:      nil,
	}, func(chunk string) error {
		sinkErr = onChunk(chunk)
		return sinkErr
	})
	if sinkErr != nil {
		return fmt.Errorf("deliver chunk: %w", sinkErr)
	}
	if err != nil {
		apiErr := classify(err)
		g.logAPIError(ctx, "chat stream", apiErr, 0)
		return fmt.Errorf("chat stream: %w: %w", ErrUpstreamUnavailable, apiErr)
	}
	return nil
}

// Chat is ChatStream with the chunks concatenated.
func (g *Gateway) Chat(ctx context.Context, messages []Message) (string, error) {
	var b strings.Builder
	if err := g.ChatStream(ctx, messages, func(chunk string) error {
		b.WriteString(chunk)
		return nil
	}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// DailyMenu generates one day of a meal plan.
func (g *Gateway) DailyMenu(ctx context.Context, brief MenuBrief, dayName string) (DayMenu, error) {
	var menu DayMenu
	req := CompletionRequest{
		Messages:    singleTurn(dailyMenuSystemPrompt, dailyMenuPrompt(brief, dayName)),
		Temperature: menuTemperature,
		MaxTokens:   menuMaxTokens,
	}
	if err := g.output.decode(ctx, g, "generate daily menu", req, dailyMenuSchema, &menu); err != nil {
		return DayMenu{}, err
	}
	menu.DayName = dayName
	if menu.Sections == nil {
		menu.Sections = []MenuSection{}
	}
	return menu, nil
}

// WeeklyMenu generates the seven days concurrently. A failing day is replaced by a placeholder built from the
// targets so that it never affects the other days.
func (g *Gateway) WeeklyMenu(ctx context.Context, brief MenuBrief) ([]DayMenu, error) {
	days := make([]DayMenu, len(weekDays))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, name := range weekDays {
		eg.Go(func() error {
			menu, err := g.DailyMenu(egCtx, brief, name)
			if err != nil {
				g.logger.LogAttrs(egCtx, slog.LevelError, "weekly menu day failed",
					slog.String("day", name), slog.Any("error", err))
				menu = placeholderDay(brief.Targets)
			}
			menu.DayOfWeek = i
			menu.DayName = name
			days[i] = menu
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("weekly menu: %w", err)
	}
	return slices.Clip(days), nil
}

func placeholderDay(targets NutritionTargets) DayMenu {
	return DayMenu{
		DayOfWeek:        0,
		DayName:          "",
		NutritionTargets: targets.withDefaults(),
		Sections:         []MenuSection{},
		TipOfDay:         placeholderTip,
	}
}
