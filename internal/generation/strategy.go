package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
)

// outputStrategy turns a completion into a decoded JSON document. Schema-constrained and free-text modes share
// everything downstream of it, including normalization.
type outputStrategy interface {
	decode(ctx context.Context, g *Gateway, op string, req CompletionRequest, schema Schema, dst any) error
	// exercise converts numeric fields of a raw exercise: schema mode validates them, free-text mode snaps them.
	exercise(raw rawExercise) (Exercise, error)
}

type rawExercise struct {
	Name     string   `json:"name"`
	WeightKg *float64 `json:"weight_kg"`
	Sets     *float64 `json:"sets"`
	Reps     *float64 `json:"reps"`
}

type rawWorkout struct {
	Title           string          `json:"title"`
	MuscleGroups    []string        `json:"muscle_groups"`
	Exercises       []rawExercise   `json:"exercises"`
	CaloriesBurned  json.RawMessage `json:"calories_burned"`
	WellbeingAdvice *string         `json:"wellbeing_advice"`
}

//nolint:gochecknoglobals // fixed allowed values.
var (
	schemaSets   = []int{2, 3, 4, 5, 6}
	schemaReps   = []int{5, 8, 10, 12, 15, 20}
	snapSets     = []float64{2, 3, 4, 5, 6}
	snapReps     = []float64{5, 8, 10, 12, 15}
	weightLadder = []float64{
		0, 2.5, 5, 7.5, 10, 12.5, 15, 17.5, 20, 22.5, 25, 30, 35, 40, 45, 50, 55, 60, 70, 80, 90, 100,
	}
)

const maxSchemaWeightKg = 300

// schemaOutput asks the completion service to enforce the schema. A refusal fails immediately.
type schemaOutput struct{}

func (schemaOutput) decode(
	ctx context.Context, g *Gateway, op string, req CompletionRequest, schema Schema, dst any) error {
	req.Schema = &schema
	resp, err := g.complete(ctx, op, req)
	if err != nil {
		return err
	}
	if resp.Refusal != "" {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "completion refused",
			slog.String("operation", op), slog.String("refusal", resp.Refusal))
		return fmt.Errorf("%s: %w: refused: %s", op, ErrInvalidOutput, resp.Refusal)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return fmt.Errorf("%s: %w: empty content", op, ErrInvalidOutput)
	}
	if err = json.Unmarshal([]byte(resp.Content), dst); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidOutput, err)
	}
	return nil
}

func (schemaOutput) exercise(raw rawExercise) (Exercise, error) {
	if raw.WeightKg == nil || raw.Sets == nil || raw.Reps == nil {
		return Exercise{}, fmt.Errorf("%w: exercise %q misses numeric fields", ErrInvalidOutput, raw.Name)
	}
	sets, reps := int(*raw.Sets), int(*raw.Reps)
	switch {
	case *raw.WeightKg < 0 || *raw.WeightKg > maxSchemaWeightKg:
		return Exercise{}, fmt.Errorf("%w: exercise %q weight %v out of range", ErrInvalidOutput, raw.Name, *raw.WeightKg)
	case float64(sets) != *raw.Sets || !slices.Contains(schemaSets, sets):
		return Exercise{}, fmt.Errorf("%w: exercise %q sets %v not allowed", ErrInvalidOutput, raw.Name, *raw.Sets)
	case float64(reps) != *raw.Reps || !slices.Contains(schemaReps, reps):
		return Exercise{}, fmt.Errorf("%w: exercise %q reps %v not allowed", ErrInvalidOutput, raw.Name, *raw.Reps)
	}
	return Exercise{Name: raw.Name, WeightKg: *raw.WeightKg, Sets: sets, Reps: reps}, nil
}

// freeTextOutput asks for raw JSON, extracts the first balanced object and repairs unparseable output once.
type freeTextOutput struct{}

func (freeTextOutput) decode(
	ctx context.Context, g *Gateway, op string, req CompletionRequest, schema Schema, dst any) error {
	req.Schema = nil
	req.Messages = append(slices.Clip(req.Messages), Message{
		Role:    RoleUser,
		Content: "Верни ответ строго в виде JSON-объекта по схеме:\n" + string(schema.Definition),
	})
	resp, err := g.complete(ctx, op, req)
	if err != nil {
		return err
	}
	parseErr := decodeJSONObject(resp.Content, dst)
	if parseErr == nil {
		return nil
	}

	g.logger.LogAttrs(ctx, slog.LevelWarn, "repairing invalid json",
		slog.String("operation", op), slog.Any("error", parseErr))
	repair := CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "Ты преобразуешь текст в валидный JSON. Верни только JSON без пояснений."},
			{Role: RoleUser, Content: "Схема:\n" + string(schema.Definition) + "\n\nИсправь этот ответ:\n" + resp.Content},
		},
		Temperature: 0,
		MaxTokens:   req.MaxTokens,
		Schema:      nil,
	}
	resp, err = g.complete(ctx, op+" repair", repair)
	if err != nil {
		return err
	}
	if err = decodeJSONObject(resp.Content, dst); err != nil {
		return fmt.Errorf("%s: %w: after repair: %w", op, ErrInvalidOutput, err)
	}
	return nil
}

func (freeTextOutput) exercise(raw rawExercise) (Exercise, error) {
	return Exercise{
		Name:     raw.Name,
		WeightKg: nearest(weightLadder, deref(raw.WeightKg)),
		Sets:     int(nearest(snapSets, deref(raw.Sets))),
		Reps:     int(nearest(snapReps, deref(raw.Reps))),
	}, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// nearest snaps v to the closest allowed value. Ties go to the smaller value.
func nearest(allowed []float64, v float64) float64 {
	best := allowed[0]
	for _, a := range allowed[1:] {
		if math.Abs(a-v) < math.Abs(best-v) {
			best = a
		}
	}
	return best
}

func decodeJSONObject(content string, dst any) error {
	span, ok := extractJSONObject(content)
	if !ok {
		return fmt.Errorf("no json object in %d bytes", len(content))
	}
	if err := json.Unmarshal([]byte(span), dst); err != nil {
		return fmt.Errorf("unmarshal json object: %w", err)
	}
	return nil
}

// extractJSONObject returns the first balanced {...} span, skipping braces inside string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// parseCalories accepts a JSON number or numeric string. Anything else, including zero, means unknown.
func parseCalories(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err = json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(math.Round(max(min(f, math.MaxInt32), math.MinInt32)))
	return &n
}
