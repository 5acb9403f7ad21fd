package generation

import "encoding/json"

// Strict structured output requires every property to be listed as required and additionalProperties=false.
const exerciseSchemaDefinition = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "description": "Название упражнения без советов и пояснений"},
    "weight_kg": {"type": "integer", "minimum": 0, "maximum": 300, "description": "Рабочий вес, 0 для собственного веса"},
    "sets": {"type": "integer", "enum": [2, 3, 4, 5, 6]},
    "reps": {"type": "integer", "enum": [5, 8, 10, 12, 15, 20]}
  },
  "required": ["name", "weight_kg", "sets", "reps"],
  "additionalProperties": false
}`

const workoutSchemaDefinition = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "muscle_groups": {"type": "array", "items": {"type": "string"}},
    "exercises": {"type": "array", "items": ` + exerciseSchemaDefinition + `},
    "calories_burned": {"type": "integer", "description": "Оценка сожжённых калорий"},
    "wellbeing_advice": {"type": ["string", "null"]}
  },
  "required": ["title", "muscle_groups", "exercises", "calories_burned", "wellbeing_advice"],
  "additionalProperties": false
}`

const menuItemSchemaDefinition = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "calories": {"type": "integer"},
    "proteins": {"type": "integer"},
    "fats": {"type": "integer"},
    "carbs": {"type": "integer"}
  },
  "required": ["name", "calories", "proteins", "fats", "carbs"],
  "additionalProperties": false
}`

const dailyMenuSchemaDefinition = `{
  "type": "object",
  "properties": {
    "target_calories": {"type": "integer"},
    "target_proteins": {"type": "integer"},
    "target_fats": {"type": "integer"},
    "target_carbs": {"type": "integer"},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string", "enum": ["breakfast", "lunch", "dinner", "snacks"]},
          "title": {"type": "string"},
          "time_range": {"type": "string"},
          "items": {"type": "array", "items": ` + menuItemSchemaDefinition + `}
        },
        "required": ["type", "title", "time_range", "items"],
        "additionalProperties": false
      }
    },
    "tip_of_day": {"type": "string"}
  },
  "required": ["target_calories", "target_proteins", "target_fats", "target_carbs", "sections", "tip_of_day"],
  "additionalProperties": false
}`

//nolint:gochecknoglobals // immutable schema descriptors.
var (
	workoutSchema = Schema{
		Name:        "workout",
		Description: "Тренировка из упражнений с подходами, повторами и весом",
		Definition:  json.RawMessage(workoutSchemaDefinition),
	}
	exerciseSchema = Schema{
		Name:        "exercise",
		Description: "Одно упражнение на замену",
		Definition:  json.RawMessage(exerciseSchemaDefinition),
	}
	dailyMenuSchema = Schema{
		Name:        "daily_menu",
		Description: "Меню на день с приёмами пищи и КБЖУ",
		Definition:  json.RawMessage(dailyMenuSchemaDefinition),
	}
)
