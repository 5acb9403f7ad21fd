package generation

import (
	"fmt"
	"slices"
	"strings"
)

const (
	defaultSystemPrompt = "Ты фитнес-бот. Отвечай ТОЛЬКО на русском языке. " +
		"Все названия упражнений, советы и текст — на русском."
	dailyMenuSystemPrompt = "Ты диетолог. Составляешь сбалансированное меню на день на русском языке, " +
		"укладываясь в заданные КБЖУ."
	historyDetailsRunes = 200
)

// supersetPolicy renders the superset preference for prompts.
func supersetPolicy(useSupersets, wellbeing bool) string {
	if !useSupersets {
		return "ВАЖНО: Пользователь отключил суперсеты. НЕ используй суперсеты. " +
			"Каждое упражнение должно быть отдельным с отдыхом между подходами."
	}
	base := "Пользователь предпочитает интенсивные форматы тренировок."
	if wellbeing {
		return base + " Суперсеты допустимы, но используй их осторожно с учётом самочувствия."
	}
	return base + " Включи суперсеты там, где это уместно."
}

func splitFraming(s SplitFraming, target string) string {
	kind := "рекомендованный"
	if s.Custom {
		kind = "выбранный"
	}
	text := fmt.Sprintf("ВАЖНО: Тренировка адаптирована под %s сплит пользователя. "+
		"Пользователь тренируется примерно %d раз в неделю. Сплит: %s.", kind, s.Frequency, s.Description)
	if target != "" {
		text += " Сегодня тренируем: " + target + "."
	}
	return text
}

// historyContext summarises recent workouts and lists their exercises so the model can avoid repeats.
func historyContext(history []PastWorkout) (string, string) {
	if len(history) == 0 {
		return "", ""
	}
	var b strings.Builder
	b.WriteString("Последние тренировки пользователя:\n")
	var used []string
	for i, w := range history {
		rating := " (оценка: не поставлена)"
		if w.Rating != nil {
			rating = fmt.Sprintf(" (оценка: %d/5)", *w.Rating)
		}
		fmt.Fprintf(&b, "%d. %s - %s%s", i+1, w.Date, w.Type, rating)
		if w.Comment != "" {
			b.WriteString("\nКомментарий: " + w.Comment)
		}
		b.WriteString("\n" + truncateRunes(w.Details, historyDetailsRunes) + "\n\n")
		for _, name := range w.Exercises {
			if !slices.Contains(used, name) {
				used = append(used, name)
			}
		}
	}
	b.WriteString("Учитывай оценки: что понравилось и что нет. Особое внимание уделяй комментариям пользователя.")

	exercises := ""
	if len(used) > 0 {
		exercises = "Упражнения из последних тренировок (по возможности избегай повторов): " +
			strings.Join(used, ", ") + "."
	}
	return b.String(), exercises
}

func profileBlock(a Athlete) string {
	return "Профиль пользователя:\n" + strings.Join(a.ProfileLines(), "\n")
}

func workoutPrompt(brief WorkoutBrief) string {
	history, exercises := historyContext(brief.History)
	wellbeing := brief.WellbeingReason != ""
	target := brief.Target
	if wellbeing {
		target = ""
	}

	sections := []string{
		"Составь тренировку для пользователя.",
		profileBlock(brief.Athlete),
		splitFraming(brief.Split, target),
		supersetPolicy(brief.Supersets, wellbeing),
		history,
		exercises,
	}
	if wellbeing {
		sections = append(sections,
			"Пользователь не может выполнить полноценную тренировку по причине: "+brief.WellbeingReason+".\n"+
				"Сам выбери безопасный фокус тренировки с учётом самочувствия и дай короткий совет в wellbeing_advice.")
		if len(brief.AvoidExercises) > 0 {
			sections = append(sections, "Не используй упражнения: "+strings.Join(brief.AvoidExercises, ", ")+".")
		}
	}
	sections = append(sections, "Требования:\n"+
		"- 4–8 упражнений, названия не повторяются.\n"+
		"- В поле name только название упражнения, без советов.\n"+
		"- muscle_groups: 1–2 группы мышц тренировки.\n"+
		"- calories_burned: оценка сожжённых калорий за тренировку.")
	return joinNonEmpty(sections)
}

func exercisePrompt(brief ExerciseBrief) string {
	history, _ := historyContext(brief.History)
	return joinNonEmpty([]string{
		"Подбери ОДНО упражнение на группу мышц: " + brief.Target + ".",
		profileBlock(brief.Athlete),
		supersetPolicy(brief.Supersets, false),
		history,
		"Упражнение должно отличаться от уже выбранных: " + strings.Join(brief.Existing, ", ") + ".",
	})
}

func dailyMenuPrompt(brief MenuBrief, dayName string) string {
	t := brief.Targets.withDefaults()
	return joinNonEmpty([]string{
		"Составь меню на день: " + dayName + ".",
		fmt.Sprintf("Цели: %d ккал, белки %d г, жиры %d г, углеводы %d г.", t.Calories, t.Proteins, t.Fats, t.Carbs),
		profileBlock(brief.Athlete),
		"Разбей меню на завтрак, обед, ужин и перекусы, для каждого блюда укажи КБЖУ. Добавь совет дня.",
	})
}

func joinNonEmpty(parts []string) string {
	return strings.Join(slices.DeleteFunc(parts, func(s string) bool { return strings.TrimSpace(s) == "" }), "\n\n")
}
