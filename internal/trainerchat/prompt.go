package trainerchat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/workout"
)

const (
	historyWorkouts      = 5
	historyMeals         = 3
	shownWorkouts        = 3
	workoutSnippetLength = 200
	mealSnippetLength    = 160
	notAvailable         = "н/д"

	finishInstruction = "Сформируй итоговую тренировку, учитывая все пожелания из диалога."

	chatRules = "Правила:\n" +
		"- Отвечай по-русски, кратко и конкретно (до 150 слов).\n" +
		"- Предлагай конкретные замены упражнений/веса/подходов/повторов и объясняй технику.\n" +
		"- Учитывай уровень, оборудование, ограничения и историю.\n" +
		"- Если запрос пользователя опасен для здоровья — предложи безопасную альтернативу.\n"

	finishSystemPrompt = "Ты персональный фитнес-тренер. Перепиши тренировку пользователя по итогам диалога с ним.\n" +
		"Сохрани то, что пользователь не просил менять, и примени все согласованные изменения.\n" +
		"Верни тренировку строго в формате JSON с полями title, muscle_groups, exercises и calories_burned.\n" +
		"Каждое упражнение содержит name, sets, reps и weight_kg. Названия упражнений не повторяются."
)

// history is what the assistant knows about the user besides the conversation.
type history struct {
	athlete  generation.Athlete
	workouts []workout.Workout
	meals    []workout.Meal
}

func greeting(h history) string {
	return strings.TrimSpace("Привет! Я твой персональный тренер и помогу скорректировать тренировку.\n\n" +
		"Я вижу твою историю тренировок и питания.\n\n" +
		formatWorkouts(h.workouts) + "\n\n" + formatMeals(h.meals) + "\n\n" +
		"Напиши, что поменять (упражнения/вес/подходы/повторы/техника/самочувствие).\n" +
		"Когда закончишь — нажми «Готово», и я перепишу тренировку.")
}

func formatWorkouts(workouts []workout.Workout) string {
	if len(workouts) == 0 {
		return "История тренировок пуста.\n"
	}
	lines := []string{"Последние тренировки:"}
	for i, w := range workouts[:min(len(workouts), shownWorkouts)] {
		rating := "—"
		if w.Rating != nil && *w.Rating > 0 {
			rating = strconv.Itoa(*w.Rating) + "/5"
		}
		lines = append(lines,
			fmt.Sprintf("%d. %s: %s (калории: %s, оценка: %s)",
				i+1, w.Date.Format("2006-01-02"), w.Type, optionalInt(w.CaloriesBurned), rating),
			"   "+truncate(w.Details.String(), workoutSnippetLength))
	}
	return strings.Join(lines, "\n") + "\n"
}

func formatMeals(meals []workout.Meal) string {
	if len(meals) == 0 {
		return "История питания пуста.\n"
	}
	lines := []string{"Последние приёмы пищи:"}
	for i, m := range meals[:min(len(meals), historyMeals)] {
		lines = append(lines,
			fmt.Sprintf("%d. %s: %s", i+1, m.Date.Format("2006-01-02"), truncate(m.Description, mealSnippetLength)),
			fmt.Sprintf("   КБЖУ: %s ккал, Б:%sг, Ж:%sг, У:%sг",
				optionalInt(m.Calories), optionalFloat(m.Proteins), optionalFloat(m.Fats), optionalFloat(m.Carbs)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func userContext(h history, originalText string) string {
	if strings.TrimSpace(originalText) == "" {
		originalText = "Не задана"
	}
	lines := []string{"Характеристики пользователя:"}
	lines = append(lines, h.athlete.ProfileLines()...)
	lines = append(lines, "", formatWorkouts(h.workouts), formatMeals(h.meals),
		"Текущая тренировка для обсуждения:", originalText)
	return strings.Join(lines, "\n")
}

func chatSystemPrompt(userCtx string) string {
	return "Ты персональный фитнес-тренер. Веди диалог с пользователем о корректировке тренировки.\n\n" +
		userCtx + "\n\n" + chatRules
}

// chatMessages frames the stored conversation for a chat turn.
func chatMessages(userCtx string, messages []Message) []generation.Message {
	out := make([]generation.Message, 0, len(messages)+1)
	out = append(out, generation.Message{Role: generation.RoleSystem, Content: chatSystemPrompt(userCtx)})
	for _, m := range messages {
		out = append(out, generation.Message{Role: generation.Role(m.Role), Content: m.Content})
	}
	return out
}

// finishMessages frames the conversation for the final rewrite. Blank messages are dropped.
func finishMessages(userCtx, target string, messages []Message) []generation.Message {
	out := make([]generation.Message, 0, len(messages)+2) //nolint:mnd // system framing and final instruction.
	out = append(out, generation.Message{
		Role:    generation.RoleSystem,
		Content: finishSystemPrompt + "\n\n" + userCtx + "\n\nmuscle_groups: [" + target + "]",
	})
	for _, m := range messages {
		if content := strings.TrimSpace(m.Content); content != "" {
			out = append(out, generation.Message{Role: generation.Role(m.Role), Content: content})
		}
	}
	return append(out, generation.Message{Role: generation.RoleUser, Content: finishInstruction})
}

func optionalInt(n *int) string {
	if n == nil {
		return notAvailable
	}
	return strconv.Itoa(*n)
}

func optionalFloat(f *float64) string {
	if f == nil {
		return notAvailable
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
