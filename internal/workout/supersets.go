package workout

import (
	"slices"
	"strings"
)

//nolint:gochecknoglobals // keyword tables.
var (
	supersetKeywords = []string{"суперсет", "superset", "круговая", "circuit", "интенсив", "быстро"}
	avoidKeywords    = []string{"классическая", "отдых", "медленно", "новичок"}
	beginnerLevels   = []string{"новичок", "beginner", "начинающий"}
	advancedLevels   = []string{"средний", "продвинутый", "intermediate", "advanced"}
)

// supersetsEnabled resolves the superset preference. An explicit choice wins. Otherwise the free text workout
// formats decide, and beginners only get supersets when they ask for them.
func supersetsEnabled(p Profile) bool {
	if p.SupersetsEnabled != nil {
		return *p.SupersetsEnabled
	}
	formats := strings.ToLower(p.WorkoutFormats)
	level := strings.ToLower(strings.TrimSpace(p.Level))
	wants := containsAny(formats, supersetKeywords)

	if strings.Contains(formats, "классическая") {
		return false
	}
	if containsAny(level, beginnerLevels) {
		return wants
	}
	if containsAny(formats, avoidKeywords) {
		return false
	}
	return wants || slices.Contains(advancedLevels, level)
}

func containsAny(s string, keywords []string) bool {
	return slices.ContainsFunc(keywords, func(k string) bool { return strings.Contains(s, k) })
}
