package workout

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/ptr"
)

func TestRotator_Next(t *testing.T) {
	r, err := NewRotator()
	if err != nil {
		t.Fatalf("NewRotator() error = %v", err)
	}

	tests := []struct {
		name string
		p    Profile
		want string
	}{
		{name: "empty starts the rotation", p: Profile{}, want: "Грудь, Трицепс"},
		{name: "unknown group restarts", p: Profile{LastMuscleGroup: "Шея"}, want: "Грудь, Трицепс"},
		{name: "advances one step", p: Profile{LastMuscleGroup: "Спина"}, want: "Плечи, Пресс"},
		{name: "wraps around", p: Profile{LastMuscleGroup: "Всё тело"}, want: "Грудь, Трицепс"},
		{
			name: "pro matches the set label",
			p:    Profile{IsPro: true, LastMuscleGroup: "Спина, Бицепс"},
			want: "Ноги, Плечи",
		},
		{
			name: "pro matches membership",
			p:    Profile{IsPro: true, LastMuscleGroup: "Бицепс"},
			want: "Ноги, Плечи",
		},
		{
			name: "pro prefers the exact label over an earlier member",
			p:    Profile{IsPro: true, Athlete: athlete("женский"), LastMuscleGroup: "Ягодицы, Пресс"},
			want: "Грудь, Руки",
		},
		{
			name: "pro female wraps around",
			p:    Profile{IsPro: true, Athlete: athlete("female"), LastMuscleGroup: "Грудь, Руки"},
			want: "Ягодицы, Ноги",
		},
		{
			name: "pro without history starts with the first set",
			p:    Profile{IsPro: true, Athlete: athlete("ж")},
			want: "Ягодицы, Ноги",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Next(tt.p); got != tt.want {
				t.Errorf("Next() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRotator_Split(t *testing.T) {
	r, err := NewRotator()
	if err != nil {
		t.Fatalf("NewRotator() error = %v", err)
	}
	for f := minFrequency; f <= maxFrequency; f++ {
		if got := len(r.Split(f)); got != f {
			t.Errorf("len(Split(%d)) = %d, want %d", f, got, f)
		}
		if r.Description(f) == "" {
			t.Errorf("Description(%d) is empty", f)
		}
	}
	if diff := cmp.Diff(r.Split(defaultFrequency), r.Split(0)); diff != "" {
		t.Errorf("Split(0) does not fall back to the default (-want +got):\n%s", diff)
	}

	split := r.Split(2)
	split[0] = "changed"
	if r.Split(2)[0] == "changed" {
		t.Error("Split() exposes the catalogue")
	}
}

func TestSupersetsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		formats string
		choice  *bool
		want    bool
	}{
		{name: "explicit choice wins", level: "новичок", formats: "классическая", choice: ptr.Ref(true), want: true},
		{name: "explicit opt out", level: "продвинутый", formats: "суперсеты", choice: ptr.Ref(false), want: false},
		{name: "classic format disables", level: "продвинутый", formats: "Классическая, суперсеты", want: false},
		{name: "beginner without keyword", level: "Новичок", formats: "", want: false},
		{name: "beginner asking for circuits", level: "новичок", formats: "круговая тренировка", want: true},
		{name: "avoid keyword disables", level: "средний", formats: "медленно и с отдыхом", want: false},
		{name: "intermediate defaults on", level: "средний", formats: "", want: true},
		{name: "advanced defaults on", level: "Advanced", formats: "", want: true},
		{name: "unknown level with keyword", level: "", formats: "быстро", want: true},
		{name: "unknown level defaults off", level: "", formats: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Profile{SupersetsEnabled: tt.choice}
			p.Level = tt.level
			p.WorkoutFormats = tt.formats
			if got := supersetsEnabled(p); got != tt.want {
				t.Errorf("supersetsEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeAttendance(t *testing.T) {
	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		dates []string
		want  attendanceHistory
	}{
		{name: "empty", dates: nil, want: attendanceHistory{}},
		{
			name:  "unparseable dates are ignored",
			dates: []string{"yesterday", "2026-10-14"},
			want:  attendanceHistory{RealFrequency: 1, TotalWorkouts: 1, AverageWeekly: 0.2, LastWorkoutDate: "2026-10-14"},
		},
		{
			name:  "only old workouts",
			dates: []string{"2026-09-01"},
			want:  attendanceHistory{},
		},
		{
			name:  "future and old dates around the window",
			dates: []string{"2026-10-20", "2026-09-15", "2026-09-01"},
			want:  attendanceHistory{RealFrequency: 1, TotalWorkouts: 2, AverageWeekly: 0.5, LastWorkoutDate: "2026-10-20"},
		},
		{
			name: "clamped to five",
			dates: []string{"2026-10-15", "2026-10-14", "2026-10-13", "2026-10-12", "2026-10-11", "2026-10-10",
				"2026-10-09", "2026-10-08", "2026-10-07", "2026-10-06", "2026-10-05", "2026-10-04", "2026-10-03",
				"2026-10-02", "2026-10-01", "2026-09-30", "2026-09-29", "2026-09-28", "2026-09-27", "2026-09-26",
				"2026-09-25", "2026-09-24", "2026-09-23", "2026-09-22"},
			want: attendanceHistory{RealFrequency: 5, TotalWorkouts: 24, AverageWeekly: 5.6, LastWorkoutDate: "2026-10-15"},
		},
		{
			name:  "rounds half up",
			dates: repeat("2026-10-14", 15),
			want:  attendanceHistory{RealFrequency: 4, TotalWorkouts: 15, AverageWeekly: 3.5, LastWorkoutDate: "2026-10-14"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, computeAttendance(tt.dates, now)); diff != "" {
				t.Errorf("computeAttendance() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		dates []string
		want  int
	}{
		{dates: nil, want: 0},
		{dates: []string{"2026-10-01"}, want: 1},
		{dates: []string{"2026-10-03", "2026-10-02", "2026-10-02", "2026-10-01", "2026-09-29"}, want: 3},
		{dates: []string{"2026-10-03", "2026-10-01"}, want: 1},
		{dates: []string{"2026-03-01", "2026-02-28"}, want: 2},
	}
	for _, tt := range tests {
		if got := currentStreak(tt.dates); got != tt.want {
			t.Errorf("currentStreak(%v) = %d, want %d", tt.dates, got, tt.want)
		}
	}
}

func athlete(gender string) generation.Athlete {
	return generation.Athlete{Gender: gender} //nolint:exhaustruct // only gender matters.
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
