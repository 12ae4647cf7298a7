package bot

import (
	"strings"
	"testing"
	"time"

	"tg-wellness-bot/internal/domain"
)

func TestParseWeight(t *testing.T) {
	cases := []struct {
		text string
		want float64
		ok   bool
	}{
		{"79.4", 79.4, true},
		{"79,4", 79.4, true},
		{"вес 79.4", 79.4, true},
		{"Вес 102 кг", 102, true},
		{"85", 85, true},
		{"12345", 0, false},
		{"79.45", 0, false},
		{"привет", 0, false},
		{"вес вчера был 80", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseWeight(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseWeight(%q) = (%v, %v), ожидали (%v, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseSteps(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"8500", 8500, true},
		{"8500 шагов", 8500, true},
		{"8500 steps", 8500, true},
		// Диапазон проверяет usecase, парсер отдаёт число как есть.
		{"100000", 100000, true},
		{"85", 0, false},
		{"сегодня 8500", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseSteps(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseSteps(%q) = (%v, %v), ожидали (%v, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRenderStatsEmpty(t *testing.T) {
	text := renderStats(domain.StatsSummary{Goal: domain.GoalMaintain, Insufficient: true})
	if !strings.Contains(text, "Пока нет записей веса") {
		t.Fatalf("пустой журнал должен давать подсказку, получили %q", text)
	}
}

func TestRenderStatsInsufficientWithLatest(t *testing.T) {
	text := renderStats(domain.StatsSummary{
		Goal:         domain.GoalCut,
		Insufficient: true,
		LatestWeight: 81.5,
		LatestAt:     time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	})
	if !strings.Contains(text, "81.5") {
		t.Fatalf("последний вес должен быть в сводке: %q", text)
	}
	if !strings.Contains(text, "Мало данных") {
		t.Fatalf("одна точка — динамики нет: %q", text)
	}
}

func TestRenderStatsFull(t *testing.T) {
	d7 := -1.2
	d30 := -3.0
	steps := 9500.0
	text := renderStats(domain.StatsSummary{
		Goal:         domain.GoalCut,
		LatestWeight: 86.8,
		LatestAt:     time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
		Delta7:       &d7,
		Delta30:      &d30,
		AvgSteps7:    &steps,
		Adherence:    domain.AlignmentAligned,
	})
	for _, want := range []string{"-1.2", "-3.0", "9500", "по плану"} {
		if !strings.Contains(text, want) {
			t.Errorf("в сводке нет %q: %q", want, text)
		}
	}
}
