package domain

import (
	"errors"
	"strings"
	"time"
)

// GoalKind описывает цель группы по питанию.
type GoalKind string

const (
	// GoalCut снижение веса.
	GoalCut GoalKind = "cut"
	// GoalMaintain поддержание веса.
	GoalMaintain GoalKind = "maintain"
	// GoalBulk набор веса.
	GoalBulk GoalKind = "bulk"
)

// ErrUnknownGoal возвращается при неизвестном значении цели.
var ErrUnknownGoal = errors.New("неизвестная цель: допустимы cut, maintain, bulk")

// ParseGoal разбирает цель из пользовательского ввода.
func ParseGoal(raw string) (GoalKind, error) {
	switch GoalKind(strings.ToLower(strings.TrimSpace(raw))) {
	case GoalCut:
		return GoalCut, nil
	case GoalMaintain:
		return GoalMaintain, nil
	case GoalBulk:
		return GoalBulk, nil
	}
	return "", ErrUnknownGoal
}

// Group описывает групповой чат, привязанный к боту.
type Group struct {
	ChatID    int64
	Bound     bool
	Goal      GoalKind
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReminderKind вид напоминания.
type ReminderKind string

const (
	// RemindWater напоминание про воду.
	RemindWater ReminderKind = "water"
	// RemindSteps напоминание про шаги.
	RemindSteps ReminderKind = "steps"
	// RemindWeight напоминание про взвешивание.
	RemindWeight ReminderKind = "weight"
)

// ReminderKinds перечисляет все виды напоминаний.
func ReminderKinds() []ReminderKind {
	return []ReminderKind{RemindWater, RemindSteps, RemindWeight}
}

// ReminderJob хранит состояние одного напоминания группы.
// Расписание задаётся конфигурацией, в БД живут только enabled и last_fired_at.
type ReminderJob struct {
	ChatID      int64
	Kind        ReminderKind
	Enabled     bool
	LastFiredAt *time.Time
}

// Metric вид записи в журнале.
type Metric string

const (
	// MetricWeight вес в килограммах.
	MetricWeight Metric = "weight"
	// MetricSteps шаги за день.
	MetricSteps Metric = "steps"
)

// LogEntry одна запись журнала веса или шагов. Записи неизменяемы.
type LogEntry struct {
	ChatID     int64
	UserID     int64
	Metric     Metric
	Value      float64
	RecordedAt time.Time
}

// Alignment показывает, насколько блюдо соответствует цели группы.
type Alignment string

const (
	// AlignmentAligned блюдо работает на цель.
	AlignmentAligned Alignment = "aligned"
	// AlignmentNeutral нейтрально.
	AlignmentNeutral Alignment = "neutral"
	// AlignmentMisaligned блюдо мешает цели.
	AlignmentMisaligned Alignment = "misaligned"
)

// Verdict результат оценки одного фото еды.
// RawModelText всегда сохраняется для разбора инцидентов,
// даже если ответ модели не удалось распарсить.
type Verdict struct {
	Dish         string
	Score        int
	Calories     string
	Alignment    Alignment
	Rationale    string
	Advice       string
	RawModelText string
	Degraded     bool
}

// StatsSummary сводка по журналу группы для команды /stats.
type StatsSummary struct {
	Goal         GoalKind
	Insufficient bool
	LatestWeight float64
	LatestAt     time.Time
	Delta7       *float64
	Delta30      *float64
	Adherence    Alignment
	AvgSteps7    *float64
}
