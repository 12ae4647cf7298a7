package schedule

import (
	"errors"
	"testing"
	"time"

	"tg-wellness-bot/internal/domain"
)

func mustParseSchedule(t *testing.T, weightDOW string) Schedule {
	t.Helper()
	sched, err := ParseSchedule(3*time.Hour, "07:00", "22:00", "22:00", "10:00", weightDOW)
	if err != nil {
		t.Fatalf("не ожидали ошибку расписания: %v", err)
	}
	return sched
}

func TestParseDayTime(t *testing.T) {
	d, err := ParseDayTime("07:30")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if int(d) != 7*60+30 {
		t.Fatalf("ожидали 450 минут, получили %d", int(d))
	}
	if d.String() != "07:30" {
		t.Fatalf("обратное форматирование сломано: %s", d)
	}
	if _, err := ParseDayTime("25:00"); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("ожидали ErrInvalidSchedule, получили %v", err)
	}
}

func TestParseScheduleValidation(t *testing.T) {
	if _, err := ParseSchedule(time.Second, "07:00", "22:00", "22:00", "10:00", ""); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("секундный период воды должен отклоняться: %v", err)
	}
	if _, err := ParseSchedule(3*time.Hour, "22:00", "07:00", "22:00", "10:00", ""); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("перевёрнутое окно воды должно отклоняться: %v", err)
	}
	if _, err := ParseSchedule(3*time.Hour, "07:00", "22:00", "22:00", "10:00", "someday"); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("неизвестный день недели должен отклоняться: %v", err)
	}
}

func TestSlotStartWater(t *testing.T) {
	sched := mustParseSchedule(t, "")
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// До первого слота — слота нет.
	if _, ok := sched.SlotStart(domain.RemindWater, day.Add(6*time.Hour+59*time.Minute)); ok {
		t.Fatal("до 07:00 слота воды нет")
	}
	// 11:30 — последний прошедший слот 10:00.
	slot, ok := sched.SlotStart(domain.RemindWater, day.Add(11*time.Hour+30*time.Minute))
	if !ok {
		t.Fatal("в 11:30 слот должен существовать")
	}
	if slot.Hour() != 10 || slot.Minute() != 0 {
		t.Fatalf("ожидали слот 10:00, получили %s", slot)
	}
	// Поздний вечер — последний слот 22:00, дальше не двигается.
	slot, ok = sched.SlotStart(domain.RemindWater, day.Add(23*time.Hour+45*time.Minute))
	if !ok || slot.Hour() != 22 {
		t.Fatalf("ожидали слот 22:00, получили %s (%v)", slot, ok)
	}
}

func TestSlotStartWeightDOW(t *testing.T) {
	sched := mustParseSchedule(t, "sun")
	sunday := time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)
	monday := sunday.Add(24 * time.Hour)

	if _, ok := sched.SlotStart(domain.RemindWeight, monday); ok {
		t.Fatal("в понедельник взвешивания нет")
	}
	slot, ok := sched.SlotStart(domain.RemindWeight, sunday)
	if !ok || slot.Hour() != 10 {
		t.Fatalf("в воскресенье ожидали слот 10:00, получили %s (%v)", slot, ok)
	}
}

func TestSlotsPerDay(t *testing.T) {
	sched := mustParseSchedule(t, "sun")
	sunday := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	monday := sunday.Add(24 * time.Hour)

	if got := sched.SlotsPerDay(domain.RemindWater, monday); got != 6 {
		t.Fatalf("ожидали 6 слотов воды, получили %d", got)
	}
	if got := sched.SlotsPerDay(domain.RemindSteps, monday); got != 1 {
		t.Fatalf("ожидали 1 слот шагов, получили %d", got)
	}
	if got := sched.SlotsPerDay(domain.RemindWeight, monday); got != 0 {
		t.Fatalf("в будни слотов взвешивания нет, получили %d", got)
	}
	if got := sched.SlotsPerDay(domain.RemindWeight, sunday); got != 1 {
		t.Fatalf("в воскресенье один слот взвешивания, получили %d", got)
	}
}
