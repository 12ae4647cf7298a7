package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tg-wellness-bot/internal/domain"
)

// ErrInvalidSchedule возвращается при некорректной конфигурации расписания.
var ErrInvalidSchedule = errors.New("некорректное расписание напоминаний")

// DayTime время суток в минутах от полуночи.
type DayTime int

// ParseDayTime разбирает время вида "07:00".
func ParseDayTime(raw string) (DayTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSchedule, raw)
	}
	return DayTime(t.Hour()*60 + t.Minute()), nil
}

func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}

// at возвращает этот момент суток в дне и зоне переданного времени.
func (d DayTime) at(local time.Time) time.Time {
	y, m, day := local.Date()
	return time.Date(y, m, day, int(d)/60, int(d)%60, 0, 0, local.Location())
}

// Schedule описывает локальное расписание напоминаний.
// Одно расписание на деплой, слоты считаются в зоне каждой группы.
type Schedule struct {
	WaterEvery time.Duration
	WaterFrom  DayTime
	WaterUntil DayTime
	StepsAt    DayTime
	WeightAt   DayTime
	// WeightDOW ограничивает взвешивание днём недели, -1 означает ежедневно.
	WeightDOW time.Weekday
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseSchedule собирает расписание из конфигурационных строк.
// Пустой weightDOW означает ежедневное взвешивание.
func ParseSchedule(waterEvery time.Duration, waterFrom, waterUntil, stepsAt, weightAt, weightDOW string) (Schedule, error) {
	if waterEvery < time.Minute {
		return Schedule{}, fmt.Errorf("%w: период воды %s", ErrInvalidSchedule, waterEvery)
	}
	from, err := ParseDayTime(waterFrom)
	if err != nil {
		return Schedule{}, err
	}
	until, err := ParseDayTime(waterUntil)
	if err != nil {
		return Schedule{}, err
	}
	if until < from {
		return Schedule{}, fmt.Errorf("%w: окно воды %s-%s", ErrInvalidSchedule, waterFrom, waterUntil)
	}
	steps, err := ParseDayTime(stepsAt)
	if err != nil {
		return Schedule{}, err
	}
	weight, err := ParseDayTime(weightAt)
	if err != nil {
		return Schedule{}, err
	}
	dow := time.Weekday(-1)
	if trimmed := strings.ToLower(strings.TrimSpace(weightDOW)); trimmed != "" {
		parsed, ok := weekdays[trimmed]
		if !ok {
			return Schedule{}, fmt.Errorf("%w: день недели %q", ErrInvalidSchedule, weightDOW)
		}
		dow = parsed
	}
	return Schedule{
		WaterEvery: waterEvery,
		WaterFrom:  from,
		WaterUntil: until,
		StepsAt:    steps,
		WeightAt:   weight,
		WeightDOW:  dow,
	}, nil
}

// SlotStart возвращает начало последнего слота вида kind, наступившего
// сегодня не позже local. Слоты вчерашнего дня не догоняются.
func (s Schedule) SlotStart(kind domain.ReminderKind, local time.Time) (time.Time, bool) {
	switch kind {
	case domain.RemindWater:
		step := DayTime(s.WaterEvery / time.Minute)
		var best time.Time
		found := false
		for m := s.WaterFrom; m <= s.WaterUntil; m += step {
			slot := m.at(local)
			if slot.After(local) {
				break
			}
			best = slot
			found = true
		}
		return best, found
	case domain.RemindSteps:
		slot := s.StepsAt.at(local)
		return slot, !slot.After(local)
	case domain.RemindWeight:
		if s.WeightDOW >= 0 && local.Weekday() != s.WeightDOW {
			return time.Time{}, false
		}
		slot := s.WeightAt.at(local)
		return slot, !slot.After(local)
	}
	return time.Time{}, false
}

// SlotsPerDay возвращает число слотов вида kind в сутках, попадающих
// на указанный день. Используется в сводках и тестах расписания.
func (s Schedule) SlotsPerDay(kind domain.ReminderKind, day time.Time) int {
	switch kind {
	case domain.RemindWater:
		step := DayTime(s.WaterEvery / time.Minute)
		n := 0
		for m := s.WaterFrom; m <= s.WaterUntil; m += step {
			n++
		}
		return n
	case domain.RemindSteps:
		return 1
	case domain.RemindWeight:
		if s.WeightDOW >= 0 && day.Weekday() != s.WeightDOW {
			return 0
		}
		return 1
	}
	return 0
}
