package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"tg-wellness-bot/internal/domain"
)

// tolerance полоса, внутри которой вес считаем неизменным, кг.
const tolerance = 0.2

// Service считает сводку по журналу группы. Чистое чтение, без мутаций.
type Service struct {
	groups domain.GroupRepo
	logs   domain.LogRepo
}

// NewService создаёт агрегатор.
func NewService(groups domain.GroupRepo, logs domain.LogRepo) *Service {
	return &Service{groups: groups, logs: logs}
}

// Summary строит сводку на момент now: последний вес, дельты за 7 и 30
// дней и сигнал соответствия цели. Меньше двух точек веса в окне —
// честный результат Insufficient, а не NaN.
func (s *Service) Summary(ctx context.Context, chatID int64, now time.Time) (domain.StatsSummary, error) {
	goal := domain.GoalMaintain
	group, err := s.groups.GetGroup(ctx, chatID)
	if err == nil {
		goal = group.Goal
	} else if !errors.Is(err, domain.ErrGroupNotFound) {
		return domain.StatsSummary{}, fmt.Errorf("получение группы: %w", err)
	}

	entries, err := s.logs.ListLogs(ctx, chatID, domain.MetricWeight, now.Add(-30*24*time.Hour))
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("чтение журнала веса: %w", err)
	}
	// Вставки задним числом допустимы, поэтому прежде чем считать
	// тренды, приводим ряд к порядку по времени.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].RecordedAt.Before(entries[j].RecordedAt) })

	summary := domain.StatsSummary{Goal: goal, Adherence: domain.AlignmentNeutral}

	if len(entries) > 0 {
		latest := entries[len(entries)-1]
		summary.LatestWeight = latest.Value
		summary.LatestAt = latest.RecordedAt
	}
	if len(entries) < 2 {
		summary.Insufficient = true
		return summary, nil
	}

	latest := entries[len(entries)-1]
	if at, ok := valueAtOrBefore(entries, now.Add(-7*24*time.Hour)); ok {
		delta := latest.Value - at
		summary.Delta7 = &delta
	}
	first := entries[0]
	if first.RecordedAt.Before(latest.RecordedAt) {
		delta := latest.Value - first.Value
		summary.Delta30 = &delta
	}

	summary.Adherence = adherence(goal, summary.Delta7, summary.Delta30)

	stepEntries, err := s.logs.ListLogs(ctx, chatID, domain.MetricSteps, now.Add(-7*24*time.Hour))
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("чтение журнала шагов: %w", err)
	}
	if len(stepEntries) > 0 {
		var total float64
		for _, e := range stepEntries {
			total += e.Value
		}
		avg := total / float64(len(stepEntries))
		summary.AvgSteps7 = &avg
	}

	return summary, nil
}

// valueAtOrBefore возвращает значение последней записи не позже cutoff.
func valueAtOrBefore(entries []domain.LogEntry, cutoff time.Time) (float64, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].RecordedAt.After(cutoff) {
			return entries[i].Value, true
		}
	}
	return 0, false
}

// adherence сверяет недельную дельту с целью. Без недельной точки
// отталкиваемся от месячной, без обеих — нейтрально.
func adherence(goal domain.GoalKind, delta7, delta30 *float64) domain.Alignment {
	delta := delta7
	if delta == nil {
		delta = delta30
	}
	if delta == nil {
		return domain.AlignmentNeutral
	}
	switch goal {
	case domain.GoalCut:
		if *delta <= -tolerance {
			return domain.AlignmentAligned
		}
		if *delta >= tolerance {
			return domain.AlignmentMisaligned
		}
	case domain.GoalBulk:
		if *delta >= tolerance {
			return domain.AlignmentAligned
		}
		if *delta <= -tolerance {
			return domain.AlignmentMisaligned
		}
	case domain.GoalMaintain:
		if math.Abs(*delta) < tolerance {
			return domain.AlignmentAligned
		}
		return domain.AlignmentMisaligned
	}
	return domain.AlignmentNeutral
}
