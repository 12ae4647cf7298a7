package stats

import (
	"context"
	"testing"
	"time"

	"tg-wellness-bot/internal/domain"
)

type memGroups struct {
	groups map[int64]domain.Group
}

func (m *memGroups) UpsertGroup(_ context.Context, g domain.Group) (domain.Group, error) {
	m.groups[g.ChatID] = g
	return g, nil
}

func (m *memGroups) GetGroup(_ context.Context, chatID int64) (domain.Group, error) {
	g, ok := m.groups[chatID]
	if !ok {
		return domain.Group{}, domain.ErrGroupNotFound
	}
	return g, nil
}

func (m *memGroups) SetBound(_ context.Context, chatID int64, bound bool) error { return nil }
func (m *memGroups) SetGoal(_ context.Context, chatID int64, goal domain.GoalKind) error {
	return nil
}

type memLogs struct {
	entries []domain.LogEntry
}

func (m *memLogs) AppendLog(_ context.Context, e domain.LogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLogs) ListLogs(_ context.Context, chatID int64, metric domain.Metric, since time.Time) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	for _, e := range m.entries {
		if e.ChatID == chatID && e.Metric == metric && !e.RecordedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLogs) LastLogBefore(_ context.Context, chatID int64, metric domain.Metric, before time.Time) (domain.LogEntry, bool, error) {
	return domain.LogEntry{}, false, nil
}

func weightAt(chatID int64, kg float64, at time.Time) domain.LogEntry {
	return domain.LogEntry{ChatID: chatID, UserID: 1, Metric: domain.MetricWeight, Value: kg, RecordedAt: at}
}

func stepsAt(chatID int64, n float64, at time.Time) domain.LogEntry {
	return domain.LogEntry{ChatID: chatID, UserID: 1, Metric: domain.MetricSteps, Value: n, RecordedAt: at}
}

func newTestService(goal domain.GoalKind, entries ...domain.LogEntry) *Service {
	groups := &memGroups{groups: map[int64]domain.Group{
		42: {ChatID: 42, Bound: true, Goal: goal, Timezone: "Asia/Almaty"},
	}}
	return NewService(groups, &memLogs{entries: entries})
}

func TestSummaryNoData(t *testing.T) {
	svc := newTestService(domain.GoalCut)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !sum.Insufficient {
		t.Fatal("без записей сводка должна быть Insufficient")
	}
	if sum.Goal != domain.GoalCut {
		t.Fatalf("цель должна прийти из группы, получили %s", sum.Goal)
	}
}

func TestSummarySingleEntry(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(domain.GoalMaintain, weightAt(42, 81.5, now.Add(-24*time.Hour)))

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !sum.Insufficient {
		t.Fatal("одна точка — всё ещё Insufficient")
	}
	if sum.LatestWeight != 81.5 {
		t.Fatalf("последний вес всё равно показываем, получили %.1f", sum.LatestWeight)
	}
}

func TestSummaryCutAligned(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(domain.GoalCut,
		weightAt(42, 90, now.Add(-7*24*time.Hour)),
		weightAt(42, 88, now),
	)

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sum.Insufficient {
		t.Fatal("двух точек достаточно для сводки")
	}
	if sum.Delta7 == nil || *sum.Delta7 != -2 {
		t.Fatalf("ожидали Delta7 = -2, получили %v", sum.Delta7)
	}
	if sum.Adherence != domain.AlignmentAligned {
		t.Fatalf("похудение на сушке должно быть aligned, получили %s", sum.Adherence)
	}
}

func TestSummaryCutGaining(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(domain.GoalCut,
		weightAt(42, 88, now.Add(-8*24*time.Hour)),
		weightAt(42, 90, now),
	)

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sum.Adherence != domain.AlignmentMisaligned {
		t.Fatalf("набор на сушке должен быть misaligned, получили %s", sum.Adherence)
	}
}

func TestSummaryMaintainStable(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(domain.GoalMaintain,
		weightAt(42, 80.0, now.Add(-7*24*time.Hour)),
		weightAt(42, 80.1, now),
	)

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sum.Adherence != domain.AlignmentAligned {
		t.Fatalf("стабильный вес при maintain — aligned, получили %s", sum.Adherence)
	}
}

func TestSummaryBulkGaining(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(domain.GoalBulk,
		weightAt(42, 70, now.Add(-10*24*time.Hour)),
		weightAt(42, 71, now),
	)

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Недельной точки нет, сигнал считается от месячной дельты.
	if sum.Delta7 != nil {
		t.Fatalf("точки ровно неделю назад нет, Delta7 должна быть nil: %v", *sum.Delta7)
	}
	if sum.Delta30 == nil || *sum.Delta30 != 1 {
		t.Fatalf("ожидали Delta30 = +1, получили %v", sum.Delta30)
	}
	if sum.Adherence != domain.AlignmentAligned {
		t.Fatalf("набор на массе — aligned, получили %s", sum.Adherence)
	}
}

func TestSummaryUnknownGroupDefaultsToMaintain(t *testing.T) {
	svc := newTestService(domain.GoalCut)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	sum, err := svc.Summary(context.Background(), 999, now)
	if err != nil {
		t.Fatalf("неизвестная группа не ошибка: %v", err)
	}
	if sum.Goal != domain.GoalMaintain {
		t.Fatalf("для неизвестной группы цель по умолчанию maintain, получили %s", sum.Goal)
	}
}

func TestSummaryAverageSteps(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(domain.GoalMaintain,
		weightAt(42, 80, now.Add(-9*24*time.Hour)),
		weightAt(42, 79, now),
		stepsAt(42, 8000, now.Add(-2*24*time.Hour)),
		stepsAt(42, 12000, now.Add(-24*time.Hour)),
		stepsAt(42, 5000, now.Add(-10*24*time.Hour)), // вне окна 7 дней
	)

	sum, err := svc.Summary(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if sum.AvgSteps7 == nil || *sum.AvgSteps7 != 10000 {
		t.Fatalf("ожидали среднее 10000 шагов, получили %v", sum.AvgSteps7)
	}
}
