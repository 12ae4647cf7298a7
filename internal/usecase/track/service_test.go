package track

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tg-wellness-bot/internal/domain"
)

// memLogs — журнал в памяти, LastLogBefore повторяет семантику
// Postgres-адаптера: последняя запись не позже before.
type memLogs struct {
	entries []domain.LogEntry
}

func (m *memLogs) AppendLog(_ context.Context, entry domain.LogEntry) error {
	m.entries = append(m.entries, entry)
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
	var best domain.LogEntry
	found := false
	for _, e := range m.entries {
		if e.ChatID != chatID || e.Metric != metric || e.RecordedAt.After(before) {
			continue
		}
		if !found || e.RecordedAt.After(best.RecordedAt) {
			best = e
			found = true
		}
	}
	return best, found, nil
}

func TestRecordWeightOutOfRange(t *testing.T) {
	logs := &memLogs{}
	svc := NewService(logs)
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

	for _, kg := range []float64{12, 350} {
		if _, err := svc.RecordWeight(context.Background(), 42, 1, kg, now); !errors.Is(err, ErrWeightOutOfRange) {
			t.Fatalf("вес %.0f: ожидали ErrWeightOutOfRange, получили %v", kg, err)
		}
	}
	if len(logs.entries) != 0 {
		t.Fatalf("неправдоподобный вес не должен записываться, записей %d", len(logs.entries))
	}
}

func TestRecordWeightFirstEntry(t *testing.T) {
	svc := NewService(&memLogs{})
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

	comment, err := svc.RecordWeight(context.Background(), 42, 1, 79.4, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(comment, "Записал") {
		t.Fatalf("для первой записи ждём подтверждение без тренда: %q", comment)
	}
}

func TestRecordWeightTrend(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	cases := []struct {
		name string
		prev float64
		curr float64
		want string
	}{
		{"вниз", 80.0, 79.0, "Тренд вниз"},
		{"вверх", 80.0, 81.5, "Тренд вверх"},
		{"стабильно", 80.0, 80.1, "без изменений"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := &memLogs{entries: []domain.LogEntry{{
				ChatID: 42, UserID: 1, Metric: domain.MetricWeight, Value: tc.prev, RecordedAt: weekAgo,
			}}}
			svc := NewService(logs)
			comment, err := svc.RecordWeight(context.Background(), 42, 1, tc.curr, now)
			if err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			if !strings.Contains(comment, tc.want) {
				t.Fatalf("ожидали %q в комментарии, получили %q", tc.want, comment)
			}
		})
	}
}

func TestRecordWeightIgnoresRecentPoint(t *testing.T) {
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	logs := &memLogs{entries: []domain.LogEntry{{
		ChatID: 42, UserID: 1, Metric: domain.MetricWeight, Value: 85, RecordedAt: now.Add(-2 * 24 * time.Hour),
	}}}
	svc := NewService(logs)

	// Точка двухдневной давности слишком свежая для тренда.
	comment, err := svc.RecordWeight(context.Background(), 42, 1, 79, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(comment, "Записал") {
		t.Fatalf("без точки старше 6 дней тренда нет: %q", comment)
	}
}

func TestRecordStepsValidation(t *testing.T) {
	logs := &memLogs{}
	svc := NewService(logs)
	now := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	for _, steps := range []int{100, 150000} {
		if err := svc.RecordSteps(context.Background(), 42, 1, steps, now); !errors.Is(err, ErrStepsOutOfRange) {
			t.Fatalf("шаги %d: ожидали ErrStepsOutOfRange, получили %v", steps, err)
		}
	}
	if err := svc.RecordSteps(context.Background(), 42, 1, 8500, now); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(logs.entries) != 1 || logs.entries[0].Value != 8500 {
		t.Fatalf("ожидали одну запись 8500, получили %+v", logs.entries)
	}
}
