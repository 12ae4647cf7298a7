package track

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tg-wellness-bot/internal/domain"
)

// Пределы правдоподобных значений, всё вне них отклоняется без записи.
const (
	minWeightKg = 30.0
	maxWeightKg = 300.0
	minSteps    = 300
	maxSteps    = 100000
)

// trendWindow насколько далеко в прошлое смотрим за прошлой точкой веса.
const trendWindow = 6 * 24 * time.Hour

// stableBand изменения меньше этого считаем шумом.
const stableBand = 0.2

// ErrWeightOutOfRange возвращается при неправдоподобном весе.
var ErrWeightOutOfRange = errors.New("вес должен быть в пределах 30–300 кг")

// ErrStepsOutOfRange возвращается при неправдоподобном числе шагов.
var ErrStepsOutOfRange = errors.New("шаги должны быть в пределах 300–100000")

// Service пишет журнал веса и шагов.
type Service struct {
	logs domain.LogRepo
}

// NewService создаёт сервис.
func NewService(logs domain.LogRepo) *Service {
	return &Service{logs: logs}
}

// RecordWeight записывает вес и возвращает комментарий о динамике
// относительно точки неделей раньше.
func (s *Service) RecordWeight(ctx context.Context, chatID, userID int64, kg float64, now time.Time) (string, error) {
	if kg < minWeightKg || kg > maxWeightKg {
		return "", ErrWeightOutOfRange
	}
	prev, found, err := s.logs.LastLogBefore(ctx, chatID, domain.MetricWeight, now.Add(-trendWindow))
	if err != nil {
		return "", fmt.Errorf("чтение прошлой точки: %w", err)
	}
	entry := domain.LogEntry{
		ChatID:     chatID,
		UserID:     userID,
		Metric:     domain.MetricWeight,
		Value:      kg,
		RecordedAt: now.UTC(),
	}
	if err := s.logs.AppendLog(ctx, entry); err != nil {
		return "", fmt.Errorf("запись веса: %w", err)
	}
	if !found {
		return "Записал ✅ Если будешь отправлять вес регулярно (например, по воскресеньям), покажу динамику.", nil
	}
	return weightComment(kg, prev.Value), nil
}

// RecordSteps записывает шаги за день.
func (s *Service) RecordSteps(ctx context.Context, chatID, userID int64, steps int, now time.Time) error {
	if steps < minSteps || steps > maxSteps {
		return ErrStepsOutOfRange
	}
	entry := domain.LogEntry{
		ChatID:     chatID,
		UserID:     userID,
		Metric:     domain.MetricSteps,
		Value:      float64(steps),
		RecordedAt: now.UTC(),
	}
	if err := s.logs.AppendLog(ctx, entry); err != nil {
		return fmt.Errorf("запись шагов: %w", err)
	}
	return nil
}

func weightComment(curr, prev float64) string {
	diff := curr - prev
	if math.Abs(diff) < stableBand {
		return fmt.Sprintf("Почти без изменений (%+.1f кг). Стабильно — это ок.", diff)
	}
	if diff < 0 {
		return fmt.Sprintf("Тренд вниз: %+.1f кг относительно прошлой точки. Хорошо 💪", diff)
	}
	return fmt.Sprintf("Тренд вверх: %+.1f кг. Часто это вода/соль/сон — смотрим по 2–3 неделям.", diff)
}
