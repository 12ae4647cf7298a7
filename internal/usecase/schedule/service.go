package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/metrics"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Service управляет жизненным циклом напоминаний групп.
// Состояние в памяти ограничивается замками по чатам: источником правды
// для enabled и last_fired_at остаётся хранилище, поэтому Tick можно
// гонять на любом числе инстансов после рестарта.
type Service struct {
	groups domain.GroupRepo
	jobs   domain.JobRepo
	sink   domain.ReminderSink
	sched  Schedule
	fanOut int
	log    zerolog.Logger

	mu        sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// NewService создаёт сервис.
func NewService(groups domain.GroupRepo, jobs domain.JobRepo, sink domain.ReminderSink, sched Schedule, fanOut int, log zerolog.Logger) *Service {
	if fanOut <= 0 {
		fanOut = 1
	}
	return &Service{
		groups:    groups,
		jobs:      jobs,
		sink:      sink,
		sched:     sched,
		fanOut:    fanOut,
		log:       log,
		chatLocks: make(map[int64]*sync.Mutex),
	}
}

// Bind включает напоминания для группы. Повторная привязка идемпотентна:
// набор заданий не дублируется, last_fired_at не сбрасывается.
func (s *Service) Bind(ctx context.Context, chatID int64, timezone string) (domain.Group, error) {
	normalized, err := normalizeTimezone(timezone)
	if err != nil {
		return domain.Group{}, err
	}

	lock := s.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	group, err := s.groups.UpsertGroup(ctx, domain.Group{ChatID: chatID, Bound: true, Timezone: normalized})
	if err != nil {
		return domain.Group{}, fmt.Errorf("сохранение группы: %w", err)
	}
	for _, kind := range domain.ReminderKinds() {
		if err := s.jobs.UpsertJob(ctx, domain.ReminderJob{ChatID: chatID, Kind: kind, Enabled: true}); err != nil {
			return domain.Group{}, fmt.Errorf("включение задания %s: %w", kind, err)
		}
	}
	return group, nil
}

// Unbind выключает напоминания группы, не удаляя задания и историю.
// Для непривязанной группы это no-op. Запись в хранилище синхронная,
// поэтому следующий Tick уже не увидит заданий группы.
func (s *Service) Unbind(ctx context.Context, chatID int64) error {
	lock := s.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.groups.GetGroup(ctx, chatID); errors.Is(err, domain.ErrGroupNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("получение группы: %w", err)
	}
	if err := s.jobs.SetEnabledForChat(ctx, chatID, false); err != nil {
		return fmt.Errorf("выключение заданий: %w", err)
	}
	if err := s.groups.SetBound(ctx, chatID, false); err != nil {
		return fmt.Errorf("снятие привязки: %w", err)
	}
	return nil
}

// SetGoal устанавливает цель группы. На расписание не влияет.
func (s *Service) SetGoal(ctx context.Context, chatID int64, raw string) (domain.GoalKind, error) {
	goal, err := domain.ParseGoal(raw)
	if err != nil {
		return "", err
	}
	if err := s.groups.SetGoal(ctx, chatID, goal); err != nil {
		return "", fmt.Errorf("сохранение цели: %w", err)
	}
	return goal, nil
}

// Tick единственная точка входа планировщика, дергается раз в минуту.
// Группы обрабатываются параллельно с ограничением, внутри группы —
// строго последовательно под её замком.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	started := time.Now()
	defer func() { metrics.SchedulerTickSeconds.Observe(time.Since(started).Seconds()) }()

	jobs, err := s.jobs.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("выборка заданий: %w", err)
	}

	byChat := make(map[int64][]domain.ReminderJob)
	for _, job := range jobs {
		byChat[job.ChatID] = append(byChat[job.ChatID], job)
	}

	var g errgroup.Group
	g.SetLimit(s.fanOut)
	for chatID, chatJobs := range byChat {
		chatID, chatJobs := chatID, chatJobs
		g.Go(func() error {
			s.tickChat(ctx, now, chatID, chatJobs)
			return nil
		})
	}
	return g.Wait()
}

// tickChat обрабатывает задания одной группы. Любая ошибка логируется
// и не останавливает ни цикл, ни другие группы.
func (s *Service) tickChat(ctx context.Context, now time.Time, chatID int64, jobs []domain.ReminderJob) {
	lock := s.lockFor(chatID)
	lock.Lock()
	defer lock.Unlock()

	group, err := s.groups.GetGroup(ctx, chatID)
	if err != nil {
		// Задание без группы — нарушение инварианта, пропускаем цикл.
		s.log.Error().Err(err).Int64("chat", chatID).Msg("tick: группа задания не найдена")
		return
	}
	loc, err := time.LoadLocation(group.Timezone)
	if err != nil {
		s.log.Error().Err(err).Int64("chat", chatID).Str("tz", group.Timezone).Msg("tick: некорректный часовой пояс")
		return
	}
	local := now.In(loc)

	for _, job := range jobs {
		slot, ok := s.sched.SlotStart(job.Kind, local)
		if !ok {
			continue
		}
		if job.LastFiredAt != nil && !job.LastFiredAt.Before(slot) {
			continue
		}
		// Сначала фиксируем слот в хранилище, потом шлём: при падении
		// между этими шагами теряем максимум одну отправку, но никогда
		// не дублируем её.
		won, err := s.jobs.MarkFired(ctx, chatID, job.Kind, slot.UTC(), now.UTC())
		if err != nil {
			s.log.Error().Err(err).Int64("chat", chatID).Str("kind", string(job.Kind)).Msg("tick: не удалось отметить слот")
			continue
		}
		if !won {
			continue
		}
		metrics.ReminderFiresTotal.WithLabelValues(string(job.Kind)).Inc()
		if err := s.sink.Fire(ctx, chatID, job.Kind); err != nil {
			metrics.ReminderSendErrors.Inc()
			s.log.Error().Err(err).Int64("chat", chatID).Str("kind", string(job.Kind)).Msg("tick: ошибка отправки напоминания")
		}
	}
}

func (s *Service) lockFor(chatID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.chatLocks[chatID] = lock
	}
	return lock
}

func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
