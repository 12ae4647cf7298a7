package domain

import (
	"context"
	"errors"
	"time"
)

// ErrGroupNotFound возвращается, если группа отсутствует в хранилище.
var ErrGroupNotFound = errors.New("группа не найдена")

// GroupRepo управляет группами.
type GroupRepo interface {
	UpsertGroup(ctx context.Context, group Group) (Group, error)
	GetGroup(ctx context.Context, chatID int64) (Group, error)
	SetBound(ctx context.Context, chatID int64, bound bool) error
	SetGoal(ctx context.Context, chatID int64, goal GoalKind) error
}

// JobRepo управляет заданиями напоминаний.
type JobRepo interface {
	UpsertJob(ctx context.Context, job ReminderJob) error
	SetEnabledForChat(ctx context.Context, chatID int64, enabled bool) error
	ListEnabled(ctx context.Context) ([]ReminderJob, error)
	// MarkFired атомарно сдвигает last_fired_at, если задание ещё не
	// отмечено внутри слота slotStart. Возвращает true, если слот взят
	// этим вызовом.
	MarkFired(ctx context.Context, chatID int64, kind ReminderKind, slotStart, firedAt time.Time) (bool, error)
}

// LogRepo хранит журнал веса и шагов. Только добавление.
type LogRepo interface {
	AppendLog(ctx context.Context, entry LogEntry) error
	ListLogs(ctx context.Context, chatID int64, metric Metric, since time.Time) ([]LogEntry, error)
	LastLogBefore(ctx context.Context, chatID int64, metric Metric, before time.Time) (LogEntry, bool, error)
}

// ReminderSink получает события срабатывания напоминаний.
type ReminderSink interface {
	Fire(ctx context.Context, chatID int64, kind ReminderKind) error
}

// VisionModel чёрный ящик над мультимодальной моделью:
// картинка плюс промпт, на выходе сырой текст. Ретраи не его забота.
type VisionModel interface {
	Generate(ctx context.Context, image []byte, prompt string) (string, error)
}

// FileFetcher скачивает файл из транспорта по его идентификатору.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// AssessmentQueue очередь заданий на оценку фото.
type AssessmentQueue interface {
	Enqueue(ctx context.Context, job AssessmentJob) error
	Pop(ctx context.Context) (AssessmentJob, error)
}

// Gate простой TTL-замок: первый Acquire за окно проходит, остальные нет.
type Gate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
