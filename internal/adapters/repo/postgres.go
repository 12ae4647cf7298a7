package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.GroupRepo = (*Postgres)(nil)
	_ domain.JobRepo   = (*Postgres)(nil)
	_ domain.LogRepo   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if _, ok := parent.Deadline(); ok {
		return parent, func() {}
	}
	return context.WithTimeout(parent, 5*time.Second)
}

// UpsertGroup создаёт или обновляет группу. Цель при обновлении не трогается.
func (p *Postgres) UpsertGroup(ctx context.Context, group domain.Group) (domain.Group, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	goal := group.Goal
	if goal == "" {
		goal = domain.GoalMaintain
	}

	var out domain.Group
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO groups (chat_id, bound, goal, tz)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chat_id) DO UPDATE SET bound = EXCLUDED.bound, tz = EXCLUDED.tz, updated_at = now()
RETURNING chat_id, bound, goal, tz, created_at, updated_at
`, group.ChatID, group.Bound, goal, group.Timezone).
		Scan(&out.ChatID, &out.Bound, &out.Goal, &out.Timezone, &out.CreatedAt, &out.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "groups_upsert", "groups", start, err)
	if err != nil {
		return domain.Group{}, err
	}
	return out, nil
}

// GetGroup возвращает группу по идентификатору чата.
func (p *Postgres) GetGroup(ctx context.Context, chatID int64) (domain.Group, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var out domain.Group
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT chat_id, bound, goal, tz, created_at, updated_at FROM groups WHERE chat_id = $1
`, chatID).Scan(&out.ChatID, &out.Bound, &out.Goal, &out.Timezone, &out.CreatedAt, &out.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "groups_get", "groups", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Group{}, domain.ErrGroupNotFound
	}
	if err != nil {
		return domain.Group{}, err
	}
	return out, nil
}

// SetBound переключает привязку группы.
func (p *Postgres) SetBound(ctx context.Context, chatID int64, bound bool) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE groups SET bound = $2, updated_at = now() WHERE chat_id = $1
`, chatID, bound)
	metrics.ObserveNetworkRequest("postgres", "groups_set_bound", "groups", start, err)
	return err
}

// SetGoal устанавливает цель группы, создавая запись при необходимости.
func (p *Postgres) SetGoal(ctx context.Context, chatID int64, goal domain.GoalKind) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO groups (chat_id, bound, goal, tz)
VALUES ($1, false, $2, '')
ON CONFLICT (chat_id) DO UPDATE SET goal = EXCLUDED.goal, updated_at = now()
`, chatID, goal)
	metrics.ObserveNetworkRequest("postgres", "groups_set_goal", "groups", start, err)
	return err
}

// UpsertJob создаёт или включает задание напоминания. last_fired_at сохраняется.
func (p *Postgres) UpsertJob(ctx context.Context, job domain.ReminderJob) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO reminder_jobs (chat_id, kind, enabled)
VALUES ($1, $2, $3)
ON CONFLICT (chat_id, kind) DO UPDATE SET enabled = EXCLUDED.enabled
`, job.ChatID, job.Kind, job.Enabled)
	metrics.ObserveNetworkRequest("postgres", "jobs_upsert", "reminder_jobs", start, err)
	return err
}

// SetEnabledForChat переключает все задания группы разом.
func (p *Postgres) SetEnabledForChat(ctx context.Context, chatID int64, enabled bool) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE reminder_jobs SET enabled = $2 WHERE chat_id = $1
`, chatID, enabled)
	metrics.ObserveNetworkRequest("postgres", "jobs_set_enabled", "reminder_jobs", start, err)
	return err
}

// ListEnabled возвращает все включённые задания.
func (p *Postgres) ListEnabled(ctx context.Context) ([]domain.ReminderJob, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT chat_id, kind, enabled, last_fired_at FROM reminder_jobs WHERE enabled
`)
	metrics.ObserveNetworkRequest("postgres", "jobs_list_enabled", "reminder_jobs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.ReminderJob
	for rows.Next() {
		var job domain.ReminderJob
		var fired sql.NullTime
		if err := rows.Scan(&job.ChatID, &job.Kind, &job.Enabled, &fired); err != nil {
			return nil, err
		}
		if fired.Valid {
			ts := fired.Time
			job.LastFiredAt = &ts
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkFired атомарно занимает слот напоминания.
// Условие last_fired_at < slotStart делает отметку идемпотентной
// между перезапусками и параллельными инстансами планировщика.
func (p *Postgres) MarkFired(ctx context.Context, chatID int64, kind domain.ReminderKind, slotStart, firedAt time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE reminder_jobs SET last_fired_at = $4
WHERE chat_id = $1 AND kind = $2 AND enabled AND (last_fired_at IS NULL OR last_fired_at < $3)
`, chatID, kind, slotStart, firedAt)
	metrics.ObserveNetworkRequest("postgres", "jobs_mark_fired", "reminder_jobs", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AppendLog добавляет запись журнала.
func (p *Postgres) AppendLog(ctx context.Context, entry domain.LogEntry) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO logs (chat_id, user_id, metric, value, recorded_at)
VALUES ($1, $2, $3, $4, $5)
`, entry.ChatID, entry.UserID, entry.Metric, entry.Value, entry.RecordedAt)
	metrics.ObserveNetworkRequest("postgres", "logs_append", "logs", start, err)
	return err
}

// ListLogs возвращает записи метрики с указанного момента по возрастанию времени.
func (p *Postgres) ListLogs(ctx context.Context, chatID int64, metric domain.Metric, since time.Time) ([]domain.LogEntry, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT chat_id, user_id, metric, value, recorded_at FROM logs
WHERE chat_id = $1 AND metric = $2 AND recorded_at >= $3
ORDER BY recorded_at
`, chatID, metric, since)
	metrics.ObserveNetworkRequest("postgres", "logs_list", "logs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ChatID, &e.UserID, &e.Metric, &e.Value, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastLogBefore возвращает последнюю запись метрики не позже указанного момента.
func (p *Postgres) LastLogBefore(ctx context.Context, chatID int64, metric domain.Metric, before time.Time) (domain.LogEntry, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var e domain.LogEntry
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT chat_id, user_id, metric, value, recorded_at FROM logs
WHERE chat_id = $1 AND metric = $2 AND recorded_at <= $3
ORDER BY recorded_at DESC LIMIT 1
`, chatID, metric, before).Scan(&e.ChatID, &e.UserID, &e.Metric, &e.Value, &e.RecordedAt)
	metrics.ObserveNetworkRequest("postgres", "logs_last_before", "logs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LogEntry{}, false, nil
	}
	if err != nil {
		return domain.LogEntry{}, false, err
	}
	return e, true, nil
}
