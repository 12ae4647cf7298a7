package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-wellness-bot/internal/domain"
)

// RedisAssessQueue реализует очередь заданий на оценку на базе Redis lists.
type RedisAssessQueue struct {
	client *redis.Client
	key    string
}

// NewRedisAssessQueue создаёт очередь по указанному ключу.
func NewRedisAssessQueue(client *redis.Client, key string) *RedisAssessQueue {
	return &RedisAssessQueue{client: client, key: key}
}

// Enqueue публикует задание в очередь.
func (q *RedisAssessQueue) Enqueue(ctx context.Context, job domain.AssessmentJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metricsObserve("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задание из очереди.
func (q *RedisAssessQueue) Pop(ctx context.Context) (domain.AssessmentJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.AssessmentJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.AssessmentJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.AssessmentJob{}, err
		}
		if len(res) != 2 {
			return domain.AssessmentJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.AssessmentJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.AssessmentJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
