package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/metrics"
)

func metricsObserve(component, operation, target string, start time.Time, err error) {
	metrics.ObserveNetworkRequest(component, operation, target, start, err)
}

// RabbitAssessQueue реализует очередь заданий через AMQP.
type RabbitAssessQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

// NewRabbitAssessQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitAssessQueue(amqpURL, queue string) (*RabbitAssessQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitAssessQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задание в очередь.
func (q *RabbitAssessQueue) Enqueue(ctx context.Context, job domain.AssessmentJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metricsObserve("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задание из очереди.
func (q *RabbitAssessQueue) Pop(ctx context.Context) (domain.AssessmentJob, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.AssessmentJob{}, err
	}
	select {
	case <-ctx.Done():
		return domain.AssessmentJob{}, ctx.Err()
	case msg, ok := <-deliveries:
		if !ok {
			return domain.AssessmentJob{}, errors.New("rabbitmq: delivery channel closed")
		}
		var job domain.AssessmentJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			return domain.AssessmentJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitAssessQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}

func (q *RabbitAssessQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}
