package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// RabbitFetchQueue реализует очередь задач поверх AMQP.
type RabbitFetchQueue struct {
	conn  *amqp.Connection
	pub   *amqp.Channel
	cons  *amqp.Channel
	queue string

	pubMu      sync.Mutex
	consumeMu  sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.FetchQueue = (*RabbitFetchQueue)(nil)

// NewRabbitFetchQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitFetchQueue(amqpURL, queue string) (*RabbitFetchQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	cons, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := pub.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", queue, err)
	}
	if err := cons.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	return &RabbitFetchQueue{conn: conn, pub: pub, cons: cons, queue: queue}, nil
}

// Enqueue публикует задачу как persistent-сообщение.
func (q *RabbitFetchQueue) Enqueue(ctx context.Context, job domain.FetchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	start := time.Now()
	err = q.pub.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive ждёт следующую задачу. Подтверждение с success=false публикует
// задачу заново с увеличенным счётчиком попыток и снимает исходное сообщение.
func (q *RabbitFetchQueue) Receive(ctx context.Context) (domain.FetchJob, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.FetchJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.FetchJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.FetchJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.FetchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Reject(false)
				return domain.FetchJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				retry := job
				retry.Attempt++
				if err := q.Enqueue(context.WithoutCancel(ctx), retry); err != nil {
					_ = d.Nack(false, true)
					return err
				}
				return d.Ack(false)
			}
			return job, ack, nil
		}
	}
}

func (q *RabbitFetchQueue) consume() (<-chan amqp.Delivery, error) {
	q.consumeMu.Lock()
	defer q.consumeMu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.cons.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("amqp consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Len возвращает число сообщений, ожидающих в очереди.
func (q *RabbitFetchQueue) Len(_ context.Context) (int64, error) {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	start := time.Now()
	st, err := q.pub.QueueDeclarePassive(q.queue, true, false, false, false, nil)
	metrics.ObserveNetworkRequest("rabbitmq", "inspect", q.queue, start, err)
	if err != nil {
		return 0, fmt.Errorf("amqp inspect %s: %w", q.queue, err)
	}
	return int64(st.Messages), nil
}

// Close закрывает каналы и соединение.
func (q *RabbitFetchQueue) Close() error {
	_ = q.cons.Close()
	_ = q.pub.Close()
	return q.conn.Close()
}
