package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/metrics"
)

// RedisFetchQueue реализует очередь задач на базе Redis lists.
type RedisFetchQueue struct {
	client *redis.Client
	key    string
}

var _ domain.FetchQueue = (*RedisFetchQueue)(nil)

// NewRedisFetchQueue создаёт очередь по указанному ключу.
func NewRedisFetchQueue(client *redis.Client, key string) *RedisFetchQueue {
	return &RedisFetchQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisFetchQueue) Enqueue(ctx context.Context, job domain.FetchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу. Неуспешное подтверждение возвращает
// задачу в конец очереди с увеличенным счётчиком попыток.
func (q *RedisFetchQueue) Receive(ctx context.Context) (domain.FetchJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.FetchJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.FetchJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.FetchJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.FetchJob{}, nil, errors.New("redis queue: unexpected response")
		}
		var job domain.FetchJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.FetchJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			retry := job
			retry.Attempt++
			return q.Enqueue(context.WithoutCancel(ctx), retry)
		}
		return job, ack, nil
	}
}

// Len возвращает число задач в очереди.
func (q *RedisFetchQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
