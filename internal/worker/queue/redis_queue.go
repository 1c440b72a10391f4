// Package queue carries run IDs from the API to the worker over a Redis list.
package queue

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"avatarpipe/internal/pkg/errors"
)

type RedisQueue struct {
	rdb       redis.Cmdable
	queueName string
}

func NewRedisQueue(rdb redis.Cmdable, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Push enqueues a run ID (LPUSH).
func (q *RedisQueue) Push(ctx context.Context, runID string) error {
	if err := q.rdb.LPush(ctx, q.queueName, runID).Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "queue.push", "queue push failed").
			WithField("queue", q.queueName)
	}
	return nil
}

// Pop blocks up to timeout for the oldest run ID (BRPOP). An empty ID with a
// nil error means the wait elapsed.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// Len reports the number of waiting runs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queueName).Result()
}
