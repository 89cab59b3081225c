package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/studyplan-backend/internal/config"
)

// ResultQueue pushes result emails onto the Redis list drained by the
// result email worker.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a new ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// EnqueueResult schedules job for delivery.
func (q *ResultQueue) EnqueueResult(ctx context.Context, job ResultEmail) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode result email: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.ResultEmailQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue result email: %w", err)
	}
	return nil
}
