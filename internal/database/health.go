package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Health pings the backing stores for the /health endpoint.
type Health struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// Check returns a per-dependency status map and whether all are reachable.
func (h Health) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := map[string]string{"postgres": "ok", "redis": "ok"}
	healthy := true

	if h.Pool == nil || h.Pool.Ping(ctx) != nil {
		status["postgres"] = "unreachable"
		healthy = false
	}
	if h.Redis == nil || h.Redis.Ping(ctx).Err() != nil {
		status["redis"] = "unreachable"
		healthy = false
	}
	return status, healthy
}
