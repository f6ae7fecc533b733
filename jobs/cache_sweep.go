package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Ruokavalitys/rv-update-backend/internal/shared"
)

// NewCacheSweepHandler builds the handler for TaskCacheSweep. History cache
// pages are keyed by a generation counter; after a bump, pages from older
// generations become unreachable but sit in Redis until their TTL. The sweep
// deletes them early to keep memory flat on busy days.
func NewCacheSweepHandler(client *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		lockKey := shared.JobLockKey("cache-sweep")
		locked, err := client.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil {
			return fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !locked {
			logger.Info("cache sweep already running, skipping")
			return nil
		}
		defer client.Del(context.WithoutCancel(ctx), lockKey)

		current, err := client.Get(ctx, "rv:history:gen").Int64()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("read cache generation: %w", err)
		}

		var removed int
		iter := client.Scan(ctx, 0, "rv:history:*", 200).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			parts := strings.Split(key, ":")
			if len(parts) < 3 {
				continue
			}
			gen, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil || gen >= current {
				continue
			}
			if err := client.Del(ctx, key).Err(); err != nil {
				logger.Warn("cache sweep delete failed", slog.String("key", key), slog.Any("error", err))
				continue
			}
			removed++
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan cache keys: %w", err)
		}

		logger.Info("cache sweep finished", slog.Int("removed", removed), slog.Int64("generation", current))
		return nil
	}
}
