package pg

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthCheck проверяет доступность базы данных через пинг пула.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return pool.Ping(pingCtx)
}

// WaitForDB ожидает доступности базы данных с периодическими попытками.
// Полезно при старте, когда база поднимается параллельно с сервисом.
func WaitForDB(ctx context.Context, pool *pgxpool.Pool, maxWait time.Duration, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	deadline := time.Now().Add(maxWait)
	attempt := 0

	for {
		attempt++
		if err := HealthCheck(ctx, pool); err == nil {
			if attempt > 1 {
				log.Info("database became available", "attempts", attempt)
			}
			return nil
		} else if time.Now().After(deadline) {
			return err
		} else {
			log.Debug("database not ready, retrying", "attempt", attempt, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
