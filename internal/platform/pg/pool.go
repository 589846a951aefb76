package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatstore/internal/shared"
)

// PoolOptions - настройки пула соединений pgx
type PoolOptions struct {
	// MaxConns - максимальное количество соединений в пуле
	MaxConns int32
	// MinConns - минимальное количество открытых соединений
	MinConns int32
	// MaxConnLifetime - максимальное время жизни соединения
	MaxConnLifetime time.Duration
	// MaxConnIdleTime - максимальное время простоя соединения
	MaxConnIdleTime time.Duration
	// ConnectTimeout - таймаут проверки соединения при создании пула
	ConnectTimeout time.Duration
}

// DefaultPoolOptions возвращает настройки пула по умолчанию
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 10 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// NewPool создает пул соединений к PostgreSQL и проверяет его пингом.
// Ошибки подключения возвращаются с категорией shared.KindConnection.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("parse postgres dsn: %w", err), shared.KindConnection)
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnLifetime = opts.MaxConnLifetime
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("create postgres pool: %w", err), shared.KindConnection)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, shared.MarkKind(fmt.Errorf("ping postgres: %w", err), shared.KindConnection)
	}

	return pool, nil
}
