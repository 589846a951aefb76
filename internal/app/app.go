package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chatstore/internal/adapter/httpapi"
	"chatstore/internal/adapter/retention"
	"chatstore/internal/adapter/scheduler"
	"chatstore/internal/config"
	"chatstore/internal/platform/logger"
	"chatstore/internal/platform/pg"
	platformsqlite "chatstore/internal/platform/sqlite"
	"chatstore/internal/repository"
	"chatstore/internal/repository/postgres"
	storesqlite "chatstore/internal/repository/sqlite"
)

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "chatstore",
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.log.Info("starting", "driver", a.cfg.DB.Driver)
	defer logger.Close(a.log) //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, registrar, health, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Error("close store", "error", err)
		}
	}()

	var sched *scheduler.Scheduler
	if a.cfg.Retention.Enabled {
		sched = scheduler.New(ctx, a.log)

		job, err := retention.New(store.Chat(), a.cfg.Retention.MaxAge, a.log)
		if err != nil {
			return err
		}
		if _, err := job.Register(sched, a.cfg.Retention.Schedule); err != nil {
			return err
		}
		sched.Start()
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Users:     store.Users(),
		Chat:      store.Chat(),
		Registrar: registrar,
		Health:    health,
		Log:       a.log,
	})

	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: router}
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			a.log.Warn("scheduler shutdown", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}

// openStore builds the storage backend selected by configuration.
func (a *App) openStore(ctx context.Context) (repository.Store, httpapi.Registrar, func(ctx context.Context) error, error) {
	switch a.cfg.DB.Driver {
	case "sqlite":
		return a.openSQLite(ctx)
	case "postgres":
		return a.openPostgres(ctx)
	default:
		return nil, nil, nil, fmt.Errorf("unknown db driver %q", a.cfg.DB.Driver)
	}
}

func (a *App) openSQLite(ctx context.Context) (repository.Store, httpapi.Registrar, func(ctx context.Context) error, error) {
	opts := platformsqlite.DefaultOptions()
	opts.EnableWriteQueue = a.cfg.DB.SQLite.WriteQueue
	opts.WriteQueueSize = a.cfg.DB.SQLite.QueueSize
	opts.Verbose = a.cfg.DB.Verbose

	f, err := storesqlite.New(ctx, a.cfg.DB.SQLite.Path, opts, a.log)
	if err != nil {
		return nil, nil, nil, err
	}

	if path := a.cfg.DB.SQLite.MigrationsPath; path != "" {
		err = f.Migrate(path)
	} else {
		err = f.InitSchema(ctx)
	}
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, err
	}

	health := func(ctx context.Context) error { return f.DB().PingContext(ctx) }
	return f, f, health, nil
}

func (a *App) openPostgres(ctx context.Context) (repository.Store, httpapi.Registrar, func(ctx context.Context) error, error) {
	dsn := pg.BuildDSN(pg.DSNConfig{
		Host:     a.cfg.DB.Postgres.Host,
		Port:     a.cfg.DB.Postgres.Port,
		User:     a.cfg.DB.Postgres.User,
		Password: a.cfg.DB.Postgres.Password,
		Database: a.cfg.DB.Postgres.Database,
		SSLMode:  a.cfg.DB.Postgres.SSLMode,
	})

	s, err := postgres.New(ctx, dsn, a.log)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := pg.WaitForDB(ctx, s.Pool(), 30*time.Second, a.log); err != nil {
		_ = s.Close()
		return nil, nil, nil, fmt.Errorf("wait for postgres: %w", err)
	}

	if path := a.cfg.DB.Postgres.MigrationsPath; path != "" {
		if err := pg.ApplyMigrations(dsn, path, a.log); err != nil {
			_ = s.Close()
			return nil, nil, nil, err
		}
	}

	health := func(ctx context.Context) error { return pg.HealthCheck(ctx, s.Pool()) }
	return s, s, health, nil
}
