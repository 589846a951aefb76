package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc - функция периодической задачи.
type JobFunc func(ctx context.Context) error

// JobID - идентификатор зарегистрированной задачи.
type JobID = cron.EntryID

// OverlapPolicy определяет поведение при наложении запусков одной задачи.
type OverlapPolicy int

const (
	// AllowOverlap разрешает параллельные запуски (по умолчанию)
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning пропускает запуск, пока предыдущий не завершился
	SkipIfRunning
	// DelayIfRunning откладывает запуск до завершения предыдущего
	DelayIfRunning
)

// JobOptions - настройки отдельной задачи.
type JobOptions struct {
	// Name - имя задачи для логирования
	Name string
	// Timeout - максимальное время выполнения задачи
	Timeout time.Duration
	// OverlapPolicy - поведение при наложении запусков
	OverlapPolicy OverlapPolicy
}

// cronLogger адаптирует логгер cron к slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]any{"error", err}, keysAndValues...)
	l.logger.Error(msg, args...)
}

// Scheduler управляет периодическими задачами по cron-расписанию.
// Расписания используют формат с секундами: "0 0 3 * * *" - каждый день в 03:00.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New создает планировщик. Задачи не выполняются до вызова Start.
func New(parentCtx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(parentCtx)

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger{logger: logger.With("component", "cron")}),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob регистрирует задачу по cron-расписанию.
func (s *Scheduler) AddJob(schedule string, job JobFunc, opts JobOptions) (JobID, error) {
	var guard sync.Mutex

	run := func() {
		switch opts.OverlapPolicy {
		case SkipIfRunning:
			if !guard.TryLock() {
				s.logger.Debug("skipping job run, previous still running", "name", opts.Name)
				return
			}
			defer guard.Unlock()
		case DelayIfRunning:
			guard.Lock()
			defer guard.Unlock()
		}
		s.runJob(job, opts)
	}

	id, err := s.cron.AddFunc(schedule, run)
	if err != nil {
		return 0, fmt.Errorf("add job %q with schedule %q: %w", opts.Name, schedule, err)
	}

	s.logger.Info("job scheduled", "name", opts.Name, "schedule", schedule, "id", id)
	return id, nil
}

// runJob выполняет один запуск с таймаутом и защитой от паники.
func (s *Scheduler) runJob(job JobFunc, opts JobOptions) {
	name := opts.Name
	if name == "" {
		name = "unnamed"
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "name", name, "panic", r)
		}
	}()

	ctx := s.ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("job failed", "name", name, "error", err, "duration", duration)
		return
	}
	s.logger.Debug("job completed", "name", name, "duration", duration)
}

// Start запускает выполнение зарегистрированных задач.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop останавливает планировщик и ждет завершения текущих запусков,
// пока не истечет переданный контекст.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("stopping scheduler")
		s.cancel()

		done := s.cron.Stop().Done()
		select {
		case <-done:
			s.logger.Info("scheduler stopped")
		case <-ctx.Done():
			s.logger.Warn("scheduler stop deadline exceeded")
			err = ctx.Err()
		}
	})
	return err
}
