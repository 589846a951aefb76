// Package retention removes chat messages older than a configured age.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatstore/internal/adapter/scheduler"
	"chatstore/internal/repository"
)

// Job purges expired chat history on a schedule.
type Job struct {
	chat   repository.ChatRepository
	maxAge time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// New builds a retention job. maxAge must be positive.
func New(chat repository.ChatRepository, maxAge time.Duration, log *slog.Logger) (*Job, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Job{
		chat:   chat,
		maxAge: maxAge,
		log:    log.With("component", "retention"),
		now:    time.Now,
	}, nil
}

// Run performs one purge pass.
func (j *Job) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.maxAge)

	purged, err := j.chat.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge chat history: %w", err)
	}

	if purged > 0 {
		j.log.Info("purged expired chat history", "messages", purged, "cutoff", cutoff.UTC().Format(time.RFC3339))
	} else {
		j.log.Debug("no expired chat history")
	}
	return nil
}

// Register schedules the job on the given scheduler. One run at a time;
// a pass that outlives its slot is skipped, not stacked.
func (j *Job) Register(s *scheduler.Scheduler, schedule string) (scheduler.JobID, error) {
	return s.AddJob(schedule, j.Run, scheduler.JobOptions{
		Name:          "chat-retention",
		Timeout:       5 * time.Minute,
		OverlapPolicy: scheduler.SkipIfRunning,
	})
}
