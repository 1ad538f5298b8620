package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cdrip/internal/config"
	"cdrip/internal/logging"
	"cdrip/internal/store"
)

// retentionJob prunes finished sessions older than retention_days.
type retentionJob struct {
	store    *store.Store
	logger   *slog.Logger
	days     int
	schedule string
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func newRetentionJob(cfg *config.Config, st *store.Store, logger *slog.Logger) *retentionJob {
	return &retentionJob{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "retention"),
		days:     cfg.Daemon.RetentionDays,
		schedule: cfg.Daemon.RetentionSchedule,
		now:      time.Now,
	}
}

// start schedules the job. Retention 0 keeps every session.
func (j *retentionJob) start(ctx context.Context) error {
	if j.days <= 0 {
		j.logger.Info("session retention disabled")
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	c := cron.New()
	id, err := c.AddFunc(j.schedule, func() {
		if _, err := j.prune(ctx); err != nil {
			logging.WarnWithContext(j.logger, "session pruning failed", "retention_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "old sessions kept until the next run"),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", j.schedule, err)
	}
	j.cron = c
	j.entryID = id
	c.Start()
	j.logger.Info("session retention scheduled",
		logging.String("schedule", j.schedule),
		logging.Int("retention_days", j.days),
	)
	return nil
}

func (j *retentionJob) stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.entryID = 0
	j.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// next returns the next scheduled run, or nil when nothing is scheduled.
func (j *retentionJob) next() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron == nil {
		return nil
	}
	entry := j.cron.Entry(j.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// prune deletes sessions that started before the retention window.
func (j *retentionJob) prune(ctx context.Context) (int64, error) {
	cutoff := j.now().AddDate(0, 0, -j.days)
	n, err := j.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	j.logger.Info("pruned old sessions",
		logging.String(logging.FieldEventType, "sessions_pruned"),
		logging.Int64("sessions", n),
		logging.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
	)
	return n, nil
}
