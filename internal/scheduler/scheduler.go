// Package scheduler runs the periodic background jobs of the API.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/repository"
)

// Recounter refreshes category task counts.
type Recounter interface {
	Refresh(ctx context.Context, userID string, categoryIDs ...string)
}

// Invalidator drops the cached responses of a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// AutoArchiver archives the completed tasks of categories with
// settings.autoArchive once they have been completed for longer than the
// category's autoArchiveDays.
type AutoArchiver struct {
	Tasks      repository.TaskStore
	Categories repository.CategoryStore
	Counter    Recounter
	Cache      Invalidator
	Log        log.FieldLogger
	Now        func() time.Time
}

// Result summarizes one sweep.
type Result struct {
	Categories int
	Archived   int64
}

// Sweep runs one pass over every auto-archive category.  A failing
// category is logged and skipped.
func (a *AutoArchiver) Sweep(ctx context.Context) (Result, error) {
	cats, err := a.Categories.ListAutoArchive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list auto-archive categories: %w", err)
	}
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now().UTC()
	}

	var res Result
	for _, cat := range cats {
		days := cat.Settings.AutoArchiveDays
		if days < 1 {
			days = 1
		}
		cutoff := now.AddDate(0, 0, -days)
		n, err := a.Tasks.ArchiveCompletedBefore(ctx, cat.UserID, cat.ID, cutoff, now)
		if err != nil {
			a.Log.WithError(err).WithField("category_id", cat.ID).Warn("scheduler.auto_archive.category_failed")
			continue
		}
		res.Categories++
		if n == 0 {
			continue
		}
		res.Archived += n
		if a.Counter != nil {
			a.Counter.Refresh(ctx, cat.UserID, cat.ID)
		}
		if a.Cache != nil {
			a.Cache.Invalidate(ctx, cat.UserID)
		}
		a.Log.WithFields(log.Fields{"category_id": cat.ID, "user_id": cat.UserID, "archived": n}).
			Info("scheduler.auto_archive.archived")
	}
	return res, nil
}

// Scheduler wraps a cron runner with second precision.
type Scheduler struct {
	cron *cron.Cron
	log  log.FieldLogger
}

// New returns a scheduler in the timezone of cfg.  An unknown timezone
// falls back to UTC.
func New(cfg config.SchedulerConfig, logger log.FieldLogger) *Scheduler {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Timezone).Warn("scheduler.timezone_invalid")
		loc = time.UTC
	}
	return &Scheduler{cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()), log: logger}
}

// Every registers job to run at the given interval.
func (s *Scheduler) Every(interval time.Duration, name string, job func(ctx context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if err := job(ctx); err != nil {
			s.log.WithError(err).WithField("job", name).Error("scheduler.job_failed")
		}
	})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScheduleAutoArchive registers the sweeper when enabled in cfg.  It
// reports whether a job was registered.
func ScheduleAutoArchive(s *Scheduler, cfg config.SchedulerConfig, a *AutoArchiver) (bool, error) {
	if !cfg.AutoArchiveEnabled {
		return false, nil
	}
	_, err := s.Every(cfg.AutoArchiveInterval, "auto_archive", func(ctx context.Context) error {
		_, err := a.Sweep(ctx)
		return err
	})
	return err == nil, err
}
