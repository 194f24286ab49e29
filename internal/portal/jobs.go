package portal

import (
	"context"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/scheduler"
)

// Housekeeping job names
const (
	JobSessionCleanup = "session-cleanup"
	JobOverdueReport  = "overdue-report"
	JobActivityPrune  = "activity-prune"
)

// JobObserver is told the outcome of every housekeeping run.
type JobObserver interface {
	ObserveJob(job string, err error)
}

// Scheduler registers recurring jobs.
type Scheduler interface {
	ScheduleRecurring(name string, cronExpr string, fn scheduler.JobFunc) (string, error)
}

type housekeeping struct {
	svc      *Service
	auth     *auth.Service
	observer JobObserver
	logger   modular.Logger
}

// observed logs and counts the outcome of fn.
func (hk *housekeeping) observed(name string, fn scheduler.JobFunc) scheduler.JobFunc {
	return func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil {
			hk.logger.Error("Housekeeping job failed", "job", name, "error", err)
		}
		if hk.observer != nil {
			hk.observer.ObserveJob(name, err)
		}
		return err
	}
}

func (hk *housekeeping) cleanupSessions(ctx context.Context) error {
	n, err := hk.auth.CleanupSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		hk.logger.Info("Expired sessions removed", "count", n)
	}
	return nil
}

func (hk *housekeeping) overdueReport(ctx context.Context) error {
	_, err := hk.svc.OverdueReport(ctx)
	return err
}

func (hk *housekeeping) pruneActivity(ctx context.Context) error {
	_, err := hk.svc.PruneActivity(ctx)
	return err
}

// schedule registers every job with a non-empty schedule.
func (hk *housekeeping) schedule(s Scheduler, cfg *Config) error {
	jobs := []struct {
		name string
		cron string
		fn   scheduler.JobFunc
	}{
		{JobSessionCleanup, hk.auth.Config().Session.CleanupCron, hk.cleanupSessions},
		{JobOverdueReport, cfg.OverdueReportCron, hk.overdueReport},
		{JobActivityPrune, cfg.ActivityPruneCron, hk.pruneActivity},
	}
	for _, j := range jobs {
		if j.cron == "" || (j.name == JobActivityPrune && cfg.ActivityRetentionDays == 0) {
			hk.logger.Debug("Housekeeping job disabled", "job", j.name)
			continue
		}
		id, err := s.ScheduleRecurring(j.name, j.cron, hk.observed(j.name, j.fn))
		if err != nil {
			return err
		}
		hk.logger.Info("Housekeeping job scheduled", "job", j.name, "cron", j.cron, "id", id)
	}
	return nil
}
