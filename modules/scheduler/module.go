// Package scheduler provides job scheduling for the modular framework.
//
// Jobs are either one-off (RunAt) or recurring (a standard five-field cron
// expression evaluated in the configured timezone). Both kinds execute on a
// bounded worker pool; a recurring job never overlaps with itself. Execution
// history is kept in memory for the configured retention period.
//
//	var sched *scheduler.SchedulerModule
//	if err := app.GetService(scheduler.ServiceName, &sched); err != nil {
//	    return err
//	}
//	_, err := sched.ScheduleRecurring("session-cleanup", "*/15 * * * *", cleanup)
//
// Jobs may be scheduled during other modules' Init; cron registration
// happens when the module starts.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoCodeAlone/modular"
)

// ModuleName is the unique identifier for the scheduler module.
const ModuleName = "scheduler"

// ServiceName is the name of the service provided by this module.
const ServiceName = "scheduler"

// SchedulerModule wires a Scheduler into a modular application.
type SchedulerModule struct {
	initial       *SchedulerConfig
	config        *SchedulerConfig
	logger        modular.Logger
	scheduler     *Scheduler
	jobStore      JobStore
	running       bool
	schedulerLock sync.Mutex
}

// NewModule creates a new instance of the scheduler module.
//
//	app.RegisterModule(scheduler.NewModule())
func NewModule() *SchedulerModule {
	return &SchedulerModule{}
}

// NewModuleWithConfig creates a scheduler module whose config section
// starts from cfg instead of DefaultConfig.
func NewModuleWithConfig(cfg *SchedulerConfig) *SchedulerModule {
	return &SchedulerModule{initial: cfg}
}

// Name returns the unique identifier for this module.
func (m *SchedulerModule) Name() string {
	return ModuleName
}

// RegisterConfig registers the module's configuration structure.
func (m *SchedulerModule) RegisterConfig(app modular.Application) error {
	m.config = m.initial
	if m.config == nil {
		m.config = DefaultConfig()
	}
	app.RegisterConfigSection(m.Name(), modular.NewStdConfigProvider(m.config))
	return nil
}

// Init initializes the module
func (m *SchedulerModule) Init(app modular.Application) error {
	m.logger = app.Logger()

	cfg, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	config, ok := cfg.GetConfig().(*SchedulerConfig)
	if !ok {
		return fmt.Errorf("%w: unexpected config type %T", ErrInvalidConfig, cfg.GetConfig())
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("scheduler module configuration validation failed: %w", err)
	}
	m.config = config

	loc, err := m.config.Location()
	if err != nil {
		return err
	}

	m.jobStore = NewMemoryJobStore()
	m.scheduler = NewScheduler(
		m.jobStore,
		WithWorkerCount(m.config.WorkerCount),
		WithQueueSize(m.config.QueueSize),
		WithCheckInterval(m.config.CheckInterval),
		WithRetention(m.config.Retention()),
		WithLocation(loc),
		WithLogger(m.logger),
	)

	m.logger.Info("Scheduler module initialized", "workers", m.config.WorkerCount, "timezone", loc.String())
	return nil
}

// Start performs startup logic for the module
func (m *SchedulerModule) Start(ctx context.Context) error {
	m.schedulerLock.Lock()
	defer m.schedulerLock.Unlock()

	if m.running {
		return nil
	}
	if err := m.scheduler.Start(ctx); err != nil {
		return err
	}
	m.running = true

	jobs, _ := m.scheduler.ListJobs()
	m.logger.Info("Scheduler started successfully", "jobs", len(jobs))
	return nil
}

// Stop performs shutdown logic for the module
func (m *SchedulerModule) Stop(ctx context.Context) error {
	m.schedulerLock.Lock()
	defer m.schedulerLock.Unlock()

	if !m.running {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()
	if err := m.scheduler.Stop(shutdownCtx); err != nil {
		return err
	}
	m.running = false

	m.logger.Info("Scheduler stopped")
	return nil
}

// ProvidesServices declares services provided by this module
func (m *SchedulerModule) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        ServiceName,
			Description: "Job scheduling service",
			Instance:    m,
		},
	}
}

// ScheduleJob schedules a new job
func (m *SchedulerModule) ScheduleJob(job Job) (string, error) {
	return m.scheduler.ScheduleJob(job)
}

// ScheduleOnce runs fn once at runAt.
func (m *SchedulerModule) ScheduleOnce(name string, runAt time.Time, fn JobFunc) (string, error) {
	return m.scheduler.ScheduleJob(Job{Name: name, RunAt: runAt, JobFunc: fn})
}

// ScheduleRecurring schedules a recurring job using a cron expression
func (m *SchedulerModule) ScheduleRecurring(name string, cronExpr string, jobFunc JobFunc) (string, error) {
	return m.scheduler.ScheduleRecurring(name, cronExpr, jobFunc)
}

// TriggerJob queues a job for immediate execution
func (m *SchedulerModule) TriggerJob(jobID string) error {
	return m.scheduler.TriggerJob(jobID)
}

// CancelJob cancels a scheduled job
func (m *SchedulerModule) CancelJob(jobID string) error {
	return m.scheduler.CancelJob(jobID)
}

// GetJob returns information about a scheduled job
func (m *SchedulerModule) GetJob(jobID string) (Job, error) {
	return m.scheduler.GetJob(jobID)
}

// ListJobs returns a list of all scheduled jobs
func (m *SchedulerModule) ListJobs() ([]Job, error) {
	return m.scheduler.ListJobs()
}

// GetJobHistory returns the execution history for a job
func (m *SchedulerModule) GetJobHistory(jobID string) ([]JobExecution, error) {
	return m.scheduler.GetJobHistory(jobID)
}
