package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoCodeAlone/modular"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobFunc defines a function that can be executed as a job
type JobFunc func(ctx context.Context) error

// JobExecution records details about a single execution of a job
type JobExecution struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// Job represents a scheduled job. One-off jobs run at RunAt; recurring jobs
// run on their cron Schedule.
type Job struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule,omitempty"`
	RunAt       time.Time  `json:"runAt,omitempty"`
	IsRecurring bool       `json:"isRecurring"`
	JobFunc     JobFunc    `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Status      JobStatus  `json:"status"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
}

// JobStatus represents the status of a job
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be executed
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is queued or executing
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a one-off job has completed successfully
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a one-off job has failed
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates a job has been cancelled
	JobStatusCancelled JobStatus = "cancelled"
)

const cleanupInterval = time.Hour

// Scheduler runs one-off and cron jobs on a bounded worker pool.
type Scheduler struct {
	jobStore       JobStore
	workerCount    int
	queueSize      int
	checkInterval  time.Duration
	retention      time.Duration
	location       *time.Location
	logger         modular.Logger
	jobQueue       chan Job
	cronScheduler  *cron.Cron
	cronEntries    map[string]cron.EntryID
	entryMutex     sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	isStarted      bool
	schedulerMutex sync.Mutex
	lastCleanup    time.Time
	now            func() time.Time
}

// SchedulerOption defines a function that can configure a scheduler
type SchedulerOption func(*Scheduler)

// WithWorkerCount sets the number of workers
func WithWorkerCount(count int) SchedulerOption {
	return func(s *Scheduler) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the job queue size
func WithQueueSize(size int) SchedulerOption {
	return func(s *Scheduler) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCheckInterval sets how often to check for due one-off jobs
func WithCheckInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.checkInterval = interval
		}
	}
}

// WithRetention sets how long execution history is kept
func WithRetention(retention time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithLocation sets the zone cron expressions are evaluated in
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger modular.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a new scheduler
func NewScheduler(jobStore JobStore, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		jobStore:      jobStore,
		workerCount:   2,
		queueSize:     100,
		checkInterval: time.Second,
		retention:     7 * 24 * time.Hour,
		location:      time.Local,
		cronEntries:   make(map[string]cron.EntryID),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cronScheduler = cron.New(cron.WithLocation(s.location))
	return s
}

func (s *Scheduler) log(level, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	switch level {
	case "debug":
		s.logger.Debug(msg, args...)
	case "warn":
		s.logger.Warn(msg, args...)
	case "error":
		s.logger.Error(msg, args...)
	default:
		s.logger.Info(msg, args...)
	}
}

// Start starts the workers, the dispatcher and the cron runner. Recurring
// jobs scheduled before Start are registered with cron here.
func (s *Scheduler) Start(ctx context.Context) error {
	s.schedulerMutex.Lock()
	defer s.schedulerMutex.Unlock()

	if s.isStarted {
		return nil
	}
	s.log("info", "Starting scheduler", "workers", s.workerCount, "queueSize", s.queueSize, "location", s.location.String())

	// Jobs outlive the Start call, so they only inherit its values.
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.jobQueue = make(chan Job, s.queueSize)

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	jobs, err := s.jobStore.GetJobs()
	if err != nil {
		s.cancel()
		return fmt.Errorf("loading jobs: %w", err)
	}
	for _, job := range jobs {
		if job.IsRecurring && job.Status != JobStatusCancelled {
			if err := s.registerWithCron(job); err != nil {
				s.log("error", "Failed to add job to cron scheduler", "id", job.ID, "name", job.Name, "error", err)
			}
		}
	}
	s.cronScheduler.Start()

	s.wg.Add(1)
	go s.dispatchPendingJobs()

	s.isStarted = true
	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.schedulerMutex.Lock()
	defer s.schedulerMutex.Unlock()

	if !s.isStarted {
		return nil
	}
	s.log("info", "Stopping scheduler")

	cronCtx := s.cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log("info", "Scheduler stopped gracefully")
	case <-ctx.Done():
		s.log("warn", "Scheduler shutdown timed out")
		return ErrShutdownTimeout
	}

	s.isStarted = false
	return nil
}

// worker processes jobs from the queue
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	s.log("debug", "Starting worker", "id", id)

	for {
		select {
		case <-s.ctx.Done():
			s.log("debug", "Worker stopping", "id", id)
			return
		case job := <-s.jobQueue:
			s.executeJob(job)
		}
	}
}

// runJobFunc runs fn and converts a panic into an error.
func runJobFunc(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// executeJob runs a job and records its execution
func (s *Scheduler) executeJob(job Job) {
	s.log("debug", "Executing job", "id", job.ID, "name", job.Name)

	execution := JobExecution{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		StartTime: s.now(),
		Status:    JobStatusRunning,
	}
	if err := s.jobStore.AddJobExecution(execution); err != nil {
		s.log("warn", "Failed to record job execution", "id", job.ID, "error", err)
	}

	err := runJobFunc(s.ctx, job.JobFunc)

	execution.EndTime = s.now()
	if err != nil {
		execution.Status = JobStatusFailed
		execution.Error = err.Error()
		s.log("error", "Job execution failed", "id", job.ID, "name", job.Name, "error", err)
	} else {
		execution.Status = JobStatusCompleted
		s.log("debug", "Job execution completed", "id", job.ID, "name", job.Name, "duration", execution.EndTime.Sub(execution.StartTime))
	}
	if updateErr := s.jobStore.UpdateJobExecution(execution); updateErr != nil {
		s.log("warn", "Failed to update job execution", "id", job.ID, "error", updateErr)
	}

	// Reload: the job may have been cancelled while it ran.
	current, getErr := s.jobStore.GetJob(job.ID)
	if getErr != nil {
		return
	}
	lastRun := execution.EndTime
	current.LastRun = &lastRun
	current.UpdatedAt = lastRun
	switch {
	case current.Status == JobStatusCancelled:
	case current.IsRecurring:
		current.Status = JobStatusPending
		current.NextRun = s.nextRun(current.Schedule, lastRun)
	case err != nil:
		current.Status = JobStatusFailed
	default:
		current.Status = JobStatusCompleted
	}
	if updateErr := s.jobStore.UpdateJob(current); updateErr != nil {
		s.log("warn", "Failed to update job", "id", job.ID, "error", updateErr)
	}
}

func (s *Scheduler) nextRun(expr string, from time.Time) *time.Time {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil
	}
	next := schedule.Next(from.In(s.location))
	return &next
}

// dispatchPendingJobs checks for and dispatches due one-off jobs, and
// prunes the execution history once an hour
func (s *Scheduler) dispatchPendingJobs() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndDispatchJobs()
			s.cleanupExecutions()
		}
	}
}

// checkAndDispatchJobs checks for due jobs and dispatches them
func (s *Scheduler) checkAndDispatchJobs() {
	dueJobs, err := s.jobStore.GetDueJobs(s.now())
	if err != nil {
		s.log("error", "Failed to get due jobs", "error", err)
		return
	}

	for _, job := range dueJobs {
		select {
		case s.jobQueue <- job:
			s.log("debug", "Dispatched job", "id", job.ID, "name", job.Name)
		default:
			// Release the claim so the next tick retries.
			job.Status = JobStatusPending
			if err := s.jobStore.UpdateJob(job); err != nil {
				s.log("warn", "Failed to release job", "id", job.ID, "error", err)
			}
			s.log("warn", "Job queue is full, job execution delayed", "id", job.ID, "name", job.Name)
		}
	}
}

func (s *Scheduler) cleanupExecutions() {
	now := s.now()
	if now.Sub(s.lastCleanup) < cleanupInterval {
		return
	}
	s.lastCleanup = now
	removed, err := s.jobStore.CleanupOldExecutions(now.Add(-s.retention))
	if err != nil {
		s.log("warn", "Failed to clean up job executions", "error", err)
		return
	}
	if removed > 0 {
		s.log("debug", "Removed old job executions", "count", removed)
	}
}

// ScheduleJob schedules a new job
func (s *Scheduler) ScheduleJob(job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.RunAt.IsZero() && job.Schedule == "" {
		return "", ErrMissingSchedule
	}

	now := s.now()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Status = JobStatusPending

	if job.IsRecurring {
		if job.Schedule == "" {
			return "", ErrRecurringWithoutSchedule
		}
		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			return "", fmt.Errorf("%w '%s': %w", ErrInvalidSchedule, job.Schedule, err)
		}
		job.NextRun = s.nextRun(job.Schedule, now)
	} else {
		runAt := job.RunAt
		job.NextRun = &runAt
	}

	if err := s.jobStore.AddJob(job); err != nil {
		return "", err
	}

	s.schedulerMutex.Lock()
	started := s.isStarted
	s.schedulerMutex.Unlock()
	if job.IsRecurring && started {
		if err := s.registerWithCron(job); err != nil {
			return "", err
		}
	}
	return job.ID, nil
}

// registerWithCron registers a recurring job with the cron scheduler
func (s *Scheduler) registerWithCron(job Job) error {
	s.entryMutex.Lock()
	defer s.entryMutex.Unlock()

	if entryID, exists := s.cronEntries[job.ID]; exists {
		s.cronScheduler.Remove(entryID)
		delete(s.cronEntries, job.ID)
	}

	entryID, err := s.cronScheduler.AddFunc(job.Schedule, func() {
		if err := s.enqueue(job.ID); err != nil {
			s.log("warn", "Skipped cron run", "id", job.ID, "name", job.Name, "reason", err)
		}
	})
	if err != nil {
		return fmt.Errorf("%w '%s': %w", ErrInvalidSchedule, job.Schedule, err)
	}
	s.cronEntries[job.ID] = entryID
	return nil
}

// enqueue claims a job and hands it to the workers. A job that is still
// running is not queued again.
func (s *Scheduler) enqueue(jobID string) error {
	job, err := s.jobStore.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status == JobStatusRunning || job.Status == JobStatusCancelled {
		return ErrJobNotRunnable
	}

	previous := job.Status
	job.Status = JobStatusRunning
	job.UpdatedAt = s.now()
	if err := s.jobStore.UpdateJob(job); err != nil {
		return err
	}

	select {
	case s.jobQueue <- job:
		return nil
	default:
		job.Status = previous
		_ = s.jobStore.UpdateJob(job)
		return ErrQueueFull
	}
}

// ScheduleRecurring schedules a recurring job using a cron expression
func (s *Scheduler) ScheduleRecurring(name string, cronExpr string, jobFunc JobFunc) (string, error) {
	return s.ScheduleJob(Job{
		Name:        name,
		Schedule:    cronExpr,
		IsRecurring: true,
		JobFunc:     jobFunc,
	})
}

// TriggerJob queues a job for immediate execution outside its schedule.
func (s *Scheduler) TriggerJob(jobID string) error {
	s.schedulerMutex.Lock()
	started := s.isStarted
	s.schedulerMutex.Unlock()
	if !started {
		return ErrSchedulerNotStarted
	}
	return s.enqueue(jobID)
}

// CancelJob cancels a scheduled job
func (s *Scheduler) CancelJob(jobID string) error {
	job, err := s.jobStore.GetJob(jobID)
	if err != nil {
		return err
	}

	job.Status = JobStatusCancelled
	job.UpdatedAt = s.now()
	job.NextRun = nil
	if err := s.jobStore.UpdateJob(job); err != nil {
		return err
	}

	if job.IsRecurring {
		s.entryMutex.Lock()
		if entryID, exists := s.cronEntries[jobID]; exists {
			s.cronScheduler.Remove(entryID)
			delete(s.cronEntries, jobID)
		}
		s.entryMutex.Unlock()
	}
	return nil
}

// GetJob returns information about a scheduled job
func (s *Scheduler) GetJob(jobID string) (Job, error) {
	return s.jobStore.GetJob(jobID)
}

// ListJobs returns a list of all scheduled jobs
func (s *Scheduler) ListJobs() ([]Job, error) {
	return s.jobStore.GetJobs()
}

// GetJobHistory returns the execution history for a job
func (s *Scheduler) GetJobHistory(jobID string) ([]JobExecution, error) {
	return s.jobStore.GetJobExecutions(jobID)
}
