package scheduler

import (
	"errors"
)

var (
	ErrInvalidConfig            = errors.New("invalid scheduler configuration")
	ErrJobAlreadyExists         = errors.New("job already exists")
	ErrJobNotFound              = errors.New("job not found")
	ErrExecutionNotFound        = errors.New("execution not found")
	ErrMissingSchedule          = errors.New("job must have either RunAt or Schedule specified")
	ErrRecurringWithoutSchedule = errors.New("recurring jobs must have a Schedule")
	ErrInvalidSchedule          = errors.New("invalid cron expression")
	ErrJobNotRunnable           = errors.New("job is running or cancelled")
	ErrQueueFull                = errors.New("job queue is full")
	ErrSchedulerNotStarted      = errors.New("scheduler not started")
	ErrShutdownTimeout          = errors.New("scheduler shutdown timed out")
)
