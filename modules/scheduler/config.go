package scheduler

import (
	"fmt"
	"time"
)

// SchedulerConfig defines the configuration for the scheduler module
type SchedulerConfig struct {
	// WorkerCount is the number of worker goroutines to run
	WorkerCount int `json:"worker_count" yaml:"worker_count" default:"2" env:"SCHEDULER_WORKERS"`

	// QueueSize is the maximum number of jobs waiting for a worker
	QueueSize int `json:"queue_size" yaml:"queue_size" default:"100"`

	// ShutdownTimeout bounds how long Stop waits for running jobs
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" default:"30s"`

	// CheckInterval is how often one-off jobs are checked for being due
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval" default:"1s"`

	// RetentionDays is how many days of execution history are kept
	RetentionDays int `json:"retention_days" yaml:"retention_days" default:"7"`

	// Timezone is the location cron expressions are evaluated in
	Timezone string `json:"timezone" yaml:"timezone" default:"America/Sao_Paulo" env:"SCHEDULER_TIMEZONE" desc:"IANA zone for cron expressions"`
}

// DefaultConfig returns the scheduler configuration used when nothing is fed.
func DefaultConfig() *SchedulerConfig {
	return &SchedulerConfig{
		WorkerCount:     2,
		QueueSize:       100,
		ShutdownTimeout: 30 * time.Second,
		CheckInterval:   time.Second,
		RetentionDays:   7,
		Timezone:        "America/Sao_Paulo",
	}
}

// Validate implements modular.ConfigValidator.
func (c *SchedulerConfig) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be at least 1", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be at least 1", ErrInvalidConfig)
	}
	if c.CheckInterval <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: check_interval and shutdown_timeout must be positive", ErrInvalidConfig)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("%w: retention_days must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. Empty means UTC.
func (c *SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Retention returns the execution history retention period.
func (c *SchedulerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
