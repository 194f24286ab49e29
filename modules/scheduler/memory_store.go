package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryJobStore implements JobStore using in-memory storage
type MemoryJobStore struct {
	jobs            map[string]Job
	jobsMutex       sync.RWMutex
	executions      map[string][]JobExecution
	executionsMutex sync.RWMutex
}

// NewMemoryJobStore creates a new memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:       make(map[string]Job),
		executions: make(map[string][]JobExecution),
	}
}

// AddJob stores a new job
func (s *MemoryJobStore) AddJob(job Job) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob updates an existing job
func (s *MemoryJobStore) UpdateJob(job Job) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob retrieves a job by ID
func (s *MemoryJobStore) GetJob(jobID string) (Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// GetJobs returns all jobs ordered by name
func (s *MemoryJobStore) GetJobs() ([]Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Name != jobs[j].Name {
			return jobs[i].Name < jobs[j].Name
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// GetDueJobs claims pending one-off jobs that are due
func (s *MemoryJobStore) GetDueJobs(before time.Time) ([]Job, error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	dueJobs := make([]Job, 0)
	for id, job := range s.jobs {
		if job.IsRecurring || job.Status != JobStatusPending || job.NextRun == nil || job.NextRun.After(before) {
			continue
		}
		job.Status = JobStatusRunning
		job.UpdatedAt = time.Now()
		s.jobs[id] = job
		dueJobs = append(dueJobs, job)
	}
	return dueJobs, nil
}

// DeleteJob removes a job
func (s *MemoryJobStore) DeleteJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if _, exists := s.jobs[jobID]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	delete(s.jobs, jobID)
	return nil
}

// AddJobExecution records a job execution
func (s *MemoryJobStore) AddJobExecution(execution JobExecution) error {
	s.executionsMutex.Lock()
	defer s.executionsMutex.Unlock()

	s.executions[execution.JobID] = append(s.executions[execution.JobID], execution)
	return nil
}

// UpdateJobExecution replaces the execution with the same ID
func (s *MemoryJobStore) UpdateJobExecution(execution JobExecution) error {
	s.executionsMutex.Lock()
	defer s.executionsMutex.Unlock()

	executions := s.executions[execution.JobID]
	for i := range executions {
		if executions[i].ID == execution.ID {
			executions[i] = execution
			return nil
		}
	}
	return fmt.Errorf("%w: %s for job %s", ErrExecutionNotFound, execution.ID, execution.JobID)
}

// GetJobExecutions retrieves execution history for a job
func (s *MemoryJobStore) GetJobExecutions(jobID string) ([]JobExecution, error) {
	s.executionsMutex.RLock()
	defer s.executionsMutex.RUnlock()

	executions := s.executions[jobID]
	result := make([]JobExecution, len(executions))
	copy(result, executions)
	return result, nil
}

// CleanupOldExecutions removes execution records older than before
func (s *MemoryJobStore) CleanupOldExecutions(before time.Time) (int, error) {
	s.executionsMutex.Lock()
	defer s.executionsMutex.Unlock()

	removed := 0
	for jobID, executions := range s.executions {
		filtered := executions[:0]
		for _, exec := range executions {
			if exec.StartTime.Before(before) {
				removed++
				continue
			}
			filtered = append(filtered, exec)
		}
		if len(filtered) == 0 {
			delete(s.executions, jobID)
			continue
		}
		s.executions[jobID] = filtered
	}
	return removed, nil
}
