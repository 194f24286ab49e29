package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(opts ...SchedulerOption) *Scheduler {
	opts = append([]SchedulerOption{WithLocation(time.UTC), WithLogger(&testLogger{})}, opts...)
	return NewScheduler(NewMemoryJobStore(), opts...)
}

func TestScheduler_OneOffJob(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s := newTestScheduler()
		var runs atomic.Int32

		id, err := s.ScheduleJob(Job{
			Name:  "report",
			RunAt: time.Now().Add(5 * time.Second),
			JobFunc: func(ctx context.Context) error {
				runs.Add(1)
				return nil
			},
		})
		require.NoError(t, err)
		require.NoError(t, s.Start(context.Background()))

		time.Sleep(3 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(0), runs.Load())

		time.Sleep(3 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(1), runs.Load())

		job, err := s.GetJob(id)
		require.NoError(t, err)
		assert.Equal(t, JobStatusCompleted, job.Status)
		require.NotNil(t, job.LastRun)

		history, err := s.GetJobHistory(id)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, JobStatusCompleted, history[0].Status)
		assert.NotEmpty(t, history[0].ID)

		time.Sleep(10 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(1), runs.Load(), "one-off jobs run once")

		require.NoError(t, s.Stop(context.Background()))
	})
}

func TestScheduler_RecurringJob(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s := newTestScheduler()
		var runs atomic.Int32

		// Scheduled before Start: registered with cron when the scheduler starts.
		id, err := s.ScheduleRecurring("cleanup", "*/15 * * * *", func(ctx context.Context) error {
			runs.Add(1)
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, s.Start(context.Background()))

		time.Sleep(31 * time.Minute)
		synctest.Wait()
		assert.Equal(t, int32(2), runs.Load())

		job, err := s.GetJob(id)
		require.NoError(t, err)
		assert.Equal(t, JobStatusPending, job.Status)
		require.NotNil(t, job.NextRun)
		assert.Equal(t, 45, job.NextRun.Minute())

		require.NoError(t, s.CancelJob(id))
		time.Sleep(time.Hour)
		synctest.Wait()
		assert.Equal(t, int32(2), runs.Load(), "cancelled jobs stop running")

		require.NoError(t, s.Stop(context.Background()))
	})
}

func TestScheduler_FailingJobs(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s := newTestScheduler()
		require.NoError(t, s.Start(context.Background()))

		failing, err := s.ScheduleJob(Job{
			Name:    "failing",
			RunAt:   time.Now(),
			JobFunc: func(ctx context.Context) error { return errors.New("boom") },
		})
		require.NoError(t, err)
		panicking, err := s.ScheduleJob(Job{
			Name:    "panicking",
			RunAt:   time.Now(),
			JobFunc: func(ctx context.Context) error { panic("kaboom") },
		})
		require.NoError(t, err)

		time.Sleep(2 * time.Second)
		synctest.Wait()

		for id, msg := range map[string]string{failing: "boom", panicking: "kaboom"} {
			job, err := s.GetJob(id)
			require.NoError(t, err)
			assert.Equal(t, JobStatusFailed, job.Status)
			history, err := s.GetJobHistory(id)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Contains(t, history[0].Error, msg)
		}

		require.NoError(t, s.Stop(context.Background()))
	})
}

func TestScheduler_TriggerJob(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s := newTestScheduler()
		var runs atomic.Int32
		id, err := s.ScheduleRecurring("yearly", "0 0 1 1 *", func(ctx context.Context) error {
			runs.Add(1)
			return nil
		})
		require.NoError(t, err)

		assert.ErrorIs(t, s.TriggerJob(id), ErrSchedulerNotStarted)

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.TriggerJob(id))
		synctest.Wait()
		assert.Equal(t, int32(1), runs.Load())

		assert.ErrorIs(t, s.TriggerJob("missing"), ErrJobNotFound)

		require.NoError(t, s.CancelJob(id))
		assert.ErrorIs(t, s.TriggerJob(id), ErrJobNotRunnable)

		require.NoError(t, s.Stop(context.Background()))
	})
}

func TestScheduler_Location(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	s := NewScheduler(NewMemoryJobStore(), WithLocation(loc))

	id, err := s.ScheduleRecurring("morning", "0 8 * * *", func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	job, err := s.GetJob(id)
	require.NoError(t, err)
	require.NotNil(t, job.NextRun)
	assert.Equal(t, 8, job.NextRun.In(loc).Hour())
	assert.Equal(t, 11, job.NextRun.UTC().Hour())
}

func TestScheduler_ScheduleValidation(t *testing.T) {
	s := newTestScheduler()

	_, err := s.ScheduleJob(Job{Name: "nothing"})
	assert.ErrorIs(t, err, ErrMissingSchedule)

	_, err = s.ScheduleJob(Job{Name: "recurring", IsRecurring: true, RunAt: time.Now()})
	assert.ErrorIs(t, err, ErrRecurringWithoutSchedule)

	_, err = s.ScheduleRecurring("bad", "every minute", nil)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = s.ScheduleJob(Job{ID: "fixed", Name: "a", RunAt: time.Now()})
	require.NoError(t, err)
	_, err = s.ScheduleJob(Job{ID: "fixed", Name: "b", RunAt: time.Now()})
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	jobs, err := s.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Name)
}

func TestMemoryJobStore_Executions(t *testing.T) {
	store := NewMemoryJobStore()
	now := time.Now()

	require.NoError(t, store.AddJobExecution(JobExecution{ID: "1", JobID: "job", StartTime: now.Add(-10 * 24 * time.Hour)}))
	require.NoError(t, store.AddJobExecution(JobExecution{ID: "2", JobID: "job", StartTime: now}))

	updated := JobExecution{ID: "2", JobID: "job", StartTime: now, Status: JobStatusCompleted}
	require.NoError(t, store.UpdateJobExecution(updated))
	assert.ErrorIs(t, store.UpdateJobExecution(JobExecution{ID: "3", JobID: "job"}), ErrExecutionNotFound)

	removed, err := store.CleanupOldExecutions(now.Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	history, err := store.GetJobExecutions("job")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, JobStatusCompleted, history[0].Status)
}

func TestMemoryJobStore_GetDueJobsClaimsOneOffJobs(t *testing.T) {
	store := NewMemoryJobStore()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	require.NoError(t, store.AddJob(Job{ID: "due", Status: JobStatusPending, NextRun: &past}))
	require.NoError(t, store.AddJob(Job{ID: "later", Status: JobStatusPending, NextRun: &future}))
	require.NoError(t, store.AddJob(Job{ID: "cron", Status: JobStatusPending, IsRecurring: true, NextRun: &past}))

	due, err := store.GetDueJobs(time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	due, err = store.GetDueJobs(time.Now())
	require.NoError(t, err)
	assert.Empty(t, due, "claimed jobs are not returned twice")

	require.NoError(t, store.DeleteJob("due"))
	assert.ErrorIs(t, store.DeleteJob("due"), ErrJobNotFound)
}
