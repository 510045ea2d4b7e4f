package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quantlab/internal/config"
)

type recordingRunner struct {
	ran chan config.JobConfig
}

func (r *recordingRunner) RunJob(ctx context.Context, job config.JobConfig) error {
	r.ran <- job
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSchedulerRunsJob(t *testing.T) {
	runner := &recordingRunner{ran: make(chan config.JobConfig, 4)}
	s := NewScheduler(runner, quietLogger())

	job := config.JobConfig{Name: "nightly", Cron: "@every 1s", Mode: "run", LookbackDays: 30}
	_, err := s.ScheduleJob(job)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	select {
	case got := <-runner.ran:
		assert.Equal(t, "nightly", got.Name)
		assert.False(t, s.GetNextRun().IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestSchedulerRejectsInvalidUse(t *testing.T) {
	runner := &recordingRunner{ran: make(chan config.JobConfig, 1)}
	s := NewScheduler(runner, quietLogger())

	assert.Error(t, s.Start(), "no jobs scheduled")

	_, err := s.ScheduleJob(config.JobConfig{Name: "bad", Cron: "not a cron"})
	assert.Error(t, err)

	id, err := s.ScheduleJob(config.JobConfig{Name: "weekly", Cron: "@weekly", Mode: "optimize", LookbackDays: 90})
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 1)

	require.NoError(t, s.Start())
	_, err = s.ScheduleJob(config.JobConfig{Name: "late", Cron: "@daily"})
	assert.Error(t, err)
	assert.Error(t, s.RemoveJob(id))
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.RemoveJob(id))
	assert.Empty(t, s.Entries())
}

func TestScheduleJobs(t *testing.T) {
	s := NewScheduler(&recordingRunner{}, nil)
	err := s.ScheduleJobs([]config.JobConfig{
		{Name: "a", Cron: "0 2 * * *"},
		{Name: "b", Cron: "0 3 * * 1"},
	})
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 2)
	assert.True(t, s.GetNextRun().IsZero(), "next run is only reported while running")
}
