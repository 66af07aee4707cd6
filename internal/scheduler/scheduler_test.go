package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/agent"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestScheduler_AddJobValidatesSchedule(t *testing.T) {
	s := New(zerolog.Nop())

	assert.NoError(t, s.AddJob("0 */15 * * * *", &countingJob{}))
	assert.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Equal(t, 2, s.JobCount())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}

	err := s.RunNow(job)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_ExecuteToleratesFailures(t *testing.T) {
	s := New(zerolog.Nop())
	s.execute(&countingJob{err: ErrJobRunning})
	s.execute(&countingJob{err: errors.New("boom")})
	s.execute(&countingJob{})
}

// blockingRunner holds each run open until released
type blockingRunner struct {
	started  chan struct{}
	release  chan struct{}
	runs     atomic.Int32
	deadline atomic.Bool
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context) agent.RunState {
	r.runs.Add(1)
	_, ok := ctx.Deadline()
	r.deadline.Store(ok)
	r.started <- struct{}{}
	<-r.release
	return agent.RunState{RunID: "run", Step: 1, LastActionType: "noop"}
}

func TestCycleJob_RejectsOverlap(t *testing.T) {
	runner := newBlockingRunner()
	var completed atomic.Int32
	job := NewCycleJob(runner, time.Minute, func(s agent.RunState) {
		assert.Equal(t, "run", s.RunID)
		completed.Add(1)
	}, zerolog.Nop())

	require.True(t, job.TriggerAsync())
	<-runner.started
	assert.True(t, job.Running())

	assert.False(t, job.TriggerAsync())
	assert.ErrorIs(t, job.Run(), ErrJobRunning)

	close(runner.release)
	require.Eventually(t, func() bool { return !job.Running() }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), runner.runs.Load())
	assert.Equal(t, int32(1), completed.Load())
	assert.True(t, runner.deadline.Load())
}

func TestCycleJob_RunIsSynchronous(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	job := NewCycleJob(runner, 0, nil, zerolog.Nop())

	require.NoError(t, job.Run())
	require.NoError(t, job.Run())

	assert.Equal(t, int32(2), runner.runs.Load())
	assert.False(t, job.Running())
	assert.Equal(t, "agent_cycle", job.Name())
	assert.Equal(t, DefaultCycleTimeout, job.timeout)
}
