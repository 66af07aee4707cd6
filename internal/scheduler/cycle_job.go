package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/agent"
)

// DefaultCycleTimeout bounds one agent invocation
const DefaultCycleTimeout = 10 * time.Minute

// CycleRunner runs one full agent invocation
type CycleRunner interface {
	Run(ctx context.Context) agent.RunState
}

// CycleJob runs the agent loop. Invocations never overlap: a run requested
// while another is in flight is rejected with ErrJobRunning.
type CycleJob struct {
	runner     CycleRunner
	timeout    time.Duration
	onComplete func(agent.RunState)
	running    atomic.Bool
	log        zerolog.Logger
}

// NewCycleJob creates a new cycle job. onComplete may be nil.
func NewCycleJob(runner CycleRunner, timeout time.Duration, onComplete func(agent.RunState), log zerolog.Logger) *CycleJob {
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	return &CycleJob{
		runner:     runner,
		timeout:    timeout,
		onComplete: onComplete,
		log:        log.With().Str("job", "agent_cycle").Logger(),
	}
}

// Name returns the job name
func (j *CycleJob) Name() string {
	return "agent_cycle"
}

// Run executes one agent invocation
func (j *CycleJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}
	j.runLocked()
	return nil
}

// TriggerAsync starts an invocation in the background. Returns false when
// one is already running.
func (j *CycleJob) TriggerAsync() bool {
	if !j.running.CompareAndSwap(false, true) {
		return false
	}
	go j.runLocked()
	return true
}

// Running reports whether an invocation is in flight
func (j *CycleJob) Running() bool {
	return j.running.Load()
}

func (j *CycleJob) runLocked() {
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	state := j.runner.Run(ctx)
	j.log.Info().
		Str("run_id", state.RunID).
		Int("steps", state.Step).
		Str("last_action", state.LastAction()).
		Msg("Agent cycle finished")

	if j.onComplete != nil {
		j.onComplete(state)
	}
}
