package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/agent"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/reliability"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/scheduler"
)

// JobInstances holds the scheduled jobs
type JobInstances struct {
	Cycle       *scheduler.CycleJob
	Maintenance *reliability.MaintenanceJob
}

// NewJobs creates the cycle job and the maintenance job. Each finished cycle
// refreshes the metrics textfile when one is configured.
func NewJobs(container *Container, cfg *config.Config, log zerolog.Logger) *JobInstances {
	onComplete := func(state agent.RunState) {
		log.Info().
			Str("run_id", state.RunID).
			Str("action_result", state.ActionResult).
			Str("reflection", state.Reflection).
			Msg("Cycle result")
		writeTextfile(container, cfg, log)
	}

	return &JobInstances{
		Cycle: scheduler.NewCycleJob(container.Agent, scheduler.DefaultCycleTimeout, onComplete, log),
		Maintenance: reliability.NewMaintenanceJob(
			container.Backups,
			container.AuditDB,
			cfg.StateDir,
			cfg.Backup.RetentionDays,
			log,
		),
	}
}

// RegisterJobs adds the jobs to the scheduler. cycleSchedule comes from the
// command line; the maintenance job follows BACKUP_SCHEDULE.
func RegisterJobs(sched *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config, cycleSchedule string) error {
	if err := sched.AddJob(cycleSchedule, jobs.Cycle); err != nil {
		return fmt.Errorf("failed to register cycle job: %w", err)
	}
	if cfg.Backup.Schedule != "" {
		if err := sched.AddJob(cfg.Backup.Schedule, jobs.Maintenance); err != nil {
			return fmt.Errorf("failed to register maintenance job: %w", err)
		}
	}
	return nil
}

func writeTextfile(container *Container, cfg *config.Config, log zerolog.Logger) {
	if cfg.MetricsTextfile == "" {
		return
	}
	if err := container.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		log.Warn().Err(err).Str("path", cfg.MetricsTextfile).Msg("Failed to write metrics textfile")
	}
}
