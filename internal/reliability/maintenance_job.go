package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/database"
)

const (
	criticalFreeBytes = 100 << 20 // 100MB
	lowFreeBytes      = 1 << 30   // 1GB
)

// DiskUsageFunc reports free bytes on the filesystem holding path
type DiskUsageFunc func(path string) (uint64, error)

// MaintenanceJob runs the nightly housekeeping: audit database checks, a
// free-space check on the state directory, then an off-site backup and rotation
type MaintenanceJob struct {
	backups       *BackupService
	auditDB       *database.DB
	stateDir      string
	retentionDays int
	timeout       time.Duration
	freeBytes     DiskUsageFunc
	log           zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job. backups and auditDB may be nil.
func NewMaintenanceJob(
	backups *BackupService,
	auditDB *database.DB,
	stateDir string,
	retentionDays int,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		backups:       backups,
		auditDB:       auditDB,
		stateDir:      stateDir,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		freeBytes:     diskFree,
		log:           log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	// Step 1: integrity check and WAL checkpoint
	if j.auditDB != nil {
		if err := j.auditDB.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Msg("Audit database integrity check failed")
			return fmt.Errorf("audit database unhealthy: %w", err)
		}
		if err := j.auditDB.Checkpoint(ctx); err != nil {
			j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		}
	}

	// Step 2: disk space, halts before a backup could fill the disk
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 3: backup and rotation
	if j.backups != nil {
		if _, err := j.backups.CreateAndUploadBackup(ctx); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		deleted, err := j.backups.RotateOldBackups(ctx, j.retentionDays)
		if err != nil {
			j.log.Warn().Err(err).Msg("Backup rotation failed")
		} else if deleted > 0 {
			j.log.Info().Int("deleted", deleted).Msg("Rotated old backups")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	free, err := j.freeBytes(j.stateDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.stateDir).Msg("Failed to stat filesystem")
		return nil
	}

	freeMB := float64(free) / (1 << 20)
	switch {
	case free < criticalFreeBytes:
		j.log.Error().Float64("free_mb", freeMB).Msg("CRITICAL: insufficient disk space")
		return fmt.Errorf("only %.0f MB free in %s", freeMB, j.stateDir)
	case free < lowFreeBytes:
		j.log.Warn().Float64("free_mb", freeMB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("free_mb", freeMB).Msg("Disk space check")
	}
	return nil
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
