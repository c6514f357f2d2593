package di

import (
	"fmt"

	"github.com/aristath/creditrisk/internal/config"
	"github.com/aristath/creditrisk/internal/reliability"
	"github.com/aristath/creditrisk/internal/scheduler"
	"github.com/rs/zerolog"
)

// Job schedules (seconds field first)
const (
	runRetentionSchedule  = "0 30 2 * * *"   // 2:30 AM daily
	walCheckpointSchedule = "0 */15 * * * *" // every 15 minutes
)

// RegisterJobs creates the background jobs and registers them with a new scheduler.
// The scheduler is stored on the container but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)
	instances := &JobInstances{}

	retention := reliability.NewRunRetentionJob(container.RunsDB, container.RunRepo, cfg.RunRetentionDays, log)
	if err := sched.AddJob(runRetentionSchedule, retention); err != nil {
		return nil, fmt.Errorf("failed to register run retention job: %w", err)
	}
	instances.RunRetention = retention

	walCheckpoint := scheduler.NewWALCheckpointJob(log, container.RunsDB)
	if err := sched.AddJob(walCheckpointSchedule, walCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}
	instances.WALCheckpoint = walCheckpoint

	if container.BackupService != nil {
		backup := reliability.NewBackupJob(container.BackupService, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
		instances.Backup = backup
	}

	container.Scheduler = sched
	return instances, nil
}
