package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/creditrisk/internal/database"
	"github.com/rs/zerolog"
)

// RunPruner deletes ledger entries created before a cutoff.
type RunPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunRetentionJob removes ledger entries older than the retention window
// and hands the freed pages back to the filesystem (daily)
type RunRetentionJob struct {
	db            *database.DB
	pruner        RunPruner
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewRunRetentionJob creates a new retention job. retentionDays of 0 keeps
// every run.
func NewRunRetentionJob(db *database.DB, pruner RunPruner, retentionDays int, log zerolog.Logger) *RunRetentionJob {
	return &RunRetentionJob{
		db:            db,
		pruner:        pruner,
		retentionDays: retentionDays,
		timeout:       5 * time.Minute,
		log:           log.With().Str("job", "run_retention").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *RunRetentionJob) Name() string {
	return "run_retention"
}

// Run executes the retention job
func (j *RunRetentionJob) Run() error {
	if j.retentionDays <= 0 {
		j.log.Debug().Msg("Run retention disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	startTime := time.Now()
	cutoff := startTime.AddDate(0, 0, -j.retentionDays)

	deleted, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}

	if deleted > 0 && j.db != nil {
		if err := j.db.IncrementalVacuum(ctx); err != nil {
			// Space is reclaimed on the next run
			j.log.Warn().Err(err).Msg("Incremental vacuum failed")
		}
	}

	j.log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Run retention completed")

	return nil
}

// BackupJob uploads a ledger snapshot and rotates old archives
type BackupJob struct {
	service *BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "s3_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "s3_backup"
}

// Run executes the backup job. Rotation only runs after a successful upload.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	info, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		return err
	}

	deleted, err := j.service.RotateOldBackups(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
		return fmt.Errorf("backup %s uploaded but rotation failed: %w", info.Key, err)
	}

	j.log.Info().
		Str("archive", info.Key).
		Int("rotated", deleted).
		Msg("Backup job completed")

	return nil
}
