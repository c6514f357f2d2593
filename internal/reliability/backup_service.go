// Package reliability provides off-site backups and scheduled maintenance for
// the run ledger.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/creditrisk/internal/database"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	backupTimestampFormat = "2006-01-02-150405"
	backupMetadataFile    = "backup-metadata.json"
	backupFormatVersion   = "1"
)

// ObjectStore is the remote storage the backups are written to.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// BackupMetadata describes the contents of one backup archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database snapshot inside an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo represents a backup stored remotely
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService snapshots the ledger database and ships it to an ObjectStore.
type BackupService struct {
	db      *database.DB
	store   ObjectStore
	dataDir string
	prefix  string
	keep    int
	now     func() time.Time
	log     zerolog.Logger
}

// NewBackupService creates a backup service. Archives are named
// <prefix>-backup-<timestamp>.tar.gz and at most keep of them are retained.
func NewBackupService(
	db *database.DB,
	store ObjectStore,
	dataDir string,
	prefix string,
	keep int,
	log zerolog.Logger,
) *BackupService {
	if keep < 1 {
		keep = 1
	}
	return &BackupService{
		db:      db,
		store:   store,
		dataDir: dataDir,
		prefix:  prefix,
		keep:    keep,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With().Str("service", "backup").Logger(),
	}
}

func (s *BackupService) archivePrefix() string {
	return s.prefix + "-backup-"
}

// CreateAndUploadBackup snapshots the database, packs it with its metadata
// into a tar.gz archive and uploads the archive.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (*BackupInfo, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	timestamp := s.now()
	dbFilename := s.db.Name() + ".db"
	dbPath := filepath.Join(stagingDir, dbFilename)

	if err := s.db.VacuumInto(ctx, dbPath); err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", s.db.Name(), err)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s snapshot: %w", s.db.Name(), err)
	}

	checksum, err := calculateChecksum(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum for %s: %w", s.db.Name(), err)
	}

	metadata := BackupMetadata{
		Timestamp: timestamp,
		Version:   backupFormatVersion,
		Databases: []DatabaseMetadata{{
			Name:      s.db.Name(),
			Filename:  dbFilename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		}},
	}

	if err := writeMetadata(filepath.Join(stagingDir, backupMetadataFile), metadata); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	key := s.archivePrefix() + timestamp.Format(backupTimestampFormat) + ".tar.gz"
	// Prefixes may contain "/" folders; stage under the bare file name
	archivePath := filepath.Join(stagingDir, path.Base(key))
	if err := createArchive(archivePath, stagingDir, []string{dbFilename, backupMetadataFile}); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, key, archiveFile); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", key).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed successfully")

	return &BackupInfo{Key: key, Timestamp: timestamp, SizeBytes: archiveInfo.Size()}, nil
}

// ListBackups lists the stored backups, newest first. Objects whose names do
// not carry a parseable timestamp are skipped.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	prefix := s.archivePrefix()
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		key := *obj.Key
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".tar.gz") {
			continue
		}

		raw := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".tar.gz")
		timestamp, err := time.Parse(backupTimestampFormat, raw)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from backup name")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}

		backups = append(backups, BackupInfo{Key: key, Timestamp: timestamp, SizeBytes: size})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes everything but the newest keep backups and
// returns how many were removed. A failed delete is logged and skipped.
func (s *BackupService) RotateOldBackups(ctx context.Context) (int, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}

	if len(backups) <= s.keep {
		s.log.Debug().Int("count", len(backups)).Int("keep", s.keep).Msg("Too few backups to rotate")
		return 0, nil
	}

	deleted := 0
	for _, backup := range backups[s.keep:] {
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().
			Str("key", backup.Key).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return deleted, nil
}

// calculateChecksum calculates the SHA256 checksum of a file
func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes a tar.gz archive of the named files in sourceDir.
func createArchive(archivePath, sourceDir string, filenames []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	// Close order matters: tar footer first, then the gzip trailer
	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, path, nameInArchive string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
