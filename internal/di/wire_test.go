package di

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/creditrisk/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:          t.TempDir(),
		Port:             8001,
		SolverTimeout:    5 * time.Second,
		RunRetentionDays: 30,
		QAOA: &config.QAOAConfig{
			Enabled:       true,
			Reps:          1,
			Optimizer:     "nelder_mead",
			Shots:         256,
			MaxQubits:     10,
			MaxIterations: 50,
			Seed:          7,
		},
		Simulation: &config.SimulationConfig{Workers: 2, MaxTrials: 100000, Seed: 7},
		Prediction: &config.PredictionConfig{},
		Backup:     &config.BackupConfig{Region: "auto", Keep: 7, Schedule: "0 0 3 * * *"},
	}
}

func TestWire(t *testing.T) {
	container, jobs, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.RunsDB)
	assert.NotNil(t, container.RunRepo)
	assert.NotNil(t, container.Optimizer)
	assert.NotNil(t, container.Simulator)
	assert.NotNil(t, container.PredictionService)
	assert.NotNil(t, container.Metrics)
	assert.Nil(t, container.BackupService, "no bucket configured")

	assert.NotNil(t, jobs.RunRetention)
	assert.NotNil(t, jobs.WALCheckpoint)
	assert.Nil(t, jobs.Backup)
	assert.ElementsMatch(t, []string{"run_retention", "wal_checkpoint"}, container.Scheduler.Jobs())
}

func TestWire_WithBackup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Bucket = "ledger-backups"
	cfg.Backup.Endpoint = "http://localhost:9000"
	cfg.Backup.AccessKey = "key"
	cfg.Backup.SecretKey = "secret"

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.BackupService)
	require.NotNil(t, jobs.Backup)
	assert.Equal(t, "s3_backup", jobs.Backup.Name())
}

func TestWire_InvalidBackupSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Bucket = "ledger-backups"
	cfg.Backup.Schedule = "whenever"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestCloseOnError_LogsCloseFailure(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	closeOnError(failingCloser{err: errors.New("database is locked")}, log)
	assert.Contains(t, buf.String(), "Failed to close runs database")
	assert.Contains(t, buf.String(), "database is locked")

	buf.Reset()
	closeOnError(failingCloser{}, log)
	assert.Empty(t, buf.String())
}

// Requests flow through the wired handlers into the ledger and the metrics.
func TestWire_EndToEnd(t *testing.T) {
	container, _, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	r := chi.NewRouter()
	container.OptimizationHandler.RegisterRoutes(r)
	container.SimulationHandler.RegisterRoutes(r)
	container.PredictionHandler.RegisterRoutes(r)

	post := func(path, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post("/optimize_portfolio", `{"returns":[0.05,0.07,0.02],"risks":[0.02,0.03,0.01],"budget":2}`))
	assert.Equal(t, http.StatusOK, post("/simulate_default", `{"probabilities":[0.1,0.2,0.05],"trials":500}`))
	assert.Equal(t, http.StatusOK, post("/predict_pd", `{"features":[1,2,3]}`))

	count, err := container.RunRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
