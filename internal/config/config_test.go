package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CREDITRISK_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 10*time.Second, cfg.SolverTimeout)
	assert.Equal(t, 30, cfg.RunRetentionDays)

	assert.True(t, cfg.QAOA.Enabled)
	assert.Equal(t, 1, cfg.QAOA.Reps)
	assert.Equal(t, "nelder_mead", cfg.QAOA.Optimizer)
	assert.Equal(t, 10_000_000, cfg.Simulation.MaxTrials)

	assert.Nil(t, cfg.Prediction.Weights)
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, "0 0 3 * * *", cfg.Backup.Schedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CREDITRISK_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("SOLVER_TIMEOUT", "250ms")
	t.Setenv("QAOA_ENABLED", "false")
	t.Setenv("QAOA_REPS", "3")
	t.Setenv("QAOA_OPTIMIZER", "bfgs")
	t.Setenv("QAOA_SEED", "42")
	t.Setenv("SIM_WORKERS", "2")
	t.Setenv("SIM_SEED", "7")
	t.Setenv("PD_MODEL_WEIGHTS", "0.5, -1.25,2")
	t.Setenv("PD_MODEL_BIAS", "-0.3")
	t.Setenv("BACKUP_S3_BUCKET", "ledger-backups")
	t.Setenv("BACKUP_S3_REGION", "eu-central-1")
	t.Setenv("BACKUP_KEEP", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 250*time.Millisecond, cfg.SolverTimeout)

	qaoa := cfg.QAOA.ToQAOAConfig()
	assert.False(t, qaoa.Enabled)
	assert.Equal(t, 3, qaoa.Reps)
	assert.Equal(t, "bfgs", qaoa.Optimizer)
	assert.Equal(t, uint64(42), qaoa.Seed)

	sim := cfg.Simulation.ToSimulatorConfig()
	assert.Equal(t, 2, sim.Workers)
	assert.Equal(t, uint64(7), sim.Seed)

	assert.Equal(t, []float64{0.5, -1.25, 2}, cfg.Prediction.Weights)
	assert.InDelta(t, -0.3, cfg.Prediction.Bias, 1e-12)

	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "eu-central-1", cfg.Backup.Region)
	assert.Equal(t, 3, cfg.Backup.Keep)
}

func TestLoad_InvalidWeights(t *testing.T) {
	t.Setenv("CREDITRISK_DATA_DIR", t.TempDir())
	t.Setenv("PD_MODEL_WEIGHTS", "0.5,abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PD_MODEL_WEIGHTS")
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", 5 * time.Second},
		{"2m", 2 * time.Minute},
		{"15", 15 * time.Second},
		{"soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.expected, getEnvAsDuration("TEST_DURATION", 5*time.Second))
		})
	}
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT", "many")
	t.Setenv("TEST_BOOL", "perhaps")
	t.Setenv("TEST_FLOAT", "1.2.3")

	assert.Equal(t, 4, getEnvAsInt("TEST_INT", 4))
	assert.True(t, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, 0.5, getEnvAsFloat("TEST_FLOAT", 0.5))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:       8001,
			Simulation: &SimulationConfig{MaxTrials: 100},
			Backup:     &BackupConfig{Region: "auto", Keep: 7},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"negative timeout", func(c *Config) { c.SolverTimeout = -time.Second }, true},
		{"negative retention", func(c *Config) { c.RunRetentionDays = -1 }, true},
		{"zero max trials", func(c *Config) { c.Simulation.MaxTrials = 0 }, true},
		{"backup without region", func(c *Config) { c.Backup.Bucket = "b"; c.Backup.Region = "" }, true},
		{"backup keeps nothing", func(c *Config) { c.Backup.Bucket = "b"; c.Backup.Keep = 0 }, true},
		{"backup disabled ignores keep", func(c *Config) { c.Backup.Keep = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
