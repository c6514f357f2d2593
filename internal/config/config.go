// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/creditrisk/internal/modules/optimization"
	"github.com/aristath/creditrisk/internal/modules/simulation"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the run ledger (always absolute)
	LogLevel         string
	Port             int
	DevMode          bool
	SolverTimeout    time.Duration
	RunRetentionDays int
	QAOA             *QAOAConfig
	Simulation       *SimulationConfig
	Prediction       *PredictionConfig
	Backup           *BackupConfig
}

// QAOAConfig holds approximate solver settings (config package version)
type QAOAConfig struct {
	Enabled       bool
	Reps          int
	Optimizer     string
	Shots         int
	MaxQubits     int
	MaxIterations int
	Penalty       float64
	Seed          uint64
}

// ToQAOAConfig converts config.QAOAConfig to optimization.QAOAConfig
func (c *QAOAConfig) ToQAOAConfig() optimization.QAOAConfig {
	return optimization.QAOAConfig{
		Enabled:       c.Enabled,
		Reps:          c.Reps,
		Optimizer:     c.Optimizer,
		Shots:         c.Shots,
		MaxQubits:     c.MaxQubits,
		MaxIterations: c.MaxIterations,
		Penalty:       c.Penalty,
		Seed:          c.Seed,
	}
}

// SimulationConfig holds Monte Carlo settings
type SimulationConfig struct {
	Workers   int
	MaxTrials int
	Seed      uint64
}

// ToSimulatorConfig converts config.SimulationConfig to simulation.Config
func (c *SimulationConfig) ToSimulatorConfig() simulation.Config {
	return simulation.Config{
		Workers:   c.Workers,
		MaxTrials: c.MaxTrials,
		Seed:      c.Seed,
	}
}

// PredictionConfig holds the logistic PD model coefficients.
// Empty weights leave the model untrained, so every prediction is the placeholder.
type PredictionConfig struct {
	Weights []float64
	Bias    float64
}

// BackupConfig holds S3-compatible ledger backup settings
type BackupConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // empty for AWS S3
	AccessKey string
	SecretKey string
	Prefix    string
	Keep      int
	Schedule  string // cron expression with seconds field
}

// Enabled reports whether a backup bucket is configured.
func (c *BackupConfig) Enabled() bool {
	return c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CREDITRISK_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	weights, err := getEnvAsFloats("PD_MODEL_WEIGHTS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("GO_PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SolverTimeout:    getEnvAsDuration("SOLVER_TIMEOUT", 10*time.Second),
		RunRetentionDays: getEnvAsInt("RUN_RETENTION_DAYS", 30),
		QAOA:             loadQAOAConfig(),
		Simulation:       loadSimulationConfig(),
		Prediction: &PredictionConfig{
			Weights: weights,
			Bias:    getEnvAsFloat("PD_MODEL_BIAS", 0),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SolverTimeout < 0 {
		return fmt.Errorf("solver timeout must not be negative, got %s", c.SolverTimeout)
	}
	if c.RunRetentionDays < 0 {
		return fmt.Errorf("run retention must not be negative, got %d days", c.RunRetentionDays)
	}
	if c.Simulation != nil && c.Simulation.MaxTrials <= 0 {
		return fmt.Errorf("SIM_MAX_TRIALS must be positive, got %d", c.Simulation.MaxTrials)
	}

	// Bucket is optional; a half-configured backup is not
	if b := c.Backup; b != nil && b.Enabled() {
		if b.Region == "" {
			return fmt.Errorf("BACKUP_S3_REGION is required when BACKUP_S3_BUCKET is set")
		}
		if b.Keep < 1 {
			return fmt.Errorf("BACKUP_KEEP must be at least 1, got %d", b.Keep)
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintVal, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or bare seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvAsFloats parses a comma-separated list. A malformed entry is an error,
// not a fallback.
func getEnvAsFloats(key string) ([]float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d %q is not a number: %w", key, i, part, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func loadQAOAConfig() *QAOAConfig {
	defaults := optimization.DefaultQAOAConfig()
	return &QAOAConfig{
		Enabled:       getEnvAsBool("QAOA_ENABLED", defaults.Enabled),
		Reps:          getEnvAsInt("QAOA_REPS", defaults.Reps),
		Optimizer:     getEnv("QAOA_OPTIMIZER", defaults.Optimizer),
		Shots:         getEnvAsInt("QAOA_SHOTS", defaults.Shots),
		MaxQubits:     getEnvAsInt("QAOA_MAX_QUBITS", defaults.MaxQubits),
		MaxIterations: getEnvAsInt("QAOA_MAX_ITERATIONS", defaults.MaxIterations),
		Penalty:       getEnvAsFloat("QAOA_PENALTY", defaults.Penalty),
		Seed:          getEnvAsUint64("QAOA_SEED", defaults.Seed),
	}
}

func loadSimulationConfig() *SimulationConfig {
	defaults := simulation.DefaultConfig()
	return &SimulationConfig{
		Workers:   getEnvAsInt("SIM_WORKERS", defaults.Workers),
		MaxTrials: getEnvAsInt("SIM_MAX_TRIALS", defaults.MaxTrials),
		Seed:      getEnvAsUint64("SIM_SEED", defaults.Seed),
	}
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:    getEnv("BACKUP_S3_BUCKET", ""),
		Region:    getEnv("BACKUP_S3_REGION", "auto"),
		Endpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		AccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		SecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		Prefix:    getEnv("BACKUP_S3_PREFIX", "creditrisk"),
		Keep:      getEnvAsInt("BACKUP_KEEP", 7),
		Schedule:  getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
	}
}
