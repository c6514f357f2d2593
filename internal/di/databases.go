// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/creditrisk/internal/config"
	"github.com/aristath/creditrisk/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the run ledger and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	// runs.db - append-mostly audit trail of optimization and simulation requests
	runsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "runs.db"),
		Profile: database.ProfileLedger,
		Name:    "runs",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runs database: %w", err)
	}

	if err := runsDB.Migrate(); err != nil {
		runsDB.Close()
		return nil, fmt.Errorf("failed to migrate runs database: %w", err)
	}
	container.RunsDB = runsDB

	log.Info().Str("path", runsDB.Path()).Msg("Runs database initialized")

	return container, nil
}
