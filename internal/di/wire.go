// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/creditrisk/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories, services and handlers
// 3. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		closeOnError(container, log)
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		closeOnError(container, log)
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed")

	return container, jobs, nil
}

// closeOnError releases a partially wired container.
func closeOnError(container interface{ Close() error }, log zerolog.Logger) {
	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close runs database")
	}
}
