// Package di provides dependency injection type definitions.
//
// The Container is the single source of truth for service instances and is
// passed to the server and scheduler.
package di

import (
	"github.com/aristath/creditrisk/internal/config"
	"github.com/aristath/creditrisk/internal/database"
	"github.com/aristath/creditrisk/internal/metrics"
	"github.com/aristath/creditrisk/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/creditrisk/internal/modules/optimization/handlers"
	"github.com/aristath/creditrisk/internal/modules/prediction"
	predictionhandlers "github.com/aristath/creditrisk/internal/modules/prediction/handlers"
	"github.com/aristath/creditrisk/internal/modules/runs"
	runshandlers "github.com/aristath/creditrisk/internal/modules/runs/handlers"
	"github.com/aristath/creditrisk/internal/modules/simulation"
	simulationhandlers "github.com/aristath/creditrisk/internal/modules/simulation/handlers"
	"github.com/aristath/creditrisk/internal/reliability"
	"github.com/aristath/creditrisk/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Databases
	RunsDB *database.DB

	// Repositories
	RunRepo *runs.Repository

	// Services
	Metrics           *metrics.Metrics
	RunRecorder       *runs.Recorder
	QAOASolver        *optimization.QAOASolver
	Optimizer         *optimization.Optimizer
	Simulator         *simulation.Simulator
	PredictionService *prediction.Service
	BackupService     *reliability.BackupService // nil when no bucket is configured

	// HTTP handlers
	OptimizationHandler *optimizationhandlers.Handler
	SimulationHandler   *simulationhandlers.Handler
	PredictionHandler   *predictionhandlers.Handler
	RunsHandler         *runshandlers.Handler

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the background jobs so they can be triggered manually
type JobInstances struct {
	RunRetention  scheduler.Job
	WALCheckpoint scheduler.Job
	Backup        scheduler.Job // nil when backups are disabled
}

// Close releases resources held by the container
func (c *Container) Close() error {
	if c.RunsDB != nil {
		return c.RunsDB.Close()
	}
	return nil
}
