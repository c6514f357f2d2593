package di

import (
	"context"
	"fmt"

	"github.com/aristath/creditrisk/internal/config"
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
	"github.com/rs/zerolog"
)

// InitializeServices creates repositories, services and handlers.
// Requires InitializeDatabases to have populated the container.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.RunsDB == nil {
		return fmt.Errorf("runs database not initialized")
	}

	container.Metrics = metrics.New()

	// Run ledger
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)
	container.RunRecorder = runs.NewRecorder(container.RunRepo, log)

	// Portfolio optimization: QAOA with greedy fallback
	container.QAOASolver = optimization.NewQAOASolver(cfg.QAOA.ToQAOAConfig(), log)
	container.Optimizer = optimization.NewOptimizer(
		container.QAOASolver,
		optimization.OptimizerConfig{SolverTimeout: cfg.SolverTimeout},
		log,
	)
	container.Optimizer.SetObserver(container.Metrics)

	// Default simulation
	container.Simulator = simulation.NewSimulator(cfg.Simulation.ToSimulatorConfig(), log)
	container.Simulator.SetObserver(container.Metrics)

	// PD prediction; an empty weight vector leaves the model untrained
	classifier := prediction.NewLogisticClassifier(cfg.Prediction.Weights, cfg.Prediction.Bias)
	container.PredictionService = prediction.NewService(classifier, log)
	container.PredictionService.SetObserver(container.Metrics)

	if cfg.Backup != nil && cfg.Backup.Enabled() {
		store, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			Endpoint:  cfg.Backup.Endpoint,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.RunsDB,
			store,
			cfg.DataDir,
			cfg.Backup.Prefix,
			cfg.Backup.Keep,
			log,
		)
	}

	// HTTP handlers
	container.OptimizationHandler = optimizationhandlers.NewHandler(container.Optimizer, container.RunRecorder, log)
	container.SimulationHandler = simulationhandlers.NewHandler(container.Simulator, container.RunRecorder, log)
	container.PredictionHandler = predictionhandlers.NewHandler(container.PredictionService, log)
	container.RunsHandler = runshandlers.NewHandler(container.RunRepo, log)

	log.Info().
		Bool("qaoa_available", container.QAOASolver.Available()).
		Int("qaoa_capacity", container.QAOASolver.Capacity()).
		Bool("pd_model_trained", classifier.Trained()).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")

	return nil
}
