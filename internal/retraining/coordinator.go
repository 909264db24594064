package retraining

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/deployment"
	"github.com/equipwatch/equipwatch/internal/monitoring"
	"github.com/equipwatch/equipwatch/internal/observability/metrics"
	"github.com/equipwatch/equipwatch/internal/registry"
	"github.com/equipwatch/equipwatch/internal/validation"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/interfaces"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// TrainablePersister is a model that can be fitted and then persisted into an
// artifact directory. The scoring service satisfies it.
type TrainablePersister interface {
	interfaces.Trainer
	interfaces.ModelPersister
	SetVersion(version string)
}

// TrainerFactory yields a fresh, untrained model for each retraining run
type TrainerFactory func() TrainablePersister

// Result describes one completed retraining run
type Result struct {
	RunID      string                   `json:"run_id"`
	ModelID    string                   `json:"model_id"`
	Version    string                   `json:"version"`
	Validation *models.ValidationResult `json:"validation"`
	Deployed   bool                     `json:"deployed"`
	Skipped    bool                     `json:"skipped"`
	SkipReason string                   `json:"skip_reason,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	Duration   time.Duration            `json:"duration"`
}

// Coordinator runs the retraining pipeline: gate on need, train a new model,
// register it as a minor version bump, validate it and auto-deploy when the
// quality bar is met. At most one run is in progress per process.
type Coordinator struct {
	config       *models.RetrainingConfig
	logger       *logrus.Logger
	registry     *registry.Registry
	gate         *validation.Gate
	orchestrator *deployment.Orchestrator
	monitor      *monitoring.Monitor
	newTrainer   TrainerFactory
	collector    *metrics.Collector

	inProgress atomic.Bool
}

// NewCoordinator creates a retraining coordinator
func NewCoordinator(config *models.RetrainingConfig, reg *registry.Registry, gate *validation.Gate, orch *deployment.Orchestrator, monitor *monitoring.Monitor, newTrainer TrainerFactory, collector *metrics.Collector, logger *logrus.Logger) *Coordinator {
	if config == nil {
		config = models.DefaultRetrainingConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Coordinator{
		config:       config,
		logger:       logger,
		registry:     reg,
		gate:         gate,
		orchestrator: orch,
		monitor:      monitor,
		newTrainer:   newTrainer,
		collector:    collector,
	}
}

// InProgress reports whether a retraining run is currently executing
func (c *Coordinator) InProgress() bool {
	return c.inProgress.Load()
}

// TriggerRetraining runs the pipeline over the given training features. When
// force is false the run is skipped unless the retraining policy says the
// production model needs replacing. A second concurrent call fails fast with
// a retryable busy error.
func (c *Coordinator) TriggerRetraining(ctx context.Context, features *models.FeatureSet, force bool) (*Result, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		return nil, errors.NewConcurrencyError(errors.CodeRetrainingBusy,
			"retraining already in progress")
	}
	defer c.inProgress.Store(false)

	runID := uuid.New().String()
	started := time.Now()

	if !force {
		if reason := c.skipReason(features); reason != "" {
			c.logger.WithFields(logrus.Fields{
				"run_id": runID,
				"reason": reason,
			}).Info("Retraining skipped")
			c.collector.RecordRetraining("skipped")
			return &Result{RunID: runID, Skipped: true, SkipReason: reason, StartedAt: started}, nil
		}
	}

	c.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"samples": features.SampleCount(),
		"forced":  force,
	}).Info("Starting retraining run")

	trainer := c.newTrainer()
	nextVersion := c.registry.NextVersion(models.BumpMinor)
	trainer.SetVersion(nextVersion.String())

	meta, err := trainer.Train(ctx, features)
	if err != nil {
		c.collector.RecordRetraining("training_failed")
		return nil, errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeTrainingFailed,
			"retraining run failed during model fit")
	}

	art, err := c.registry.CreateVersion(ctx, trainer, models.BumpMinor, map[string]interface{}{
		"retraining":       true,
		"auto_generated":   true,
		"training_samples": meta.TrainingSamples,
		"training_r2":      meta.R2Score,
	}, "automated_retraining")
	if err != nil {
		c.collector.RecordRetraining("registration_failed")
		return nil, err
	}

	// the new model's training distribution becomes the drift reference
	c.monitor.SetReference(features)

	result, err := c.gate.Validate(ctx, art.ID, nil)
	if err != nil {
		c.collector.RecordRetraining("validation_failed")
		return nil, err
	}
	c.collector.RecordValidation(result.Passed)

	run := &Result{
		RunID:      runID,
		ModelID:    art.ID,
		Version:    art.Version.String(),
		Validation: result,
		StartedAt:  started,
	}

	if result.Passed && result.Metrics.R2Score >= c.config.AutoDeployThreshold {
		if err := c.orchestrator.Deploy(ctx, art.ID, models.StrategyBlueGreen, false); err != nil {
			c.collector.RecordRetraining("deploy_failed")
			return nil, err
		}
		run.Deployed = true
	} else {
		c.logger.WithFields(logrus.Fields{
			"model_id":   art.ID,
			"passed":     result.Passed,
			"r2_score":   result.Metrics.R2Score,
			"min_deploy": c.config.AutoDeployThreshold,
		}).Info("Retrained model held back from auto-deploy")
	}

	run.Duration = time.Since(started)
	c.collector.RecordRetraining("completed")

	c.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"model_id": run.ModelID,
		"version":  run.Version,
		"deployed": run.Deployed,
		"duration": run.Duration.String(),
	}).Info("Retraining run finished")

	return run, nil
}

// skipReason applies the retraining policy and returns a human-readable
// reason to skip, or "" when retraining should proceed
func (c *Coordinator) skipReason(features *models.FeatureSet) string {
	if !c.config.Enabled {
		return "retraining disabled by configuration"
	}
	if n := features.SampleCount(); n < c.config.MinSamplesRequired {
		return fmt.Sprintf("insufficient samples: %d < %d required", n, c.config.MinSamplesRequired)
	}

	latest := c.monitor.Latest()
	if latest == nil {
		return "no performance observations yet"
	}
	if latest.R2Score >= c.config.PerformanceThreshold && latest.DriftScore <= c.config.DriftThreshold {
		return fmt.Sprintf("model healthy: r2 %.3f, drift %.3f", latest.R2Score, latest.DriftScore)
	}
	return ""
}
