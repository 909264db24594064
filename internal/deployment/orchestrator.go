package deployment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/artifact"
	"github.com/equipwatch/equipwatch/internal/observability/metrics"
	"github.com/equipwatch/equipwatch/internal/registry"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/interfaces"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// ActiveModel is the model currently bound to the serving path. Readers get
// it through an atomic pointer, so a request sees either the old model or the
// new one, never a half-swapped state.
type ActiveModel struct {
	Artifact   *models.ModelArtifact
	Instance   interfaces.ModelInstance
	Strategy   models.DeploymentStrategy
	DeployedAt time.Time
}

// Config configures the deployment orchestrator
type Config struct {
	// BackupBeforeDeploy snapshots the outgoing production artifact before
	// each swap. Backup failure is logged, never blocks the deployment.
	BackupBeforeDeploy bool `json:"backup_before_deploy" yaml:"backup_before_deploy" mapstructure:"backup_before_deploy"`
}

// DefaultConfig returns the default deployment configuration
func DefaultConfig() *Config {
	return &Config{BackupBeforeDeploy: true}
}

// Orchestrator moves validated artifacts into production. All strategies
// reduce to the blue-green primitive: fully load the candidate off to the
// side, then replace the serving reference in one atomic store.
type Orchestrator struct {
	config    *Config
	logger    *logrus.Logger
	registry  *registry.Registry
	store     *artifact.Store
	loader    interfaces.ModelLoader
	collector *metrics.Collector

	// deployMu serializes deployments and rollbacks; readers never take it
	deployMu sync.Mutex
	active   atomic.Pointer[ActiveModel]
}

// NewOrchestrator creates a deployment orchestrator
func NewOrchestrator(config *Config, reg *registry.Registry, store *artifact.Store, loader interfaces.ModelLoader, collector *metrics.Collector, logger *logrus.Logger) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		config:    config,
		logger:    logger,
		registry:  reg,
		store:     store,
		loader:    loader,
		collector: collector,
	}
}

// ActiveModel returns the model currently serving scores, or nil when none
// has been deployed. Lock-free; safe from any goroutine.
func (o *Orchestrator) ActiveModel() *ActiveModel {
	return o.active.Load()
}

// Deploy promotes the artifact to production. The candidate must have passed
// the validation gate unless force is set; the swap happens only after the
// candidate is fully loaded and verified, and a failure at any step leaves
// the previous production model serving.
func (o *Orchestrator) Deploy(ctx context.Context, artifactID string, strategy models.DeploymentStrategy, force bool) error {
	o.deployMu.Lock()
	defer o.deployMu.Unlock()

	if strategy == "" {
		strategy = models.StrategyBlueGreen
	}
	switch strategy {
	case models.StrategyBlueGreen, models.StrategyCanary, models.StrategyRolling, models.StrategyImmediate:
	default:
		return errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("unknown deployment strategy: %s", strategy))
	}

	art, err := o.registry.Get(artifactID)
	if err != nil {
		o.collector.RecordDeployment(string(strategy), "error")
		return err
	}

	if !force {
		if !art.Status.Deployable() {
			o.collector.RecordDeployment(string(strategy), "rejected")
			return errors.NewPreconditionError(errors.CodeNotEligible,
				fmt.Sprintf("artifact %s has status %s, expected validation or staging", artifactID, art.Status)).
				WithContext("model_id", artifactID)
		}
		if art.ValidationResults == nil || !art.ValidationResults.Passed {
			o.collector.RecordDeployment(string(strategy), "rejected")
			return errors.NewPreconditionError(errors.CodeNotEligible,
				fmt.Sprintf("artifact %s has not passed validation", artifactID)).
				WithContext("model_id", artifactID)
		}
	}

	if err := o.blueGreen(ctx, art, strategy); err != nil {
		o.collector.RecordDeployment(string(strategy), "error")
		return err
	}

	o.collector.RecordDeployment(string(strategy), "success")
	return nil
}

// blueGreen loads the candidate, backs up the outgoing production artifact,
// swaps the serving reference and then records the promotion in the registry.
// If the registry write fails the previous serving reference is restored.
func (o *Orchestrator) blueGreen(ctx context.Context, art *models.ModelArtifact, strategy models.DeploymentStrategy) error {
	instance, err := o.loader.LoadFrom(ctx, art.StoragePath)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeLoadFailure, errors.CodeModelLoadFailed,
			fmt.Sprintf("failed to load candidate %s", art.ID))
	}
	if !instance.Loaded() {
		return errors.NewLoadFailureError(errors.CodeModelLoadFailed,
			fmt.Sprintf("candidate %s loaded but reports not ready", art.ID))
	}

	// the candidate is loaded and verified but not yet promoted
	if err := o.registry.SetStaging(ctx, art.ID); err != nil {
		o.logger.WithError(err).WithField("model_id", art.ID).
			Debug("Candidate not recorded as staging, continuing")
	}

	if o.config.BackupBeforeDeploy {
		if current, err := o.registry.CurrentProduction(); err == nil {
			if _, err := o.store.Backup(current.ID); err != nil {
				o.logger.WithError(err).WithField("model_id", current.ID).
					Warn("Backup of outgoing production model failed, continuing deployment")
			}
		}
	}

	previous := o.active.Load()
	o.active.Store(&ActiveModel{
		Artifact:   art,
		Instance:   instance,
		Strategy:   strategy,
		DeployedAt: time.Now().UTC(),
	})

	if err := o.registry.Promote(ctx, art.ID); err != nil {
		// registry rejected the promotion; put the old model back
		o.active.Store(previous)
		return err
	}

	o.logger.WithFields(logrus.Fields{
		"model_id": art.ID,
		"version":  art.Version.String(),
		"strategy": string(strategy),
	}).Info("Deployed model to production")

	return nil
}

// Rollback returns production to a previously deprecated artifact. With an
// empty targetVersion the most recently created deprecated artifact is
// chosen. There must be a production model to roll back from, and the target
// is fully loaded and verified before the swap; an unloadable target aborts
// the rollback with the current model still serving.
func (o *Orchestrator) Rollback(ctx context.Context, targetVersion string) (*models.ModelArtifact, error) {
	o.deployMu.Lock()
	defer o.deployMu.Unlock()

	current, err := o.registry.CurrentProduction()
	if err != nil {
		if errors.Is(err, errors.ErrNoProductionModel) {
			return nil, errors.NewPreconditionError(errors.CodeNoProduction,
				"no production model to roll back from")
		}
		return nil, err
	}

	var target *models.ModelArtifact
	if targetVersion == "" {
		target, err = o.registry.FindLatestDeprecated()
	} else {
		var version models.ModelVersion
		version, err = models.ParseVersion(targetVersion)
		if err == nil {
			target, err = o.registry.FindByVersion(version)
		}
	}
	if err != nil {
		return nil, err
	}

	if current.ID == target.ID {
		return nil, errors.NewPreconditionError(errors.CodeNotEligible,
			fmt.Sprintf("artifact %s is already the production model", target.ID))
	}

	instance, err := o.loader.LoadFrom(ctx, target.StoragePath)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeLoadFailure, errors.CodeModelLoadFailed,
			fmt.Sprintf("rollback target %s failed to load, keeping current model", target.ID))
	}
	if !instance.Loaded() {
		return nil, errors.NewLoadFailureError(errors.CodeModelLoadFailed,
			fmt.Sprintf("rollback target %s loaded but reports not ready", target.ID))
	}

	previous := o.active.Load()
	o.active.Store(&ActiveModel{
		Artifact:   target,
		Instance:   instance,
		Strategy:   models.StrategyBlueGreen,
		DeployedAt: time.Now().UTC(),
	})

	if err := o.registry.Promote(ctx, target.ID); err != nil {
		o.active.Store(previous)
		return nil, err
	}

	o.collector.RecordRollback()
	o.logger.WithFields(logrus.Fields{
		"model_id": target.ID,
		"version":  target.Version.String(),
	}).Warn("Rolled back production model")

	return target, nil
}

// Restore binds an already-promoted production artifact to the serving path
// without touching the registry. Used at startup to resume serving the model
// the registry says is in production.
func (o *Orchestrator) Restore(ctx context.Context) error {
	o.deployMu.Lock()
	defer o.deployMu.Unlock()

	current, err := o.registry.CurrentProduction()
	if err != nil {
		if errors.Is(err, errors.ErrNoProductionModel) {
			return nil // nothing to restore
		}
		return err
	}

	instance, err := o.loader.LoadFrom(ctx, current.StoragePath)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeLoadFailure, errors.CodeModelLoadFailed,
			fmt.Sprintf("failed to restore production model %s", current.ID))
	}

	o.active.Store(&ActiveModel{
		Artifact:   current,
		Instance:   instance,
		Strategy:   models.StrategyBlueGreen,
		DeployedAt: time.Now().UTC(),
	})

	o.logger.WithFields(logrus.Fields{
		"model_id": current.ID,
		"version":  current.Version.String(),
	}).Info("Restored production model from registry")

	return nil
}
