package lifecycle

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/artifact"
	"github.com/equipwatch/equipwatch/internal/deployment"
	"github.com/equipwatch/equipwatch/internal/monitoring"
	"github.com/equipwatch/equipwatch/internal/observability/metrics"
	"github.com/equipwatch/equipwatch/internal/registry"
	"github.com/equipwatch/equipwatch/internal/retraining"
	"github.com/equipwatch/equipwatch/internal/scoring"
	"github.com/equipwatch/equipwatch/internal/validation"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// Config aggregates the lifecycle subsystem configuration
type Config struct {
	StorageRoot string                    `json:"storage_root" yaml:"storage_root" mapstructure:"storage_root"`
	Gate        *validation.GateConfig    `json:"validation" yaml:"validation" mapstructure:"validation"`
	Deployment  *deployment.Config        `json:"deployment" yaml:"deployment" mapstructure:"deployment"`
	Monitoring  *monitoring.MonitorConfig `json:"monitoring" yaml:"monitoring" mapstructure:"monitoring"`
	Retraining  *models.RetrainingConfig  `json:"retraining" yaml:"retraining" mapstructure:"retraining"`
}

// DefaultConfig returns the default lifecycle configuration rooted at
// ./data/ml
func DefaultConfig() *Config {
	return &Config{
		StorageRoot: filepath.Join("data", "ml"),
		Gate:        validation.DefaultGateConfig(),
		Deployment:  deployment.DefaultConfig(),
		Monitoring:  monitoring.DefaultMonitorConfig(),
		Retraining:  models.DefaultRetrainingConfig(),
	}
}

// Manager is the facade over the model lifecycle subsystem: registry,
// validation gate, deployment orchestrator, performance monitor and
// retraining coordinator, sharing one artifact store.
type Manager struct {
	config       *Config
	logger       *logrus.Logger
	collector    *metrics.Collector
	store        *artifact.Store
	registry     *registry.Registry
	gate         *validation.Gate
	orchestrator *deployment.Orchestrator
	monitor      *monitoring.Monitor
	coordinator  *retraining.Coordinator
}

// NewManager wires the lifecycle subsystem. Call Initialize before use.
func NewManager(config *Config, collector *metrics.Collector, logger *logrus.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	store, err := artifact.NewStore(config.StorageRoot, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry(store, logger)
	loader := scoring.NewLoader(logger)
	gate := validation.NewGate(config.Gate, reg, loader, logger)
	orch := deployment.NewOrchestrator(config.Deployment, reg, store, loader, collector, logger)

	drift := monitoring.NewPSIDriftEstimator()
	quality := monitoring.NewCompletenessQualityEstimator()
	monitor := monitoring.NewMonitor(config.Monitoring, orch, drift, quality,
		store.PerformanceDir(), collector, logger)

	trainingScratch := filepath.Join(config.StorageRoot, "training")
	coordinator := retraining.NewCoordinator(config.Retraining, reg, gate, orch, monitor,
		func() retraining.TrainablePersister {
			return scoring.NewService(trainingScratch, logger)
		}, collector, logger)

	return &Manager{
		config:       config,
		logger:       logger,
		collector:    collector,
		store:        store,
		registry:     reg,
		gate:         gate,
		orchestrator: orch,
		monitor:      monitor,
		coordinator:  coordinator,
	}, nil
}

// Initialize loads persisted state: the registry document, the performance
// history and, when the registry names a production model, the serving
// instance itself. A production model that fails to load is logged and left
// unserved rather than blocking startup.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.registry.Initialize(ctx); err != nil {
		return err
	}
	if err := m.monitor.LoadHistory(); err != nil {
		m.logger.WithError(err).Warn("Failed to load performance history")
	}
	if err := m.orchestrator.Restore(ctx); err != nil {
		m.logger.WithError(err).Warn("Failed to restore production model, serving path is empty")
	}
	return nil
}

// Registry exposes the model catalogue
func (m *Manager) Registry() *registry.Registry { return m.registry }

// TrainModel fits a new model on the feature set and registers it as a new
// artifact with the requested version bump. The new artifact starts in
// TRAINING status; it still has to pass the validation gate before deploying.
func (m *Manager) TrainModel(ctx context.Context, features *models.FeatureSet, bump models.VersionBump, createdBy string) (*models.ModelArtifact, error) {
	svc := scoring.NewService(filepath.Join(m.config.StorageRoot, "training"), m.logger)
	svc.SetVersion(m.registry.NextVersion(bump).String())

	meta, err := svc.Train(ctx, features)
	if err != nil {
		return nil, err
	}

	art, err := m.registry.CreateVersion(ctx, svc, bump, map[string]interface{}{
		"training_samples": meta.TrainingSamples,
		"training_r2":      meta.R2Score,
		"cross_val_score":  meta.CrossValScore,
	}, createdBy)
	if err != nil {
		return nil, err
	}

	// future drift is measured against this training distribution
	m.monitor.SetReference(features)

	return art, nil
}

// ValidateModel runs the validation gate on an artifact
func (m *Manager) ValidateModel(ctx context.Context, artifactID string, data *models.ValidationData) (*models.ValidationResult, error) {
	result, err := m.gate.Validate(ctx, artifactID, data)
	if err != nil {
		return nil, err
	}
	m.collector.RecordValidation(result.Passed)
	return result, nil
}

// DeployModel promotes an artifact to production
func (m *Manager) DeployModel(ctx context.Context, artifactID string, strategy models.DeploymentStrategy, force bool) error {
	return m.orchestrator.Deploy(ctx, artifactID, strategy, force)
}

// RollbackModel returns production to a previous artifact. An empty
// targetVersion picks the most recently deprecated version.
func (m *Manager) RollbackModel(ctx context.Context, targetVersion string) (*models.ModelArtifact, error) {
	return m.orchestrator.Rollback(ctx, targetVersion)
}

// MonitorPerformance runs one monitoring observation of the production model
func (m *Manager) MonitorPerformance(ctx context.Context, features *models.FeatureSet, outcomes map[string]float64) (*models.PerformanceMetrics, error) {
	return m.monitor.Monitor(ctx, features, outcomes)
}

// TriggerRetraining runs the retraining pipeline
func (m *Manager) TriggerRetraining(ctx context.Context, features *models.FeatureSet, force bool) (*retraining.Result, error) {
	return m.coordinator.TriggerRetraining(ctx, features, force)
}

// Score predicts health scores with the production model
func (m *Manager) Score(ctx context.Context, features *models.FeatureSet) (map[string]*models.HealthScore, error) {
	active := m.orchestrator.ActiveModel()
	if active == nil {
		return nil, errors.NewPreconditionError(errors.CodeNoProduction,
			"no production model deployed")
	}

	start := time.Now()
	scores, err := active.Instance.ScoreAll(ctx, features)
	if err != nil {
		return nil, err
	}
	if features.SampleCount() > 0 {
		m.collector.ObserveScoringLatency(time.Since(start).Seconds())
	}
	return scores, nil
}

// Status is a point-in-time view of the whole lifecycle subsystem
type Status struct {
	Registry             *registry.Summary            `json:"registry"`
	ActiveModel          *ActiveModelStatus           `json:"active_model,omitempty"`
	RetrainingInProgress bool                         `json:"retraining_in_progress"`
	RetrainingEnabled    bool                         `json:"retraining_enabled"`
	RecentPerformance    []*models.PerformanceMetrics `json:"recent_performance"`
	GeneratedAt          time.Time                    `json:"generated_at"`
}

// ActiveModelStatus describes the model bound to the serving path
type ActiveModelStatus struct {
	ModelID    string                `json:"model_id"`
	Version    string                `json:"version"`
	Strategy   string                `json:"strategy"`
	DeployedAt time.Time             `json:"deployed_at"`
	Metadata   *models.ModelMetadata `json:"metadata,omitempty"`
}

// Status reports registry, serving and retraining state
func (m *Manager) Status(ctx context.Context) *Status {
	s := &Status{
		Registry:             m.registry.Status(),
		RetrainingInProgress: m.coordinator.InProgress(),
		RetrainingEnabled:    m.config.Retraining.Enabled,
		RecentPerformance:    m.monitor.Recent(10),
		GeneratedAt:          time.Now().UTC(),
	}
	if active := m.orchestrator.ActiveModel(); active != nil {
		s.ActiveModel = &ActiveModelStatus{
			ModelID:    active.Artifact.ID,
			Version:    active.Artifact.Version.String(),
			Strategy:   string(active.Strategy),
			DeployedAt: active.DeployedAt,
			Metadata:   active.Instance.Metadata(),
		}
	}
	return s
}
