package lifecycle

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equipwatch/equipwatch/internal/scoring"
	"github.com/equipwatch/equipwatch/internal/validation"
	"github.com/equipwatch/equipwatch/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	// keep gate outcomes deterministic for the test models
	cfg.Gate = &validation.GateConfig{R2Threshold: -100, SyntheticSeed: 1}
	cfg.Retraining.MinSamplesRequired = 10
	cfg.Retraining.AutoDeployThreshold = -100

	m, err := NewManager(cfg, nil, logger)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))
	return m
}

func TestLifecycleEndToEnd(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	features, outcomes := scoring.SyntheticValidationSet(80, 7)

	// train the first generation
	first, err := m.TrainModel(ctx, features, models.BumpPatch, "tester")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", first.Version.String())
	assert.Equal(t, models.StatusTraining, first.Status)

	// scoring is refused until something is deployed
	_, err = m.Score(ctx, features)
	require.Error(t, err)

	// validate and deploy
	result, err := m.ValidateModel(ctx, first.ID, &models.ValidationData{
		Features: features,
		Outcomes: outcomes,
	})
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.NoError(t, m.DeployModel(ctx, first.ID, models.StrategyBlueGreen, false))

	scores, err := m.Score(ctx, features)
	require.NoError(t, err)
	assert.Len(t, scores, 80)

	// one monitoring observation of the live model
	pm, err := m.MonitorPerformance(ctx, features, outcomes)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", pm.ModelVersion)

	// a patch release replaces the first generation
	patch, err := m.TrainModel(ctx, features, models.BumpPatch, "tester")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", patch.Version.String())
	_, err = m.ValidateModel(ctx, patch.ID, nil)
	require.NoError(t, err)
	require.NoError(t, m.DeployModel(ctx, patch.ID, models.StrategyBlueGreen, false))

	// then a minor release replaces the patch
	minor, err := m.TrainModel(ctx, features, models.BumpMinor, "tester")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", minor.Version.String())
	_, err = m.ValidateModel(ctx, minor.ID, nil)
	require.NoError(t, err)
	require.NoError(t, m.DeployModel(ctx, minor.ID, models.StrategyBlueGreen, false))

	status := m.Status(ctx)
	require.NotNil(t, status.ActiveModel)
	assert.Equal(t, minor.ID, status.ActiveModel.ModelID)
	assert.Equal(t, 3, status.Registry.TotalModels)

	// rolling back restores the most recently created deprecated model, 1.0.1
	target, err := m.RollbackModel(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, patch.ID, target.ID)

	status = m.Status(ctx)
	require.NotNil(t, status.ActiveModel)
	assert.Equal(t, "1.0.1", status.ActiveModel.Version)
}

func TestManagerRetrainingPipeline(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	features, _ := scoring.SyntheticValidationSet(60, 3)

	run, err := m.TriggerRetraining(ctx, features, true)
	require.NoError(t, err)
	assert.True(t, run.Deployed)

	status := m.Status(ctx)
	require.NotNil(t, status.ActiveModel)
	assert.Equal(t, run.ModelID, status.ActiveModel.ModelID)
}

func TestManagerStateSurvivesRestart(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	ctx := context.Background()
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.StorageRoot = root
	cfg.Gate = &validation.GateConfig{R2Threshold: -100, SyntheticSeed: 1}

	m, err := NewManager(cfg, nil, logger)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(ctx))

	features, _ := scoring.SyntheticValidationSet(60, 7)
	art, err := m.TrainModel(ctx, features, models.BumpPatch, "tester")
	require.NoError(t, err)
	_, err = m.ValidateModel(ctx, art.ID, nil)
	require.NoError(t, err)
	require.NoError(t, m.DeployModel(ctx, art.ID, models.StrategyBlueGreen, false))
	_, err = m.MonitorPerformance(ctx, features, nil)
	require.NoError(t, err)

	// a new manager over the same storage resumes serving the same model
	restarted, err := NewManager(cfg, nil, logger)
	require.NoError(t, err)
	require.NoError(t, restarted.Initialize(ctx))

	status := restarted.Status(ctx)
	require.NotNil(t, status.ActiveModel)
	assert.Equal(t, art.ID, status.ActiveModel.ModelID)
	assert.NotEmpty(t, status.RecentPerformance)

	scores, err := restarted.Score(ctx, features)
	require.NoError(t, err)
	assert.Len(t, scores, 60)
}

func TestManagerStatusEmpty(t *testing.T) {
	m := newTestManager(t)

	status := m.Status(context.Background())
	assert.Nil(t, status.ActiveModel)
	assert.Equal(t, 0, status.Registry.TotalModels)
	assert.False(t, status.RetrainingInProgress)
	assert.True(t, status.RetrainingEnabled)
}
