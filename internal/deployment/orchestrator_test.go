package deployment

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equipwatch/equipwatch/internal/artifact"
	"github.com/equipwatch/equipwatch/internal/registry"
	"github.com/equipwatch/equipwatch/internal/scoring"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/models"
)

type fixture struct {
	registry     *registry.Registry
	store        *artifact.Store
	orchestrator *Orchestrator
	logger       *logrus.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := artifact.NewStore(t.TempDir(), logger)
	require.NoError(t, err)
	reg := registry.NewRegistry(store, logger)
	require.NoError(t, reg.Initialize(context.Background()))

	orch := NewOrchestrator(DefaultConfig(), reg, store, scoring.NewLoader(logger), nil, logger)
	return &fixture{registry: reg, store: store, orchestrator: orch, logger: logger}
}

// trainArtifact registers a freshly trained model and returns its artifact
func (f *fixture) trainArtifact(t *testing.T, seed int64) *models.ModelArtifact {
	t.Helper()
	ctx := context.Background()

	svc := scoring.NewService(t.TempDir(), f.logger)
	features, _ := scoring.SyntheticValidationSet(60, seed)
	_, err := svc.Train(ctx, features)
	require.NoError(t, err)

	art, err := f.registry.CreateVersion(ctx, svc, models.BumpPatch, nil, "test")
	require.NoError(t, err)
	return art
}

func (f *fixture) validatedArtifact(t *testing.T, seed int64) *models.ModelArtifact {
	t.Helper()
	art := f.trainArtifact(t, seed)
	require.NoError(t, f.registry.RecordValidation(context.Background(), art.ID, &models.ValidationResult{
		Passed:         true,
		Metrics:        models.ValidationMetrics{R2Score: 0.92, RMSE: 4.1, MAE: 3.2},
		ValidationDate: time.Now().UTC(),
		SampleCount:    60,
	}))
	return art
}

func TestDeployRequiresValidation(t *testing.T) {
	f := newFixture(t)
	art := f.trainArtifact(t, 1)

	err := f.orchestrator.Deploy(context.Background(), art.ID, models.StrategyBlueGreen, false)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotEligible, appErr.Code)

	assert.Nil(t, f.orchestrator.ActiveModel())
}

func TestDeployValidatedArtifact(t *testing.T) {
	f := newFixture(t)
	art := f.validatedArtifact(t, 1)

	require.NoError(t, f.orchestrator.Deploy(context.Background(), art.ID, models.StrategyBlueGreen, false))

	active := f.orchestrator.ActiveModel()
	require.NotNil(t, active)
	assert.Equal(t, art.ID, active.Artifact.ID)
	assert.True(t, active.Instance.Loaded())

	current, err := f.registry.CurrentProduction()
	require.NoError(t, err)
	assert.Equal(t, art.ID, current.ID)
}

func TestDeployForceBypassesGate(t *testing.T) {
	f := newFixture(t)
	art := f.trainArtifact(t, 1)

	err := f.orchestrator.Deploy(context.Background(), art.ID, models.StrategyBlueGreen, true)
	// force skips eligibility, but the registry state machine still rejects
	// training -> production
	require.Error(t, err)
	assert.Nil(t, f.orchestrator.ActiveModel(), "failed promotion must not leave a half-deployed model")
}

func TestAllStrategiesShareBlueGreenPrimitive(t *testing.T) {
	for _, strategy := range []models.DeploymentStrategy{
		models.StrategyBlueGreen, models.StrategyCanary, models.StrategyRolling, models.StrategyImmediate,
	} {
		f := newFixture(t)
		art := f.validatedArtifact(t, 1)

		require.NoError(t, f.orchestrator.Deploy(context.Background(), art.ID, strategy, false))
		active := f.orchestrator.ActiveModel()
		require.NotNil(t, active, "strategy %s", strategy)
		assert.Equal(t, strategy, active.Strategy)
	}
}

func TestDeployRejectsUnknownStrategy(t *testing.T) {
	f := newFixture(t)
	art := f.validatedArtifact(t, 1)

	err := f.orchestrator.Deploy(context.Background(), art.ID, "shadow", false)
	assert.Error(t, err)
}

func TestRollbackToLatestDeprecated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.validatedArtifact(t, 1)
	require.NoError(t, f.orchestrator.Deploy(ctx, first.ID, models.StrategyBlueGreen, false))
	second := f.validatedArtifact(t, 2)
	require.NoError(t, f.orchestrator.Deploy(ctx, second.ID, models.StrategyBlueGreen, false))

	target, err := f.orchestrator.Rollback(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, target.ID)

	active := f.orchestrator.ActiveModel()
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.Artifact.ID)

	current, err := f.registry.CurrentProduction()
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)

	// the replaced model is deprecated, available for a future rollback
	demoted, err := f.registry.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeprecated, demoted.Status)
}

func TestRollbackToExplicitVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.validatedArtifact(t, 1) // 1.0.0
	require.NoError(t, f.orchestrator.Deploy(ctx, first.ID, models.StrategyBlueGreen, false))
	second := f.validatedArtifact(t, 2) // 1.0.1
	require.NoError(t, f.orchestrator.Deploy(ctx, second.ID, models.StrategyBlueGreen, false))
	third := f.validatedArtifact(t, 3) // 1.0.2
	require.NoError(t, f.orchestrator.Deploy(ctx, third.ID, models.StrategyBlueGreen, false))

	target, err := f.orchestrator.Rollback(ctx, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, first.ID, target.ID)
	assert.Equal(t, "1.0.0", f.orchestrator.ActiveModel().Artifact.Version.String())
}

func TestRollbackWithNoTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// one production model, nothing deprecated to fall back to
	art := f.validatedArtifact(t, 1)
	require.NoError(t, f.orchestrator.Deploy(ctx, art.ID, models.StrategyBlueGreen, false))

	_, err := f.orchestrator.Rollback(ctx, "")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNoRollbackTarget, appErr.Code)
}

func TestRollbackRequiresProductionModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// a validated artifact exists but nothing has ever been deployed
	art := f.validatedArtifact(t, 1)

	_, err := f.orchestrator.Rollback(ctx, art.Version.String())
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypePrecondition, appErr.Type)
	assert.Equal(t, errors.CodeNoProduction, appErr.Code)

	// the candidate was not promoted
	unchanged, err := f.registry.Get(art.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidation, unchanged.Status)
	assert.Nil(t, f.orchestrator.ActiveModel())
}

func TestRollbackVerifiesTargetBeforeSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.validatedArtifact(t, 1)
	require.NoError(t, f.orchestrator.Deploy(ctx, first.ID, models.StrategyBlueGreen, false))
	second := f.validatedArtifact(t, 2)
	require.NoError(t, f.orchestrator.Deploy(ctx, second.ID, models.StrategyBlueGreen, false))

	// corrupt the rollback target's files
	require.NoError(t, os.RemoveAll(f.store.ArtifactDir(first.ID)))

	_, err := f.orchestrator.Rollback(ctx, "")
	require.Error(t, err)

	// the current model keeps serving
	active := f.orchestrator.ActiveModel()
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.Artifact.ID)
	current, err := f.registry.CurrentProduction()
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
}

func TestRestoreRebindsProductionModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	art := f.validatedArtifact(t, 1)
	require.NoError(t, f.orchestrator.Deploy(ctx, art.ID, models.StrategyBlueGreen, false))

	// a fresh orchestrator over the same registry, as after a restart
	restarted := NewOrchestrator(DefaultConfig(), f.registry, f.store, scoring.NewLoader(f.logger), nil, f.logger)
	require.Nil(t, restarted.ActiveModel())
	require.NoError(t, restarted.Restore(ctx))

	active := restarted.ActiveModel()
	require.NotNil(t, active)
	assert.Equal(t, art.ID, active.Artifact.ID)
}

func TestRestoreWithEmptyRegistry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orchestrator.Restore(context.Background()))
	assert.Nil(t, f.orchestrator.ActiveModel())
}

func TestDeployBacksUpOutgoingModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.validatedArtifact(t, 1)
	require.NoError(t, f.orchestrator.Deploy(ctx, first.ID, models.StrategyBlueGreen, false))
	second := f.validatedArtifact(t, 2)
	require.NoError(t, f.orchestrator.Deploy(ctx, second.ID, models.StrategyBlueGreen, false))

	entries, err := os.ReadDir(filepath.Join(f.store.Root(), "backups"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "replacing the production model should leave a backup")
}
