package registry

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
	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// filePersister writes a fixed payload as the artifact's model file
type filePersister struct {
	payload string
}

func (p *filePersister) SaveTo(_ context.Context, dir string) error {
	return os.WriteFile(filepath.Join(dir, constants.ModelFile), []byte(p.payload), 0o644)
}

func newTestRegistry(t *testing.T) (*Registry, *artifact.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := artifact.NewStore(t.TempDir(), logger)
	require.NoError(t, err)

	reg := NewRegistry(store, logger)
	require.NoError(t, reg.Initialize(context.Background()))
	return reg, store
}

func createVersion(t *testing.T, reg *Registry, bump models.VersionBump) *models.ModelArtifact {
	t.Helper()
	art, err := reg.CreateVersion(context.Background(), &filePersister{payload: time.Now().String()},
		bump, nil, "test")
	require.NoError(t, err)
	return art
}

func passValidation(t *testing.T, reg *Registry, id string) {
	t.Helper()
	require.NoError(t, reg.RecordValidation(context.Background(), id, &models.ValidationResult{
		Passed:         true,
		Metrics:        models.ValidationMetrics{R2Score: 0.9, RMSE: 5, MAE: 4},
		ValidationDate: time.Now().UTC(),
		SampleCount:    50,
	}))
}

func TestFirstVersionIsOneZeroZero(t *testing.T) {
	reg, _ := newTestRegistry(t)

	art := createVersion(t, reg, models.BumpMinor)
	assert.Equal(t, "1.0.0", art.Version.String())
	assert.Equal(t, models.StatusTraining, art.Status)
	assert.Contains(t, art.ID, "health_scoring_1.0.0_")
	assert.NotEmpty(t, art.Checksum)
	assert.Greater(t, art.SizeBytes, int64(0))
	assert.DirExists(t, art.StoragePath)
}

func TestVersionBumpSequence(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.Equal(t, "1.0.0", createVersion(t, reg, models.BumpPatch).Version.String())
	assert.Equal(t, "1.0.1", createVersion(t, reg, models.BumpPatch).Version.String())
	assert.Equal(t, "1.1.0", createVersion(t, reg, models.BumpMinor).Version.String())
	assert.Equal(t, "2.0.0", createVersion(t, reg, models.BumpMajor).Version.String())
	assert.Equal(t, "2.0.0", reg.LatestVersion().String())
}

func TestPromoteKeepsSingleProduction(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first := createVersion(t, reg, models.BumpPatch)
	passValidation(t, reg, first.ID)
	require.NoError(t, reg.Promote(ctx, first.ID))

	second := createVersion(t, reg, models.BumpPatch)
	passValidation(t, reg, second.ID)
	require.NoError(t, reg.Promote(ctx, second.ID))

	current, err := reg.CurrentProduction()
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	demoted, err := reg.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeprecated, demoted.Status)

	var productionCount int
	for _, art := range reg.List() {
		if art.Status == models.StatusProduction {
			productionCount++
		}
	}
	assert.Equal(t, 1, productionCount)
}

func TestPromoteRejectsUnvalidated(t *testing.T) {
	reg, _ := newTestRegistry(t)

	art := createVersion(t, reg, models.BumpPatch)
	err := reg.Promote(context.Background(), art.ID)
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypePrecondition, appErr.Type)

	// nothing was promoted
	_, err = reg.CurrentProduction()
	assert.Error(t, err)
}

func TestRecordValidationFailureMarksFailed(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	art := createVersion(t, reg, models.BumpPatch)
	require.NoError(t, reg.RecordValidation(ctx, art.ID, &models.ValidationResult{
		Passed:  false,
		Metrics: models.ValidationMetrics{R2Score: 0.1},
	}))

	failed, err := reg.Get(art.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, 0.1, failed.PerformanceMetrics["r2_score"])
}

func TestFindLatestDeprecated(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.FindLatestDeprecated()
	assert.Error(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		art := createVersion(t, reg, models.BumpPatch)
		passValidation(t, reg, art.ID)
		require.NoError(t, reg.Promote(ctx, art.ID))
		ids = append(ids, art.ID)
	}

	// 1.0.0 and 1.0.1 are deprecated, 1.0.2 is production
	target, err := reg.FindLatestDeprecated()
	require.NoError(t, err)
	assert.Equal(t, ids[1], target.ID)
	assert.Equal(t, "1.0.1", target.Version.String())
}

func TestRegistrySurvivesReload(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	root := t.TempDir()
	ctx := context.Background()

	store, err := artifact.NewStore(root, logger)
	require.NoError(t, err)
	reg := NewRegistry(store, logger)
	require.NoError(t, reg.Initialize(ctx))

	art := createVersion(t, reg, models.BumpPatch)
	passValidation(t, reg, art.ID)
	require.NoError(t, reg.Promote(ctx, art.ID))

	reloaded := NewRegistry(store, logger)
	require.NoError(t, reloaded.Initialize(ctx))

	current, err := reloaded.CurrentProduction()
	require.NoError(t, err)
	assert.Equal(t, art.ID, current.ID)
	assert.Equal(t, art.Checksum, current.Checksum)
	assert.Equal(t, "1.0.0", reloaded.LatestVersion().String())
}

func TestCorruptDocumentStartsFresh(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store, err := artifact.NewStore(t.TempDir(), logger)
	require.NoError(t, err)

	path := filepath.Join(store.MetadataDir(), constants.RegistryFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	reg := NewRegistry(store, logger)
	require.NoError(t, reg.Initialize(context.Background()))
	assert.Empty(t, reg.List())
}

func TestStagingPointerClearedOnPromote(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	art := createVersion(t, reg, models.BumpPatch)
	passValidation(t, reg, art.ID)

	require.NoError(t, reg.SetStaging(ctx, art.ID))
	assert.Equal(t, art.ID, reg.StagingModel())
	staged, err := reg.Get(art.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStaging, staged.Status)

	require.NoError(t, reg.Promote(ctx, art.ID))
	assert.Empty(t, reg.StagingModel())
}

func TestSetStagingRejectsInvalidTransition(t *testing.T) {
	reg, _ := newTestRegistry(t)

	art := createVersion(t, reg, models.BumpPatch)
	// a training artifact has not been validated yet
	assert.Error(t, reg.SetStaging(context.Background(), art.ID))
}

func TestGetUnknownArtifact(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Get("missing")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeNotFound, appErr.Type)
}

func TestStatusSummary(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	art := createVersion(t, reg, models.BumpPatch)
	passValidation(t, reg, art.ID)
	require.NoError(t, reg.Promote(ctx, art.ID))
	createVersion(t, reg, models.BumpPatch)

	s := reg.Status()
	assert.Equal(t, 2, s.TotalModels)
	require.NotNil(t, s.ProductionModel)
	assert.Equal(t, art.ID, s.ProductionModel.ID)
	assert.Equal(t, "1.0.1", s.LatestVersion)
	assert.Equal(t, 1, s.StatusCounts[string(models.StatusProduction)])
	assert.Equal(t, 1, s.StatusCounts[string(models.StatusTraining)])
}
