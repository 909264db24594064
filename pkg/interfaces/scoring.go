package interfaces

import (
	"context"

	"github.com/equipwatch/equipwatch/pkg/models"
)

// Trainer is the external training collaborator. Train must return an error
// when the feature set has fewer than 3 samples.
type Trainer interface {
	Train(ctx context.Context, features *models.FeatureSet) (*models.ModelMetadata, error)
}

// Scorer is the external inference collaborator
type Scorer interface {
	// Score predicts a health score for one device's feature vector
	Score(ctx context.Context, deviceID string, features map[string]float64) (*models.HealthScore, error)
	// ScoreAll predicts health scores for every device in the set
	ScoreAll(ctx context.Context, features *models.FeatureSet) (map[string]*models.HealthScore, error)
}

// ModelInstance is a fully-initialized, ready-to-serve model. Deployment
// verifies Loaded before any reference swap.
type ModelInstance interface {
	Scorer
	Loaded() bool
	Metadata() *models.ModelMetadata
}

// ModelLoader instantiates a serving model from an artifact directory
type ModelLoader interface {
	LoadFrom(ctx context.Context, dir string) (ModelInstance, error)
}

// ModelPersister writes a trained model's files (serialized model, metadata
// document, feature-name list) into an artifact directory.
type ModelPersister interface {
	SaveTo(ctx context.Context, dir string) error
}
