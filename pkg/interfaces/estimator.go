package interfaces

import "github.com/equipwatch/equipwatch/pkg/models"

// DriftEstimator scores the statistical divergence between the feature
// distribution seen at inference time and a stored reference distribution
// captured at training time. Scores are in [0, 1].
type DriftEstimator interface {
	// SetReference replaces the stored reference distribution
	SetReference(features *models.FeatureSet)
	// EstimateDrift scores the current batch against the reference.
	// Returns 0 when no reference has been set.
	EstimateDrift(features *models.FeatureSet) float64
}

// QualityEstimator scores the completeness and plausibility of a feature
// batch in [0, 1].
type QualityEstimator interface {
	Assess(features *models.FeatureSet) float64
}
