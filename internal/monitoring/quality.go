package monitoring

import (
	"math"

	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// CompletenessQualityEstimator scores a feature batch by how complete and
// usable its vectors are: the fraction of canonical training features present
// with finite values, averaged over devices. An empty batch scores 0.
type CompletenessQualityEstimator struct{}

// NewCompletenessQualityEstimator creates a quality estimator
func NewCompletenessQualityEstimator() *CompletenessQualityEstimator {
	return &CompletenessQualityEstimator{}
}

// Assess scores the batch in [0, 1]
func (e *CompletenessQualityEstimator) Assess(features *models.FeatureSet) float64 {
	if features.SampleCount() == 0 {
		return 0
	}

	expected := float64(len(constants.TrainingFeatures))
	var total float64
	for _, vector := range features.Features {
		var usable float64
		for _, name := range constants.TrainingFeatures {
			v, ok := vector[name]
			if ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				usable++
			}
		}
		total += usable / expected
	}

	return clamp01(total / float64(features.SampleCount()))
}
