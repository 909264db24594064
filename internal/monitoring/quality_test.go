package monitoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/equipwatch/equipwatch/internal/scoring"
	"github.com/equipwatch/equipwatch/pkg/constants"
	"github.com/equipwatch/equipwatch/pkg/models"
)

func TestQualityFullVectors(t *testing.T) {
	est := NewCompletenessQualityEstimator()
	features, _ := scoring.SyntheticValidationSet(20, 1)
	assert.InDelta(t, 1.0, est.Assess(features), 1e-9)
}

func TestQualityEmptyBatch(t *testing.T) {
	est := NewCompletenessQualityEstimator()
	assert.Equal(t, 0.0, est.Assess(nil))
	assert.Equal(t, 0.0, est.Assess(&models.FeatureSet{}))
}

func TestQualityPenalizesMissingAndInvalid(t *testing.T) {
	est := NewCompletenessQualityEstimator()

	half := make(map[string]float64)
	for i, name := range constants.TrainingFeatures {
		if i%2 == 0 {
			half[name] = 1.0
		}
	}
	score := est.Assess(&models.FeatureSet{Features: map[string]map[string]float64{
		"sparse": half,
	}})
	assert.InDelta(t, 0.5, score, 0.05)

	invalid := make(map[string]float64)
	for _, name := range constants.TrainingFeatures {
		invalid[name] = math.NaN()
	}
	score = est.Assess(&models.FeatureSet{Features: map[string]map[string]float64{
		"broken": invalid,
	}})
	assert.Equal(t, 0.0, score)
}
