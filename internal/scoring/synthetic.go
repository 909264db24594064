package scoring

import (
	"fmt"
	"math/rand"

	"github.com/equipwatch/equipwatch/pkg/models"
)

// syntheticHealthLabel derives a 0-1 health label from equipment condition
// indicators. Used to create training labels in the absence of historical
// maintenance outcomes: battery 30%, temperature 25%, vibration 20%,
// current patterns 15%, operational efficiency 10%.
func (s *Service) syntheticHealthLabel(features map[string]float64) float64 {
	score := 1.0

	batteryMean := featureValue(features, "battery_level_mean")
	batteryMin := featureValue(features, "battery_level_min")
	if batteryMean < 80 {
		score -= 0.1 * (80 - batteryMean) / 80
	}
	if batteryMin < 50 {
		score -= 0.2 * (50 - batteryMin) / 50
	}

	tempMean := featureValue(features, "temperature_mean")
	tempMax := featureValue(features, "temperature_max")
	if tempMean > 40 {
		score -= 0.1 * (tempMean - 40) / 60
	}
	if tempMax > 60 {
		score -= 0.15 * (tempMax - 60) / 40
	}

	vibMean := featureValue(features, "vibration_mean")
	vibMax := featureValue(features, "vibration_max")
	if vibMean > 0.5 {
		score -= 0.1 * (vibMean - 0.5) / 0.5
	}
	if vibMax > 1.0 {
		score -= 0.1 * (vibMax - 1.0) / 1.0
	}

	currentMean := featureValue(features, "current_mean")
	currentStd := featureValue(features, "current_std")
	if currentMean > 15 {
		score -= 0.05 * (currentMean - 15) / 15
	}
	if currentStd > 5 {
		score -= 0.1 * (currentStd - 5) / 5
	}

	efficiency := featureValue(features, "operational_efficiency")
	if efficiency < 0.8 {
		score -= 0.1 * (0.8 - efficiency) / 0.8
	}

	score += s.rng.NormFloat64() * 0.05

	return clamp(score, 0, 1)
}

// SyntheticValidationSet generates a deterministic proxy dataset for the
// validation gate when no held-out data is supplied: plausible telemetry
// feature vectors spanning healthy to degraded equipment, with ground-truth
// labels from the same condition-indicator heuristic used for training.
func SyntheticValidationSet(n int, seed int64) (*models.FeatureSet, map[string]float64) {
	rng := rand.New(rand.NewSource(seed))
	svc := &Service{rng: rand.New(rand.NewSource(seed + 1))}

	features := make(map[string]map[string]float64, n)
	outcomes := make(map[string]float64, n)

	for i := 0; i < n; i++ {
		// degradation ramps from pristine to badly worn across the set
		wear := float64(i) / float64(n)
		vector := syntheticDeviceFeatures(rng, wear)

		id := fmt.Sprintf("synthetic-device-%03d", i)
		features[id] = vector
		outcomes[id] = svc.syntheticHealthLabel(vector) * 100
	}

	return &models.FeatureSet{Features: features}, outcomes
}

// syntheticDeviceFeatures produces one telemetry feature vector at the given
// wear level (0 = new, 1 = failing)
func syntheticDeviceFeatures(rng *rand.Rand, wear float64) map[string]float64 {
	jitter := func(scale float64) float64 { return rng.NormFloat64() * scale }

	currentMean := 5 + wear*12 + jitter(0.5)
	tempMean := 25 + wear*35 + jitter(1.5)
	vibMean := 0.1 + wear*0.9 + jitter(0.02)
	battery := 100 - wear*60 + jitter(2)

	return map[string]float64{
		"current_mean":           currentMean,
		"current_std":            1 + wear*6 + jitter(0.2),
		"current_max":            currentMean * 1.5,
		"voltage_mean":           230 + jitter(2),
		"voltage_std":            2 + wear*3,
		"power_mean":             1000 + wear*800 + jitter(30),
		"power_max":              1500 + wear*1200,
		"temperature_mean":       tempMean,
		"temperature_max":        tempMean + 15 + wear*10,
		"vibration_mean":         vibMean,
		"vibration_max":          vibMean * 2.2,
		"speed_mean":             1450 - wear*120 + jitter(10),
		"speed_std":              10 + wear*40,
		"pressure_mean":          4 + jitter(0.1),
		"pressure_max":           5.5 + wear,
		"flow_rate_mean":         12 - wear*3,
		"torque_mean":            40 + wear*10,
		"torque_max":             55 + wear*18,
		"battery_level_mean":     clamp(battery, 0, 100),
		"battery_level_min":      clamp(battery-15-wear*20, 0, 100),
		"operational_efficiency": clamp(1-wear*0.5+jitter(0.02), 0, 1),
		"data_quality_score":     clamp(1-wear*0.2, 0, 1),
		"session_count":          float64(20 + rng.Intn(30)),
		"total_runtime_hours":    200 + wear*5000 + jitter(20),
	}
}
