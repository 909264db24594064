package constants

// Model family used to derive artifact ids
const ModelFamily = "health_scoring"

// Artifact directory file names. Every artifact directory carries the
// serialized model, its training metadata and the feature-name list.
const (
	ModelFile         = "model.json"
	ModelMetadataFile = "model_metadata.json"
	FeatureNamesFile  = "feature_names.json"
)

// Storage layout under the storage root
const (
	ModelsDir      = "models"
	MetadataDir    = "metadata"
	PerformanceDir = "performance"
	BackupsDir     = "backups"

	RegistryFile = "model_registry.json"
)

// TrainingFeatures is the canonical feature vector extracted from equipment
// telemetry. Order matters: the serialized model stores weights in this
// order.
var TrainingFeatures = []string{
	"current_mean", "current_std", "current_max",
	"voltage_mean", "voltage_std",
	"power_mean", "power_max",
	"temperature_mean", "temperature_max",
	"vibration_mean", "vibration_max",
	"speed_mean", "speed_std",
	"pressure_mean", "pressure_max",
	"flow_rate_mean",
	"torque_mean", "torque_max",
	"battery_level_mean", "battery_level_min",
	"operational_efficiency", "data_quality_score",
	"session_count", "total_runtime_hours",
}

// FeatureDefaults are substituted for features absent from a device's vector
var FeatureDefaults = map[string]float64{
	"battery_level_mean":     100,
	"battery_level_min":      100,
	"operational_efficiency": 1.0,
	"data_quality_score":     1.0,
}
