package models

import "time"

// Risk levels assigned to health scores
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
)

// ConfidenceInterval bounds a health score prediction on the 0-100 scale
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ExplanatoryFactor is one feature's contribution to a health score
type ExplanatoryFactor struct {
	Feature    string  `json:"feature"`
	Value      float64 `json:"value"`
	Importance float64 `json:"importance"`
	Impact     string  `json:"impact"`
}

// HealthScore is a scored equipment health prediction for one device
type HealthScore struct {
	DeviceID           string              `json:"device_id"`
	HealthScore        float64             `json:"health_score"`
	ConfidenceInterval ConfidenceInterval  `json:"confidence_interval"`
	ExplanatoryFactors []ExplanatoryFactor `json:"explanatory_factors"`
	Timestamp          time.Time           `json:"timestamp"`
	ModelVersion       string              `json:"model_version"`
	RiskLevel          string              `json:"risk_level"`
}

// FeatureImportance is one entry of a model's feature importance ranking
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ModelMetadata summarizes one training run of the scoring model
type ModelMetadata struct {
	ModelVersion           string              `json:"model_version"`
	TrainingDate           time.Time           `json:"training_date"`
	FeatureCount           int                 `json:"feature_count"`
	TrainingSamples        int                 `json:"training_samples"`
	CrossValScore          float64             `json:"cross_val_score"`
	R2Score                float64             `json:"r2_score"`
	RMSE                   float64             `json:"rmse"`
	FeatureImportanceTop10 []FeatureImportance `json:"feature_importance_top_10"`
}
