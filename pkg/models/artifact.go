package models

import (
	"time"
)

// ModelStatus is the deployment status of a model artifact
type ModelStatus string

const (
	StatusTraining   ModelStatus = "training"
	StatusValidation ModelStatus = "validation"
	StatusStaging    ModelStatus = "staging"
	StatusProduction ModelStatus = "production"
	StatusDeprecated ModelStatus = "deprecated"
	StatusFailed     ModelStatus = "failed"
)

// statusTransitions is the allowed artifact status state machine. Transitions
// are validated at the call sites that mutate status; the registry never
// deletes an artifact, only reclassifies it.
var statusTransitions = map[ModelStatus][]ModelStatus{
	StatusTraining:   {StatusValidation, StatusFailed},
	StatusValidation: {StatusStaging, StatusProduction, StatusFailed},
	StatusStaging:    {StatusProduction, StatusFailed},
	StatusProduction: {StatusDeprecated},
	StatusDeprecated: {StatusProduction}, // rollback
	StatusFailed:     {},
}

// CanTransitionTo reports whether the status state machine allows moving
// from s to next
func (s ModelStatus) CanTransitionTo(next ModelStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Deployable reports whether an artifact in this status may be promoted to
// production without force
func (s ModelStatus) Deployable() bool {
	return s == StatusValidation || s == StatusStaging
}

// DeploymentStrategy selects how a new production model is rolled out. All
// strategies currently share the blue-green primitive: the swap from old to
// new production model is a single atomic reference replacement.
type DeploymentStrategy string

const (
	StrategyBlueGreen DeploymentStrategy = "blue_green"
	StrategyCanary    DeploymentStrategy = "canary"
	StrategyRolling   DeploymentStrategy = "rolling"
	StrategyImmediate DeploymentStrategy = "immediate"
)

// ModelArtifact is one persisted model generation: the files in its storage
// directory plus the catalogue metadata tracked by the registry.
type ModelArtifact struct {
	ID                 string                 `json:"id"`
	Version            ModelVersion           `json:"version"`
	Status             ModelStatus            `json:"status"`
	CreatedAt          time.Time              `json:"created_at"`
	CreatedBy          string                 `json:"created_by"`
	StoragePath        string                 `json:"storage_path"`
	Checksum           string                 `json:"checksum"`
	SizeBytes          int64                  `json:"size_bytes"`
	Metadata           map[string]interface{} `json:"metadata"`
	PerformanceMetrics map[string]float64     `json:"performance_metrics"`
	ValidationResults  *ValidationResult      `json:"validation_results,omitempty"`
	DeploymentConfig   map[string]interface{} `json:"deployment_config"`
}

// ValidationMetrics are the regression metrics produced by the validation gate
type ValidationMetrics struct {
	R2Score float64 `json:"r2_score"`
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
}

// ValidationResult is the outcome of running the validation gate against a
// candidate artifact. A failed gate is a normal result, not an error.
type ValidationResult struct {
	Passed         bool              `json:"passed"`
	Metrics        ValidationMetrics `json:"metrics"`
	ValidationDate time.Time         `json:"validation_date"`
	SampleCount    int               `json:"sample_count"`
	// Note marks results that were not measured against ground truth, e.g.
	// "validated with synthetic data", so auto-deploy decisions downstream
	// can tell them apart.
	Note string `json:"note,omitempty"`
}
