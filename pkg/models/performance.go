package models

import "time"

// Alert tokens raised by the performance monitor
const (
	AlertPerformanceDegraded = "model_performance_degraded"
	AlertDataDrift           = "data_drift_detected"
	AlertDataQuality         = "data_quality_poor"
	AlertHighLatency         = "high_prediction_latency"
)

// PerformanceMetrics is one monitoring observation of the production model.
// Observations form an append-only time series, persisted one record per
// file; the most recent 100 are reloaded on startup.
type PerformanceMetrics struct {
	Timestamp           time.Time `json:"timestamp"`
	ModelVersion        string    `json:"model_version"`
	AccuracyScore       float64   `json:"accuracy_score"`
	R2Score             float64   `json:"r2_score"`
	RMSE                float64   `json:"rmse"`
	MAE                 float64   `json:"mae"`
	PredictionLatencyMs float64   `json:"prediction_latency_ms"`
	ThroughputPerSecond float64   `json:"throughput_requests_per_second"`
	DriftScore          float64   `json:"drift_score"`
	DataQualityScore    float64   `json:"data_quality_score"`
	AlertsTriggered     []string  `json:"alerts_triggered"`
}

// RetrainingConfig is the process-wide retraining policy. It is mutated only
// at configuration load and read by the retraining coordinator and the
// deployment orchestrator.
type RetrainingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// ScheduleCron is interpreted by an external scheduler, not by this core.
	ScheduleCron         string  `json:"schedule_cron" mapstructure:"schedule_cron"`
	MinSamplesRequired   int     `json:"min_samples_required" mapstructure:"min_samples_required"`
	PerformanceThreshold float64 `json:"performance_threshold" mapstructure:"performance_threshold"`
	DriftThreshold       float64 `json:"drift_threshold" mapstructure:"drift_threshold"`
	ValidationSplit      float64 `json:"validation_split" mapstructure:"validation_split"`
	AutoDeployThreshold  float64 `json:"auto_deploy_threshold" mapstructure:"auto_deploy_threshold"`
	BackupBeforeDeploy   bool    `json:"backup_before_deploy" mapstructure:"backup_before_deploy"`
	NotificationEnabled  bool    `json:"notification_enabled" mapstructure:"notification_enabled"`
}

// DefaultRetrainingConfig returns the default retraining policy: weekly
// schedule, minimum 100 samples, retrain below r² 0.75 or above drift 0.3,
// auto-deploy at r² 0.85 and above.
func DefaultRetrainingConfig() *RetrainingConfig {
	return &RetrainingConfig{
		Enabled:              true,
		ScheduleCron:         "0 2 * * 0",
		MinSamplesRequired:   100,
		PerformanceThreshold: 0.75,
		DriftThreshold:       0.3,
		ValidationSplit:      0.2,
		AutoDeployThreshold:  0.85,
		BackupBeforeDeploy:   true,
		NotificationEnabled:  true,
	}
}
