package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/deployment"
	"github.com/equipwatch/equipwatch/internal/observability/metrics"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/interfaces"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// historyLimit caps the in-memory observation window
const historyLimit = 100

// ActiveModelProvider yields the model currently bound to the serving path
type ActiveModelProvider interface {
	ActiveModel() *deployment.ActiveModel
}

// MonitorConfig holds the alerting thresholds for production observations
type MonitorConfig struct {
	PerformanceThreshold float64 `json:"performance_threshold" yaml:"performance_threshold" mapstructure:"performance_threshold"`
	DriftThreshold       float64 `json:"drift_threshold" yaml:"drift_threshold" mapstructure:"drift_threshold"`
	QualityThreshold     float64 `json:"quality_threshold" yaml:"quality_threshold" mapstructure:"quality_threshold"`
	LatencyThresholdMs   float64 `json:"latency_threshold_ms" yaml:"latency_threshold_ms" mapstructure:"latency_threshold_ms"`
}

// DefaultMonitorConfig returns the default monitoring thresholds
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		PerformanceThreshold: 0.75,
		DriftThreshold:       0.3,
		QualityThreshold:     0.8,
		LatencyThresholdMs:   5000,
	}
}

// Monitor observes the production model against incoming feature batches:
// latency, throughput, drift against the training reference, data quality
// and (when ground-truth outcomes are supplied) regression accuracy. Each
// observation is appended to an on-disk time series and a bounded in-memory
// window.
type Monitor struct {
	config    *MonitorConfig
	logger    *logrus.Logger
	provider  ActiveModelProvider
	drift     interfaces.DriftEstimator
	quality   interfaces.QualityEstimator
	collector *metrics.Collector
	dir       string

	mu      sync.RWMutex
	history []*models.PerformanceMetrics
}

// NewMonitor creates a performance monitor persisting observations under dir
func NewMonitor(config *MonitorConfig, provider ActiveModelProvider, drift interfaces.DriftEstimator, quality interfaces.QualityEstimator, dir string, collector *metrics.Collector, logger *logrus.Logger) *Monitor {
	if config == nil {
		config = DefaultMonitorConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		config:    config,
		logger:    logger,
		provider:  provider,
		drift:     drift,
		quality:   quality,
		collector: collector,
		dir:       dir,
	}
}

// LoadHistory reloads the most recent persisted observations. Corrupt or
// unreadable files are skipped with a warning; a missing directory is not an
// error.
func (m *Monitor) LoadHistory() error {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed,
			"failed to read performance history directory")
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "metrics_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > historyLimit {
		names = names[len(names)-historyLimit:]
	}

	var history []*models.PerformanceMetrics
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			m.logger.WithError(err).WithField("file", name).Warn("Skipping unreadable metrics file")
			continue
		}
		var pm models.PerformanceMetrics
		if err := json.Unmarshal(data, &pm); err != nil {
			m.logger.WithError(err).WithField("file", name).Warn("Skipping corrupt metrics file")
			continue
		}
		history = append(history, &pm)
	}

	m.mu.Lock()
	m.history = history
	m.mu.Unlock()

	m.logger.WithField("observations", len(history)).Info("Loaded performance history")
	return nil
}

// Monitor runs one observation of the production model over the feature
// batch. Ground-truth outcomes are optional: without them, accuracy fields
// carry forward the model's last validation metrics.
func (m *Monitor) Monitor(ctx context.Context, features *models.FeatureSet, outcomes map[string]float64) (*models.PerformanceMetrics, error) {
	active := m.provider.ActiveModel()
	if active == nil {
		return nil, errors.NewPreconditionError(errors.CodeNoProduction,
			"no production model to monitor")
	}
	if features.SampleCount() == 0 {
		return nil, errors.NewValidationError(errors.CodeInsufficientData,
			"monitoring requires at least one feature sample")
	}

	start := time.Now()
	scores, err := active.Instance.ScoreAll(ctx, features)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	// latency is the wall-clock time to score the whole batch
	samples := float64(features.SampleCount())
	latencyMs := float64(elapsed.Microseconds()) / 1000
	throughput := 0.0
	if elapsed > 0 {
		throughput = samples / elapsed.Seconds()
	}

	pm := &models.PerformanceMetrics{
		Timestamp:           time.Now().UTC(),
		ModelVersion:        active.Artifact.Version.String(),
		PredictionLatencyMs: latencyMs,
		ThroughputPerSecond: throughput,
		DriftScore:          m.drift.EstimateDrift(features),
		DataQualityScore:    m.quality.Assess(features),
	}
	m.fillAccuracy(pm, active, scores, outcomes)
	pm.AlertsTriggered = m.evaluateAlerts(pm)

	m.collector.ObserveScoringLatency(elapsed.Seconds())
	m.collector.SetDriftScore(pm.DriftScore)
	m.collector.SetQualityScore(pm.DataQualityScore)
	m.collector.SetPerformanceR2(pm.R2Score)
	for _, alert := range pm.AlertsTriggered {
		m.collector.RecordAlert(alert)
	}

	m.record(pm)

	if len(pm.AlertsTriggered) > 0 {
		m.logger.WithFields(logrus.Fields{
			"model_version": pm.ModelVersion,
			"alerts":        pm.AlertsTriggered,
			"drift_score":   pm.DriftScore,
			"r2_score":      pm.R2Score,
		}).Warn("Monitoring alerts triggered")
	}

	return pm, nil
}

// fillAccuracy computes regression accuracy against ground truth when at
// least two outcomes align with predictions; otherwise it carries the model's
// last validation metrics forward as a proxy.
func (m *Monitor) fillAccuracy(pm *models.PerformanceMetrics, active *deployment.ActiveModel, scores map[string]*models.HealthScore, outcomes map[string]float64) {
	ids := make([]string, 0, len(outcomes))
	for deviceID := range outcomes {
		ids = append(ids, deviceID)
	}
	sort.Strings(ids) // stable accumulation order, repeated runs agree

	var predicted, observed []float64
	for _, deviceID := range ids {
		if score, ok := scores[deviceID]; ok {
			predicted = append(predicted, score.HealthScore)
			observed = append(observed, outcomes[deviceID])
		}
	}

	if len(predicted) >= 2 {
		var sse, sae, sst float64
		var mean float64
		for _, o := range observed {
			mean += o
		}
		mean /= float64(len(observed))
		for i := range predicted {
			diff := predicted[i] - observed[i]
			sse += diff * diff
			sae += math.Abs(diff)
			d := observed[i] - mean
			sst += d * d
		}
		if sst > 0 {
			pm.R2Score = 1 - sse/sst
		}
		pm.RMSE = math.Sqrt(sse / float64(len(predicted)))
		pm.MAE = sae / float64(len(predicted))
		pm.AccuracyScore = clamp01(pm.R2Score)
		return
	}

	if vr := active.Artifact.ValidationResults; vr != nil {
		pm.R2Score = vr.Metrics.R2Score
		pm.RMSE = vr.Metrics.RMSE
		pm.MAE = vr.Metrics.MAE
		pm.AccuracyScore = clamp01(vr.Metrics.R2Score)
	}
}

func (m *Monitor) evaluateAlerts(pm *models.PerformanceMetrics) []string {
	var alerts []string
	if pm.R2Score < m.config.PerformanceThreshold {
		alerts = append(alerts, models.AlertPerformanceDegraded)
	}
	if pm.DriftScore > m.config.DriftThreshold {
		alerts = append(alerts, models.AlertDataDrift)
	}
	if pm.DataQualityScore < m.config.QualityThreshold {
		alerts = append(alerts, models.AlertDataQuality)
	}
	if pm.PredictionLatencyMs > m.config.LatencyThresholdMs {
		alerts = append(alerts, models.AlertHighLatency)
	}
	return alerts
}

// record appends the observation to the bounded window and persists it as
// its own file. A write failure is logged but does not fail the observation.
func (m *Monitor) record(pm *models.PerformanceMetrics) {
	m.mu.Lock()
	m.history = append(m.history, pm)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(pm, "", "  ")
	if err == nil {
		path := filepath.Join(m.dir, fmt.Sprintf("metrics_%d.json", pm.Timestamp.UnixNano()))
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		m.logger.WithError(err).Warn("Failed to persist monitoring observation")
	}
}

// Recent returns up to n most recent observations, oldest first
func (m *Monitor) Recent(n int) []*models.PerformanceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]*models.PerformanceMetrics, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// Latest returns the most recent observation, or nil when none exist
func (m *Monitor) Latest() *models.PerformanceMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return nil
	}
	return m.history[len(m.history)-1]
}

// SetReference forwards a training feature distribution to the drift
// estimator
func (m *Monitor) SetReference(features *models.FeatureSet) {
	m.drift.SetReference(features)
}
