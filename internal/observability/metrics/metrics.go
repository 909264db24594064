package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for the model lifecycle service.
// All record methods are nil-safe so components can run without metrics in
// tests.
type Collector struct {
	registry *prometheus.Registry

	deploymentsTotal    *prometheus.CounterVec
	rollbacksTotal      prometheus.Counter
	retrainingRunsTotal *prometheus.CounterVec
	validationRunsTotal *prometheus.CounterVec

	scoringLatency prometheus.Histogram
	driftScore     prometheus.Gauge
	qualityScore   prometheus.Gauge
	performanceR2  prometheus.Gauge
	alertsTotal    *prometheus.CounterVec
}

// NewCollector creates a collector backed by its own Prometheus registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		deploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equipwatch_model_deployments_total",
			Help: "Model deployments by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "equipwatch_model_rollbacks_total",
			Help: "Completed production rollbacks",
		}),
		retrainingRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equipwatch_retraining_runs_total",
			Help: "Retraining runs by outcome",
		}, []string{"outcome"}),
		validationRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equipwatch_validation_runs_total",
			Help: "Validation gate runs by result",
		}, []string{"result"}),
		scoringLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "equipwatch_scoring_latency_seconds",
			Help:    "Health score inference latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		driftScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "equipwatch_data_drift_score",
			Help: "Latest data drift score against the training reference",
		}),
		qualityScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "equipwatch_data_quality_score",
			Help: "Latest data quality score",
		}),
		performanceR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "equipwatch_model_performance_r2",
			Help: "Latest observed model accuracy proxy",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "equipwatch_monitoring_alerts_total",
			Help: "Monitoring alerts by type",
		}, []string{"alert"}),
	}

	c.registry.MustRegister(
		c.deploymentsTotal,
		c.rollbacksTotal,
		c.retrainingRunsTotal,
		c.validationRunsTotal,
		c.scoringLatency,
		c.driftScore,
		c.qualityScore,
		c.performanceR2,
		c.alertsTotal,
	)

	return c
}

// Handler returns the HTTP handler exposing the collector's registry
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordDeployment counts one deployment attempt
func (c *Collector) RecordDeployment(strategy, outcome string) {
	if c == nil {
		return
	}
	c.deploymentsTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordRollback counts one completed rollback
func (c *Collector) RecordRollback() {
	if c == nil {
		return
	}
	c.rollbacksTotal.Inc()
}

// RecordRetraining counts one retraining run
func (c *Collector) RecordRetraining(outcome string) {
	if c == nil {
		return
	}
	c.retrainingRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidation counts one validation gate run
func (c *Collector) RecordValidation(passed bool) {
	if c == nil {
		return
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	c.validationRunsTotal.WithLabelValues(result).Inc()
}

// ObserveScoringLatency records one inference duration in seconds
func (c *Collector) ObserveScoringLatency(seconds float64) {
	if c == nil {
		return
	}
	c.scoringLatency.Observe(seconds)
}

// SetDriftScore publishes the latest drift score
func (c *Collector) SetDriftScore(v float64) {
	if c == nil {
		return
	}
	c.driftScore.Set(v)
}

// SetQualityScore publishes the latest data quality score
func (c *Collector) SetQualityScore(v float64) {
	if c == nil {
		return
	}
	c.qualityScore.Set(v)
}

// SetPerformanceR2 publishes the latest accuracy proxy
func (c *Collector) SetPerformanceR2(v float64) {
	if c == nil {
		return
	}
	c.performanceR2.Set(v)
}

// RecordAlert counts one monitoring alert
func (c *Collector) RecordAlert(alert string) {
	if c == nil {
		return
	}
	c.alertsTotal.WithLabelValues(alert).Inc()
}
