package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)

	require.NotNil(t, cfg.Lifecycle)
	assert.Equal(t, filepath.Join("data", "ml"), cfg.Lifecycle.StorageRoot)
	assert.Equal(t, 0.6, cfg.Lifecycle.Gate.R2Threshold)
	assert.True(t, cfg.Lifecycle.Deployment.BackupBeforeDeploy)
	assert.Equal(t, 0.3, cfg.Lifecycle.Monitoring.DriftThreshold)
	assert.Equal(t, 5000.0, cfg.Lifecycle.Monitoring.LatencyThresholdMs)
	assert.Equal(t, 100, cfg.Lifecycle.Retraining.MinSamplesRequired)
	assert.Equal(t, 0.85, cfg.Lifecycle.Retraining.AutoDeployThreshold)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equipwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
logging:
  level: debug
  format: text
lifecycle:
  storage_root: /var/lib/equipwatch
  validation:
    r2_threshold: 0.7
  retraining:
    min_samples_required: 50
    auto_deploy_threshold: 0.9
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/equipwatch", cfg.Lifecycle.StorageRoot)
	assert.Equal(t, 0.7, cfg.Lifecycle.Gate.R2Threshold)
	assert.Equal(t, 50, cfg.Lifecycle.Retraining.MinSamplesRequired)
	assert.Equal(t, 0.9, cfg.Lifecycle.Retraining.AutoDeployThreshold)

	// unset keys keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 0.3, cfg.Lifecycle.Monitoring.DriftThreshold)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EQUIPWATCH_SERVER_PORT", "7070")
	t.Setenv("EQUIPWATCH_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}
