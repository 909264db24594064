package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/equipwatch/equipwatch/internal/lifecycle"
	"github.com/equipwatch/equipwatch/pkg/errors"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig      `json:"server" yaml:"server" mapstructure:"server"`
	Logging   LoggingConfig     `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics   MetricsConfig     `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Lifecycle *lifecycle.Config `json:"lifecycle" yaml:"lifecycle" mapstructure:"lifecycle"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Host            string        `json:"host" yaml:"host" mapstructure:"host"`
	Port            int           `json:"port" yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds the logging settings
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// LoadConfig reads configuration from the given file (or the default search
// paths when empty), layered under EQUIPWATCH_* environment variables. A
// missing config file is fine; every setting has a default.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("equipwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/equipwatch")
	}

	v.SetEnvPrefix("EQUIPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, errors.WrapError(err, errors.ErrorTypeConfig, errors.CodeInvalidInput,
				"failed to read config file")
		}
	}

	cfg := &Config{Lifecycle: lifecycle.DefaultConfig()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfig, errors.CodeInvalidInput,
			"failed to parse configuration")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("lifecycle.storage_root", "data/ml")
	v.SetDefault("lifecycle.validation.r2_threshold", 0.6)
	v.SetDefault("lifecycle.validation.synthetic_seed", 1)
	v.SetDefault("lifecycle.deployment.backup_before_deploy", true)
	v.SetDefault("lifecycle.monitoring.performance_threshold", 0.75)
	v.SetDefault("lifecycle.monitoring.drift_threshold", 0.3)
	v.SetDefault("lifecycle.monitoring.quality_threshold", 0.8)
	v.SetDefault("lifecycle.monitoring.latency_threshold_ms", 5000)
	v.SetDefault("lifecycle.retraining.enabled", true)
	v.SetDefault("lifecycle.retraining.schedule_cron", "0 2 * * 0")
	v.SetDefault("lifecycle.retraining.min_samples_required", 100)
	v.SetDefault("lifecycle.retraining.performance_threshold", 0.75)
	v.SetDefault("lifecycle.retraining.drift_threshold", 0.3)
	v.SetDefault("lifecycle.retraining.validation_split", 0.2)
	v.SetDefault("lifecycle.retraining.auto_deploy_threshold", 0.85)
	v.SetDefault("lifecycle.retraining.backup_before_deploy", true)
	v.SetDefault("lifecycle.retraining.notification_enabled", true)
}
