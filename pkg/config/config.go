// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default ensemble weights used when the configured pair is invalid.
const (
	DefaultHeuristicWeight = 0.6
	DefaultMLWeight        = 0.4
)

// Config holds all configuration for the application.
type Config struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	API       APIConfig       `mapstructure:"api"`
	History   HistoryConfig   `mapstructure:"history"`
	Tuning    TuningConfig    `mapstructure:"tuning"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// HistoryConfig holds outcome store configuration.
type HistoryConfig struct {
	DBPath        string `mapstructure:"db_path"`
	RetentionRows int64  `mapstructure:"retention_rows"`
}

// TuningConfig holds ensemble tuning configuration.
type TuningConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	IntervalSec     int     `mapstructure:"interval_sec"`
	SampleWindow    int     `mapstructure:"sample_window"`
	HeuristicWeight float64 `mapstructure:"heuristic_weight"`
	MLWeight        float64 `mapstructure:"ml_weight"`
	LearningRate    float64 `mapstructure:"learning_rate"`
	Regularization  float64 `mapstructure:"regularization"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// KafkaConfig holds Kafka configuration. Publishing is disabled
// when no brokers are configured.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		DeploymentAssessed string `mapstructure:"deployment_assessed"`
		OutcomeRecorded    string `mapstructure:"outcome_recorded"`
	} `mapstructure:"topics"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TelemetryConfig holds tracing configuration.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set prefix for environment variables
	v.SetEnvPrefix("CN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Bind environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind env vars: %w", err)
	}

	// Well-known unprefixed variables take precedence over the CN_ forms.
	bindLegacyEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalizeWeights()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// normalizeWeights falls back to the default weight pair when the
// configured pair does not sum to 1 or is out of range.
func (c *Config) normalizeWeights() {
	wh, wm := c.Tuning.HeuristicWeight, c.Tuning.MLWeight
	valid := wh >= 0 && wh <= 1 && wm >= 0 && wm <= 1 &&
		math.Abs(wh+wm-1.0) <= 1e-9 &&
		!math.IsNaN(wh) && !math.IsNaN(wm)
	if !valid {
		c.Tuning.HeuristicWeight = DefaultHeuristicWeight
		c.Tuning.MLWeight = DefaultMLWeight
	}
}

func (c *Config) validate() error {
	var bad []string

	if c.History.DBPath == "" {
		bad = append(bad, "HISTORY_DB_PATH (must not be empty)")
	}
	if c.Tuning.IntervalSec <= 0 {
		bad = append(bad, "TUNING_INTERVAL_SEC (must be positive)")
	}
	if c.Tuning.SampleWindow <= 0 {
		bad = append(bad, "CN_TUNING_SAMPLE_WINDOW (must be positive)")
	}

	if len(bad) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(bad, ", "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Application
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")

	// API
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "30s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.shutdown_timeout", "10s")
	v.SetDefault("api.request_timeout", "15s")

	// History store
	v.SetDefault("history.db_path", "deployment_history.db")
	v.SetDefault("history.retention_rows", int64(1_000_000))

	// Tuning
	v.SetDefault("tuning.enabled", true)
	v.SetDefault("tuning.interval_sec", 300)
	v.SetDefault("tuning.sample_window", 100)
	v.SetDefault("tuning.heuristic_weight", DefaultHeuristicWeight)
	v.SetDefault("tuning.ml_weight", DefaultMLWeight)
	v.SetDefault("tuning.learning_rate", 0.05)
	v.SetDefault("tuning.regularization", 1e-3)

	// Kafka (no brokers by default; publishing stays off)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topics.deployment_assessed", "deployment.assessed")
	v.SetDefault("kafka.topics.outcome_recorded", "deployment.outcome.recorded")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

func bindEnvVars(v *viper.Viper) error {
	envVars := []string{
		"env",
		"log_level",
		"api.host",
		"api.port",
		"api.read_timeout",
		"api.write_timeout",
		"api.shutdown_timeout",
		"api.request_timeout",
		"history.db_path",
		"history.retention_rows",
		"tuning.enabled",
		"tuning.interval_sec",
		"tuning.sample_window",
		"tuning.heuristic_weight",
		"tuning.ml_weight",
		"tuning.learning_rate",
		"tuning.regularization",
		"auth.api_key",
		"kafka.brokers",
		"kafka.topics.deployment_assessed",
		"kafka.topics.outcome_recorded",
		"metrics.enabled",
		"metrics.path",
		"telemetry.enabled",
		"telemetry.exporter",
		"telemetry.endpoint",
		"telemetry.sample_ratio",
	}

	for _, key := range envVars {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return nil
}

// bindLegacyEnvVars binds the historically documented variable names
// that carry no CN_ prefix.
func bindLegacyEnvVars(v *viper.Viper) {
	legacy := map[string]string{
		"history.db_path":         "HISTORY_DB_PATH",
		"tuning.enabled":          "ENABLE_TUNING",
		"tuning.interval_sec":     "TUNING_INTERVAL_SEC",
		"tuning.heuristic_weight": "HEURISTIC_WEIGHT_INIT",
		"tuning.ml_weight":        "ML_WEIGHT_INIT",
		"auth.api_key":            "API_AUTH_KEY",
	}
	for key, env := range legacy {
		// BindEnv with explicit names only errors on an empty key list.
		_ = v.BindEnv(key, env, "CN_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
}

// Address returns the API server address.
func (c *APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Interval returns the tuning interval as a duration.
func (c *TuningConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// PublishingEnabled reports whether Kafka publishing is configured.
func (c *KafkaConfig) PublishingEnabled() bool {
	return len(c.Brokers) > 0
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
