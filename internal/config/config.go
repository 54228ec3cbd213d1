package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Insights  InsightsConfig  `mapstructure:"insights" yaml:"insights"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig holds the connection details for the remote graph API.
type APIConfig struct {
	// Endpoint is the GraphQL endpoint URL. Required; the one configuration
	// error that is surfaced before any request is attempted.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Token is the bearer token. Loaded from OPSLENS_API_TOKEN when unset.
	Token           string        `mapstructure:"token" yaml:"-"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// InsightsConfig tunes the aggregation and diagnostics pipeline.
type InsightsConfig struct {
	// MaxItems caps each bundle collection (dependencies, vulnerabilities,
	// incidents) in source-API insertion order.
	MaxItems int `mapstructure:"max_items" yaml:"max_items"`
	// DetailConcurrency bounds the parallel per-vulnerability detail
	// fetches issued by the diagnostics projector.
	DetailConcurrency int `mapstructure:"detail_concurrency" yaml:"detail_concurrency"`
}

// WorkspaceConfig describes the open workspace the diagnostics are projected
// onto.
type WorkspaceConfig struct {
	// Roots are the workspace folder roots, tried in order for exact path
	// matches. Defaults to the current directory.
	Roots []string `mapstructure:"roots" yaml:"roots"`
	// ExcludeDirs extends the built-in skip list for recursive file search.
	ExcludeDirs []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "opslens")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- API --
	v.SetDefault("api.request_timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_backoff", "500ms")
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_burst", 5)
	v.SetDefault("api.ignore_tls_errors", false)

	// -- Insights --
	v.SetDefault("insights.max_items", 50)
	v.SetDefault("insights.detail_concurrency", 8)

	// -- Workspace --
	v.SetDefault("workspace.roots", []string{"."})
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("api.token", "OPSLENS_API_TOKEN")
	v.BindEnv("api.endpoint", "OPSLENS_API_ENDPOINT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal skips env-only keys that never appeared in a file.
	if cfg.API.Token == "" {
		cfg.API.Token = os.Getenv("OPSLENS_API_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("api.endpoint is a required configuration field")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative")
	}
	if c.API.RateLimit <= 0 {
		return fmt.Errorf("api.rate_limit must be a positive number")
	}
	if c.Insights.MaxItems <= 0 {
		return fmt.Errorf("insights.max_items must be a positive integer")
	}
	if c.Insights.DetailConcurrency <= 0 {
		return fmt.Errorf("insights.detail_concurrency must be a positive integer")
	}
	if len(c.Workspace.Roots) == 0 {
		return fmt.Errorf("workspace.roots must list at least one folder")
	}
	return nil
}
