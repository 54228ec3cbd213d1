package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "opslens", cfg.Logger.ServiceName)

	assert.Equal(t, 30*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.API.RetryBackoff)
	assert.Equal(t, 10.0, cfg.API.RateLimit)
	assert.Equal(t, 5, cfg.API.RateBurst)
	assert.False(t, cfg.API.IgnoreTLSErrors)

	assert.Equal(t, 50, cfg.Insights.MaxItems)
	assert.Equal(t, 8, cfg.Insights.DetailConcurrency)

	assert.Equal(t, []string{"."}, cfg.Workspace.Roots)
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("api.endpoint", "https://graph.example.com/query")
	v.Set("insights.max_items", 25)

	cfg, err := NewConfigFromViper(v)

	require.NoError(t, err)
	assert.Equal(t, "https://graph.example.com/query", cfg.API.Endpoint)
	assert.Equal(t, 25, cfg.Insights.MaxItems)
}

func TestNewConfigFromViperMissingEndpoint(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	_, err := NewConfigFromViper(v)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.endpoint")
}

func TestNewConfigFromViperTokenFromEnv(t *testing.T) {
	t.Setenv("OPSLENS_API_TOKEN", "env-token")

	v := viper.New()
	SetDefaults(v)
	v.Set("api.endpoint", "https://graph.example.com/query")

	cfg, err := NewConfigFromViper(v)

	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.API.Token)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := NewDefaultConfig()
		cfg.API.Endpoint = "https://graph.example.com/query"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := base()
		cfg.API.MaxRetries = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero rate limit", func(t *testing.T) {
		cfg := base()
		cfg.API.RateLimit = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero max items", func(t *testing.T) {
		cfg := base()
		cfg.Insights.MaxItems = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero concurrency", func(t *testing.T) {
		cfg := base()
		cfg.Insights.DetailConcurrency = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("no workspace roots", func(t *testing.T) {
		cfg := base()
		cfg.Workspace.Roots = nil
		assert.Error(t, cfg.Validate())
	})
}
