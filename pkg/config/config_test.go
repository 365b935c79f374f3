package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadi-events/gatehouse/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("GATEHOUSE_PROVIDER_DOMAIN", "shadi.us.auth0.com")
	t.Setenv("GATEHOUSE_PROVIDER_CLIENT_ID", "client-id")
	t.Setenv("GATEHOUSE_PROVIDER_CLIENT_SECRET", "client-secret")
	t.Setenv("GATEHOUSE_PROVIDER_AUDIENCE", "https://api.shadi.com")
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost/gatehouse")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "https://shadi.com/", cfg.Provider.ClaimsNamespace)
	assert.Equal(t, "https://shadi.us.auth0.com/", cfg.Provider.IssuerURL())
	assert.Equal(t, 10*time.Second, cfg.Provider.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.Provider.SigningKeyTTL)
	assert.Equal(t, time.Hour, cfg.Authz.StalenessWindow)
	assert.Equal(t, 5*time.Minute, cfg.Storage.CacheTTL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEHOUSE_PORT", "8888")
	t.Setenv("GATEHOUSE_STALENESS_WINDOW", "30m")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")
	t.Setenv("GATEHOUSE_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Authz.StalenessWindow)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigMissingProvider(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost/gatehouse")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider domain")
}

func TestValidatePortCollision(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEHOUSE_PORT", "9090")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestValidateClaimsNamespaceTrailingSlash(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEHOUSE_PROVIDER_CLAIMS_NAMESPACE", "https://shadi.com")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing slash")
}

func TestLoginDisabledByDefault(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.Login.Enabled())
}

func TestLoginRequiresCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GATEHOUSE_LOGIN_REDIRECT_URL", "https://app.shadi.com/login/callback")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login client credentials")

	t.Setenv("GATEHOUSE_LOGIN_CLIENT_ID", "dashboard")
	t.Setenv("GATEHOUSE_LOGIN_CLIENT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Login.Enabled())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("unknown"))
}
