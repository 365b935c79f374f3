package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shadi-events/gatehouse/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Identity provider configuration
	Provider ProviderConfig

	// Interactive browser login configuration
	Login LoginConfig

	// Authorization state configuration
	Authz AuthzConfig

	// Storage configuration
	Storage StorageConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// ProviderConfig holds identity provider (Auth0-style) settings
type ProviderConfig struct {
	// Domain is the provider tenant domain, e.g. "shadi.us.auth0.com"
	Domain string

	// ClientID and ClientSecret are the machine-to-machine credentials used
	// for the management API client-credentials grant.
	ClientID     string
	ClientSecret string

	// Audience is the expected `aud` claim on inbound bearer tokens.
	Audience string

	// ClaimsNamespace prefixes the custom role/permission claims,
	// e.g. "https://shadi.com/".
	ClaimsNamespace string

	// RequestTimeout bounds every outbound provider call.
	RequestTimeout time.Duration

	// SigningKeyTTL is how long a fetched JWKS is trusted before refetch.
	SigningKeyTTL time.Duration
}

// IssuerURL returns the token issuer derived from the provider domain
func (p ProviderConfig) IssuerURL() string {
	return "https://" + p.Domain + "/"
}

// LoginConfig holds the browser OIDC login settings. The interactive
// application is registered with the provider separately from the
// machine-to-machine client, so it carries its own credentials.
type LoginConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether the interactive login flow is configured
func (l LoginConfig) Enabled() bool {
	return l.RedirectURL != ""
}

// AuthzConfig holds authorization state settings
type AuthzConfig struct {
	// StalenessWindow is the maximum age of synced role/permission state
	// before GetOrRefresh triggers a provider round-trip.
	StalenessWindow time.Duration
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int

	// Redis principal-state cache (optional)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Provider:      loadProviderConfig(),
		Login:         loadLoginConfig(),
		Authz:         loadAuthzConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEHOUSE_HOST", "0.0.0.0"),
		Port:            getEnv("GATEHOUSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEHOUSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEHOUSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GATEHOUSE_HEALTH_PORT", "9090"),
	}
}

// loadProviderConfig loads identity provider configuration from environment
func loadProviderConfig() ProviderConfig {
	return ProviderConfig{
		Domain:          getEnv("GATEHOUSE_PROVIDER_DOMAIN", ""),
		ClientID:        getEnv("GATEHOUSE_PROVIDER_CLIENT_ID", ""),
		ClientSecret:    getEnv("GATEHOUSE_PROVIDER_CLIENT_SECRET", ""),
		Audience:        getEnv("GATEHOUSE_PROVIDER_AUDIENCE", ""),
		ClaimsNamespace: getEnv("GATEHOUSE_PROVIDER_CLAIMS_NAMESPACE", "https://shadi.com/"),
		RequestTimeout:  getEnvDuration("GATEHOUSE_PROVIDER_TIMEOUT", 10*time.Second),
		SigningKeyTTL:   getEnvDuration("GATEHOUSE_SIGNING_KEY_TTL", time.Hour),
	}
}

// loadLoginConfig loads browser login configuration from environment
func loadLoginConfig() LoginConfig {
	return LoginConfig{
		ClientID:     getEnv("GATEHOUSE_LOGIN_CLIENT_ID", ""),
		ClientSecret: getEnv("GATEHOUSE_LOGIN_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("GATEHOUSE_LOGIN_REDIRECT_URL", ""),
	}
}

// loadAuthzConfig loads authorization state configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		StalenessWindow: getEnvDuration("GATEHOUSE_STALENESS_WINDOW", time.Hour),
	}
}

// loadStorageConfig loads persistence configuration from environment
func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:      getEnv("GATEHOUSE_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("GATEHOUSE_POSTGRES_MAX_CONNS", 10),
		RedisURL:         getEnv("GATEHOUSE_REDIS_URL", ""),
		RedisPassword:    getEnv("GATEHOUSE_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("GATEHOUSE_REDIS_DB", 0),
		CacheTTL:         getEnvDuration("GATEHOUSE_CACHE_TTL", 5*time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("GATEHOUSE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("GATEHOUSE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Provider.Domain == "" {
		return fmt.Errorf("provider domain is required")
	}
	if c.Provider.ClientID == "" || c.Provider.ClientSecret == "" {
		return fmt.Errorf("provider client credentials are required")
	}
	if c.Provider.Audience == "" {
		return fmt.Errorf("provider audience is required")
	}
	if !strings.HasSuffix(c.Provider.ClaimsNamespace, "/") {
		return fmt.Errorf("claims namespace must end with a trailing slash")
	}
	if c.Provider.RequestTimeout <= 0 {
		return fmt.Errorf("provider request timeout must be positive")
	}

	if c.Login.Enabled() && (c.Login.ClientID == "" || c.Login.ClientSecret == "") {
		return fmt.Errorf("login client credentials are required when a login redirect URL is set")
	}

	if c.Authz.StalenessWindow <= 0 {
		return fmt.Errorf("staleness window must be positive")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
