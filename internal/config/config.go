package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	paths  []string
	config *domain.Config
}

// DefaultConfigPaths are searched for config.yaml when no paths are given.
var DefaultConfigPaths = []string{".", "./config", "/etc/health-keeper/"}

// NewManager creates a new configuration manager. Paths override the
// directories searched for config.yaml.
func NewManager(paths ...string) (*Manager, error) {
	if len(paths) == 0 {
		paths = DefaultConfigPaths
	}
	m := &Manager{paths: paths}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment and defaults
func (m *Manager) loadConfig() error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range m.paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("HEALTH_KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables still apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values. Every key is registered so
// AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Family Health Keeper")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.api_prefix", "/api/v1")
	v.SetDefault("app.environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.memory_size", 1000)
	v.SetDefault("cache.default_ttl", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Text source defaults
	v.SetDefault("textsource.base_url", "")
	v.SetDefault("textsource.api_key", "")
	v.SetDefault("textsource.timeout", "60s")
	v.SetDefault("textsource.rate_limit", 2.0)

	// Reconcile defaults
	v.SetDefault("reconcile.lookback_days", 90)
	v.SetDefault("reconcile.record_limit", 50)

	// Upload defaults
	v.SetDefault("upload.max_file_size", 10*1024*1024)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server rate limit: %g", config.Server.RateLimit)
	}

	if !strings.HasPrefix(config.App.APIPrefix, "/") {
		return fmt.Errorf("API prefix must start with '/': %q", config.App.APIPrefix)
	}

	if config.Database.MaxConns < config.Database.MinConns {
		return fmt.Errorf("database max_conns (%d) is below min_conns (%d)",
			config.Database.MaxConns, config.Database.MinConns)
	}

	if config.Cache.MemorySize <= 0 {
		return fmt.Errorf("invalid cache memory size: %d", config.Cache.MemorySize)
	}

	if config.Reconcile.LookbackDays <= 0 {
		return fmt.Errorf("invalid reconcile lookback: %d days", config.Reconcile.LookbackDays)
	}

	if config.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("invalid upload max file size: %d", config.Upload.MaxFileSize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.App.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.App.Environment)
	return env == "development" || env == "dev" || env == ""
}
