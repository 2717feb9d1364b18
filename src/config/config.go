package config

import (
	"fmt"
	"os"

	"pulseops/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values. Secrets never live in
// the YAML file in deployed environments.
const (
	EnvClientSecret = "PULSEOPS_CLIENT_SECRET"
	EnvDBConn       = "PULSEOPS_DB_CONN"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// Load .env if present so overrides work in dev the same as in deploy
	_ = godotenv.Load()

	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyEnvOverrides()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyEnvOverrides replaces secret-bearing fields from the environment.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.Auth.ClientSecret = v
	}
	if v := os.Getenv(EnvDBConn); v != "" {
		c.Storage.DBConnectionString = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate KPI configuration
	if c.KPI.MaxSamples <= 0 {
		return fmt.Errorf("kpi max_samples must be greater than 0")
	}

	// Validate Hub configuration
	if c.Hub.WebsocketPath == "" || c.Hub.WebsocketPath[0] != '/' {
		return fmt.Errorf("hub websocket_path must be an absolute path, got '%s'", c.Hub.WebsocketPath)
	}
	if c.Hub.MaxBufferedBytes <= 0 {
		return fmt.Errorf("hub max_buffered_bytes must be greater than 0")
	}
	if c.Hub.SendBufferMessages <= 0 {
		return fmt.Errorf("hub send_buffer_messages must be greater than 0")
	}
	if c.Hub.MaxClients < 0 {
		return fmt.Errorf("hub max_clients cannot be negative")
	}

	// Validate Auth configuration
	if c.Auth.Enabled {
		if c.Auth.IntrospectionURL == "" {
			return fmt.Errorf("auth introspection_url cannot be empty when auth is enabled")
		}
		if c.Auth.ClientID == "" {
			return fmt.Errorf("auth client_id cannot be empty when auth is enabled")
		}
		if c.Auth.CacheTTLSeconds < 0 {
			return fmt.Errorf("auth cache_ttl_seconds cannot be negative")
		}
	}

	// Validate RateLimit configuration
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("ratelimit requests_per_second must be greater than 0")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("ratelimit burst must be greater than 0")
		}
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}
	if c.Storage.DataRetentionDays <= 0 {
		return fmt.Errorf("data retention days must be greater than 0")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Markets configuration
	for i, mic := range c.Markets.MICs {
		if mic == "" {
			return fmt.Errorf("market MIC %d cannot be empty", i)
		}
	}

	// Validate Wallet configuration
	if c.Wallet.ConfigPath == "" {
		return fmt.Errorf("wallet config_path cannot be empty")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
