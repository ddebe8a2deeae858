package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manager implements the ConfigManager interface
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// Load reads and parses the configuration file
func (m *Manager) Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := *GetDefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := m.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration values are valid
func (m *Manager) Validate(config *Config) error {
	if config.Server.UDPPort < 0 || config.Server.UDPPort > 65535 {
		return fmt.Errorf("invalid UDP port: %d (must be 0-65535)", config.Server.UDPPort)
	}
	if config.Server.TCPPort < 0 || config.Server.TCPPort > 65535 {
		return fmt.Errorf("invalid TCP port: %d (must be 0-65535)", config.Server.TCPPort)
	}

	if strings.TrimSpace(config.Account.Domain) == "" {
		return fmt.Errorf("account domain cannot be empty")
	}

	if strings.TrimSpace(config.Authentication.Realm) == "" {
		return fmt.Errorf("authentication realm cannot be empty")
	}
	if config.Authentication.NonceExpiry < 60 {
		return fmt.Errorf("nonce expiry too short: %d seconds (minimum 60)", config.Authentication.NonceExpiry)
	}

	if config.Registrar.QueueCapacity <= 0 {
		return fmt.Errorf("registrar queue capacity must be positive, got %d", config.Registrar.QueueCapacity)
	}
	if config.Registrar.MinExpires <= 0 {
		return fmt.Errorf("registrar min_expires must be positive, got %d", config.Registrar.MinExpires)
	}
	if config.Registrar.DefaultMaxExpires < config.Registrar.MinExpires {
		return fmt.Errorf("default_max_expires (%d) cannot be less than min_expires (%d)",
			config.Registrar.DefaultMaxExpires, config.Registrar.MinExpires)
	}
	if config.Registrar.WorkerWaitSeconds <= 0 {
		return fmt.Errorf("registrar worker_wait_seconds must be positive, got %d", config.Registrar.WorkerWaitSeconds)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	logLevel := strings.ToLower(config.Logging.Level)
	if !validLogLevels[logLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	return nil
}

// GetDefaultConfig returns a configuration with default values matching the
// constants named in the registrar specification (queue capacity 1000,
// 10s worker wait, 60s minimum expiry, 3600s default max expiry).
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.UDPPort = 5060
	cfg.Server.TCPPort = 5060
	cfg.Account.Username = "registrar"
	cfg.Account.Domain = "gb28181.local"
	cfg.Account.AuthenticationEnabled = true
	cfg.Authentication.Realm = "gb28181.local"
	cfg.Authentication.NonceExpiry = 300
	cfg.Registrar.QueueCapacity = 1000
	cfg.Registrar.MinExpires = 60
	cfg.Registrar.DefaultMaxExpires = 3600
	cfg.Registrar.WorkerWaitSeconds = 10
	cfg.UserAgentPolicy.File = ""
	cfg.StatusAPI.Port = 8080
	cfg.StatusAPI.Enabled = true
	cfg.Logging.Level = "info"
	cfg.Logging.File = ""
	return cfg
}
