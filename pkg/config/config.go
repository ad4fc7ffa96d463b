// Package config provides configuration structures and loading logic for the
// decision-support API service.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the service. It is constructed
// once at startup and passed down explicitly; nothing reads it through
// package-level state.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ProviderConfig holds configuration for the upstream LLM provider.
// API credentials are supplied per request by callers and deliberately have
// no place here.
type ProviderConfig struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Server: ServerConfig{
			Address: ":8000",
		},
		Provider: ProviderConfig{
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o-mini",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("ARBITER_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("ARBITER_PROVIDER_BASE_URL"); val != "" {
		cfg.Provider.BaseURL = val
	}
	if val := os.Getenv("ARBITER_DEFAULT_MODEL"); val != "" {
		cfg.Provider.DefaultModel = val
	}
	if val := os.Getenv("ARBITER_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("ARBITER_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("ARBITER_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate checks the configuration for obvious operator mistakes.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url must not be empty")
	}
	if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
		return fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
	}
	if c.Provider.DefaultModel == "" {
		return fmt.Errorf("provider.default_model must not be empty")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
