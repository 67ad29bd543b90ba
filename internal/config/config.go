package config

import (
	"fmt"
	"strings"

	"github.com/gambhirsharma/unleash/internal/segment"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for the segment service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Segments SegmentsConfig `koanf:"segments"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// SegmentsConfig holds the business limits for segment administration.
// The service reads them per call through Limits(), so edits picked up at
// runtime take effect without a restart.
type SegmentsConfig struct {
	ValuesLimit           int `koanf:"values_limit"`
	StrategySegmentsLimit int `koanf:"strategy_segments_limit"`
}

// Limits returns the segment business limits in their service-facing form.
func (c SegmentsConfig) Limits() segment.Limits {
	return segment.Limits{
		SegmentValuesLimit:    c.ValuesLimit,
		StrategySegmentsLimit: c.StrategySegmentsLimit,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Segments.ValuesLimit <= 0 {
		return fmt.Errorf("segments.values_limit must be > 0")
	}
	if c.Segments.StrategySegmentsLimit <= 0 {
		return fmt.Errorf("segments.strategy_segments_limit must be > 0")
	}
	return nil
}

// Load loads the configuration from the given file path and environment
// variables. An empty path skips file loading.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port":                      4242,
		"server.host":                      "0.0.0.0",
		"server.mode":                      "release",
		"database.dsn":                     "",
		"database.max_open_conns":          25,
		"database.max_idle_conns":          25,
		"database.auto_migrate":            true,
		"segments.values_limit":            100,
		"segments.strategy_segments_limit": 5,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// UNLEASH_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("UNLEASH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "UNLEASH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
