// Package container provides dependency injection and lifecycle management
// for the employee portal.
package container

import (
	"fmt"
	"time"
)

// Database drivers understood by ProvideDatabase
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Catalog  CatalogConfig
	Lark     LarkConfig
	OpenAI   OpenAIConfig
	Server   ServerConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CatalogConfig holds service catalog settings.
type CatalogConfig struct {
	// CacheTTL bounds how long a cached definition is served
	CacheTTL time.Duration

	// SeedFile is applied on start when set
	SeedFile string
}

// LarkConfig holds Lark messaging settings.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Enabled     bool
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration

	// PromptsPath optionally overrides the built-in prompt templates
	PromptsPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	DelegationSweepInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "data/portal.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Catalog: CatalogConfig{
			CacheTTL: time.Minute,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   400,
			Timeout:     30 * time.Second,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			DelegationSweepInterval: 15 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
	}

	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when openai is enabled")
	}

	return nil
}
