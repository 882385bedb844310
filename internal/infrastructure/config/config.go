package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/device"
	"github.com/kelseyhightower/envconfig"
)

// Sandbox flags that are never granted to a frame
var forbiddenSandbox = map[string]bool{
	"allow-same-origin": true,
}

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Workspace WorkspaceConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver string `envconfig:"STORAGE_DRIVER" default:"file"` // file, sqlite or memory
	Path   string `envconfig:"STORAGE_PATH" default:"data"`
}

// CatalogConfig points at an optional device catalog. Empty fields use the
// built-in catalog; a path wins over a url.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH"`
	URL  string `envconfig:"CATALOG_URL"`
}

// WorkspaceConfig holds the built-in settings defaults and frame policy.
// Strategies defines extra device strategies as name:value pairs, where the
// value is a platform (android, ios) or an android weight in [0, 1], e.g.
// DEVICE_STRATEGIES="android-heavy:0.8,ios-only:ios".
type WorkspaceConfig struct {
	DefaultURL       string            `envconfig:"DEFAULT_URL" default:"https://example.com"`
	DeviceStrategy   string            `envconfig:"DEVICE_STRATEGY" default:"random"`
	Strategies       map[string]string `envconfig:"DEVICE_STRATEGIES"`
	AutoSaveInterval int               `envconfig:"AUTOSAVE_INTERVAL" default:"30"` // seconds
	FrameSandbox     []string          `envconfig:"FRAME_SANDBOX" default:"allow-scripts,allow-popups,allow-forms"`
	BatchWorkers     int               `envconfig:"BATCH_WORKERS" default:"4"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "data",
		},
		Workspace: WorkspaceConfig{
			DefaultURL:       "https://example.com",
			DeviceStrategy:   "random",
			AutoSaveInterval: 30,
			FrameSandbox:     []string{"allow-scripts", "allow-popups", "allow-forms"},
			BatchWorkers:     4,
		},
	}
}

// Validate rejects configuration the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be file, sqlite or memory, got %q", c.Storage.Driver))
	}
	if c.Storage.Driver != "memory" && c.Storage.Path == "" {
		errs = append(errs, errors.New("STORAGE_PATH is required"))
	}
	if c.Workspace.AutoSaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("AUTOSAVE_INTERVAL must be positive, got %d", c.Workspace.AutoSaveInterval))
	}
	if c.Workspace.BatchWorkers <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_WORKERS must be positive, got %d", c.Workspace.BatchWorkers))
	}
	if strings.TrimSpace(c.Workspace.DeviceStrategy) == "" {
		errs = append(errs, errors.New("DEVICE_STRATEGY is required"))
	}
	if _, err := device.StrategyOptions(c.Workspace.Strategies); err != nil {
		errs = append(errs, fmt.Errorf("DEVICE_STRATEGIES: %w", err))
	}
	for _, flag := range c.Workspace.FrameSandbox {
		if forbiddenSandbox[strings.ToLower(strings.TrimSpace(flag))] {
			errs = append(errs, fmt.Errorf("FRAME_SANDBOX must not contain %q", flag))
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}
