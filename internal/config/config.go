// Package config provides configuration loading and management for the
// apartment catalog server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for environment variables consumed by the server
	EnvPrefix = "APTCAT"

	defaultPageSize       = 100
	defaultPageDelay      = 150 * time.Millisecond
	defaultRequestTimeout = 60 * time.Second
	defaultSyncInterval   = 24 * time.Hour
	defaultAnchorTime     = "22:30"
	defaultMaxRunDuration = 30 * time.Minute
	defaultProgressStep   = 50
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Address is the listen address for the HTTP API
	Address string `yaml:"address,omitempty"`

	// Source configures the remote open-data registry
	Source SourceConfig `yaml:"source"`

	// Sync configures the synchronization policy
	Sync SyncConfig `yaml:"sync,omitempty"`

	// Database configures the catalog storage
	Database *DatabaseConfig `yaml:"database"`
}

// SourceConfig defines the remote open-data registry settings
type SourceConfig struct {
	// Endpoint is the records URL of the open-data dataset, without query parameters
	Endpoint string `yaml:"endpoint"`

	// Refine is the server-side category refinement filter appended to
	// every page request (e.g. `tipo:"apartamento-turistico"`)
	Refine string `yaml:"refine,omitempty"`

	// PageSize is the number of records requested per page (default 100)
	PageSize int `yaml:"pageSize,omitempty"`

	// PageDelay is the minimum spacing between successive page requests
	// (default "150ms"), keeping the client under the source's rate limits
	PageDelay string `yaml:"pageDelay,omitempty"`

	// Timeout bounds every HTTP request (default "60s")
	Timeout string `yaml:"timeout,omitempty"`
}

// SyncConfig defines the synchronization policy
type SyncConfig struct {
	// Interval is the minimum time between automatic sync runs (default "24h")
	Interval string `yaml:"interval,omitempty"`

	// AnchorTime is the local HH:MM wall-clock time the source publishes
	// its daily update (default "22:30"). A run becomes due at the first
	// anchor instant after the previous run finished.
	AnchorTime string `yaml:"anchorTime,omitempty"`

	// MaxRunDuration is the ceiling after which a held lock is treated
	// as crashed and reclaimable (default "30m")
	MaxRunDuration string `yaml:"maxRunDuration,omitempty"`

	// ProgressStep is how many records to process between progress log
	// lines (default 50)
	ProgressStep int `yaml:"progressStep,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of pooled connections
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetAddress returns the listen address, defaulting to ":8080"
func (c *Config) GetAddress() string {
	if c.Address == "" {
		return ":8080"
	}
	return c.Address
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Source.Endpoint == "" {
		return fmt.Errorf("source.endpoint is required")
	}
	if _, err := url.ParseRequestURI(c.Source.Endpoint); err != nil {
		return fmt.Errorf("source.endpoint is not a valid URL: %w", err)
	}
	if c.Source.PageSize < 0 {
		return fmt.Errorf("source.pageSize must not be negative")
	}
	if err := validateDuration("source.pageDelay", c.Source.PageDelay); err != nil {
		return err
	}
	if err := validateDuration("source.timeout", c.Source.Timeout); err != nil {
		return err
	}

	if err := validateDuration("sync.interval", c.Sync.Interval); err != nil {
		return err
	}
	if err := validateDuration("sync.maxRunDuration", c.Sync.MaxRunDuration); err != nil {
		return err
	}
	if c.Sync.AnchorTime != "" {
		if _, err := time.Parse("15:04", c.Sync.AnchorTime); err != nil {
			return fmt.Errorf("sync.anchorTime must be in HH:MM format: %w", err)
		}
	}
	if c.Sync.ProgressStep < 0 {
		return fmt.Errorf("sync.progressStep must not be negative")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}

	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s must be a valid duration (e.g. '150ms', '30m'): %w", field, err)
	}
	return nil
}

// GetPageSize returns the configured page size or the default
func (s *SourceConfig) GetPageSize() int {
	if s.PageSize == 0 {
		return defaultPageSize
	}
	return s.PageSize
}

// GetPageDelay returns the configured inter-page delay or the default
func (s *SourceConfig) GetPageDelay() time.Duration {
	return durationOrDefault(s.PageDelay, defaultPageDelay)
}

// GetTimeout returns the configured per-request timeout or the default
func (s *SourceConfig) GetTimeout() time.Duration {
	return durationOrDefault(s.Timeout, defaultRequestTimeout)
}

// GetInterval returns the configured sync interval or the default
func (s *SyncConfig) GetInterval() time.Duration {
	return durationOrDefault(s.Interval, defaultSyncInterval)
}

// GetAnchorTime returns the configured anchor time or the default
func (s *SyncConfig) GetAnchorTime() string {
	if s.AnchorTime == "" {
		return defaultAnchorTime
	}
	return s.AnchorTime
}

// GetMaxRunDuration returns the configured stale-lock ceiling or the default
func (s *SyncConfig) GetMaxRunDuration() time.Duration {
	return durationOrDefault(s.MaxRunDuration, defaultMaxRunDuration)
}

// GetProgressStep returns the configured progress log step or the default
func (s *SyncConfig) GetProgressStep() int {
	if s.ProgressStep == 0 {
		return defaultProgressStep
	}
	return s.ProgressStep
}

func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		// validate() rejects unparseable durations before this is reached
		return def
	}
	return d
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from APTCAT_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
		EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper
// password handling. The password is URL-escaped to handle special
// characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}
