// Package config loads, validates and materializes the TreeFS configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete TreeFS configuration.
//
// This structure captures all configurable aspects of the metadata service:
//   - Logging configuration
//   - Server-wide settings
//   - Metrics exposure
//   - Store backend selection and configuration (backend-specific)
//   - Content store selection and configuration (store-specific)
//   - Filesystem declarations materialized at startup
//
// Configuration sources (in order of precedence):
//  1. Environment variables (TREEFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// Each backend defines its own configuration type and factory function. The
// Config struct contains type-specific sections (e.g. store.badger,
// store.memory) and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Metrics controls the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Store specifies the metadata store backend and its configuration
	Store StoreConfig `mapstructure:"store"`

	// Content specifies the payload store type and its configuration
	Content ContentConfig `mapstructure:"content"`

	// Filesystems declares filesystems to materialize at startup
	Filesystems []FilesystemConfig `mapstructure:"filesystems" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled exposes the /metrics HTTP endpoint when true
	Enabled bool `mapstructure:"enabled"`

	// ListenAddress is the address the metrics server binds to
	ListenAddress string `mapstructure:"listen_address"`
}

// StoreConfig specifies the metadata store backend.
//
// The Type field determines which backend is used. Only the corresponding
// type-specific configuration section is read.
type StoreConfig struct {
	// Type specifies which backend to use
	// Valid values: badger, memory
	Type string `mapstructure:"type" validate:"required,oneof=badger memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`
}

// ContentConfig specifies the payload store configuration.
type ContentConfig struct {
	// Type specifies which payload store implementation to use
	// Valid values: none, filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=none filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// FilesystemConfig declares one filesystem materialized at startup.
//
// Declared filesystems that already exist are left untouched, so the list is
// effectively idempotent across restarts.
type FilesystemConfig struct {
	// Name is the filesystem name
	Name string `mapstructure:"name" validate:"required"`

	// Export creates an endpoint binding for the filesystem
	Export bool `mapstructure:"export"`

	// ExportOptions is the opaque protocol option string passed to
	// endpoint creation (only used when Export is true)
	ExportOptions string `mapstructure:"export_options"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TREEFS_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the TREEFS_ prefix and underscores.
	// Example: TREEFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TREEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/treefs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is acceptable; defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "treefs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "treefs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
