// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for docvault
// components.
//
// Configuration is loaded from a single file specified by:
//   - DOCVAULT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for docvault.
type Config struct {
	// Storage configures the content-addressed blob store.
	Storage StorageConfig `yaml:"storage"`

	// Index configures the SQLite metadata index.
	Index IndexConfig `yaml:"index"`

	// Service configures the upload HTTP service.
	Service ServiceConfig `yaml:"service"`
}

// StorageConfig configures the blob store.
type StorageConfig struct {
	// Root is the base directory of the shard tree. Created if
	// missing.
	Root string `yaml:"root"`
}

// IndexConfig configures the metadata index.
type IndexConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string `yaml:"path"`

	// PoolSize is the SQLite connection pool size.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// ServiceConfig configures the upload service.
type ServiceConfig struct {
	// ListenAddress is the HTTP listen address.
	// Default: 127.0.0.1:8750
	ListenAddress string `yaml:"listen_address"`

	// MaxUploadBytes caps the size of a single uploaded document.
	// Zero means unlimited.
	// Default: 256 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// ShutdownTimeout is how long graceful shutdown waits for
	// in-flight uploads before forcing connections closed.
	// Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// Default returns the default configuration. These defaults are a base
// before loading the config file, ensuring all fields have sensible
// zero-values - the config file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "docvault")

	return &Config{
		Storage: StorageConfig{
			Root: filepath.Join(defaultRoot, "blobs"),
		},
		Index: IndexConfig{
			Path:     filepath.Join(defaultRoot, "index.db"),
			PoolSize: 4,
		},
		Service: ServiceConfig{
			ListenAddress:   "127.0.0.1:8750",
			MaxUploadBytes:  256 << 20,
			ShutdownTimeout: "30s",
		},
	}
}

// Load loads configuration from the DOCVAULT_CONFIG environment
// variable.
//
// This is the only way to load configuration without an explicit path.
// If DOCVAULT_CONFIG is not set, this fails; there are no fallbacks.
func Load() (*Config, error) {
	configPath := os.Getenv("DOCVAULT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("DOCVAULT_CONFIG environment variable not set; " +
			"set it to the path of your docvault.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// configured paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Storage.Root = expandVars(c.Storage.Root, vars)
	c.Index.Path = expandVars(c.Index.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.Root == "" {
		errs = append(errs, fmt.Errorf("storage.root is required"))
	}
	if c.Index.Path == "" {
		errs = append(errs, fmt.Errorf("index.path is required"))
	}
	if c.Index.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("index.pool_size must not be negative"))
	}
	if c.Service.ListenAddress == "" {
		errs = append(errs, fmt.Errorf("service.listen_address is required"))
	}
	if c.Service.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("service.max_upload_bytes must not be negative"))
	}
	if _, err := c.ParseShutdownTimeout(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ParseShutdownTimeout parses the shutdown timeout string.
func (c *Config) ParseShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Service.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("service.shutdown_timeout: %w", err)
	}
	return d, nil
}

// EnsurePaths creates the storage root and the index's parent
// directory if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Storage.Root,
		filepath.Dir(c.Index.Path),
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
