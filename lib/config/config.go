// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Resolve] reads when no
// --config flag is given.
const EnvironmentVariable = "NIXCALL_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for interactive use on a workstation.
	Development Environment = "development"
	// Production is for unattended use in services and CI.
	Production Environment = "production"
)

// Config is the master configuration for nixcall.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Nix configures the evaluator binaries and their environment.
	Nix NixConfig `yaml:"nix"`

	// GCRoot configures where temporary GC roots are created.
	GCRoot GCRootConfig `yaml:"gc_root"`

	// Cache configures the evaluation cache.
	Cache CacheConfig `yaml:"cache"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Nix    *NixConfig      `yaml:"nix,omitempty"`
	GCRoot *GCRootConfig   `yaml:"gc_root,omitempty"`
	Cache  *CacheOverrides `yaml:"cache,omitempty"`
	Log    *LogConfig      `yaml:"log,omitempty"`
}

// NixConfig configures how the evaluator is invoked.
type NixConfig struct {
	// Instantiate is the nix-instantiate binary: a bare name resolved
	// through PATH and the Nix default profile, or a path.
	// Default: nix-instantiate
	Instantiate string `yaml:"instantiate"`

	// Build is the nix-build binary.
	// Default: nix-build
	Build string `yaml:"build"`

	// NixPath entries are joined into NIX_PATH for the child process.
	// Empty leaves the inherited NIX_PATH alone.
	NixPath []string `yaml:"nix_path"`

	// Env adds variables to the child environment.
	Env map[string]string `yaml:"env"`
}

// GCRootConfig configures temporary GC root placement.
type GCRootConfig struct {
	// Dir is the parent of the per-call GC root directories.
	// Default: empty, meaning $XDG_RUNTIME_DIR when writable, else the
	// system temporary directory.
	Dir string `yaml:"dir"`
}

// CacheConfig configures the evaluation cache.
type CacheConfig struct {
	// Enabled turns on caching of eval results.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Dir is the cache root.
	// Default: <user cache dir>/nixcall/eval
	Dir string `yaml:"dir"`

	// Compression for new entries: none, lz4, or zstd.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// CacheOverrides is CacheConfig with an optional Enabled, so an
// override section can leave it unset.
type CacheOverrides struct {
	Enabled     *bool  `yaml:"enabled,omitempty"`
	Dir         string `yaml:"dir,omitempty"`
	Compression string `yaml:"compression,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. LoadFile decodes the file
// over it, so fields the file omits keep these values.
func Default() *Config {
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = os.TempDir()
	}

	return &Config{
		Environment: Development,
		Nix: NixConfig{
			Instantiate: "nix-instantiate",
			Build:       "nix-build",
		},
		Cache: CacheConfig{
			Enabled:     false,
			Dir:         filepath.Join(cacheRoot, "nixcall", "eval"),
			Compression: "zstd",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve picks the configuration for a command: flagPath if set, else
// the file named by NIXCALL_CONFIG, else [Default]. The result is
// validated.
func Resolve(flagPath string) (*Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}

	var cfg *Config
	if path == "" {
		cfg = Default()
		cfg.applyEnvironmentOverrides()
		cfg.expandVariables()
	} else {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from a specific file path.
//
// The file is the single source of truth. The only expansion performed
// is ${HOME} and similar variables in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Nix != nil {
		if overrides.Nix.Instantiate != "" {
			c.Nix.Instantiate = overrides.Nix.Instantiate
		}
		if overrides.Nix.Build != "" {
			c.Nix.Build = overrides.Nix.Build
		}
		if len(overrides.Nix.NixPath) > 0 {
			c.Nix.NixPath = overrides.Nix.NixPath
		}
		for key, value := range overrides.Nix.Env {
			if c.Nix.Env == nil {
				c.Nix.Env = make(map[string]string)
			}
			c.Nix.Env[key] = value
		}
	}

	if overrides.GCRoot != nil && overrides.GCRoot.Dir != "" {
		c.GCRoot.Dir = overrides.GCRoot.Dir
	}

	if overrides.Cache != nil {
		if overrides.Cache.Enabled != nil {
			c.Cache.Enabled = *overrides.Cache.Enabled
		}
		if overrides.Cache.Dir != "" {
			c.Cache.Dir = overrides.Cache.Dir
		}
		if overrides.Cache.Compression != "" {
			c.Cache.Compression = overrides.Cache.Compression
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Nix.Instantiate = expandVars(c.Nix.Instantiate, vars)
	c.Nix.Build = expandVars(c.Nix.Build, vars)
	for i, entry := range c.Nix.NixPath {
		c.Nix.NixPath[i] = expandVars(entry, vars)
	}
	c.GCRoot.Dir = expandVars(c.GCRoot.Dir, vars)
	c.Cache.Dir = expandVars(c.Cache.Dir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	if c.Nix.Instantiate == "" {
		errs = append(errs, errors.New("nix.instantiate is required"))
	}
	if c.Nix.Build == "" {
		errs = append(errs, errors.New("nix.build is required"))
	}
	for key := range c.Nix.Env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			errs = append(errs, fmt.Errorf("nix.env: invalid variable name %q", key))
		}
	}

	if c.GCRoot.Dir != "" && !filepath.IsAbs(c.GCRoot.Dir) {
		errs = append(errs, fmt.Errorf("gc_root.dir must be absolute, got %q", c.GCRoot.Dir))
	}

	compressions := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressions, c.Cache.Compression) {
		errs = append(errs, fmt.Errorf("cache.compression must be one of: %v", compressions))
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required when cache.enabled is true"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// ChildEnv returns Nix.Env as KEY=VALUE entries sorted by key.
func (c *Config) ChildEnv() []string {
	keys := make([]string, 0, len(c.Nix.Env))
	for key := range c.Nix.Env {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, key+"="+c.Nix.Env[key])
	}
	return entries
}
