// Package config loads kernel configuration from the environment, with
// boot-time overrides read from /etc/oopis.conf inside the virtual
// filesystem.
package config

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all kernel configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	VFS       VFSConfig
	Shell     ShellConfig
	Sudo      SudoConfig
	Session   SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the HTTP/WebSocket surface configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// StorageConfig holds the durable store configuration.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" default:"oopis.db"`
}

// VFSConfig holds virtual filesystem limits.
type VFSConfig struct {
	MaxSize     int64 `envconfig:"VFS_MAX_SIZE" default:"671088640"` // 640 MiB
	MaxSymlinks int   `envconfig:"VFS_MAX_SYMLINKS" default:"40"`
}

// ShellConfig holds executor bounds.
type ShellConfig struct {
	MaxScriptDepth int `envconfig:"SHELL_MAX_SCRIPT_DEPTH" default:"10"`
	MaxScriptSteps int `envconfig:"SHELL_MAX_SCRIPT_STEPS" default:"10000"`
	HistoryLimit   int `envconfig:"SHELL_HISTORY_LIMIT" default:"50"`
	StackLimit     int `envconfig:"SHELL_STACK_LIMIT" default:"8"`
}

// SudoConfig holds privilege elevation settings.
type SudoConfig struct {
	TimeoutMinutes int `envconfig:"SUDO_TIMEOUT_MINUTES" default:"15"`
}

// SessionConfig holds snapshot settings.
type SessionConfig struct {
	SchemaVersion int `envconfig:"SESSION_SCHEMA_VERSION" default:"1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP rate limiting for the wire surface.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("OOPIS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns defaults.
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
		Server:    ServerConfig{Port: "8000", Host: "0.0.0.0"},
		Storage:   StorageConfig{Path: "oopis.db"},
		VFS:       VFSConfig{MaxSize: 640 << 20, MaxSymlinks: 40},
		Shell:     ShellConfig{MaxScriptDepth: 10, MaxScriptSteps: 10000, HistoryLimit: 50, StackLimit: 8},
		Sudo:      SudoConfig{TimeoutMinutes: 15},
		Session:   SessionConfig{SchemaVersion: 1},
		Logging:   LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200, Enabled: true},
	}
}

// Overrides is the subset of configuration adjustable from /etc/oopis.conf.
// Zero values leave the corresponding setting untouched.
type Overrides struct {
	VFSMaxSize     int64 `yaml:"vfs_max_size"`
	HistoryLimit   int   `yaml:"history_limit"`
	StackLimit     int   `yaml:"stack_limit"`
	SudoTimeout    int   `yaml:"sudo_timeout_minutes"`
	MaxScriptDepth int   `yaml:"max_script_depth"`
	MaxScriptSteps int   `yaml:"max_script_steps"`
}

// ApplyOverrides parses /etc/oopis.conf content and folds it into cfg.
// A malformed file is reported but must not abort boot.
func (c *Config) ApplyOverrides(content []byte) error {
	var o Overrides
	if err := yaml.Unmarshal(content, &o); err != nil {
		return fmt.Errorf("parse oopis.conf: %w", err)
	}
	if o.VFSMaxSize > 0 {
		c.VFS.MaxSize = o.VFSMaxSize
	}
	if o.HistoryLimit > 0 {
		c.Shell.HistoryLimit = o.HistoryLimit
	}
	if o.StackLimit > 0 {
		c.Shell.StackLimit = o.StackLimit
	}
	if o.SudoTimeout > 0 {
		c.Sudo.TimeoutMinutes = o.SudoTimeout
	}
	if o.MaxScriptDepth > 0 {
		c.Shell.MaxScriptDepth = o.MaxScriptDepth
	}
	if o.MaxScriptSteps > 0 {
		c.Shell.MaxScriptSteps = o.MaxScriptSteps
	}
	return nil
}
