// Package config loads the handful of process-wide settings SPEC_FULL.md's
// ambient configuration section names (default provider, default model
// names, shell timeout, colour override). It never governs policy: the
// policy document is always the JSON file described in internal/policy.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the process-wide settings loaded from config.yaml.
type Config struct {
	DefaultProvider    string            `yaml:"default_provider"`
	DefaultModels      map[string]string `yaml:"default_models"`
	ShellTimeoutMs     int               `yaml:"shell_timeout_ms"`
	ColorOverride      string            `yaml:"color_override"` // "", "always", "never"
	MetricsAddr        string            `yaml:"metrics_addr"`
}

// Default returns the built-in configuration used when no config.yaml exists.
func Default() Config {
	return Config{
		DefaultProvider: "",
		DefaultModels:   map[string]string{},
		ShellTimeoutMs:  120_000,
		ColorOverride:   "",
	}
}

// Load reads config.yaml at path. A missing file is not an error: Default()
// is returned instead. A present-but-malformed file is a ConfigurationError,
// surfaced by the caller.
func Load(path string) (Config, error) {
	cfg := Default()
	path = expandHomeDir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveProjectRoot returns the absolute directory mandate should treat as
// the current project: the process's current working directory.
func ResolveProjectRoot() string {
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// StateDir returns the hidden per-project directory (".mandate") under root,
// where policy.json, history, debug.log, and conversations/ live.
func StateDir(root string) string {
	return filepath.Join(root, ".mandate")
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
