package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up in the home directory.
const FileName = ".crd-explain.yaml"

// Config represents the tool's configuration
type Config struct {
	// Rules is the path of a GVK rule table. The built-in table is used if empty.
	Rules      string `yaml:"rules"`
	MaxDepth   int    `yaml:"maxDepth"`
	Format     string `yaml:"format"`
	Kubeconfig string `yaml:"kubeconfig"`
	Context    string `yaml:"context"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxDepth: 128,
		Format:   "markdown",
	}
}

// DefaultPath returns the configuration file in the home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, FileName)
}

// Load reads the configuration from path on top of the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.MaxDepth < 1 {
		return nil, fmt.Errorf("%s: maxDepth must be positive, got %d", path, cfg.MaxDepth)
	}
	return cfg, nil
}
