package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/dbusjq/internal/bus"
	"github.com/mcncl/dbusjq/internal/errors"
)

// DefaultQuery passes every record through unchanged.
const DefaultQuery = "."

// Config represents the complete configuration for dbusjq
type Config struct {
	Bus       string            `yaml:"bus"`
	Service   string            `yaml:"service"`
	Path      string            `yaml:"path"`
	Interface string            `yaml:"interface"`
	Signal    string            `yaml:"signal"`
	Query     string            `yaml:"query"`
	Variables map[string]string `yaml:"variables"`
	Output    OutputConfig      `yaml:"output"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Dev       DevConfig         `yaml:"dev"`
}

// OutputConfig controls how query results are printed
type OutputConfig struct {
	Raw   bool   `yaml:"raw"`
	Color string `yaml:"color"` // auto, always or never
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. "127.0.0.1:9464"; empty disables it
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug bool `yaml:"debug"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Query:     DefaultQuery,
		Variables: make(map[string]string),
		Output: OutputConfig{
			Raw:   false,
			Color: "auto",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Variables == nil {
		cfg.Variables = make(map[string]string)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".dbusjq.yml", ".dbusjq.yaml", "dbusjq.yml", "dbusjq.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// MergeConfigs merges CLI overrides into a base config.
// Non-empty values from override take precedence over base values; boolean
// flags can only switch an option on.
func MergeConfigs(base, override *Config) *Config {
	merged := *base
	merged.Variables = make(map[string]string, len(base.Variables)+len(override.Variables))
	for k, v := range base.Variables {
		merged.Variables[k] = v
	}
	for k, v := range override.Variables {
		merged.Variables[k] = v
	}

	if override.Bus != "" {
		merged.Bus = override.Bus
	}
	if override.Service != "" {
		merged.Service = override.Service
	}
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.Interface != "" {
		merged.Interface = override.Interface
	}
	if override.Signal != "" {
		merged.Signal = override.Signal
	}
	if override.Query != "" {
		merged.Query = override.Query
	}
	if override.Output.Color != "" {
		merged.Output.Color = override.Output.Color
	}
	if override.Metrics.Listen != "" {
		merged.Metrics.Listen = override.Metrics.Listen
	}
	if override.Output.Raw {
		merged.Output.Raw = true
	}
	if override.Dev.Debug {
		merged.Dev.Debug = true
	}

	return &merged
}

// LoadConfigWithCLI loads the config file (the given path, or one found by
// FindConfigFile) and applies CLI overrides on top of it
func LoadConfigWithCLI(configPath string, cli *Config) (*Config, error) {
	cfg := NewConfig()

	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	return MergeConfigs(cfg, cli), nil
}

// Validate reports the first missing or invalid setting
func (c *Config) Validate() error {
	if _, err := bus.ParseKind(c.Bus); err != nil {
		return err
	}
	if c.Service == "" {
		return errors.ErrMissingService
	}
	if c.Path == "" {
		return errors.ErrMissingPath
	}
	if c.Interface == "" {
		return errors.ErrMissingInterface
	}
	switch c.Output.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("%w: %q", errors.ErrInvalidColor, c.Output.Color)
	}
	return nil
}

// QueryVariables returns the variables exposed to the jq program: the
// target description plus any user-defined variables
func (c *Config) QueryVariables() map[string]string {
	vars := map[string]string{
		"bus":       c.Bus,
		"service":   c.Service,
		"path":      c.Path,
		"interface": c.Interface,
	}
	for k, v := range c.Variables {
		vars[k] = v
	}
	return vars
}
