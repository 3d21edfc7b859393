package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// FileName is the project-local config filename.
const FileName = "snapcheck.toml"

// Output formats understood by the report renderer.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// DefaultMaxIconSize mirrors the pipeline's icon limit in bytes.
const DefaultMaxIconSize = 100_000

// Config holds snapcheck settings. It is resolved with Viper precedence:
// CLI flags > snapcheck.toml (project-local, or --config) >
// ~/.snapcheck/config.toml (global) > defaults.
type Config struct {
	LogLevel    string        `toml:"log_level" mapstructure:"log_level"`
	Output      string        `toml:"output" mapstructure:"output"`
	Jobs        int           `toml:"jobs" mapstructure:"jobs"`
	Timeout     time.Duration `toml:"-" mapstructure:"timeout"`
	MaxIconSize int           `toml:"max_icon_size" mapstructure:"max_icon_size"`
}

// fileConfig is the on-disk form of Config. Durations are written as
// strings such as "30s".
type fileConfig struct {
	LogLevel    string `toml:"log_level,omitempty"`
	Output      string `toml:"output,omitempty"`
	Jobs        int    `toml:"jobs,omitempty"`
	Timeout     string `toml:"timeout,omitempty"`
	MaxIconSize int    `toml:"max_icon_size,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:    logrus.InfoLevel.String(),
		Output:      OutputText,
		Jobs:        runtime.NumCPU(),
		MaxIconSize: DefaultMaxIconSize,
	}
}

// Load resolves configuration using Viper's merge semantics. configFile, if
// non-empty, replaces the project-local snapcheck.toml and must exist.
// overrides holds values set by CLI flags and takes highest precedence.
func Load(configFile string, overrides map[string]any) (*Config, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return nil, err
	}
	globalPath := filepath.Join(dir, "config.toml")

	if configFile != "" {
		return load(overrides, globalPath, configFile, true)
	}
	return load(overrides, globalPath, FileName, false)
}

// load is the internal implementation that accepts explicit paths, making
// it testable without touching the real home directory.
func load(overrides map[string]any, globalPath, localPath string, localRequired bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	def := Default()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("output", def.Output)
	v.SetDefault("jobs", def.Jobs)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("max_icon_size", def.MaxIconSize)

	// Lowest priority: global config, ignored if missing.
	if _, err := os.Stat(globalPath); err == nil {
		v.SetConfigFile(globalPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", globalPath, err)
		}
	}

	// Higher priority: project-local config.
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	} else if localRequired {
		return nil, fmt.Errorf("reading %s: %w", localPath, err)
	}

	// Highest priority: CLI flags
	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		errs = append(errs, fmt.Errorf("output: must be one of %q, %q or %q, got %q", OutputText, OutputJSON, OutputYAML, c.Output))
	}
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("jobs: must be at least 1, got %d", c.Jobs))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout: must not be negative, got %s", c.Timeout))
	}
	if c.MaxIconSize < 1 {
		errs = append(errs, fmt.Errorf("max_icon_size: must be positive, got %d", c.MaxIconSize))
	}

	return errors.Join(errs...)
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	fc := fileConfig{
		LogLevel:    c.LogLevel,
		Output:      c.Output,
		Jobs:        c.Jobs,
		MaxIconSize: c.MaxIconSize,
	}
	if c.Timeout > 0 {
		fc.Timeout = c.Timeout.String()
	}
	return toml.Marshal(fc)
}

// Write persists c to snapcheck.toml in the given project directory.
func Write(projectDir string, c *Config) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	path := filepath.Join(projectDir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// GlobalConfigDir returns the path to ~/.snapcheck.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".snapcheck"), nil
}
