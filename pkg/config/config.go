/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Transport kinds
const (
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
	TransportUnix  = "unix"
	TransportFile  = "file"
)

// Record protocols
const (
	ProtocolBinary = "binary"
	ProtocolLegacy = "legacy"
)

// Config represents the worker configuration
type Config struct {
	Transport Transport  `yaml:"transport"`
	Protocol  string     `yaml:"protocol"`
	Broadcast bool       `yaml:"broadcast"`
	Operator  Operator   `yaml:"operator"`
	Chain     []Operator `yaml:"chain,omitempty"`
	Metrics   Metrics    `yaml:"metrics"`
	Storage   Storage    `yaml:"storage"`
	Logging   Logging    `yaml:"logging"`
}

// Transport selects the physical channel to the host
type Transport struct {
	Kind       string `yaml:"kind"`
	Address    string `yaml:"address"`
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
	SignalAddr string `yaml:"signal_addr"`
	NotifyAddr string `yaml:"notify_addr"`
}

// Operator names a registered operator and its configuration
type Operator struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	Script string            `yaml:"script"`
	Params map[string]string `yaml:"params,omitempty"`
}

// Metrics contains the metrics endpoint configuration
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Storage contains the segment archive configuration
type Storage struct {
	Dir string `yaml:"dir"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Transport: Transport{
			Kind: TransportStdio,
		},
		Protocol:  ProtocolBinary,
		Broadcast: true,
		Operator: Operator{
			Name: "identity",
			Kind: "map",
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    ":9464",
		},
		Storage: Storage{
			Dir: "./segments",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration for the given transport
func BootstrapConfig(configPath string, transport string) (*Config, error) {
	config := DefaultConfig()
	if transport != "" {
		config.Transport.Kind = transport
	}
	if config.Transport.Kind == TransportFile {
		config.Transport.InputPath = "./tether.in"
		config.Transport.OutputPath = "./tether.out"
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration describes a runnable session
func (c *Config) Validate() error {
	var problems []string

	switch c.Transport.Kind {
	case TransportStdio:
	case TransportTCP, TransportUnix:
		if c.Transport.Address == "" {
			problems = append(problems, fmt.Sprintf("transport %s requires an address", c.Transport.Kind))
		}
	case TransportFile:
		if c.Transport.InputPath == "" || c.Transport.OutputPath == "" {
			problems = append(problems, "file transport requires input_path and output_path")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown transport %q", c.Transport.Kind))
	}

	switch c.Protocol {
	case ProtocolBinary, ProtocolLegacy:
	default:
		problems = append(problems, fmt.Sprintf("unknown protocol %q", c.Protocol))
	}

	if c.Operator.Name == "" {
		problems = append(problems, "operator name is required")
	}
	if c.Protocol == ProtocolLegacy && c.Operator.Kind == "cogroup" {
		problems = append(problems, "legacy protocol cannot carry co-group input")
	}
	for i, op := range c.Chain {
		if op.Name == "" {
			problems = append(problems, fmt.Sprintf("chain[%d]: operator name is required", i))
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		problems = append(problems, "metrics enabled without an address")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./tether.yaml"
	}

	// For Linux/macOS, use ~/.config/tether/config.yaml
	configDir := filepath.Join(homeDir, ".config", "tether")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
