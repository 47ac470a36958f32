package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"hope/internal/logging"
)

// DefaultSocketPath is where client and server meet when nothing else is
// configured.
const DefaultSocketPath = "/tmp/hope.sock"

// Environment variables read by ApplyEnv and the CLI.
const (
	EnvConfig   = "HOPE_CONFIG"
	EnvSocket   = "HOPE_SOCKET"
	EnvLogLevel = "HOPE_LOG_LEVEL"
	EnvHTTPAddr = "HOPE_HTTP_ADDR"
)

// Config represents the application configuration
type Config struct {
	// Path of the Unix socket used for IPC
	Socket string `yaml:"socket" toml:"socket"`

	// One of off, error, warn, info, debug, trace
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// Listen address of the inspection API; empty disables it
	HTTPAddr string `yaml:"http_addr,omitempty" toml:"http_addr,omitempty"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Socket:   DefaultSocketPath,
		LogLevel: string(logging.DefaultLevel),
	}
}

// Load reads a YAML or TOML file over the defaults. The format follows the
// extension. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSocket); ok && v != "" {
		c.Socket = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvHTTPAddr); ok {
		c.HTTPAddr = v
	}
}

// Level returns the parsed log level.
func (c *Config) Level() (logging.Level, error) {
	return logging.ParseLevel(c.LogLevel)
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Socket == "" {
		return errors.New("socket path must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}
