package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-mcumgr/protocol"
	"github.com/moffa90/go-mcumgr/transport"
)

// defaultConfigName is looked up in the home directory when --config is not
// given.
const defaultConfigName = ".mcumgr.yaml"

// Config is the connection profile read from the config file and flags.
type Config struct {
	Conn     string   `yaml:"conn"`
	MTU      int      `yaml:"mtu,omitempty"`
	Format   string   `yaml:"format,omitempty"`
	Version  int      `yaml:"version,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
	Capacity int      `yaml:"capacity,omitempty"`
	Verbose  bool     `yaml:"verbose,omitempty"`
	LogJSON  bool     `yaml:"log_json,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "3s", "500ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "3s" or "1m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func defaultConfig() Config {
	return Config{
		Format:   "cbor",
		Timeout:  Duration{5 * time.Second},
		Capacity: 4,
	}
}

// Load reads a YAML config file over the defaults. Environment variables in
// the file are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &cfg, nil
}

// loadDefault loads path, or ~/.mcumgr.yaml when path is empty. A missing
// default file yields the defaults.
func loadDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		cfg := defaultConfig()
		return &cfg, nil
	}
	path = filepath.Join(home, defaultConfigName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := defaultConfig()
		return &cfg, nil
	}
	return Load(path)
}

// Validate checks the settings a connection needs.
func (c *Config) Validate() error {
	if c.Conn == "" {
		return errors.New("no connection given (use --conn or set conn in the config file)")
	}
	if _, err := transport.ParseEndpoint(c.Conn); err != nil {
		return err
	}
	if _, err := protocol.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Version != int(protocol.VersionLegacy) && c.Version != int(protocol.Version2) {
		return fmt.Errorf("unsupported smp version %d (want 0 or 1)", c.Version)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", c.Capacity)
	}
	if c.MTU < 0 {
		return fmt.Errorf("mtu must not be negative, got %d", c.MTU)
	}
	return nil
}
