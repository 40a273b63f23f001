package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/dygy/gape-select/internal/effect"
)

// DefaultPath is where the config file is looked up when --config is not given
const DefaultPath = "~/.config/gape/config.yaml"

// Config is the on-disk configuration
type Config struct {
	// Sudo runs the display and control programs through sudo
	Sudo       bool            `yaml:"sudo"`
	Console    bool            `yaml:"console"`
	Display    ProcessConfig   `yaml:"display"`
	Control    ProcessConfig   `yaml:"control"`
	Serial     SerialConfig    `yaml:"serial"`
	Server     ServerConfig    `yaml:"server"`
	HistoryDir string          `yaml:"history_dir"`

	// RunDir holds pid files of the background drivers, shared by every run
	RunDir  string          `yaml:"run_dir"`
	Presets []effect.Preset `yaml:"presets"`

	// Path is the file the config was loaded from, empty for defaults
	Path string `yaml:"-"`
}

// ProcessConfig describes an external program fed with the encoded output
type ProcessConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

// SerialConfig describes the UART link to the DSP board
type SerialConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Sudo:    true,
		Console: true,
		Display: ProcessConfig{Enabled: true, Command: "./display_effect"},
		Control: ProcessConfig{Enabled: true, Command: "./send_effect"},
		Serial: SerialConfig{
			Enabled: false,
			Port:    "/dev/ttyUSB0",
			Baud:    9600,
		},
		Server:     ServerConfig{Port: 8080},
		HistoryDir: "~/.cache/gape/history",
		RunDir:     "~/.cache/gape/run",
	}
}

// Load reads the config at path over the defaults. A missing file is not an
// error: defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.resolve()
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}
	cfg.Path = expanded

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", expanded, err)
	}
	return cfg, nil
}

// resolve expands ~ in path-valued settings
func (c *Config) resolve() error {
	for _, p := range []*string{&c.HistoryDir, &c.RunDir, &c.Display.Command, &c.Control.Command, &c.Serial.Port} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks settings that would only fail later at dispatch time
func (c *Config) Validate() error {
	if c.Display.Enabled && c.Display.Command == "" {
		return errors.New("display.command is required when the display is enabled")
	}
	if c.Control.Enabled && c.Control.Command == "" {
		return errors.New("control.command is required when control is enabled")
	}
	if c.Serial.Enabled {
		if c.Serial.Port == "" {
			return errors.New("serial.port is required when serial is enabled")
		}
		if c.Serial.Baud <= 0 {
			return fmt.Errorf("invalid serial.baud %d", c.Serial.Baud)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// Catalog returns the built-in presets extended with the configured ones
func (c *Config) Catalog() (*effect.Catalog, error) {
	if len(c.Presets) == 0 {
		return effect.DefaultCatalog(), nil
	}
	catalog, err := effect.DefaultCatalog().Extend(c.Presets...)
	if err != nil {
		return nil, fmt.Errorf("presets: %w", err)
	}
	return catalog, nil
}

// ExpandPath expands a leading ~ and environment variables
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return os.ExpandEnv(p), nil
}
