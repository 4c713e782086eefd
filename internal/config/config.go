// Package config holds the linestatus startup configuration and its yaml
// file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"linestatus/internal/element"
)

const (
	// DefaultType is the channel type used when none is given.
	DefaultType = "default"

	MinPollInterval     = 50 * time.Millisecond
	MaxPollInterval     = time.Second
	DefaultPollInterval = 100 * time.Millisecond

	// SingleInitial and MultiInitial are the starting values of the
	// single-element default and the multi-element preset.
	SingleInitial = 0.7
	MultiInitial  = 0.5
)

// Config is the full startup configuration. It is built once and not
// modified after the engine starts.
type Config struct {
	General  GeneralConfig   `yaml:"general"`
	Elements []ElementConfig `yaml:"elements"`
	Server   ServerConfig    `yaml:"server"`
}

// GeneralConfig contains process-wide settings
type GeneralConfig struct {
	Type           string        `yaml:"type"`
	DefaultElement string        `yaml:"default_element,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Debug          bool          `yaml:"debug"`
	Headless       bool          `yaml:"headless"`
	LogLevel       string        `yaml:"log_level"`
	LogFile        string        `yaml:"log_file,omitempty"`
}

// ServerConfig controls the 9P status filesystem
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ElementConfig describes one display element. Empty fields take defaults:
// the edge matching the orientation and orange.
type ElementConfig struct {
	Name        string   `yaml:"name"`
	Orientation string   `yaml:"orientation"`
	Position    string   `yaml:"position,omitempty"`
	Color       string   `yaml:"color,omitempty"`
	Initial     *float64 `yaml:"initial,omitempty"`
}

func ptr(v float64) *float64 { return &v }

// DefaultConfig returns a single vertical "volume" element on the right edge.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Type:         DefaultType,
			PollInterval: DefaultPollInterval,
			LogLevel:     "info",
		},
		Elements: []ElementConfig{{
			Name:        "volume",
			Orientation: "vertical",
			Color:       element.Orange.String(),
			Initial:     ptr(SingleInitial),
		}},
		Server: ServerConfig{Enabled: true},
	}
}

// MultiPreset returns the volume and brightness pair.
func MultiPreset() []ElementConfig {
	return []ElementConfig{
		{
			Name:        "volume",
			Orientation: "vertical",
			Position:    "right",
			Color:       element.Orange.String(),
			Initial:     ptr(MultiInitial),
		},
		{
			Name:        "brightness",
			Orientation: "horizontal",
			Position:    "bottom",
			Color:       element.Sky.String(),
			Initial:     ptr(MultiInitial),
		},
	}
}

// ConfigPath returns $XDG_CONFIG_HOME/linestatus/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "linestatus", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "linestatus", "config.yaml")
}

// Load reads the config at path, or ConfigPath() when path is empty. A
// missing file yields the defaults, which are written out for next time.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		if saveErr := Save(cfg, path); saveErr != nil {
			// Return defaults even if save fails
			return cfg, saveErr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Elements = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Elements) == 0 {
		cfg.Elements = DefaultConfig().Elements
	}
	return cfg, nil
}

// Save writes cfg to path with an explanatory header.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	header := `# linestatus configuration
#
# general.type selects the socket $XDG_RUNTIME_DIR/linestatus-<type>.sock, so
# several instances can run side by side.
#
# elements:
#   orientation  vertical | horizontal
#   position     right | bottom | left | top | X,Y (default: right for
#                vertical, bottom for horizontal)
#   color        RRGGBB
#   initial      0.0 - 1.0
#
# Command line flags override values in this file.

`
	data = append([]byte(header), data...)

	return os.WriteFile(path, data, 0644)
}

// validateName checks that a channel type or element name is safe for use in
// file paths and 9P names
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("name too long (max 64 characters)")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return fmt.Errorf("name contains invalid character: %c (only alphanumeric, hyphen, underscore allowed)", r)
		}
	}
	return nil
}

// Validate reports every problem found in cfg.
func (c *Config) Validate() error {
	var errs []error
	if err := validateName(c.General.Type); err != nil {
		errs = append(errs, fmt.Errorf("type: %w", err))
	}
	if c.General.PollInterval < MinPollInterval || c.General.PollInterval > MaxPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval %s out of range [%s, %s]",
			c.General.PollInterval, MinPollInterval, MaxPollInterval))
	}
	if len(c.Elements) == 0 {
		errs = append(errs, errors.New("no elements configured"))
	}
	if _, err := c.Specs(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Specs converts the element list for registration.
func (c *Config) Specs() ([]element.Spec, error) {
	specs := make([]element.Spec, 0, len(c.Elements))
	for i, ec := range c.Elements {
		spec, err := ec.Spec()
		if err != nil {
			return nil, fmt.Errorf("elements[%d]: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// reservedNames are files at the root of the status filesystem. An element
// with one of these names could not be reached there.
var reservedNames = []string{"ctl", "list", "events"}

// Spec converts one element entry, filling in defaults.
func (ec ElementConfig) Spec() (element.Spec, error) {
	if err := validateName(ec.Name); err != nil {
		return element.Spec{}, err
	}
	if slices.Contains(reservedNames, ec.Name) {
		return element.Spec{}, fmt.Errorf("element name %q is reserved", ec.Name)
	}
	spec := element.Spec{Name: ec.Name, Color: element.Orange, Initial: MultiInitial}

	if ec.Orientation != "" {
		o, err := element.ParseOrientation(ec.Orientation)
		if err != nil {
			return element.Spec{}, fmt.Errorf("%s: %w", ec.Name, err)
		}
		spec.Orientation = o
	}
	spec.Anchor = element.DefaultAnchor(spec.Orientation)
	if ec.Position != "" {
		a, err := element.ParseAnchor(ec.Position)
		if err != nil {
			return element.Spec{}, fmt.Errorf("%s: %w", ec.Name, err)
		}
		spec.Anchor = a
	}
	if ec.Color != "" {
		col, err := element.ParseColor(ec.Color)
		if err != nil {
			return element.Spec{}, fmt.Errorf("%s: %w", ec.Name, err)
		}
		spec.Color = col
	}
	if ec.Initial != nil {
		if *ec.Initial < 0 || *ec.Initial > 1 {
			return element.Spec{}, fmt.Errorf("%s: initial %v out of range [0, 1]", ec.Name, *ec.Initial)
		}
		spec.Initial = *ec.Initial
	}
	return spec, nil
}
