// Package config loads the optional YAML configuration file used to supply
// defaults for the trmnl command. Any value given on the command line or in
// the environment takes precedence over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings that can be read from a file.
type Config struct {
	// KeyFile is the path of a file holding the hex encoded key
	KeyFile string `yaml:"key_file"`
	// Images is the directory holding encrypted screens
	Images string `yaml:"images"`
	// Manifest is the output path of the encrypted manifest
	Manifest string `yaml:"manifest"`
	// RefreshRate is the display refresh rate in seconds
	RefreshRate int `yaml:"refresh_rate"`
	// DB is the path of the screen catalog
	DB string `yaml:"db"`
}

// Load reads the configuration file at path. Unknown keys are rejected so
// typos aren't silently ignored.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := new(Config)
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if c.RefreshRate < 0 {
		return nil, fmt.Errorf("config: refresh_rate must be positive, got %d", c.RefreshRate)
	}

	return c, nil
}
