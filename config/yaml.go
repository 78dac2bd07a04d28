package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// loadYAML overlays the values present in the file onto c. Keys missing from
// the file keep their current values.
func loadYAML(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}
