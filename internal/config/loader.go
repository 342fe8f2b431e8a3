package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"integrationhub/pkg/logging"
)

const configFileName = "config.yaml"

// Load reads config.yaml from configPath over the Default() base. A
// missing file is not an error; the process runs on defaults.
func Load(configPath string) (Config, error) {
	cfg := Default()

	path := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "no config.yaml at %s, using defaults", path)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	logging.Info("ConfigLoader", "loaded configuration from %s", path)
	return cfg, nil
}
