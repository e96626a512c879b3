package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	appDirName     = "apiprobe"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns $XDG_CONFIG_HOME/apiprobe/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appDirName, configFileName)
}

// LoadConfig loads the configuration file at path on top of the defaults.
// An empty path means DefaultConfigPath. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	config := GetDefaultConfig()

	// #nosec G304 -- the path is chosen by the user running the CLI
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("No config file found, using defaults", "path", path)
			return config, nil
		}
		return Config{}, fmt.Errorf("error reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	slog.Debug("Loaded configuration", "path", path)
	return config, nil
}
