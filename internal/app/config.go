package app

import (
	"integrationhub/internal/config"
)

// Options holds the process-level flags that steer bootstrap, as
// distinct from the hub's own Config (port range, event bus tuning,
// etc.) which is loaded from config.yaml.
type Options struct {
	// Debug raises the logging level to Debug.
	Debug bool

	// ConfigPath is the directory config.yaml (if any) lives in.
	ConfigPath string

	// HTTPAddr is the address the HTTP edge listens on.
	HTTPAddr string

	// WatchConfig enables fsnotify-based watching of config.yaml; a
	// change is reloaded and logged, not applied to running components.
	WatchConfig bool
}

// NewOptions builds an Options with the given flags and the default
// HTTP bind address.
func NewOptions(debug bool, configPath string) *Options {
	return &Options{
		Debug:      debug,
		ConfigPath: configPath,
		HTTPAddr:   ":8080",
	}
}

// loadHubConfig resolves the process configuration for the given options.
func loadHubConfig(opts *Options) (config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(opts.ConfigPath)
}
