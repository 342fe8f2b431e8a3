package config

// Default returns the configuration used when no config.yaml is present
// and as the base that a loaded file is unmarshaled over.
func Default() Config {
	return Config{
		PortRange:         PortRangeConfig{Min: 3000, Max: 9999},
		EventBus:          EventBusConfig{MaxHistorySize: 1000, DefaultTTLMs: 0},
		DeintegrationPath: "./data/deintegrations",
		AutoDiscovery:     AutoDiscoveryConfig{Enabled: false, ScanIntervalMs: 5 * 60 * 1000},
		HealthCheck:       HealthCheckConfig{DefaultIntervalMs: 30000, DefaultTimeoutMs: 5000},
	}
}
