package config

import "time"

// Config is the top-level configuration structure for the hub.
type Config struct {
	PortRange        PortRangeConfig   `yaml:"portRange"`
	EventBus         EventBusConfig    `yaml:"eventBus"`
	DeintegrationPath string           `yaml:"deintegrationPath"`
	AutoDiscovery    AutoDiscoveryConfig `yaml:"autoDiscovery"`
	HealthCheck      HealthCheckConfig `yaml:"healthCheck"`
	DevelopmentMode  bool              `yaml:"developmentMode,omitempty"`
}

// PortRangeConfig bounds the Port Allocator (spec §4.2).
type PortRangeConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// EventBusConfig tunes the bounded event history ring (spec §4.4).
type EventBusConfig struct {
	MaxHistorySize int   `yaml:"maxHistorySize"`
	DefaultTTLMs   int64 `yaml:"defaultTtlMs"`
}

// AutoDiscoveryConfig tunes the Auto-Discovery Scanner (spec §4.7).
type AutoDiscoveryConfig struct {
	Enabled        bool  `yaml:"enabled"`
	ScanIntervalMs int64 `yaml:"scanIntervalMs"`
}

// HealthCheckConfig holds the configured health-check defaults (spec
// §4.3). They are loaded but not passed to the Registry or Health
// Prober, which use their own fallbacks (30 s interval; the type's
// health timeout, else 5 s).
type HealthCheckConfig struct {
	DefaultIntervalMs int64 `yaml:"defaultIntervalMs"`
	DefaultTimeoutMs  int64 `yaml:"defaultTimeoutMs"`
}

// ScanInterval returns AutoDiscovery.ScanIntervalMs as a time.Duration.
func (c AutoDiscoveryConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

// DefaultInterval returns HealthCheck.DefaultIntervalMs as a time.Duration.
func (c HealthCheckConfig) DefaultInterval() time.Duration {
	return time.Duration(c.DefaultIntervalMs) * time.Millisecond
}

// DefaultTimeout returns HealthCheck.DefaultTimeoutMs as a time.Duration.
func (c HealthCheckConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}
