// Package config loads and optionally hot-reloads the Integration Hub's
// process configuration: port range, event bus tuning, the
// deintegration artifact directory, auto-discovery scheduling, and
// default health-check timing (spec §6 "Configuration inputs").
package config
