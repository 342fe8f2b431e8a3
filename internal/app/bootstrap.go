// Package app assembles the Integration Hub's components into a
// runnable process: load configuration, wire the Port Allocator,
// Event Bus, Health Prober, Registry, Webhook Deliverer, Deintegration
// Manager, Auto-Discovery Scanner and HTTP edge together, then serve
// until signaled to stop.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"integrationhub/pkg/logging"
)

// Application is the bootstrapped, ready-to-run process.
type Application struct {
	opts     *Options
	services *Services
}

// NewApplication performs the bootstrap sequence: configure logging,
// load the hub configuration, and wire every component via
// InitializeServices.
func NewApplication(opts *Options) (*Application, error) {
	level := logging.LevelInfo
	if opts.Debug {
		level = logging.LevelDebug
	}
	var out io.Writer = os.Stdout
	logging.Init(level, out)

	services, err := InitializeServices(opts)
	if err != nil {
		logging.Error("Bootstrap", err, "failed to initialize services")
		return nil, fmt.Errorf("initializing services: %w", err)
	}

	return &Application{opts: opts, services: services}, nil
}

// Services exposes the wired components, e.g. for tests. The scanner's
// ServiceManagerClient is taken from DiscoveryClient when
// InitializeServices runs, not from anything set afterwards.
func (a *Application) Services() *Services { return a.services }

// Run starts the HTTP edge, the discovery scanner (if configured) and
// the watcher for config.yaml (if requested), then blocks until ctx is
// canceled or a termination signal arrives, tearing components down in
// the reverse order they were started.
func (a *Application) Run(ctx context.Context) error {
	return runServer(ctx, a.opts, a.services)
}
