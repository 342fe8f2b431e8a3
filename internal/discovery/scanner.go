// Package discovery implements the Auto-Discovery Scanner: a periodic
// task that enumerates integratable candidates from an external Service
// Manager collaborator and registers the ones not already known (spec
// §4.7).
package discovery

import (
	"context"
	"time"

	"integrationhub/internal/hub"
	"integrationhub/internal/registry"
	"integrationhub/pkg/logging"
)

const defaultScanInterval = 5 * time.Minute

// Candidate is one integratable service surfaced by the Service Manager
// collaborator.
type Candidate struct {
	Name           string
	Integratable   bool
	AlreadyRegistered bool
	HasOpenAPI     bool
	Config         map[string]interface{}
}

// ServiceManagerClient is the abstract collaborator the scanner polls
// for candidates (spec §4.7).
type ServiceManagerClient interface {
	ListCandidates(ctx context.Context) ([]Candidate, error)
}

// Config configures a Scanner.
type Config struct {
	Interval time.Duration
}

// Scanner drives the periodic scan loop.
type Scanner struct {
	client   ServiceManagerClient
	registry *registry.Registry
	interval time.Duration

	cancel context.CancelFunc
}

// New creates a Scanner. It does not start scanning until Start is called.
func New(client ServiceManagerClient, reg *registry.Registry, cfg Config) *Scanner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultScanInterval
	}
	return &Scanner{client: client, registry: reg, interval: interval}
}

// Start launches the periodic scan goroutine. Calling Start twice
// without an intervening Stop replaces the previous loop.
func (s *Scanner) Start(ctx context.Context) {
	s.Stop()
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.loop(loopCtx)
}

// Stop cancels the scan loop, if running.
func (s *Scanner) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scanner) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

// scanOnce runs a single scan pass. Per-candidate registration errors
// are logged and do not abort the scan (spec §4.7).
func (s *Scanner) scanOnce(ctx context.Context) {
	candidates, err := s.client.ListCandidates(ctx)
	if err != nil {
		logging.Warn("DiscoveryScanner", "listing candidates failed: %v", err)
		return
	}

	for _, c := range candidates {
		if !c.Integratable || c.AlreadyRegistered {
			continue
		}

		typ := hub.TypeAPIService
		if c.HasOpenAPI {
			typ = hub.TypeOpenAPI
		}

		_, err := s.registry.Register(ctx, registry.RegisterRequest{
			Name:   c.Name,
			Type:   typ,
			Config: c.Config,
			Options: registry.RegisterOptions{
				AutoDetectPort: true,
			},
		})
		if err != nil {
			logging.Warn("DiscoveryScanner", "registering discovered candidate %s failed: %v", c.Name, err)
			continue
		}
		logging.Info("DiscoveryScanner", "auto-registered discovered candidate %s as %s", c.Name, typ)
	}
}
