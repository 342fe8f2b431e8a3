package app

import (
	"fmt"
	"net/http"

	"integrationhub/internal/config"
	"integrationhub/internal/deintegration"
	"integrationhub/internal/discovery"
	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/httpapi"
	"integrationhub/internal/openapi"
	"integrationhub/internal/portalloc"
	"integrationhub/internal/registry"
	"integrationhub/internal/webhook"
	"integrationhub/pkg/logging"
)

// Services holds every component wired up by InitializeServices, in
// the order spec §4 builds them: Port Allocator, Event Bus, Health
// Prober, Integration Registry, Webhook Deliverer, Deintegration
// Manager, Auto-Discovery Scanner, HTTP edge.
type Services struct {
	Config config.Config

	Ports    *portalloc.Allocator
	Bus      *eventbus.Bus
	Prober   *healthprobe.Prober
	Registry *registry.Registry

	Deliverer *webhook.Deliverer
	Deint     *deintegration.Manager
	Scanner   *discovery.Scanner

	Router     *httpapi.Router
	HTTPServer *http.Server
}

// DiscoveryClient, when non-nil, is consulted by the Auto-Discovery
// Scanner. There is no concrete service-manager integration bundled
// with the hub (spec §1 calls the service manager an external
// collaborator reached only through an interface); callers that have
// one wire it in before calling InitializeServices.
var DiscoveryClient discovery.ServiceManagerClient

// InitializeServices wires every SPEC_FULL.md component together and
// returns the assembled Services, ready for Application.Run.
func InitializeServices(opts *Options) (*Services, error) {
	hubCfg, err := loadHubConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	ports := portalloc.New(hubCfg.PortRange.Min, hubCfg.PortRange.Max)
	bus := eventbus.New(eventbus.Config{
		MaxHistorySize: hubCfg.EventBus.MaxHistorySize,
		DefaultTTLMs:   hubCfg.EventBus.DefaultTTLMs,
	})
	prober := healthprobe.New()

	reg := registry.New(ports, prober, bus, hubCfg.DevelopmentMode)

	deliverer := webhook.New(webhook.Config{})
	webhook.WireInitializer(reg, deliverer)
	openapi.WireInitializer(reg)

	deint, err := deintegration.New(reg, bus, nil, hubCfg.DeintegrationPath)
	if err != nil {
		return nil, fmt.Errorf("initializing deintegration manager: %w", err)
	}

	var scanner *discovery.Scanner
	if hubCfg.AutoDiscovery.Enabled && DiscoveryClient != nil {
		scanner = discovery.New(DiscoveryClient, reg, discovery.Config{
			Interval: hubCfg.AutoDiscovery.ScanInterval(),
		})
	} else if hubCfg.AutoDiscovery.Enabled {
		logging.Warn("Bootstrap", "autoDiscovery.enabled is true but no ServiceManagerClient was wired; scanner disabled")
	}

	router := httpapi.NewRouter(reg, deint)

	return &Services{
		Config:     hubCfg,
		Ports:      ports,
		Bus:        bus,
		Prober:     prober,
		Registry:   reg,
		Deliverer:  deliverer,
		Deint:      deint,
		Scanner:    scanner,
		Router:     router,
		HTTPServer: &http.Server{Addr: opts.HTTPAddr, Handler: router.Handler()},
	}, nil
}
