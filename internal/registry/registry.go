// Package registry implements the Integration Registry & Lifecycle
// Manager: validation, port-conflict resolution, the health-probing
// arm/disarm dance, and the active/unhealthy/disabled/removed state
// machine (spec §4.1).
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/hub"
	"integrationhub/internal/portalloc"
	"integrationhub/pkg/logging"
)

// RegisterOptions mirrors spec §4.1's req.options.
type RegisterOptions struct {
	SkipHealthCheck  bool
	AutoDetectPort   bool
	BypassHealthCheck bool
}

// RegisterRequest mirrors spec §4.1's req. ID is normally left blank so
// Register assigns a fresh one; Reintegrate sets it to the original
// integration id so the id survives a deintegration/reintegration
// round-trip (spec §4.6 "registers it using the original integrationId").
type RegisterRequest struct {
	ID      string
	Name    string
	Type    hub.IntegrationType
	Config  map[string]interface{}
	Options RegisterOptions
}

// ListFilter mirrors spec §6's list filter.
type ListFilter struct {
	Type   hub.IntegrationType
	Status hub.Status
	Tag    string
}

// Registry is the process-wide singleton managing integration records.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*hub.Integration

	ports  *portalloc.Allocator
	prober *healthprobe.Prober
	bus    *eventbus.Bus

	developmentMode bool

	initializers map[hub.IntegrationType]TypeInitializer
}

// TypeInitializer performs the type-specific step of spec §4.1's
// Register algorithm (step 7) and returns the optional capability
// Handle to attach to the record. Defined as a type alias (rather than a
// named defined type) so collaborator packages can declare a narrow
// SetInitializer interface against the literal func signature without
// importing this package.
type TypeInitializer = func(ctx context.Context, record *hub.Integration) (hub.Handle, error)

// New creates a Registry wired to the given singletons.
func New(ports *portalloc.Allocator, prober *healthprobe.Prober, bus *eventbus.Bus, developmentMode bool) *Registry {
	return &Registry{
		records:         make(map[string]*hub.Integration),
		ports:           ports,
		prober:          prober,
		bus:             bus,
		developmentMode: developmentMode,
		initializers:    make(map[hub.IntegrationType]TypeInitializer),
	}
}

// SetInitializer registers (or overrides) the type-specific initializer
// for typ. Intended to be called once per type during wiring.
func (r *Registry) SetInitializer(typ hub.IntegrationType, fn TypeInitializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initializers[typ] = fn
}

// Bus exposes the registry's event bus so collaborators (webhook
// deliverer, HTTP edge) can subscribe without a second singleton.
func (r *Registry) Bus() *eventbus.Bus { return r.bus }

// Register validates req, resolves a port, optionally health-probes,
// runs type-specific initialization, and inserts the record as active
// (spec §4.1).
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if req.Name == "" {
		return "", hub.NewMissingFieldError("name")
	}
	if req.Type == "" {
		return "", hub.NewMissingFieldError("type")
	}

	tc, ok := hub.LookupType(req.Type)
	if !ok {
		return "", hub.NewInvalidTypeError(string(req.Type))
	}

	for _, field := range tc.RequiredFields {
		if _, present := req.Config[field]; !present {
			return "", hub.NewMissingFieldError(field)
		}
	}

	cfg := cloneConfig(req.Config)

	var allocatedPort *int
	var originalPort *int

	if req.Options.AutoDetectPort && tc.DefaultPort != nil {
		port, err := r.ports.FindAndAcquire(*tc.DefaultPort, 100, req.Name)
		if err != nil {
			return "", err
		}
		allocatedPort = &port
		cfg["port"] = port
	} else if rawPort, present := cfg["port"]; present {
		port, ok := asInt(rawPort)
		if !ok {
			return "", hub.NewMissingFieldError("port")
		}
		if acquired, ok := r.ports.TryAcquire(port, req.Name); ok {
			allocatedPort = &acquired
		} else {
			newPort, err := r.ports.FindAndAcquire(port+1, 100, req.Name)
			if err != nil {
				return "", err
			}
			orig := port
			originalPort = &orig
			cfg["originalPort"] = port
			cfg["port"] = newPort
			rewritePortURLs(cfg, port, newPort)
			allocatedPort = &newPort
		}
	}

	release := func() {
		if allocatedPort != nil {
			r.ports.Release(*allocatedPort)
		}
	}

	if !req.Options.SkipHealthCheck {
		if url := healthProbeURL(cfg, tc); url != "" {
			err := r.prober.ProbeInitial(ctx, url, tc.HealthTimeout)
			if err != nil && !req.Options.BypassHealthCheck && !r.developmentMode {
				release()
				return "", hub.NewServiceUnreachableError(url, err)
			}
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	record := hub.NewIntegration(id, req.Name, req.Type, cfg, tc)
	record.SetAllocatedPort(allocatedPort)
	record.SetOriginalPort(originalPort)
	record.SetHealthCheck(buildHealthCheckConfig(cfg, tc))

	if init, ok := r.typeInitializer(req.Type); ok {
		handle, err := init(ctx, record)
		if err != nil {
			release()
			record.Transition(hub.StatusFailed)
			return "", hub.NewRegistrationFailedError(err)
		}
		record.SetHandle(handle)
	}

	record.MarkRegistered()

	r.mu.Lock()
	r.records[id] = record
	r.mu.Unlock()

	r.bus.Publish(ctx, "integration.registered", record.Snapshot(), eventbus.PublishOptions{})

	if record.HealthCheck().Enabled && tc.HealthPath != "" {
		r.armProbe(record)
	}

	logging.Info("Registry", "registered integration %s (%s) as %s", record.Name(), record.ID(), req.Type)
	return id, nil
}

func (r *Registry) typeInitializer(typ hub.IntegrationType) (TypeInitializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	init, ok := r.initializers[typ]
	return init, ok
}

// Get returns the live record for id.
func (r *Registry) Get(id string) (*hub.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, hub.NewNotFoundError(id)
	}
	return rec, nil
}

// List returns records matching filter's Type and Status; order is
// unspecified (spec §4.1). filter.Tag is not applied: records carry no
// tags, so it filters nothing out.
func (r *Registry) List(filter ListFilter) []hub.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]hub.Snapshot, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Type != "" && rec.Type() != filter.Type {
			continue
		}
		if filter.Status != "" && rec.Status() != filter.Status {
			continue
		}
		out = append(out, rec.Snapshot())
	}
	return out
}

// UpdateConfig re-validates and merges patch into the record's config,
// re-arming the health prober if the health URL changed.
func (r *Registry) UpdateConfig(ctx context.Context, id string, patch map[string]interface{}) (*hub.Integration, error) {
	rec, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Status() == hub.StatusRemoved {
		return nil, hub.NewImmutableError(id)
	}

	cfg := rec.Config()
	for k, v := range patch {
		cfg[k] = v
	}
	rec.SetConfig(cfg)

	tc := rec.TypeConfig()
	rec.SetHealthCheck(buildHealthCheckConfig(cfg, tc))

	if rec.HealthCheck().Enabled && tc.HealthPath != "" && (rec.Status() == hub.StatusActive || rec.Status() == hub.StatusUnhealthy) {
		r.armProbe(rec)
	}
	return rec, nil
}

// Enable transitions a disabled record back to active, idempotently,
// and re-arms its health prober.
func (r *Registry) Enable(ctx context.Context, id string) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if rec.Status() == hub.StatusRemoved {
		return hub.NewImmutableError(id)
	}
	if rec.Status() != hub.StatusDisabled {
		return nil // idempotent
	}
	rec.Transition(hub.StatusActive)
	if rec.HealthCheck().Enabled && rec.TypeConfig().HealthPath != "" {
		r.armProbe(rec)
	}
	r.bus.Publish(ctx, "integration.enabled", rec.Snapshot(), eventbus.PublishOptions{})
	return nil
}

// Disable transitions active/unhealthy to disabled, idempotently,
// canceling any scheduled probe. Webhook subscriptions are not
// canceled; they stay registered on the bus, and the webhook deliverer
// skips records that are not active.
func (r *Registry) Disable(ctx context.Context, id string) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	if rec.Status() == hub.StatusRemoved {
		return hub.NewImmutableError(id)
	}
	if rec.Status() == hub.StatusDisabled {
		return nil // idempotent
	}
	rec.Transition(hub.StatusDisabled)
	rec.CancelProbe()
	r.bus.Publish(ctx, "integration.disabled", rec.Snapshot(), eventbus.PublishOptions{})
	return nil
}

// ReportHealth implements healthprobe.Reporter: it applies one probe
// outcome to the record and emits :unhealthy/:recovered transitions.
func (r *Registry) ReportHealth(id string, ok bool, probeErr error, at time.Time, latency time.Duration) {
	rec, err := r.Get(id)
	if err != nil {
		return // record removed between schedule and outcome
	}
	newStatus, changed := rec.RecordHealthOutcome(ok, probeErr, at, latency)
	if !changed {
		return
	}
	switch newStatus {
	case hub.StatusUnhealthy:
		logging.Warn("Registry", "integration %s became unhealthy: %v", id, probeErr)
		r.bus.Publish(context.Background(), "integration.unhealthy", rec.Snapshot(), eventbus.PublishOptions{})
	case hub.StatusActive:
		logging.Info("Registry", "integration %s recovered", id)
		r.bus.Publish(context.Background(), "integration.recovered", rec.Snapshot(), eventbus.PublishOptions{})
	}
}

// armProbe builds a probe target adapter for rec and arms the prober.
func (r *Registry) armProbe(rec *hub.Integration) {
	target := probeTarget{rec: rec}
	r.prober.Arm(target, r)
	rec.SetProbeCancel(func() { r.prober.Disarm(rec.ID()) })
}

// --- Deintegration-facing handle -------------------------------------

// ReleasePort releases a leased port back to the allocator. Nothing in
// this module calls it; FinalizeRemoval releases the port itself.
func (r *Registry) ReleasePort(port int) { r.ports.Release(port) }

// FinalizeRemoval transitions a record to removed, cancels its probe,
// unsubscribes any webhook subscriptions, releases its port, and drops
// it from the live map (spec §4.6 step 6, §8 port-release property).
func (r *Registry) FinalizeRemoval(ctx context.Context, id string) error {
	rec, err := r.Get(id)
	if err != nil {
		return err
	}
	rec.Transition(hub.StatusRemoved)
	rec.CancelProbe()
	rec.UnsubscribeAll()
	if port := rec.AllocatedPort(); port != nil {
		r.ports.Release(*port)
	}

	r.mu.Lock()
	delete(r.records, id)
	r.mu.Unlock()

	r.bus.Publish(ctx, "integration.removed", rec.Snapshot(), eventbus.PublishOptions{})
	return nil
}

// MarkFailed transitions a record to failed and releases its port.
// Nothing in this module calls it: a failed deintegration pipeline
// leaves the integration record's status and port lease unchanged.
func (r *Registry) MarkFailed(id string) {
	rec, err := r.Get(id)
	if err != nil {
		return
	}
	rec.Transition(hub.StatusFailed)
	if port := rec.AllocatedPort(); port != nil {
		r.ports.Release(*port)
	}
}

// --- helpers -----------------------------------------------------------

type probeTarget struct{ rec *hub.Integration }

func (t probeTarget) ID() string { return t.rec.ID() }
func (t probeTarget) HealthURL() string { return t.rec.HealthCheck().URL }
func (t probeTarget) Interval() time.Duration {
	return time.Duration(t.rec.HealthCheck().IntervalMs) * time.Millisecond
}
func (t probeTarget) Timeout() time.Duration {
	return time.Duration(t.rec.HealthCheck().TimeoutMs) * time.Millisecond
}

func cloneConfig(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func rewritePortURLs(cfg map[string]interface{}, oldPort, newPort int) {
	oldSuffix := fmt.Sprintf(":%d", oldPort)
	newSuffix := fmt.Sprintf(":%d", newPort)
	for _, key := range []string{"apiUrl", "url"} {
		if raw, ok := cfg[key].(string); ok && strings.Contains(raw, oldSuffix) {
			cfg[key] = strings.ReplaceAll(raw, oldSuffix, newSuffix)
		}
	}
}

func healthProbeURL(cfg map[string]interface{}, tc hub.TypeConfig) string {
	if tc.HealthPath == "" {
		return ""
	}
	base, _ := cfg["apiUrl"].(string)
	if base == "" {
		base, _ = cfg["url"].(string)
	}
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + tc.HealthPath
}

const defaultHealthIntervalMs = 30000

func buildHealthCheckConfig(cfg map[string]interface{}, tc hub.TypeConfig) hub.HealthCheckConfig {
	url := healthProbeURL(cfg, tc)

	interval := defaultHealthIntervalMs
	if ms, ok := asInt(cfg["healthCheckIntervalMs"]); ok && ms > 0 {
		interval = ms
	}

	timeout := int(tc.HealthTimeout.Milliseconds())
	if timeout <= 0 {
		timeout = 5000
	}
	if ms, ok := asInt(cfg["healthCheckTimeoutMs"]); ok && ms > 0 {
		timeout = ms
	}

	return hub.HealthCheckConfig{
		URL:        url,
		IntervalMs: interval,
		TimeoutMs:  timeout,
		Enabled:    url != "",
	}
}
