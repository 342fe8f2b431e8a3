// Package deintegration drives integration removal through the
// six-step pipeline of spec §4.6: validate, notify dependents, save
// state, cleanup (policy-dispatched), verify cleanup, persist record.
package deintegration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/hub"
	"integrationhub/internal/registry"
	"integrationhub/pkg/logging"
)

const (
	notifyGracePeriod  = 60 * time.Second
	gracefulPollPeriod = 1 * time.Second
	gracefulPollMax    = 60 * time.Second
)

// Notifier sends a removal notice to one dependent service (spec §4.6
// step 2). Implementations are expected to apply their own transport,
// this package only bounds the call with a grace-period deadline.
type Notifier interface {
	Notify(ctx context.Context, dependentID string, notice string) error
}

// NoopNotifier is used when no dependents collaborator is wired; every
// call reports success since there is nothing to notify.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, dependentID string, notice string) error { return nil }

// Manager is the process-wide Deintegration Manager singleton.
type Manager struct {
	registry *registry.Registry
	bus      *eventbus.Bus
	notifier Notifier
	dir      string

	mu      sync.Mutex
	history map[string]*Record
	timers  map[string]*time.Timer
}

// New creates a Manager. dir is created if absent.
func New(reg *registry.Registry, bus *eventbus.Bus, notifier Notifier, dir string) (*Manager, error) {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("deintegration: creating %s: %w", dir, err)
	}
	return &Manager{
		registry: reg,
		bus:      bus,
		notifier: notifier,
		dir:      dir,
		history:  make(map[string]*Record),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Delete begins deintegration of integrationId under opts, returning the
// new deintegration record's id. For immediate/graceful policies it runs
// the pipeline to completion before returning; for scheduled/manual it
// returns as soon as the pipeline reaches the point where it must wait
// (spec §4.6 step 4).
func (m *Manager) Delete(ctx context.Context, integrationID string, opts Options) (string, error) {
	rec, err := m.registry.Get(integrationID)
	if err != nil {
		return "", err
	}

	record := &Record{
		ID:              uuid.NewString(),
		IntegrationID:   integrationID,
		IntegrationName: rec.Name(),
		AdapterType:     string(rec.Type()),
		Policy:          opts.Policy,
		StartedAt:       time.Now(),
		Status:          StatusInProgress,
	}
	m.storeHistory(record)

	m.bus.Publish(ctx, "deintegration.started", record, eventbus.PublishOptions{})

	if err := m.runValidate(ctx, rec, record, opts); err != nil {
		record.Status = StatusFailed
		record.EndedAt = time.Now()
		return record.ID, err
	}

	m.runNotifyDependents(ctx, rec, record)

	if opts.PreserveData {
		if err := m.runSaveState(ctx, rec, record); err != nil {
			record.Status = StatusFailed
			record.EndedAt = time.Now()
			return record.ID, err
		}
	} else {
		m.skipStep(record, StepSaveState)
	}

	if err := m.runCleanup(ctx, rec, record, opts); err != nil {
		record.Status = StatusFailed
		record.EndedAt = time.Now()
		return record.ID, err
	}

	return record.ID, nil
}

func (m *Manager) storeHistory(record *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[record.ID] = record
}

func (m *Manager) skipStep(record *Record, name string) {
	record.Steps = append(record.Steps, Step{Name: name, StartedAt: time.Now(), EndedAt: time.Now(), Status: StepSkipped})
}

// --- step 1: validate ---------------------------------------------------

func (m *Manager) runValidate(ctx context.Context, rec *hub.Integration, record *Record, opts Options) error {
	step := Step{Name: StepValidate, StartedAt: time.Now(), Status: StepOK}

	if !opts.Force {
		cfg := rec.Config()
		active := configInt(cfg, "activeConnections")
		dependents := configStrings(cfg, "dependents")

		pending := 0
		if h := rec.Handle(); h != nil {
			pending = h.PendingOperations(ctx)
		}

		if active != 0 || pending != 0 || len(dependents) != 0 {
			step.Status = StepFailed
			step.Error = fmt.Sprintf("activeConnections=%d pendingOperations=%d dependents=%d", active, pending, len(dependents))
			step.EndedAt = time.Now()
			record.Steps = append(record.Steps, step)
			return hub.NewDeintegrationBlockedError(step.Error)
		}
	}

	step.EndedAt = time.Now()
	record.Steps = append(record.Steps, step)
	return nil
}

// --- step 2: notify dependents -------------------------------------------

func (m *Manager) runNotifyDependents(ctx context.Context, rec *hub.Integration, record *Record) {
	step := Step{Name: StepNotifyDependents, StartedAt: time.Now(), Status: StepOK}

	dependents := configStrings(rec.Config(), "dependents")
	checks := make([]DependentNotification, len(dependents))

	var g errgroup.Group
	for i, dep := range dependents {
		i, dep := i, dep
		g.Go(func() error {
			notifyCtx, cancel := context.WithTimeout(ctx, notifyGracePeriod)
			defer cancel()
			err := m.notifier.Notify(notifyCtx, dep, "integration:removing")

			check := DependentNotification{DependentID: dep, OK: err == nil}
			if err != nil {
				check.Error = err.Error()
				logging.Warn("DeintegrationManager", "notifying dependent %s of removal of %s failed: %v", dep, rec.ID(), err)
			}
			checks[i] = check
			return nil // a failed notification never aborts the pipeline
		})
	}
	_ = g.Wait()

	step.Checks = checks
	step.EndedAt = time.Now()
	record.Steps = append(record.Steps, step)
}

// --- step 3: save state ---------------------------------------------------

func (m *Manager) runSaveState(ctx context.Context, rec *hub.Integration, record *Record) error {
	step := Step{Name: StepSaveState, StartedAt: time.Now()}

	var state interface{}
	if h := rec.Handle(); h != nil {
		s, err := h.SaveState(ctx)
		if err != nil {
			step.Status = StepFailed
			step.Error = err.Error()
			step.EndedAt = time.Now()
			record.Steps = append(record.Steps, step)
			return hub.NewCleanupVerificationFailedError(fmt.Sprintf("save state failed: %v", err))
		}
		state = s
	}

	artifact := StateArtifact{
		IntegrationID:   rec.ID(),
		DeintegrationID: record.ID,
		Timestamp:       time.Now().UTC(),
		State:           state,
		Metadata:        StateArtifactMetadata{AdapterType: string(rec.Type()), Version: "1"},
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
		step.EndedAt = time.Now()
		record.Steps = append(record.Steps, step)
		return err
	}

	path := m.statePath(record.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
		step.EndedAt = time.Now()
		record.Steps = append(record.Steps, step)
		return err
	}

	step.Status = StepOK
	step.EndedAt = time.Now()
	record.Steps = append(record.Steps, step)
	return nil
}

// --- step 4: cleanup (policy-dispatched) ----------------------------------

func (m *Manager) runCleanup(ctx context.Context, rec *hub.Integration, record *Record, opts Options) error {
	step := Step{Name: StepCleanup, StartedAt: time.Now()}

	switch opts.Policy {
	case PolicyManual:
		step.Status = StepAwaitingConfirmation
		record.Status = StatusAwaitingConfirm
		record.Steps = append(record.Steps, step)
		m.bus.Publish(ctx, "deintegration.manual_required", record, eventbus.PublishOptions{})
		return nil

	case PolicyScheduled:
		if !opts.AtTime.After(time.Now()) {
			return m.runGracefulCleanup(ctx, rec, record, step)
		}
		step.Status = StepScheduled
		record.Status = StatusScheduled
		record.Steps = append(record.Steps, step)
		m.armTimer(record.ID, opts.AtTime, rec.ID())
		return nil

	case PolicyGraceful:
		return m.runGracefulCleanup(ctx, rec, record, step)

	default: // immediate
		if h := rec.Handle(); h != nil {
			if err := h.Cleanup(ctx); err != nil {
				step.Status = StepFailed
				step.Error = err.Error()
				step.EndedAt = time.Now()
				record.Steps = append(record.Steps, step)
				return hub.NewCleanupVerificationFailedError(err.Error())
			}
		}
		step.Status = StepOK
		step.EndedAt = time.Now()
		record.Steps = append(record.Steps, step)
		return m.finish(ctx, rec, record)
	}
}

func (m *Manager) runGracefulCleanup(ctx context.Context, rec *hub.Integration, record *Record, step Step) error {
	h := rec.Handle()
	if h != nil {
		if err := h.StopAcceptingOperations(ctx); err != nil {
			logging.Warn("DeintegrationManager", "stopAcceptingOperations on %s failed: %v", rec.ID(), err)
		}

		deadline := time.Now().Add(gracefulPollMax)
		for h.PendingOperations(ctx) > 0 && time.Now().Before(deadline) {
			time.Sleep(gracefulPollPeriod)
		}

		if err := h.Cleanup(ctx); err != nil {
			step.Status = StepFailed
			step.Error = err.Error()
			step.EndedAt = time.Now()
			record.Steps = append(record.Steps, step)
			return hub.NewCleanupVerificationFailedError(err.Error())
		}
	}

	step.Status = StepOK
	step.EndedAt = time.Now()
	record.Steps = append(record.Steps, step)
	return m.finish(ctx, rec, record)
}

func (m *Manager) armTimer(deintegrationID string, at time.Time, integrationID string) {
	timer := time.AfterFunc(time.Until(at), func() {
		m.mu.Lock()
		record, ok := m.history[deintegrationID]
		delete(m.timers, deintegrationID)
		m.mu.Unlock()
		if !ok {
			return
		}
		rec, err := m.registry.Get(integrationID)
		if err != nil {
			return
		}
		step := Step{Name: StepCleanup, StartedAt: time.Now()}
		record.Status = StatusInProgress
		_ = m.runGracefulCleanup(context.Background(), rec, record, step)
	})
	m.mu.Lock()
	m.timers[deintegrationID] = timer
	m.mu.Unlock()
}

// ConfirmManual resumes a manual-policy cleanup step as graceful (spec
// §4.6 step 4).
func (m *Manager) ConfirmManual(ctx context.Context, deintegrationID string) error {
	m.mu.Lock()
	record, ok := m.history[deintegrationID]
	m.mu.Unlock()
	if !ok {
		return hub.NewRecordNotFoundError(deintegrationID)
	}
	if record.Status != StatusAwaitingConfirm {
		return hub.NewDeintegrationBlockedError("deintegration is not awaiting manual confirmation")
	}

	rec, err := m.registry.Get(record.IntegrationID)
	if err != nil {
		return err
	}

	record.Status = StatusInProgress
	step := Step{Name: StepCleanup, StartedAt: time.Now()}
	return m.runGracefulCleanup(ctx, rec, record, step)
}

// --- steps 5-6: verify cleanup + persist record ---------------------------

func (m *Manager) finish(ctx context.Context, rec *hub.Integration, record *Record) error {
	verify := Step{Name: StepVerifyCleanup, StartedAt: time.Now()}

	if err := m.registry.FinalizeRemoval(ctx, rec.ID()); err != nil {
		verify.Status = StepFailed
		verify.Error = err.Error()
		verify.EndedAt = time.Now()
		record.Steps = append(record.Steps, verify)
		record.Status = StatusFailed
		record.EndedAt = time.Now()
		return hub.NewCleanupVerificationFailedError(err.Error())
	}
	if _, err := m.registry.Get(rec.ID()); err == nil {
		verify.Status = StepFailed
		verify.Error = "integration still present in registry after removal"
		verify.EndedAt = time.Now()
		record.Steps = append(record.Steps, verify)
		record.Status = StatusFailed
		record.EndedAt = time.Now()
		return hub.NewCleanupVerificationFailedError(verify.Error)
	}

	verify.Status = StepOK
	verify.EndedAt = time.Now()
	record.Steps = append(record.Steps, verify)

	persist := Step{Name: StepPersistRecord, StartedAt: time.Now()}
	record.Status = StatusCompleted
	record.EndedAt = time.Now()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		persist.Status = StepFailed
		persist.Error = err.Error()
		persist.EndedAt = time.Now()
		record.Steps = append(record.Steps, persist)
		return err
	}
	if err := os.WriteFile(m.recordPath(record.ID), data, 0o644); err != nil {
		persist.Status = StepFailed
		persist.Error = err.Error()
		persist.EndedAt = time.Now()
		record.Steps = append(record.Steps, persist)
		return err
	}
	persist.Status = StepOK
	persist.EndedAt = time.Now()
	record.Steps = append(record.Steps, persist)

	m.bus.Publish(ctx, "deintegration.completed", record, eventbus.PublishOptions{})
	logging.Info("DeintegrationManager", "deintegration %s of %s completed", record.ID, rec.ID())
	return nil
}

// --- reintegration ---------------------------------------------------------

// Reintegrate loads the persisted record and state artifacts for
// deintegrationId, re-registers an integration of the original type
// under the original id, and restores handle state if available (spec
// §4.6 re-integration).
func (m *Manager) Reintegrate(ctx context.Context, deintegrationID string) (string, error) {
	recordData, err := os.ReadFile(m.recordPath(deintegrationID))
	if err != nil {
		return "", hub.NewRecordNotFoundError(deintegrationID)
	}
	var record Record
	if err := json.Unmarshal(recordData, &record); err != nil {
		return "", hub.NewStateCorruptError(err)
	}

	typ := hub.IntegrationType(record.AdapterType)
	tc, ok := hub.LookupType(typ)
	if !ok {
		return "", hub.NewTypeUnavailableError(record.AdapterType)
	}

	cfg := map[string]interface{}{}
	var artifact StateArtifact
	stateData, err := os.ReadFile(m.statePath(deintegrationID))
	if err == nil {
		if err := json.Unmarshal(stateData, &artifact); err != nil {
			return "", hub.NewStateCorruptError(err)
		}
		if m, ok := artifact.State.(map[string]interface{}); ok {
			cfg = m
		}
	}
	_ = tc

	id, err := m.registry.Register(ctx, registry.RegisterRequest{
		ID:     record.IntegrationID,
		Name:   record.IntegrationName,
		Type:   typ,
		Config: cfg,
		Options: registry.RegisterOptions{
			SkipHealthCheck: true,
		},
	})
	if err != nil {
		return "", err
	}

	if rec, err := m.registry.Get(id); err == nil {
		if h := rec.Handle(); h != nil && artifact.State != nil {
			if err := h.RestoreState(ctx, artifact.State); err != nil {
				logging.Warn("DeintegrationManager", "restoreState during reintegration of %s failed: %v", id, err)
			}
		}
	}

	m.bus.Publish(ctx, "reintegration.completed", map[string]interface{}{"id": id, "deintegrationId": deintegrationID}, eventbus.PublishOptions{})
	return id, nil
}

// --- helpers ---------------------------------------------------------------

func (m *Manager) recordPath(deintegrationID string) string {
	return filepath.Join(m.dir, deintegrationID+"-record.json")
}

func (m *Manager) statePath(deintegrationID string) string {
	return filepath.Join(m.dir, deintegrationID+"-state.json")
}

func configInt(cfg map[string]interface{}, key string) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func configStrings(cfg map[string]interface{}, key string) []string {
	raw, ok := cfg[key].([]interface{})
	if !ok {
		if strs, ok := cfg[key].([]string); ok {
			return strs
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
