package deintegration

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/hub"
	"integrationhub/internal/portalloc"
	"integrationhub/internal/registry"
)

// fakeHandle is a test double standing in for a plugin's capability set.
type fakeHandle struct {
	hub.NoopHandle
	pending       atomic.Int32
	cleanedUp     atomic.Bool
	savedState    interface{}
	restoredState interface{}
}

func (h *fakeHandle) Cleanup(ctx context.Context) error {
	h.cleanedUp.Store(true)
	return nil
}

func (h *fakeHandle) PendingOperations(ctx context.Context) int {
	return int(h.pending.Load())
}

func (h *fakeHandle) SaveState(ctx context.Context) (interface{}, error) {
	return h.savedState, nil
}

func (h *fakeHandle) RestoreState(ctx context.Context, state interface{}) error {
	h.restoredState = state
	return nil
}

func newTestSystem(t *testing.T) (*registry.Registry, *Manager, *fakeHandle) {
	t.Helper()
	bus := eventbus.New(eventbus.Config{})
	reg := registry.New(portalloc.New(22000, 22100), healthprobe.New(), bus, true)

	handle := &fakeHandle{savedState: map[string]interface{}{"widgets": float64(3)}}
	reg.SetInitializer(hub.TypePlugin, func(ctx context.Context, record *hub.Integration) (hub.Handle, error) {
		return handle, nil
	})

	mgr, err := New(reg, bus, nil, filepath.Join(t.TempDir(), "deintegrations"))
	require.NoError(t, err)
	return reg, mgr, handle
}

func registerPlugin(t *testing.T, reg *registry.Registry, cfg map[string]interface{}) string {
	t.Helper()
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	cfg["source"] = "local"
	id, err := reg.Register(context.Background(), registry.RegisterRequest{
		Name:    "sample-plugin",
		Type:    hub.TypePlugin,
		Config:  cfg,
		Options: registry.RegisterOptions{SkipHealthCheck: true},
	})
	require.NoError(t, err)
	return id
}

func TestDeleteImmediateRemovesRecordAndPersistsArtifact(t *testing.T) {
	reg, mgr, handle := newTestSystem(t)
	id := registerPlugin(t, reg, nil)

	deintID, err := mgr.Delete(context.Background(), id, Options{Policy: PolicyImmediate})
	require.NoError(t, err)
	require.True(t, handle.cleanedUp.Load())

	_, err = reg.Get(id)
	require.True(t, hub.Is(err, hub.KindNotFound))

	data, err := os.ReadFile(mgr.recordPath(deintID))
	require.NoError(t, err)
	require.Contains(t, string(data), `"status": "completed"`)
}

func TestDeleteBlockedByDependentsUnlessForced(t *testing.T) {
	reg, mgr, _ := newTestSystem(t)
	id := registerPlugin(t, reg, map[string]interface{}{"dependents": []interface{}{"svc-a"}})

	_, err := mgr.Delete(context.Background(), id, Options{Policy: PolicyImmediate})
	require.Error(t, err)
	require.True(t, hub.Is(err, hub.KindDeintegrationBlocked))

	_, err = reg.Get(id)
	require.NoError(t, err) // still present, pipeline aborted at validate

	_, err = mgr.Delete(context.Background(), id, Options{Policy: PolicyImmediate, Force: true})
	require.NoError(t, err)
	_, err = reg.Get(id)
	require.True(t, hub.Is(err, hub.KindNotFound))
}

func TestDeleteGracefulWaitsForPendingOperations(t *testing.T) {
	reg, mgr, handle := newTestSystem(t)
	id := registerPlugin(t, reg, nil)
	handle.pending.Store(1)

	go func() {
		time.Sleep(30 * time.Millisecond)
		handle.pending.Store(0)
	}()

	// Force skips the validate step, which would otherwise block on the
	// pending operation before the graceful cleanup could wait for it.
	start := time.Now()
	_, err := mgr.Delete(context.Background(), id, Options{Policy: PolicyGraceful, Force: true})
	require.NoError(t, err)
	require.True(t, handle.cleanedUp.Load())
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDeleteManualRequiresConfirmation(t *testing.T) {
	reg, mgr, handle := newTestSystem(t)
	id := registerPlugin(t, reg, nil)

	deintID, err := mgr.Delete(context.Background(), id, Options{Policy: PolicyManual})
	require.NoError(t, err)
	require.False(t, handle.cleanedUp.Load())

	_, err = reg.Get(id)
	require.NoError(t, err) // not yet removed

	require.NoError(t, mgr.ConfirmManual(context.Background(), deintID))
	require.True(t, handle.cleanedUp.Load())

	_, err = reg.Get(id)
	require.True(t, hub.Is(err, hub.KindNotFound))
}

func TestReintegrateRestoresConfigAndReusesID(t *testing.T) {
	reg, mgr, handle := newTestSystem(t)
	id := registerPlugin(t, reg, map[string]interface{}{"extra": "abc"})

	// Simulate an identity saveState: the handle hands back the live
	// config verbatim, exactly the scenario spec §8's round-trip property
	// describes.
	rec, err := reg.Get(id)
	require.NoError(t, err)
	handle.savedState = rec.Config()

	deintID, err := mgr.Delete(context.Background(), id, Options{Policy: PolicyImmediate, PreserveData: true})
	require.NoError(t, err)

	newID, err := mgr.Reintegrate(context.Background(), deintID)
	require.NoError(t, err)
	require.Equal(t, id, newID)

	newRec, err := reg.Get(newID)
	require.NoError(t, err)
	require.Equal(t, "abc", newRec.Config()["extra"])
	require.Equal(t, handle.savedState, handle.restoredState)
}
