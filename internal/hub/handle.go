package hub

import "context"

// NoopHandle is embedded by type-specific handles that only care about a
// subset of Handle's methods; every method here is a no-op, matching the
// "missing methods are treated as no-ops" design note (spec §9).
type NoopHandle struct{}

func (NoopHandle) Cleanup(ctx context.Context) error                  { return nil }
func (NoopHandle) StopAcceptingOperations(ctx context.Context) error   { return nil }
func (NoopHandle) PendingOperations(ctx context.Context) int          { return 0 }
func (NoopHandle) SaveState(ctx context.Context) (interface{}, error)  { return nil, nil }
func (NoopHandle) RestoreState(ctx context.Context, state interface{}) error {
	return nil
}
func (NoopHandle) Action(ctx context.Context, name string, params map[string]interface{}) (interface{}, error) {
	return nil, NewActionUnsupportedError(name)
}
