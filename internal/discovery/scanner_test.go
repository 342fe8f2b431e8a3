package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/portalloc"
	"integrationhub/internal/registry"
)

type fakeServiceManager struct {
	candidates []Candidate
	calls      int
}

func (f *fakeServiceManager) ListCandidates(ctx context.Context) ([]Candidate, error) {
	f.calls++
	return f.candidates, nil
}

func newTestRegistry() *registry.Registry {
	return registry.New(portalloc.New(23000, 23100), healthprobe.New(), eventbus.New(eventbus.Config{}), true)
}

func TestScannerRegistersIntegratableCandidates(t *testing.T) {
	reg := newTestRegistry()
	client := &fakeServiceManager{candidates: []Candidate{
		{Name: "new-svc", Integratable: true, Config: map[string]interface{}{"apiUrl": "http://localhost:1"}},
		{Name: "known-svc", Integratable: true, AlreadyRegistered: true},
		{Name: "not-integratable", Integratable: false},
	}}

	s := New(client, reg, Config{Interval: 10 * time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(reg.List(registry.ListFilter{})) == 1
	}, time.Second, 5*time.Millisecond)

	list := reg.List(registry.ListFilter{})
	require.Equal(t, "new-svc", list[0].Name)
}

func TestScannerPrefersOpenAPIType(t *testing.T) {
	reg := newTestRegistry()
	client := &fakeServiceManager{candidates: []Candidate{
		{Name: "api-with-spec", Integratable: true, HasOpenAPI: true, Config: map[string]interface{}{"apiUrl": "http://localhost:2", "document": "openapi.json"}},
	}}

	s := New(client, reg, Config{Interval: time.Hour})
	s.scanOnce(context.Background())

	list := reg.List(registry.ListFilter{})
	require.Len(t, list, 1)
	require.Equal(t, "openapi", string(list[0].Type))
}
