package openapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/hub"
	"integrationhub/internal/portalloc"
	"integrationhub/internal/registry"
)

func TestWireInitializerExtractsAllowedMethodsOnly(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	r := registry.New(portalloc.New(22000, 22100), healthprobe.New(), bus, true)
	WireInitializer(r)

	id, err := r.Register(context.Background(), registry.RegisterRequest{
		Name: "petstore",
		Type: hub.TypeOpenAPI,
		Config: map[string]interface{}{
			"apiUrl": "http://localhost:9000",
			"document": map[string]interface{}{
				"paths": map[string]interface{}{
					"/pets": map[string]interface{}{
						"get":     map[string]interface{}{},
						"post":    map[string]interface{}{},
						"options": map[string]interface{}{},
					},
					"/pets/{id}": map[string]interface{}{
						"delete": map[string]interface{}{},
					},
				},
			},
		},
		Options: registry.RegisterOptions{SkipHealthCheck: true},
	})
	require.NoError(t, err)

	rec, err := r.Get(id)
	require.NoError(t, err)

	var methods []string
	for _, ep := range rec.Endpoints() {
		methods = append(methods, ep.Path+" "+ep.Method)
	}
	require.ElementsMatch(t, []string{"/pets get", "/pets post", "/pets/{id} delete"}, methods)
}

func TestWireInitializerToleratesMalformedDocument(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	r := registry.New(portalloc.New(22100, 22200), healthprobe.New(), bus, true)
	WireInitializer(r)

	id, err := r.Register(context.Background(), registry.RegisterRequest{
		Name: "undocumented-api",
		Type: hub.TypeOpenAPI,
		Config: map[string]interface{}{
			"apiUrl":   "http://localhost:9001",
			"document": "not-a-parsed-document",
		},
		Options: registry.RegisterOptions{SkipHealthCheck: true},
	})
	require.NoError(t, err)

	rec, err := r.Get(id)
	require.NoError(t, err)
	require.Empty(t, rec.Endpoints())
}
