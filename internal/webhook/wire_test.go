package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/healthprobe"
	"integrationhub/internal/hub"
	"integrationhub/internal/portalloc"
	"integrationhub/internal/registry"
)

func TestWireInitializerArmsWebhookOnRegister(t *testing.T) {
	var delivered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(eventbus.Config{})
	r := registry.New(portalloc.New(21000, 21100), healthprobe.New(), bus, true)
	d := New(Config{})
	WireInitializer(r, d)

	id, err := r.Register(context.Background(), registry.RegisterRequest{
		Name: "alerts-hook",
		Type: hub.TypeWebhook,
		Config: map[string]interface{}{
			"url":    srv.URL,
			"events": []interface{}{"alert.*"},
		},
		Options: registry.RegisterOptions{SkipHealthCheck: true},
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), "alert.fired", nil, eventbus.PublishOptions{})

	require.Eventually(t, func() bool { return delivered }, time.Second, 5*time.Millisecond)

	rec, err := r.Get(id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alert.*"}, rec.SubscribedTopics())
}

func TestWireInitializerDefaultsToAllTopicsWhenEventsOmitted(t *testing.T) {
	var delivered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(eventbus.Config{})
	r := registry.New(portalloc.New(21100, 21200), healthprobe.New(), bus, true)
	d := New(Config{})
	WireInitializer(r, d)

	id, err := r.Register(context.Background(), registry.RegisterRequest{
		Name: "catch-all-hook",
		Type: hub.TypeWebhook,
		Config: map[string]interface{}{
			"url": srv.URL,
		},
		Options: registry.RegisterOptions{SkipHealthCheck: true},
	})
	require.NoError(t, err)

	bus.Publish(context.Background(), "anything.happens", nil, eventbus.PublishOptions{})

	require.Eventually(t, func() bool { return delivered }, time.Second, 5*time.Millisecond)

	rec, err := r.Get(id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"*"}, rec.SubscribedTopics())
}
