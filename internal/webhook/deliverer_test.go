package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/hub"
)

func activeWebhook(t *testing.T, url, secret string) *hub.Integration {
	t.Helper()
	cfg := map[string]interface{}{"url": url}
	if secret != "" {
		cfg["secret"] = secret
	}
	rec := hub.NewIntegration("wh-1", "alerts", hub.TypeWebhook, cfg, hub.TypeConfig{Type: hub.TypeWebhook})
	rec.MarkRegistered()
	return rec
}

func TestDeliverPostsSignedBodyOnMatchingTopic(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(signatureHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(eventbus.Config{})
	d := New(Config{Workers: 2})
	rec := activeWebhook(t, srv.URL, "s3cr3t")

	d.Arm(bus, rec, []string{"alert.*"})
	bus.Publish(context.Background(), "alert.fired", map[string]interface{}{"level": "high"}, eventbus.PublishOptions{})

	require.Eventually(t, func() bool { return len(rec.DeliveryLog()) == 1 }, time.Second, 5*time.Millisecond)

	entry := rec.DeliveryLog()[0]
	require.Equal(t, 200, entry.HTTPStatus)
	require.Empty(t, entry.ErrorKind)

	mac := hmac.New(sha256.New, []byte("s3cr3t"))
	mac.Write(gotBody)
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestDeliverRecordsFailureOnNonTwoXX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	bus := eventbus.New(eventbus.Config{})
	d := New(Config{})
	rec := activeWebhook(t, srv.URL, "")

	d.Arm(bus, rec, []string{"alert.fired"})
	bus.Publish(context.Background(), "alert.fired", nil, eventbus.PublishOptions{})

	require.Eventually(t, func() bool { return len(rec.DeliveryLog()) == 1 }, time.Second, 5*time.Millisecond)
	entry := rec.DeliveryLog()[0]
	require.Equal(t, 500, entry.HTTPStatus)
	require.NotEmpty(t, entry.ErrorKind)
}

func TestDeliverSkipsDisabledIntegration(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(eventbus.Config{})
	d := New(Config{})
	rec := activeWebhook(t, srv.URL, "")
	rec.Transition(hub.StatusDisabled)

	d.Arm(bus, rec, []string{"alert.fired"})
	bus.Publish(context.Background(), "alert.fired", nil, eventbus.PublishOptions{})

	time.Sleep(50 * time.Millisecond)
	require.False(t, called)
	require.Empty(t, rec.DeliveryLog())
}
