// Package webhook delivers matching Event Bus events to webhook-type
// integrations over HTTP (spec §4.5). Each delivery runs on the bus's
// dispatch goroutine for that event; a shared semaphore caps how many
// deliveries are in flight at once.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/hub"
	"integrationhub/pkg/logging"
)

const signatureHeader = "X-Hub-Signature-256"

// Config configures a Deliverer. Workers bounds how many deliveries may
// be in flight at once across all webhook integrations; a dispatch
// goroutine that finds all slots taken waits for one to free up.
type Config struct {
	Workers int
}

// Deliverer posts matching events to each armed webhook integration's
// URL and records the outcome on the integration's delivery log.
type Deliverer struct {
	client *http.Client
	sem    chan struct{}
}

// New creates a Deliverer with the given worker concurrency (default 10
// if cfg.Workers <= 0).
func New(cfg Config) *Deliverer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 10
	}
	return &Deliverer{
		client: &http.Client{},
		sem:    make(chan struct{}, workers),
	}
}

// Arm subscribes record to every topic in topics on bus, delivering each
// matching event to record's config.url. It stores the resulting
// Unsubscribe functions on record so FinalizeRemoval and the webhook
// handle's Cleanup can tear them down (spec §5 cancellation on remove).
func (d *Deliverer) Arm(bus *eventbus.Bus, record *hub.Integration, topics []string) {
	unsubs := make([]func(), 0, len(topics))
	for _, topic := range topics {
		t := topic
		unsub := bus.Subscribe(t, func(e eventbus.Event) {
			d.deliver(record, e)
		}, eventbus.SubscribeOptions{})
		unsubs = append(unsubs, unsub)
	}
	record.SetSubscribedTopics(topics, unsubs)
}

// deliver posts one event to record's configured URL, blocking on the
// worker pool's semaphore rather than spawning unbounded goroutines.
func (d *Deliverer) deliver(record *hub.Integration, e eventbus.Event) {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	if record.Status() != hub.StatusActive {
		return
	}

	cfg := record.Config()
	url, _ := cfg["url"].(string)
	if url == "" {
		return
	}

	body, err := json.Marshal(e)
	if err != nil {
		logging.Error("WebhookDeliverer", err, "failed to marshal event %s for %s", e.ID, record.ID())
		return
	}

	start := time.Now()
	status, deliverErr := d.post(url, cfg, body)
	duration := time.Since(start)

	entry := hub.DeliveryLogEntry{
		EventID:    e.ID,
		Topic:      e.Topic,
		HTTPStatus: status,
		DurationMs: duration.Milliseconds(),
		At:         time.Now(),
	}
	if deliverErr != nil {
		entry.ErrorKind = string(hub.KindDeliveryFailed)
		logging.Warn("WebhookDeliverer", "delivery of %s to %s failed: %v", e.ID, url, deliverErr)
	}
	record.AppendDelivery(entry)
}

// post issues the signed HTTP POST and returns the response status (or 0
// on a transport-level failure) plus any error encountered.
func (d *Deliverer) post(url string, cfg map[string]interface{}, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	if headers, ok := cfg["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	if secret, ok := cfg["secret"].(string); ok && secret != "" {
		req.Header.Set(signatureHeader, sign(secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, hub.NewDeliveryFailedError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, hub.NewDeliveryFailedError(url, errNonTwoXX(resp.StatusCode))
	}
	return resp.StatusCode, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type errNonTwoXX int

func (e errNonTwoXX) Error() string {
	return "non-2xx response status " + http.StatusText(int(e))
}
