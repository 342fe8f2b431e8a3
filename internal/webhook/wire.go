package webhook

import (
	"context"

	"integrationhub/internal/eventbus"
	"integrationhub/internal/hub"
)

// registrar is the narrow slice of Registry that WireInitializer needs:
// just enough to register a type-specific initializer without this
// package importing the registry package's full surface (avoids a
// webhook<->registry import cycle; registry never imports webhook).
type registrar interface {
	SetInitializer(typ hub.IntegrationType, fn func(ctx context.Context, record *hub.Integration) (hub.Handle, error))
	Bus() *eventbus.Bus
}

// handle is the Handle a webhook integration gets: Cleanup unsubscribes
// it from the bus, everything else is a no-op.
type handle struct {
	hub.NoopHandle
	record *hub.Integration
}

func (h handle) Cleanup(ctx context.Context) error {
	h.record.UnsubscribeAll()
	return nil
}

// WireInitializer registers the webhook type's initializer on r: it
// arms d against the record's config.events (spec §4.1/§4.5, default
// ["*"]) and attaches a Handle whose Cleanup tears the subscriptions
// down.
func WireInitializer(r registrar, d *Deliverer) {
	r.SetInitializer(hub.TypeWebhook, func(ctx context.Context, record *hub.Integration) (hub.Handle, error) {
		topics := topicsFromConfig(record.Config())
		d.Arm(r.Bus(), record, topics)
		return handle{record: record}, nil
	})
}

func topicsFromConfig(cfg map[string]interface{}) []string {
	defaultTopics := []string{"*"}

	raw, ok := cfg["events"].([]interface{})
	if !ok {
		if strs, ok := cfg["events"].([]string); ok && len(strs) > 0 {
			return strs
		}
		return defaultTopics
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultTopics
	}
	return out
}
