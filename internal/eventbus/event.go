// Package eventbus implements the hub's topic pub/sub: wildcard
// matching, bounded history, request/reply correlation and an optional
// distributed fan-out transport (spec §4.4).
package eventbus

import "time"

// Event is an immutable message carried on the bus (spec §3).
type Event struct {
	ID            string                 `json:"id"`
	Topic         string                 `json:"topic"`
	Data          interface{}            `json:"data"`
	Timestamp     time.Time              `json:"timestamp"`
	Source        string                 `json:"source"`
	CorrelationID string                 `json:"correlationId,omitempty"`
	ReplyTo       string                 `json:"replyTo,omitempty"`
	TTLMs         *int64                 `json:"ttlMs,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// expiresAt returns the instant at which e should be evicted from
// history due to TTL, or the zero Time if it has no TTL.
func (e Event) expiresAt() time.Time {
	if e.TTLMs == nil {
		return time.Time{}
	}
	return e.Timestamp.Add(time.Duration(*e.TTLMs) * time.Millisecond)
}

// PublishOptions customizes a single Publish call.
type PublishOptions struct {
	CorrelationID string
	ReplyTo       string
	TTLMs         *int64
	Metadata      map[string]interface{}
}

// HistoryFilter narrows a GetHistory query.
type HistoryFilter struct {
	Topic         string
	Since         *time.Time
	Until         *time.Time
	CorrelationID string
	Limit         int
}
