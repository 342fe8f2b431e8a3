package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"integrationhub/internal/hub"
	"integrationhub/pkg/logging"
)

// Config configures a Bus (spec §6 eventBus config keys).
type Config struct {
	MaxHistorySize int
	DefaultTTLMs   int64
	NodeID         string
	Transport      DistributedTransport
}

// Bus is the process-wide topic pub/sub singleton (spec §4.4).
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	nextID  uint64
	history *ring

	nodeID    string
	transport DistributedTransport

	transportUp atomic.Bool

	errCounter atomic.Int64
}

// New creates a Bus. If cfg.Transport is non-nil it is assumed up; the
// first failed transport publish marks it down and starts a background
// reconnect loop, and local delivery continues meanwhile (spec §4.4
// failure model).
func New(cfg Config) *Bus {
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 1000
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	b := &Bus{
		subs:      make(map[string]*Subscription),
		history:   newRing(cfg.MaxHistorySize),
		nodeID:    cfg.NodeID,
		transport: cfg.Transport,
	}
	if cfg.Transport != nil {
		b.transportUp.Store(true)
	}
	return b
}

// NodeID returns this bus's local node identifier, used to de-duplicate
// events re-delivered from the distributed transport.
func (b *Bus) NodeID() string { return b.nodeID }

// Publish builds an Event, appends it to bounded history, dispatches it
// to local subscribers, and (if configured) forwards it to the
// distributed transport. It returns once local dispatch has been
// scheduled (spec §4.4).
func (b *Bus) Publish(ctx context.Context, topic string, data interface{}, opts PublishOptions) string {
	e := Event{
		ID:            uuid.NewString(),
		Topic:         topic,
		Data:          data,
		Timestamp:     time.Now(),
		Source:        b.nodeID,
		CorrelationID: opts.CorrelationID,
		ReplyTo:       opts.ReplyTo,
		TTLMs:         opts.TTLMs,
		Metadata:      opts.Metadata,
	}
	b.publishEvent(ctx, e, true)
	return e.ID
}

// publishEvent is the shared path for locally-originated and
// transport-redelivered events. forward controls whether the event is
// also pushed to the distributed transport (redelivered events are
// never re-forwarded).
func (b *Bus) publishEvent(ctx context.Context, e Event, forward bool) {
	b.mu.Lock()
	b.history.push(e)
	b.history.evictExpired(time.Now())
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if matchTopic(s.pattern, e.Topic) {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		go b.dispatch(s, e)
	}

	if forward && b.transport != nil && b.transportUp.Load() {
		go func() {
			if err := b.transport.Publish(ctx, e.Topic, e); err != nil {
				logging.Warn("EventBus", "distributed publish failed, degrading to local-only: %v", err)
				b.transportDown(ctx)
			}
		}()
	}
}

// transportDown marks the transport unreachable and arms a reconnect
// loop; it is a no-op if a reconnect is already in flight.
func (b *Bus) transportDown(ctx context.Context) {
	if !b.transportUp.CompareAndSwap(true, false) {
		return
	}
	go reconnectLoop(ctx, b.transport, func() {
		b.transportUp.Store(true)
		logging.Info("EventBus", "distributed transport reconnected")
	})
}

// OnTransportEvent is called by the distributed transport integration
// when it redelivers an event originated elsewhere. Events whose Source
// equals our own node id are ignored (spec §4.4 dedup rule).
func (b *Bus) OnTransportEvent(e Event) {
	if e.Source == b.nodeID {
		return
	}
	b.publishEvent(context.Background(), e, false)
}

// dispatch invokes one subscriber's handler for one event, applying the
// subscriber's filter and retry policy. Handler panics/errors never
// propagate to Publish (spec §4.4, §7).
func (b *Bus) dispatch(s *Subscription, e Event) {
	if s.opts.Filter != nil && !s.opts.Filter(e) {
		return
	}

	attempts := s.opts.Retries + 1
	delay := time.Duration(s.opts.RetryDelayMs) * time.Millisecond

	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = b.safeInvoke(s, e)
		if lastErr == nil {
			return
		}
		if i < attempts-1 && delay > 0 {
			time.Sleep(delay)
		}
	}
	if lastErr != nil {
		b.errCounter.Add(1)
		b.publishEvent(context.Background(), Event{
			ID:        uuid.NewString(),
			Topic:     "event:error",
			Data:      map[string]interface{}{"subscriptionId": s.id, "pattern": s.pattern, "error": lastErr.Error()},
			Timestamp: time.Now(),
			Source:    b.nodeID,
		}, false)
	}
}

// safeInvoke recovers from a handler panic and converts it to an error,
// so one broken subscriber never takes down the dispatch goroutine.
func (b *Bus) safeInvoke(s *Subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	s.handler(e)
	return nil
}

// Subscribe registers a subscription for pattern and returns a function
// that removes it.
func (b *Bus) Subscribe(pattern string, handler Handler, opts SubscribeOptions) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[subKey(id)] = &Subscription{id: id, pattern: pattern, handler: handler, opts: opts}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, subKey(id))
			b.mu.Unlock()
		})
	}
}

func subKey(id uint64) string { return fmt.Sprintf("%d", id) }

// SubscriptionCount returns the number of live subscriptions (used by
// tests verifying Once/WaitFor/Request clean up after themselves, per
// spec §8 scenario 5).
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// subscribeOnce registers a one-shot subscription synchronously and
// returns the channel it will deliver to, plus its Unsubscribe. The
// subscription is live (visible to Publish) before this call returns.
func (b *Bus) subscribeOnce(pattern string) (<-chan Event, Unsubscribe) {
	ch := make(chan Event, 1)
	var unsub Unsubscribe
	unsub = b.Subscribe(pattern, func(e Event) {
		unsub()
		select {
		case ch <- e:
		default:
		}
	}, SubscribeOptions{})
	return ch, unsub
}

// Once subscribes to pattern and resolves with the first matching
// event, auto-unsubscribing itself.
func (b *Bus) Once(ctx context.Context, pattern string) (Event, error) {
	ch, unsub := b.subscribeOnce(pattern)
	select {
	case e := <-ch:
		return e, nil
	case <-ctx.Done():
		unsub()
		return Event{}, ctx.Err()
	}
}

// WaitFor waits up to timeoutMs for an event matching pattern, without
// leaking the subscription on timeout (spec §5 cancellation).
func (b *Bus) WaitFor(pattern string, timeoutMs int) (Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	e, err := b.Once(ctx, pattern)
	if err != nil {
		return Event{}, hub.New(hub.KindRequestTimeout, fmt.Sprintf("no event matching %q within %dms", pattern, timeoutMs))
	}
	return e, nil
}

// Request publishes topic with a fresh correlationId and replyTo topic,
// then waits up to timeoutMs for a Reply on that topic (spec §4.4).
func (b *Bus) Request(ctx context.Context, topic string, data interface{}, timeoutMs int) (Event, error) {
	correlationID := uuid.NewString()
	replyTo := fmt.Sprintf("reply.%s", correlationID)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	// Subscribe before publishing so a fast responder can never reply
	// before we're listening (spec §4.4 Request semantics).
	replyCh, unsub := b.subscribeOnce(replyTo)

	b.Publish(reqCtx, topic, data, PublishOptions{CorrelationID: correlationID, ReplyTo: replyTo})

	select {
	case e := <-replyCh:
		return e, nil
	case <-reqCtx.Done():
		unsub()
		return Event{}, hub.NewRequestTimeoutError(topic)
	}
}

// Reply publishes data on request.ReplyTo carrying request's
// correlationId, failing fast if the request carries no ReplyTo.
func (b *Bus) Reply(ctx context.Context, request Event, data interface{}) error {
	if request.ReplyTo == "" {
		return fmt.Errorf("eventbus: request event %s has no replyTo topic", request.ID)
	}
	b.Publish(ctx, request.ReplyTo, data, PublishOptions{CorrelationID: request.CorrelationID})
	return nil
}

// GetHistory returns events matching filter, newest-first.
func (b *Bus) GetHistory(filter HistoryFilter) []Event {
	b.mu.Lock()
	b.history.evictExpired(time.Now())
	all := b.history.snapshot()
	b.mu.Unlock()

	out := make([]Event, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if filter.Topic != "" && !matchTopic(filter.Topic, e.Topic) {
			continue
		}
		if filter.Since != nil && e.Timestamp.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && e.Timestamp.After(*filter.Until) {
			continue
		}
		if filter.CorrelationID != "" && e.CorrelationID != filter.CorrelationID {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// ErrorCount returns the number of handler errors observed so far
// (spec §4.4 "increments an error counter").
func (b *Bus) ErrorCount() int64 { return b.errCounter.Load() }
