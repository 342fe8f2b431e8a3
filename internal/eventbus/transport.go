package eventbus

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"integrationhub/pkg/logging"
)

// DistributedTransport is the abstract fan-out collaborator a Bus may
// optionally be configured with (spec §4.4: "if a distributed transport
// is configured, also publishes to that transport's channel"). A down
// transport degrades the bus to local-only delivery; no bus operation
// ever surfaces a transport error to callers (spec §7 propagation
// policy).
type DistributedTransport interface {
	Publish(ctx context.Context, topic string, e Event) error
	Subscribe(topic string, handler func(Event)) (unsubscribe func(), err error)
	Ping(ctx context.Context) error
}

// reconnectLoop retries transport.Ping with exponential backoff
// (initial 50ms, cap 2s per spec §4.4) until ctx is canceled or a ping
// succeeds, then calls onReconnected.
func reconnectLoop(ctx context.Context, transport DistributedTransport, onReconnected func()) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0 // retry indefinitely until ctx is done

	_, _ = backoff.Retry(ctx, func() (struct{}, error) {
		if err := transport.Ping(ctx); err != nil {
			logging.Debug("EventBus", "distributed transport still unreachable: %v", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b))

	select {
	case <-ctx.Done():
		return
	default:
		onReconnected()
	}
}
