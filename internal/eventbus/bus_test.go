package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWildcardSubscriptionMatchesPrefix(t *testing.T) {
	b := New(Config{})

	var mu sync.Mutex
	var seen []string
	unsub := b.Subscribe("integration.*", func(e Event) {
		mu.Lock()
		seen = append(seen, e.Topic)
		mu.Unlock()
	}, SubscribeOptions{})
	defer unsub()

	b.Publish(context.Background(), "integration.registered", nil, PublishOptions{})
	b.Publish(context.Background(), "integration.alpha.request", nil, PublishOptions{})
	b.Publish(context.Background(), "unrelated.topic", nil, PublishOptions{})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"integration.registered", "integration.alpha.request"}, seen)
}

func TestRequestReplyRoundTrip(t *testing.T) {
	b := New(Config{})

	unsub := b.Subscribe("svc.echo", func(e Event) {
		_ = b.Reply(context.Background(), e, map[string]interface{}{"echo": e.Data})
	}, SubscribeOptions{})
	defer unsub()

	reply, err := b.Request(context.Background(), "svc.echo", "hello", 200)
	require.NoError(t, err)

	data, ok := reply.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", data["echo"])
}

func TestRequestTimesOutAndCleansUpSubscription(t *testing.T) {
	b := New(Config{})
	baseline := b.SubscriptionCount()

	_, err := b.Request(context.Background(), "svc.nobody-listens", nil, 50)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return b.SubscriptionCount() == baseline
	}, time.Second, 5*time.Millisecond)
}

func TestMatchTopicRejectsMiddleWildcard(t *testing.T) {
	assert.True(t, matchTopic("a.b.*", "a.b.c.d"))
	assert.True(t, matchTopic("a.b.c", "a.b.c"))
	assert.False(t, matchTopic("a.*.c", "a.b.c"))
	assert.False(t, matchTopic("a.b.*", "a.x.c"))
}

func TestHistoryBoundedAndNewestFirst(t *testing.T) {
	b := New(Config{MaxHistorySize: 3})

	for i := 0; i < 5; i++ {
		b.Publish(context.Background(), "t", i, PublishOptions{})
	}

	hist := b.GetHistory(HistoryFilter{})
	require.Len(t, hist, 3)
	assert.Equal(t, 4, hist[0].Data)
	assert.Equal(t, 2, hist[2].Data)
}
