package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBroadcaster[T any](opts ...Option) *Broadcaster[T] {
	return NewBroadcaster[T](logger.NewDiscardLogger(), opts...)
}

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int]()
	defer b.Close()

	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish(7)

	assert.Equal(t, 7, testutil.WaitForValue(t, s1.C(), testutil.ShortTestTimeout, nil, "s1 did not receive"))
	assert.Equal(t, 7, testutil.WaitForValue(t, s2.C(), testutil.ShortTestTimeout, nil, "s2 did not receive"))
}

func TestPublish_CoalescesUnreadValues(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[string]()
	defer b.Close()

	sub := b.Subscribe()
	b.Publish("a")
	b.Publish("b")
	b.Publish("c")

	assert.Equal(t, "c", <-sub.C())
	testutil.AssertNoValue(t, sub.C(), "only the newest value should remain")

	stats := b.Stats()
	assert.Equal(t, uint64(3), stats.EventsPublished)
	assert.Equal(t, uint64(2), stats.EventsCoalesced)
}

func TestPublish_NeverBlocksWithoutReaders(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int]()
	defer b.Close()
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 1000 {
			b.Publish(i)
		}
	}()
	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "publish blocked on an idle subscriber")
}

func TestSubscribe_ReplaysLatest(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int](WithReplay(), WithName("test"))
	defer b.Close()

	before := b.Subscribe()
	testutil.AssertNoValue(t, before.C(), "nothing published yet")

	b.Publish(1)
	b.Publish(2)

	late := b.Subscribe()
	assert.Equal(t, 2, <-late.C())

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 2, latest)
}

func TestSubscribe_WithoutReplayStartsEmpty(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int]()
	defer b.Close()

	b.Publish(1)
	sub := b.Subscribe()
	testutil.AssertNoValue(t, sub.C(), "no replay configured")

	_, ok := b.Latest()
	assert.False(t, ok)
}

func TestUnsubscribe_ClosesChannelAndDetaches(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int]()
	defer b.Close()

	sub := b.Subscribe()
	require.Equal(t, 1, b.Stats().Subscribers)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, b.Stats().Subscribers)

	// Publishing after unsubscribe must not panic on the closed channel
	b.Publish(1)
}

func TestClose_ClosesSubscriptions(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int]()

	sub := b.Subscribe()
	b.Close()
	b.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	after := b.Subscribe()
	_, ok = <-after.C()
	assert.False(t, ok, "subscriptions on a closed broadcaster start closed")
	after.Unsubscribe()

	b.Publish(3)
	assert.Equal(t, uint64(0), b.Stats().EventsPublished)
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	b := newTestBroadcaster[int](WithReplay())
	defer b.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			sub := b.Subscribe()
			for i := range 50 {
				b.Publish(i)
			}
			sub.Unsubscribe()
		})
	}
	wg.Wait()

	assert.Equal(t, 0, b.Stats().Subscribers)
}
