package events

import (
	"sync"
	"sync/atomic"

	"github.com/tphakala/quack-go/internal/logger"
)

// Broadcaster publishes values of type T to any number of subscriptions.
// It is safe for concurrent use.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	subs      map[uint64]*Subscription[T]
	nextID    uint64
	latest    T
	hasLatest bool
	closed    bool
	opts      options

	published atomic.Uint64
	delivered atomic.Uint64
	coalesced atomic.Uint64

	logger logger.Logger
}

// NewBroadcaster creates an open broadcaster.
func NewBroadcaster[T any](log logger.Logger, opts ...Option) *Broadcaster[T] {
	if log == nil {
		log = logger.Global().Module("events")
	}
	b := &Broadcaster[T]{
		subs:   make(map[uint64]*Subscription[T]),
		logger: log,
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	return b
}

// Publish delivers v to every subscription without blocking. Publishing on
// a closed broadcaster is a no-op.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	if b.opts.replay {
		b.latest = v
		b.hasLatest = true
	}

	for _, sub := range b.subs {
		b.offer(sub, v)
	}
}

// offer places v in the subscription buffer, replacing an unread value.
func (b *Broadcaster[T]) offer(sub *Subscription[T], v T) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	select {
	case <-sub.ch:
		b.coalesced.Add(1)
	default:
	}
	sub.ch <- v
	b.delivered.Add(1)
}

// Subscribe registers a new subscription. With replay enabled the latest
// published value is already pending on the returned subscription. On a
// closed broadcaster the subscription is returned already closed.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[T]{ch: make(chan T, 1)}
	if b.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}

	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	sub.cancel = func() { b.unsubscribe(id) }

	if b.opts.replay && b.hasLatest {
		b.offer(sub, b.latest)
	}

	if b.opts.name != "" {
		b.logger.Trace("subscription added",
			logger.String("broadcaster", b.opts.name),
			logger.Int("subscribers", len(b.subs)))
	}

	return sub
}

func (b *Broadcaster[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		sub.close()
	}
}

// Latest returns the most recently published value when replay is enabled.
func (b *Broadcaster[T]) Latest() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.hasLatest
}

// Close closes every subscription and rejects further publishes.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription[T])
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Stats returns a snapshot of the broadcaster counters.
func (b *Broadcaster[T]) Stats() Stats {
	b.mu.Lock()
	n := len(b.subs)
	b.mu.Unlock()

	return Stats{
		EventsPublished: b.published.Load(),
		EventsDelivered: b.delivered.Load(),
		EventsCoalesced: b.coalesced.Load(),
		Subscribers:     n,
	}
}
