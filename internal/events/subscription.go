package events

import "sync"

// Subscription receives values from a Broadcaster. A slow reader only ever
// sees the newest value it has not yet read.
type Subscription[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
	cancel func()
	once   sync.Once
}

// C returns the receive channel. It is closed on Unsubscribe or when the
// broadcaster closes.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Unsubscribe detaches the subscription and closes its channel. It is safe
// to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			return
		}
		s.close()
	})
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
