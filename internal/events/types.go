// Package events provides typed in-process change notifications. A
// Broadcaster fans values out to subscriptions that never block the
// publisher: each subscription holds at most one pending value and a newer
// value replaces an unread older one.
package events

// Stats holds broadcaster counters.
type Stats struct {
	// EventsPublished counts calls to Publish on an open broadcaster
	EventsPublished uint64
	// EventsDelivered counts values placed into subscription buffers
	EventsDelivered uint64
	// EventsCoalesced counts unread values replaced by a newer one
	EventsCoalesced uint64
	// Subscribers is the number of live subscriptions
	Subscribers int
}

// Option configures a Broadcaster.
type Option func(*options)

type options struct {
	replay bool
	name   string
}

// WithReplay makes new subscriptions start with the most recently
// published value, if any.
func WithReplay() Option {
	return func(o *options) { o.replay = true }
}

// WithName labels the broadcaster in debug logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}
