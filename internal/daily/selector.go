// Package daily picks the featured entity of the day. The pick is persisted
// as a (name, day) pair so it survives restarts and stays stable until the
// local calendar day changes.
package daily

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/datastore"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/observability/metrics"
)

// Deps are the collaborators of a Selector. Zero values take defaults:
// time.Now, time.Local, math/rand/v2 IntN and the default date layout.
type Deps struct {
	KV       datastore.KeyValue
	Keys     conf.KeySettings
	Layout   string
	Clock    func() time.Time
	Location *time.Location
	IntN     func(n int) int
	Logger   logger.Logger
	Metrics  metrics.Recorder
}

// Selector holds the current daily selection. Reconcile and ForceRefresh
// are serialized.
type Selector struct {
	kv      datastore.KeyValue
	keys    conf.KeySettings
	layout  string
	clock   func() time.Time
	loc     *time.Location
	intN    func(n int) int
	logger  logger.Logger
	metrics metrics.Recorder

	mu      sync.Mutex
	current *model.Entity
	changes *events.Broadcaster[*model.Entity]
}

// New creates a selector with no current selection.
func New(deps Deps) *Selector {
	s := &Selector{
		kv:      deps.KV,
		keys:    deps.Keys,
		layout:  deps.Layout,
		clock:   deps.Clock,
		loc:     deps.Location,
		intN:    deps.IntN,
		logger:  deps.Logger,
		metrics: metrics.OrNoOp(deps.Metrics),
	}
	if s.layout == "" {
		s.layout = conf.DefaultDateLayout
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.intN == nil {
		s.intN = rand.IntN
	}
	if s.logger == nil {
		s.logger = logger.Global().Module("daily")
	}

	s.changes = events.NewBroadcaster[*model.Entity](s.logger, events.WithReplay(), events.WithName("daily"))
	s.changes.Publish(nil)
	return s
}

// Today returns the current local calendar day in the persisted format.
func (s *Selector) Today() string {
	return s.clock().In(s.loc).Format(s.layout)
}

// Reconcile keeps the persisted pick when it was made today and is still
// in the catalog. Otherwise it picks a random entity and persists it. An
// empty catalog clears the selection without touching the persisted pair.
// A persistence error is returned but the selection still changes.
func (s *Selector) Reconcile(ctx context.Context, catalog model.Catalog) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if catalog.IsEmpty() {
		return s.clearLocked(), nil
	}

	today := s.Today()
	name, day := s.readPairLocked(ctx)

	if day == today && name != "" {
		if kept := catalog.FindByName(name); kept != nil {
			s.metrics.RecordOperation(metrics.OpDailySelection, metrics.StatusKept)
			s.setLocked(kept)
			return kept, nil
		}
		s.logger.Info("persisted daily pick no longer in catalog",
			logger.String("name", name))
	}

	return s.pickLocked(ctx, catalog, today, metrics.StatusPicked)
}

// ForceRefresh always picks a new random entity. An empty catalog clears
// the selection without writing.
func (s *Selector) ForceRefresh(ctx context.Context, catalog model.Catalog) (*model.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if catalog.IsEmpty() {
		return s.clearLocked(), nil
	}
	return s.pickLocked(ctx, catalog, s.Today(), metrics.StatusForced)
}

// Current returns the current selection, or nil.
func (s *Selector) Current() *model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a subscription that starts with the current selection.
func (s *Selector) Subscribe() *events.Subscription[*model.Entity] {
	return s.changes.Subscribe()
}

// Close closes every subscription.
func (s *Selector) Close() {
	s.changes.Close()
}

func (s *Selector) clearLocked() *model.Entity {
	s.metrics.RecordOperation(metrics.OpDailySelection, metrics.StatusEmptyCatalog)
	s.setLocked(nil)
	return nil
}

// readPairLocked returns the persisted name and day. Read failures count
// as absent so the selector picks fresh.
func (s *Selector) readPairLocked(ctx context.Context) (name, day string) {
	var err error
	if day, _, err = s.kv.Get(ctx, s.keys.DailyDate); err != nil {
		s.logger.Warn("reading persisted daily day failed", logger.Error(err))
		return "", ""
	}
	if name, _, err = s.kv.Get(ctx, s.keys.DailyName); err != nil {
		s.logger.Warn("reading persisted daily name failed", logger.Error(err))
		return "", ""
	}
	return name, day
}

// pickLocked selects uniformly at random and persists name then day.
func (s *Selector) pickLocked(ctx context.Context, catalog model.Catalog, today, reason string) (*model.Entity, error) {
	pick := catalog.Entities[s.intN(catalog.Len())]
	s.metrics.RecordOperation(metrics.OpDailySelection, reason)
	s.setLocked(pick)

	s.logger.Info("daily entity selected",
		logger.String("name", pick.Name),
		logger.String("day", today),
		logger.String("reason", reason))

	if err := s.kv.Set(ctx, s.keys.DailyName, pick.Name); err != nil {
		return pick, persistError(err, s.keys.DailyName)
	}
	if err := s.kv.Set(ctx, s.keys.DailyDate, today); err != nil {
		return pick, persistError(err, s.keys.DailyDate)
	}
	return pick, nil
}

func (s *Selector) setLocked(e *model.Entity) {
	if s.current == e {
		return
	}
	s.current = e
	s.changes.Publish(e)
}

func persistError(err error, key string) error {
	return errors.New(err).
		Component("daily").
		Category(errors.CategorySelection).
		Context("operation", "persist").
		Context("key", key).
		Build()
}
