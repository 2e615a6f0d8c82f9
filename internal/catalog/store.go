// Package catalog owns the published duck catalog. A refresh fetches the
// manifest under the active base address, enriches the surviving records
// and publishes the result as an immutable snapshot. The store follows the
// base address in the settings store and refreshes whenever it changes.
package catalog

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/manifest"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/observability/metrics"
	"github.com/tphakala/quack-go/internal/settings"
)

// State is the store state.
type State int

const (
	// StateLoading means a refresh is in flight. The snapshot keeps the
	// previous entities.
	StateLoading State = iota
	// StateReady means the last completed refresh has been published.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "loading"
}

// ManifestSource fetches the filtered manifest records under a base address.
type ManifestSource interface {
	Fetch(ctx context.Context, base *url.URL) (manifest.Result, error)
}

// Enricher turns records into entities.
type Enricher interface {
	Enrich(ctx context.Context, base *url.URL, records []manifest.Record) []*model.Entity
	FlushCache()
}

// AddressSource provides the configured base address and announces changes.
type AddressSource interface {
	BaseURL() *url.URL
	Subscribe() *events.Subscription[settings.Change]
}

// Deps are the collaborators of a Store.
type Deps struct {
	Manifest ManifestSource
	Enricher Enricher
	Address  AddressSource
	Settings conf.CatalogSettings
	Logger   logger.Logger
	Metrics  metrics.Recorder
}

// Store is the catalog state machine. It is safe for concurrent use.
type Store struct {
	manifest         ManifestSource
	enricher         Enricher
	address          AddressSource
	cancelSuperseded bool
	logger           logger.Logger
	metrics          metrics.Recorder

	mu         sync.Mutex
	state      State
	snapshot   model.Catalog
	active     *url.URL
	generation uint64
	cancelPrev context.CancelFunc

	// settled is the highest generation that completed, lastReady the
	// snapshot published when a refresh last completed
	settled   uint64
	lastReady model.Catalog
	settledCh chan struct{}

	changes *events.Broadcaster[model.Catalog]

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// New creates a store in the Loading state with an empty catalog. Nothing
// is fetched until Run or Refresh is called.
func New(deps Deps) *Store {
	log := deps.Logger
	if log == nil {
		log = logger.Global().Module("catalog")
	}

	ctx, cancel := context.WithCancel(context.Background())

	active := deps.Address.BaseURL()
	initial := model.Catalog{
		Entities:  []*model.Entity{},
		IsLoading: true,
		BaseURL:   active.String(),
	}

	s := &Store{
		manifest:         deps.Manifest,
		enricher:         deps.Enricher,
		address:          deps.Address,
		cancelSuperseded: deps.Settings.CancelSuperseded,
		logger:           log,
		metrics:          metrics.OrNoOp(deps.Metrics),
		state:            StateLoading,
		snapshot:         initial,
		active:           active,
		settledCh:        make(chan struct{}),
		changes:          events.NewBroadcaster[model.Catalog](log, events.WithReplay(), events.WithName("catalog")),
		baseCtx:          ctx,
		baseCancel:       cancel,
	}
	s.changes.Publish(initial)
	return s
}

// Run starts the first refresh and then follows address changes until ctx
// is done.
func (s *Store) Run(ctx context.Context) error {
	sub := s.address.Subscribe()
	defer sub.Unsubscribe()

	s.Refresh()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C():
			if !ok {
				return nil
			}
			s.onSettingsChange()
		}
	}
}

// onSettingsChange re-reads the address and refreshes only when it moved.
func (s *Store) onSettingsChange() {
	next := s.address.BaseURL()

	s.mu.Lock()
	if s.active.String() == next.String() {
		s.mu.Unlock()
		return
	}
	prev := s.active.String()
	s.active = next
	s.mu.Unlock()

	s.logger.Info("base address changed",
		logger.String("from", prev),
		logger.String("to", next.String()))

	s.Refresh()
}

// Refresh starts a fetch and enrich cycle against the active address and
// returns its generation. The cycle runs in its own goroutine. Every cycle
// is a full reload, so cached auxiliary texts are dropped first. Refresh on
// a closed store returns 0.
func (s *Store) Refresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	s.enricher.FlushCache()

	s.generation++
	gen := s.generation
	base := *s.active

	ctx := s.baseCtx
	if s.cancelSuperseded {
		if s.cancelPrev != nil {
			s.cancelPrev()
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(s.baseCtx)
		s.cancelPrev = cancel
	}

	s.state = StateLoading
	s.publishLocked(model.Catalog{
		Entities:   s.snapshot.Entities,
		IsLoading:  true,
		Generation: gen,
		BaseURL:    base.String(),
	})

	s.logger.Debug("catalog refresh started",
		logger.Uint64("generation", gen),
		logger.String("base_url", base.String()))

	s.wg.Go(func() {
		s.refresh(ctx, gen, &base)
	})

	return gen
}

// refresh fetches and enriches sequentially, then publishes Ready. A
// failed lookup settles into an empty catalog.
func (s *Store) refresh(ctx context.Context, gen uint64, base *url.URL) {
	start := time.Now()

	entities := []*model.Entity{}
	status := metrics.StatusSuccess

	res, err := s.manifest.Fetch(ctx, base)
	switch {
	case err == nil:
		entities = s.enricher.Enrich(ctx, base, res.Records)
	case errors.Is(err, manifest.ErrExhausted):
		status = metrics.StatusExhausted
		s.logger.Warn("no manifest found, publishing empty catalog",
			logger.String("base_url", base.String()),
			logger.Uint64("generation", gen))
	default:
		status = metrics.StatusError
		s.logger.Debug("manifest fetch aborted",
			logger.Uint64("generation", gen),
			logger.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelSuperseded && (gen != s.generation || ctx.Err() != nil) {
		s.metrics.RecordOperation(metrics.OpCatalogRefresh, metrics.StatusSuperseded)
		s.logger.Debug("discarding superseded refresh",
			logger.Uint64("generation", gen),
			logger.Uint64("current", s.generation))
		return
	}
	if s.closed {
		return
	}

	ready := model.Catalog{
		Entities:   entities,
		IsLoading:  false,
		Generation: gen,
		BaseURL:    base.String(),
	}
	s.state = StateReady
	s.publishLocked(ready)

	s.lastReady = ready
	s.settled = max(s.settled, gen)
	close(s.settledCh)
	s.settledCh = make(chan struct{})

	duration := time.Since(start)
	s.metrics.RecordOperation(metrics.OpCatalogRefresh, status)
	s.metrics.RecordDuration(metrics.OpCatalogRefresh, duration.Seconds())

	s.logger.Info("catalog published",
		logger.Uint64("generation", gen),
		logger.Int("entities", len(entities)),
		logger.String("manifest", res.URL),
		logger.Duration("duration", duration))
}

func (s *Store) publishLocked(c model.Catalog) {
	s.snapshot = c
	s.changes.Publish(c)
}

// Snapshot returns the current catalog.
func (s *Store) Snapshot() model.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveBaseURL returns a copy of the address refreshes run against.
func (s *Store) ActiveBaseURL() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *s.active
	return &u
}

// Subscribe returns a subscription that starts with the current snapshot.
// A slow reader only sees the newest snapshot.
func (s *Store) Subscribe() *events.Subscription[model.Catalog] {
	return s.changes.Subscribe()
}

// Wait blocks until a refresh of at least generation gen has completed and
// returns the snapshot that refresh published.
func (s *Store) Wait(ctx context.Context, gen uint64) (model.Catalog, error) {
	for {
		s.mu.Lock()
		if s.settled >= gen {
			c := s.lastReady
			s.mu.Unlock()
			return c, nil
		}
		ch := s.settledCh
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return model.Catalog{}, errors.Newf("catalog store closed before generation %d settled", gen).
				Component("catalog").
				Category(errors.CategoryState).
				Build()
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return model.Catalog{}, ctx.Err()
		}
	}
}

// Close cancels in-flight refreshes, waits for them and closes every
// subscription. It is safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.settledCh)
	s.settledCh = make(chan struct{})
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
	s.changes.Close()
}
