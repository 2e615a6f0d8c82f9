// Package app constructs and owns every quack-go service. Nothing in the
// module is a process-wide singleton; commands and the HTTP API reach the
// services through an App.
package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tphakala/quack-go/internal/buildinfo"
	"github.com/tphakala/quack-go/internal/catalog"
	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/daily"
	"github.com/tphakala/quack-go/internal/datastore"
	"github.com/tphakala/quack-go/internal/enrichment"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/httpclient"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/manifest"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/mqtt"
	"github.com/tphakala/quack-go/internal/notify"
	"github.com/tphakala/quack-go/internal/observability"
	"github.com/tphakala/quack-go/internal/settings"
	"github.com/tphakala/quack-go/internal/telemetry"
)

// reportFlushTimeout bounds the wait for queued error reports on Close.
const reportFlushTimeout = 2 * time.Second

// Option configures an App.
type Option func(*options)

type options struct {
	serverOverride string
	store          datastore.Interface
	transport      http.RoundTripper
	clock          func() time.Time
	location       *time.Location
	logger         logger.Logger
	mqttClient     mqtt.Client
	notifySender   notify.Sender
	build          *buildinfo.Context
	manual         bool
}

// WithServerOverride uses raw as the base address for this process without
// persisting it.
func WithServerOverride(raw string) Option {
	return func(o *options) { o.serverOverride = raw }
}

// WithDataStore uses an already opened store instead of the one selected by
// the storage settings. The App does not close it.
func WithDataStore(store datastore.Interface) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPTransport replaces the network transport of every outgoing request.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithClock sets the clock and time zone that decide the calendar day.
func WithClock(clock func() time.Time, loc *time.Location) Option {
	return func(o *options) {
		o.clock = clock
		o.location = loc
	}
}

// WithLogger sets the parent logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMQTTClient announces daily selections through c even when MQTT is
// disabled in the settings.
func WithMQTTClient(c mqtt.Client) Option {
	return func(o *options) { o.mqttClient = c }
}

// WithNotifySender pushes daily selections through s even when
// notifications are disabled in the settings.
func WithNotifySender(s notify.Sender) Option {
	return func(o *options) { o.notifySender = s }
}

// WithManualAnnouncements keeps Start from running the MQTT publisher and
// the notifier. Selections are then only announced by explicit calls.
func WithManualAnnouncements() Option {
	return func(o *options) { o.manual = true }
}

// WithBuildInfo sets the build metadata used as the error report release.
func WithBuildInfo(b *buildinfo.Context) Option {
	return func(o *options) { o.build = b }
}

// App is the running engine.
type App struct {
	config    *conf.Settings
	store     datastore.Interface
	ownsStore bool
	client    *httpclient.Client
	settings  *settings.Store
	text      *enrichment.TextFetcher
	catalog   *catalog.Store
	daily     *daily.Selector
	metrics   *observability.Metrics
	publisher *mqtt.Publisher
	notifier  *notify.Notifier
	reporter  *telemetry.Reporter
	manual    bool
	unhook    []func()
	logger    logger.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New opens the datastore and constructs every service. Nothing touches the
// network until Start.
func New(ctx context.Context, cfg *conf.Settings, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = GetLogger()
	}

	a := &App{config: cfg, logger: o.logger, manual: o.manual}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, appError(err, "metrics")
	}
	a.metrics = m
	a.unhook = append(a.unhook, errors.AddErrorHook(m.ErrorHook()))

	if cfg.Telemetry.Enabled {
		a.reporter, err = telemetry.New(cfg.Telemetry,
			telemetry.WithRelease(o.build.Release()),
			telemetry.WithLogger(o.logger.Module("telemetry")))
		if err != nil {
			a.Close()
			return nil, appError(err, "telemetry")
		}
		a.unhook = append(a.unhook, errors.AddErrorHook(a.reporter.Hook()))
	}

	a.store = o.store
	if a.store == nil {
		store, err := datastore.New(cfg, o.logger.Module("datastore"))
		if err != nil {
			a.Close()
			return nil, appError(err, "datastore")
		}
		if err := store.Open(); err != nil {
			a.Close()
			return nil, appError(err, "datastore_open")
		}
		a.store = store
		a.ownsStore = true
	}

	var settingsOpts []settings.Option
	if o.serverOverride != "" {
		settingsOpts = append(settingsOpts, settings.WithServerOverride(o.serverOverride))
	}
	a.settings, err = settings.New(ctx, a.store, cfg, o.logger.Module("settings"), settingsOpts...)
	if err != nil {
		a.Close()
		return nil, appError(err, "settings")
	}

	a.client = httpclient.New(&httpclient.Config{
		DefaultTimeout: cfg.Network.RequestTimeout,
		UserAgent:      cfg.Network.UserAgent,
		Transport:      o.transport,
	})

	fetcher := manifest.NewFetcher(a.client, cfg.Network,
		manifest.WithLogger(o.logger.Module("manifest")),
		manifest.WithMetrics(m.Catalog))
	a.text = enrichment.NewTextFetcher(a.client, cfg.Enrichment, o.logger.Module("enrichment"), m.Catalog)
	pipeline := enrichment.NewPipeline(a.text, cfg.Enrichment, o.logger.Module("enrichment"))

	a.catalog = catalog.New(catalog.Deps{
		Manifest: fetcher,
		Enricher: pipeline,
		Address:  a.settings,
		Settings: cfg.Catalog,
		Logger:   o.logger.Module("catalog"),
		Metrics:  m.Catalog,
	})

	a.daily = daily.New(daily.Deps{
		KV:       a.store,
		Keys:     cfg.Keys,
		Layout:   cfg.DateFormat.Layout,
		Clock:    o.clock,
		Location: o.location,
		Logger:   o.logger.Module("daily"),
		Metrics:  m.Catalog,
	})

	mqttClient := o.mqttClient
	if mqttClient == nil && cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(mqtt.ConfigFromSettings(cfg.MQTT), m.MQTT, o.logger.Module("mqtt"))
		if err != nil {
			a.Close()
			return nil, appError(err, "mqtt")
		}
	}
	if mqttClient != nil {
		a.publisher = mqtt.NewPublisher(mqttClient, cfg.MQTT.Topic, a.daily.Today,
			o.logger.Module("mqtt"), m.Catalog)
	}

	sender := o.notifySender
	if sender == nil && cfg.Notify.Enabled {
		router, err := notify.NewSender(cfg.Notify.URLs, cfg.Notify.Timeout)
		if err != nil {
			a.Close()
			return nil, appError(err, "notify")
		}
		sender = router
	}
	if sender != nil {
		a.notifier = notify.New(notify.Deps{
			Sender:         sender,
			Settings:       cfg.Notify,
			Today:          a.daily.Today,
			KV:             a.store,
			Key:            cfg.Keys.NotifiedDaily,
			ShowScientific: a.settings.ShowScientificNames,
			Logger:         o.logger.Module("notify"),
			Metrics:        m.Catalog,
		})
	}

	return a, nil
}

// Start runs the catalog store, the daily reconciler and the optional
// announcers until Close. Calling it again is a no-op.
func (a *App) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		ctx, a.cancel = context.WithCancel(ctx)

		// Subscribe before the first refresh so no Ready snapshot is missed
		catalogSub := a.catalog.Subscribe()
		var dailySub, notifySub *events.Subscription[*model.Entity]
		if a.publisher != nil && !a.manual {
			dailySub = a.daily.Subscribe()
		}
		if a.notifier != nil && !a.manual {
			notifySub = a.daily.Subscribe()
		}

		a.wg.Go(func() { a.reconcile(ctx, catalogSub) })
		a.wg.Go(func() {
			if err := a.catalog.Run(ctx); err != nil {
				a.logger.Warn("catalog store stopped", logger.Error(err))
			}
		})
		if dailySub != nil {
			a.wg.Go(func() { a.publisher.Run(ctx, dailySub) })
		}
		if notifySub != nil {
			a.wg.Go(func() { a.notifier.Run(ctx, notifySub) })
		}

		a.logger.Info("quack-go started",
			logger.String("server", a.settings.ServerBaseURL()),
			logger.Bool("mqtt", a.publisher != nil),
			logger.Bool("notify", a.notifier != nil),
			logger.Bool("telemetry", a.reporter != nil))
	})
}

// reconcile hands every settled catalog to the daily selector.
func (a *App) reconcile(ctx context.Context, sub *events.Subscription[model.Catalog]) {
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			if c.IsLoading {
				continue
			}
			a.metrics.Catalog.SetCatalogSize(c.Len())
			if _, err := a.daily.Reconcile(ctx, c); err != nil {
				a.logger.Warn("daily reconcile failed",
					logger.Uint64("generation", c.Generation),
					logger.Error(err))
			}
		}
	}
}

// Catalog returns the current catalog snapshot.
func (a *App) Catalog() model.Catalog {
	return a.catalog.Snapshot()
}

// SubscribeCatalog returns a subscription starting with the current snapshot.
func (a *App) SubscribeCatalog() *events.Subscription[model.Catalog] {
	return a.catalog.Subscribe()
}

// RefreshCatalog starts a refresh and returns its generation.
func (a *App) RefreshCatalog() uint64 {
	return a.catalog.Refresh()
}

// WaitCatalog blocks until the refresh of generation gen, or a later one,
// has settled.
func (a *App) WaitCatalog(ctx context.Context, gen uint64) (model.Catalog, error) {
	return a.catalog.Wait(ctx, gen)
}

// CurrentDaily returns today's entity, or nil.
func (a *App) CurrentDaily() *model.Entity {
	return a.daily.Current()
}

// SubscribeDaily returns a subscription starting with the current selection.
func (a *App) SubscribeDaily() *events.Subscription[*model.Entity] {
	return a.daily.Subscribe()
}

// ReconcileDaily runs the daily selection against the current snapshot.
func (a *App) ReconcileDaily(ctx context.Context) (*model.Entity, error) {
	return a.daily.Reconcile(ctx, a.catalog.Snapshot())
}

// RefreshDaily picks a new daily entity from the current snapshot.
func (a *App) RefreshDaily(ctx context.Context) (*model.Entity, error) {
	return a.daily.ForceRefresh(ctx, a.catalog.Snapshot())
}

// NotifyDaily sends the current daily selection to the notification
// services even if it was notified before.
func (a *App) NotifyDaily(ctx context.Context) (*model.Entity, error) {
	if a.notifier == nil {
		return nil, errors.Newf("notifications are not configured").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	e, err := a.daily.Reconcile(ctx, a.catalog.Snapshot())
	if err != nil {
		a.logger.Warn("daily selection not persisted", logger.Error(err))
	}
	if e == nil {
		return nil, errors.Newf("catalog is empty, nothing to notify").
			Component("app").
			Category(errors.CategoryState).
			Build()
	}
	return e, a.notifier.Notify(ctx, e)
}

// Today returns the calendar day the daily selection is keyed on.
func (a *App) Today() string {
	return a.daily.Today()
}

// Settings returns the settings store.
func (a *App) Settings() *settings.Store {
	return a.settings
}

// Metrics returns the metrics registry holder.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Config returns the process configuration.
func (a *App) Config() *conf.Settings {
	return a.config
}

// Close stops every service in reverse construction order. It is safe to
// call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		if a.catalog != nil {
			a.catalog.Close()
		}
		a.wg.Wait()

		if a.publisher != nil {
			a.publisher.Close()
		}
		if a.daily != nil {
			a.daily.Close()
		}
		if a.text != nil {
			a.text.Flush()
		}
		if a.client != nil {
			a.client.Close()
		}
		if a.settings != nil {
			a.settings.Close()
		}
		if a.ownsStore && a.store != nil {
			if err := a.store.Close(); err != nil {
				a.logger.Warn("closing datastore failed", logger.Error(err))
			}
		}
		if a.reporter != nil {
			a.reporter.Flush(reportFlushTimeout)
		}
		for _, remove := range a.unhook {
			remove()
		}
	})
}

func appError(err error, operation string) error {
	return errors.New(err).
		Component("app").
		Category(errors.CategoryConfiguration).
		Context("operation", operation).
		Build()
}
