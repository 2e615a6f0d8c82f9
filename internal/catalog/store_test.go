package catalog

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/enrichment"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/httpclient"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/manifest"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/observability/metrics"
	"github.com/tphakala/quack-go/internal/settings"
	"github.com/tphakala/quack-go/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type manifestReply struct {
	records []manifest.Record
	err     error
}

// fakeManifest answers per base address. A base with a gate blocks until
// the gate is closed or the context ends.
type fakeManifest struct {
	mu      sync.Mutex
	replies map[string]manifestReply
	gates   map[string]chan struct{}
	calls   map[string]int
	started chan string
}

func newFakeManifest() *fakeManifest {
	return &fakeManifest{
		replies: make(map[string]manifestReply),
		gates:   make(map[string]chan struct{}),
		calls:   make(map[string]int),
		started: make(chan string, 16),
	}
}

func (f *fakeManifest) reply(base string, names ...string) {
	records := make([]manifest.Record, len(names))
	for i, n := range names {
		records[i] = manifest.Record{SpeciesName: &n}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[base] = manifestReply{records: records}
}

func (f *fakeManifest) gate(base string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[base] = ch
	return ch
}

func (f *fakeManifest) callCount(base string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[base]
}

func (f *fakeManifest) Fetch(ctx context.Context, base *url.URL) (manifest.Result, error) {
	key := base.String()

	f.mu.Lock()
	f.calls[key]++
	reply, ok := f.replies[key]
	gate := f.gates[key]
	f.mu.Unlock()

	select {
	case f.started <- key:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return manifest.Result{}, ctx.Err()
		}
	}

	if !ok {
		return manifest.Result{}, manifest.ErrExhausted
	}
	if reply.err != nil {
		return manifest.Result{}, reply.err
	}
	return manifest.Result{Records: reply.records, URL: key + "manifest.json"}, nil
}

type fakeEnricher struct {
	flushes atomic.Int32
}

func (f *fakeEnricher) Enrich(_ context.Context, _ *url.URL, records []manifest.Record) []*model.Entity {
	out := make([]*model.Entity, len(records))
	for i, r := range records {
		out[i] = model.NewEntity(model.EntityParams{Name: *r.SpeciesName})
	}
	return out
}

func (f *fakeEnricher) FlushCache() { f.flushes.Add(1) }

// fakeAddress is a settable address cell that announces every change.
type fakeAddress struct {
	mu      sync.Mutex
	raw     string
	changes *events.Broadcaster[settings.Change]
}

func newFakeAddress(raw string) *fakeAddress {
	return &fakeAddress{raw: raw, changes: events.NewBroadcaster[settings.Change](logger.NewDiscardLogger())}
}

func (f *fakeAddress) BaseURL() *url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := url.Parse(f.raw)
	if err != nil || u.Host == "" {
		u, _ = url.Parse(conf.DefaultServerURL)
	}
	return u
}

func (f *fakeAddress) Subscribe() *events.Subscription[settings.Change] {
	return f.changes.Subscribe()
}

func (f *fakeAddress) set(raw string) {
	f.mu.Lock()
	f.raw = raw
	f.mu.Unlock()
	f.changes.Publish(settings.Change{Field: settings.FieldServerBaseURL, Values: settings.Values{ServerBaseURL: raw}})
}

func (f *fakeAddress) touch() {
	f.changes.Publish(settings.Change{Field: settings.FieldDarkMode})
}

type harness struct {
	store    *Store
	manifest *fakeManifest
	enricher *fakeEnricher
	address  *fakeAddress
	metrics  *metrics.TestRecorder
}

func newHarness(t *testing.T, cancelSuperseded bool) *harness {
	t.Helper()
	h := &harness{
		manifest: newFakeManifest(),
		enricher: &fakeEnricher{},
		address:  newFakeAddress("http://a/"),
		metrics:  metrics.NewTestRecorder(),
	}
	h.store = New(Deps{
		Manifest: h.manifest,
		Enricher: h.enricher,
		Address:  h.address,
		Settings: conf.CatalogSettings{CancelSuperseded: cancelSuperseded},
		Logger:   logger.NewDiscardLogger(),
		Metrics:  h.metrics,
	})
	t.Cleanup(h.store.Close)
	return h
}

// run starts the store loop and stops it when the test ends.
func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.store.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) waitStarted(t *testing.T, base string) {
	t.Helper()
	testutil.WaitForValue(t, h.manifest.started, testutil.DefaultTestTimeout,
		func(s string) bool { return s == base }, "fetch against "+base+" never started")
}

func names(c model.Catalog) []string {
	out := make([]string, len(c.Entities))
	for i, e := range c.Entities {
		out[i] = e.Name
	}
	return out
}

func TestNew_InitialStateIsLoadingAndEmpty(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	snap := h.store.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Empty(t, snap.Entities)
	assert.Equal(t, StateLoading, h.store.State())
	assert.Equal(t, "http://a/", h.store.ActiveBaseURL().String())
	assert.Zero(t, h.manifest.callCount("http://a/"))

	sub := h.store.Subscribe()
	defer sub.Unsubscribe()
	first := testutil.WaitForValue(t, sub.C(), testutil.ShortTestTimeout, nil, "no replayed snapshot")
	assert.True(t, first.IsLoading)
}

func TestRun_PublishesReadyCatalog(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/", "Mallard", "Teal")

	h.run(t)

	snap, err := h.store.Wait(t.Context(), 1)
	require.NoError(t, err)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, []string{"Mallard", "Teal"}, names(snap))
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, StateReady, h.store.State())
	assert.Equal(t, 1, h.metrics.GetOperationCount(metrics.OpCatalogRefresh, metrics.StatusSuccess))
	assert.Len(t, h.metrics.GetDurations(metrics.OpCatalogRefresh), 1)
}

func TestRefresh_LoadingFlipsToReadyOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/")
	gate := h.manifest.gate("http://a/")

	sub := h.store.Subscribe()
	defer sub.Unsubscribe()

	gen := h.store.Refresh()
	h.waitStarted(t, "http://a/")

	loading := testutil.WaitForValue(t, sub.C(), testutil.DefaultTestTimeout,
		func(c model.Catalog) bool { return c.Generation == gen }, "no loading snapshot")
	assert.True(t, loading.IsLoading)

	close(gate)

	ready := testutil.WaitForValue(t, sub.C(), testutil.DefaultTestTimeout,
		func(c model.Catalog) bool { return !c.IsLoading }, "no ready snapshot")
	assert.Equal(t, gen, ready.Generation)
	assert.Empty(t, ready.Entities)

	testutil.AssertNoValue(t, sub.C(), "unexpected snapshot after ready")
}

func TestRefresh_ExhaustionSettlesIntoEmptyCatalog(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)

	gen := h.store.Refresh()
	snap, err := h.store.Wait(t.Context(), gen)
	require.NoError(t, err)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Entities)
	assert.NotNil(t, snap.Entities)
	assert.Equal(t, 1, h.metrics.GetOperationCount(metrics.OpCatalogRefresh, metrics.StatusExhausted))
}

func TestRefresh_LoadingKeepsPreviousEntities(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/", "Mallard")

	_, err := h.store.Wait(t.Context(), h.store.Refresh())
	require.NoError(t, err)

	gate := h.manifest.gate("http://a/")
	defer close(gate)
	h.store.Refresh()

	snap := h.store.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Equal(t, []string{"Mallard"}, names(snap))
}

func TestRefresh_FreshIdentitiesEachCycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/", "Mallard")

	first, err := h.store.Wait(t.Context(), h.store.Refresh())
	require.NoError(t, err)
	second, err := h.store.Wait(t.Context(), h.store.Refresh())
	require.NoError(t, err)

	assert.False(t, first.Entities[0].SameAs(second.Entities[0]))
}

func TestRun_AddressChangeRefetchesAndFlushes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/", "Mallard")
	h.manifest.reply("http://b/", "Wood Duck", "Teal")

	h.run(t)
	_, err := h.store.Wait(t.Context(), 1)
	require.NoError(t, err)

	h.address.set("http://b/")
	snap, err := h.store.Wait(t.Context(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"Wood Duck", "Teal"}, names(snap))
	assert.Equal(t, "http://b/", snap.BaseURL)
	assert.Equal(t, "http://b/", h.store.ActiveBaseURL().String())
	assert.Equal(t, int32(2), h.enricher.flushes.Load(), "one flush per refresh")
}

func TestRun_UnchangedAddressIsNoOp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/", "Mallard")

	h.run(t)
	_, err := h.store.Wait(t.Context(), 1)
	require.NoError(t, err)

	sub := h.store.Subscribe()
	defer sub.Unsubscribe()
	testutil.WaitForValue(t, sub.C(), testutil.ShortTestTimeout, nil, "no replayed snapshot")

	h.address.touch()
	h.address.set("http://a/")

	testutil.AssertNoValue(t, sub.C(), "unchanged address triggered a refresh")
	assert.Equal(t, 1, h.manifest.callCount("http://a/"))
	assert.Equal(t, int32(1), h.enricher.flushes.Load(), "only the initial refresh flushed")
}

func TestRun_UnusableAddressFallsBackToDefault(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply(conf.DefaultServerURL, "Default Duck")

	h.run(t)
	_, err := h.store.Wait(t.Context(), 1)
	require.NoError(t, err)

	h.address.set("not a url")
	snap, err := h.store.Wait(t.Context(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Default Duck"}, names(snap))
}

// An older fetch that settles after a newer one overwrites it.
func TestRun_AddressChangeInFlightLastCompletionWins(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.reply("http://a/", "From A")
	h.manifest.reply("http://b/", "From B")
	gateA := h.manifest.gate("http://a/")
	gateB := h.manifest.gate("http://b/")

	sub := h.store.Subscribe()
	defer sub.Unsubscribe()

	h.run(t)
	h.waitStarted(t, "http://a/")

	h.address.set("http://b/")
	h.waitStarted(t, "http://b/")

	snap := h.store.Snapshot()
	assert.True(t, snap.IsLoading, "loading after the address change")
	assert.Equal(t, "http://b/", snap.BaseURL)

	close(gateB)
	ready, err := h.store.Wait(t.Context(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"From B"}, names(ready))

	close(gateA)
	final := testutil.WaitForValue(t, sub.C(), testutil.DefaultTestTimeout,
		func(c model.Catalog) bool { return !c.IsLoading && c.Generation == 1 }, "stale refresh never published")
	assert.Equal(t, []string{"From A"}, names(final))
	assert.Equal(t, []string{"From A"}, names(h.store.Snapshot()))
}

func TestRun_CancelSupersededDiscardsStaleResult(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	h.manifest.reply("http://a/", "From A")
	h.manifest.reply("http://b/", "From B")
	h.manifest.gate("http://a/")
	gateB := h.manifest.gate("http://b/")

	h.run(t)
	h.waitStarted(t, "http://a/")

	h.address.set("http://b/")
	h.waitStarted(t, "http://b/")

	require.Eventually(t, func() bool {
		return h.metrics.GetOperationCount(metrics.OpCatalogRefresh, metrics.StatusSuperseded) == 1
	}, testutil.DefaultTestTimeout, 10*time.Millisecond)

	close(gateB)
	ready, err := h.store.Wait(t.Context(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"From B"}, names(ready))

	time.Sleep(testutil.QuietPeriod)
	assert.Equal(t, []string{"From B"}, names(h.store.Snapshot()))
	assert.Equal(t, uint64(2), h.store.Snapshot().Generation)
}

func TestWait_HonorsContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	gate := h.manifest.gate("http://a/")
	defer close(gate)

	gen := h.store.Refresh()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := h.store.Wait(ctx, gen)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_StopsEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	h.manifest.gate("http://a/")

	sub := h.store.Subscribe()
	gen := h.store.Refresh()
	h.waitStarted(t, "http://a/")

	waitErr := make(chan error, 1)
	go func() {
		_, err := h.store.Wait(t.Context(), gen)
		waitErr <- err
	}()

	h.store.Close()
	h.store.Close()

	select {
	case err := <-waitErr:
		require.Error(t, err)
	case <-time.After(testutil.DefaultTestTimeout):
		require.Fail(t, "Wait did not return after Close")
	}

	assert.Zero(t, h.store.Refresh())
	assert.True(t, h.store.Snapshot().IsLoading, "a cancelled refresh is not published after close")

	for range sub.C() {
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
}

// A name-only manifest record becomes a complete entity.
func TestRefresh_EndToEndNameOnlyRecord(t *testing.T) {
	t.Parallel()

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, "http://a/manifest.json",
		httpmock.NewStringResponder(http.StatusOK, `[{"species_name":"Teal"},{"sounds":["x.mp3"]}]`))
	client := httpclient.New(&httpclient.Config{Transport: mt})
	defer client.Close()

	cfg := conf.Defaults()
	log := logger.NewDiscardLogger()
	text := enrichment.NewTextFetcher(client, cfg.Enrichment, log, nil)

	store := New(Deps{
		Manifest: manifest.NewFetcher(client, cfg.Network, manifest.WithLogger(log)),
		Enricher: enrichment.NewPipeline(text, cfg.Enrichment, log),
		Address:  newFakeAddress("http://a/"),
		Settings: cfg.Catalog,
		Logger:   log,
	})
	defer store.Close()

	snap, err := store.Wait(t.Context(), store.Refresh())
	require.NoError(t, err)
	require.Len(t, snap.Entities, 1)

	teal := snap.Entities[0]
	assert.Equal(t, "Teal", teal.Name)
	assert.Equal(t, "No description available.", teal.Description)
	assert.Empty(t, teal.ShortDescription)
	assert.Equal(t, []model.Region{model.RegionAll}, teal.Regions)
	assert.Nil(t, teal.CoolFacts)
	assert.Nil(t, teal.FindThisBird)
}

// A second refresh against the same address must see changed texts even
// while the text cache TTL has not expired.
func TestRefresh_ReloadsAuxiliaryTexts(t *testing.T) {
	t.Parallel()

	var body atomic.Value
	body.Store("old text")
	var textGets atomic.Int32

	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, "http://a/manifest.json",
		httpmock.NewStringResponder(http.StatusOK, `[{"species_name":"Teal","basic_description":"teal.txt"}]`))
	mt.RegisterResponder(http.MethodGet, "http://a/teal.txt",
		func(*http.Request) (*http.Response, error) {
			textGets.Add(1)
			return httpmock.NewStringResponse(http.StatusOK, body.Load().(string)), nil
		})
	client := httpclient.New(&httpclient.Config{Transport: mt})
	defer client.Close()

	cfg := conf.Defaults()
	cfg.Enrichment.TextCacheTTL = time.Hour
	log := logger.NewDiscardLogger()
	text := enrichment.NewTextFetcher(client, cfg.Enrichment, log, nil)

	store := New(Deps{
		Manifest: manifest.NewFetcher(client, cfg.Network, manifest.WithLogger(log)),
		Enricher: enrichment.NewPipeline(text, cfg.Enrichment, log),
		Address:  newFakeAddress("http://a/"),
		Settings: cfg.Catalog,
		Logger:   log,
	})
	defer store.Close()

	first, err := store.Wait(t.Context(), store.Refresh())
	require.NoError(t, err)
	require.Len(t, first.Entities, 1)
	assert.Equal(t, "old text", first.Entities[0].Description)

	body.Store("new text")

	second, err := store.Wait(t.Context(), store.Refresh())
	require.NoError(t, err)
	require.Len(t, second.Entities, 1)
	assert.Equal(t, "new text", second.Entities[0].Description)
	assert.Equal(t, int32(2), textGets.Load())
}
