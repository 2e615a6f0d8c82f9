package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/observability/metrics"
	testhelp "github.com/tphakala/quack-go/internal/testutil"
)

type sentMessage struct {
	body  string
	title string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	err    error
	notify chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{notify: make(chan struct{}, 10)}
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return []error{nil, f.err}
	}
	f.sent = append(f.sent, sentMessage{body: message, title: (*params)["title"]})
	f.notify <- struct{}{}
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func strPtr(s string) *string { return &s }

func newTestNotifier(s Sender, kv *memoryKV, day *string, rec metrics.Recorder) *Notifier {
	d := Deps{
		Sender:   s,
		Settings: conf.NotifySettings{Title: "Duck of the day"},
		Today:    func() string { return *day },
		Key:      "duckOfTheDayNotified",
		Logger:   logger.NewDiscardLogger(),
		Metrics:  rec,
	}
	if kv != nil {
		d.KV = kv
	}
	return New(d)
}

func TestMessage(t *testing.T) {
	t.Parallel()

	wood := model.NewEntity(model.EntityParams{
		Name:             "Wood Duck",
		ScientificName:   strPtr("Aix sponsa"),
		ShortDescription: "A colorful perching duck.",
	})
	teal := model.NewEntity(model.EntityParams{Name: "Teal"})

	tests := []struct {
		name       string
		entity     *model.Entity
		scientific bool
		want       string
	}{
		{"common name only", wood, false, "Wood Duck, 2026-03-14\n\nA colorful perching duck."},
		{"with scientific name", wood, true, "Wood Duck (Aix sponsa), 2026-03-14\n\nA colorful perching duck."},
		{"no scientific name to show", teal, true, "Teal, 2026-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Message(tt.entity, "2026-03-14", tt.scientific))
		})
	}
}

func TestNotify_SendsTitleAndBody(t *testing.T) {
	t.Parallel()
	fs := newFakeSender()
	rec := metrics.NewTestRecorder()
	day := "2026-03-14"
	n := newTestNotifier(fs, nil, &day, rec)

	require.NoError(t, n.Notify(t.Context(), model.NewEntity(model.EntityParams{Name: "Mallard"})))

	msgs := fs.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Duck of the day", msgs[0].title)
	assert.Equal(t, "Mallard, 2026-03-14", msgs[0].body)
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpNotify, metrics.StatusSuccess))
}

func TestNotify_ScrubsServiceErrors(t *testing.T) {
	t.Parallel()
	fs := newFakeSender()
	fs.err = fmt.Errorf("post https://hooks.example.org/services/T000/B000/secret: 403")
	rec := metrics.NewTestRecorder()
	day := "2026-03-14"
	n := newTestNotifier(fs, nil, &day, rec)

	err := n.Notify(t.Context(), model.NewEntity(model.EntityParams{Name: "Mallard"}))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "403")
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpNotify, metrics.StatusError))
}

func TestNotify_CanceledContext(t *testing.T) {
	t.Parallel()
	fs := newFakeSender()
	day := "2026-03-14"
	n := newTestNotifier(fs, nil, &day, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.ErrorIs(t, n.Notify(ctx, model.NewEntity(model.EntityParams{Name: "Mallard"})), context.Canceled)
	assert.Empty(t, fs.messages())
}

func TestNotifyOnce_SkipsAlreadyNotified(t *testing.T) {
	t.Parallel()
	fs := newFakeSender()
	kv := &memoryKV{values: map[string]string{}}
	day := "2026-03-14"
	n := newTestNotifier(fs, kv, &day, nil)
	mallard := model.NewEntity(model.EntityParams{Name: "Mallard"})

	sent, err := n.NotifyOnce(t.Context(), mallard)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "2026-03-14|Mallard", kv.values["duckOfTheDayNotified"])

	// A restarted notifier sharing the store stays quiet
	restarted := newTestNotifier(fs, kv, &day, nil)
	sent, err = restarted.NotifyOnce(t.Context(), mallard)
	require.NoError(t, err)
	assert.False(t, sent)

	// A forced refresh on the same day is a new selection
	sent, err = restarted.NotifyOnce(t.Context(), model.NewEntity(model.EntityParams{Name: "Teal"}))
	require.NoError(t, err)
	assert.True(t, sent)

	// The same entity on the next day is notified again
	day = "2026-03-15"
	sent, err = restarted.NotifyOnce(t.Context(), model.NewEntity(model.EntityParams{Name: "Teal"}))
	require.NoError(t, err)
	assert.True(t, sent)

	assert.Len(t, fs.messages(), 3)
}

func TestNotifyOnce_MarkerWriteFailureStillSends(t *testing.T) {
	t.Parallel()
	fs := newFakeSender()
	kv := &memoryKV{values: map[string]string{}, setErr: fmt.Errorf("disk full")}
	day := "2026-03-14"
	n := newTestNotifier(fs, kv, &day, nil)

	sent, err := n.NotifyOnce(t.Context(), model.NewEntity(model.EntityParams{Name: "Mallard"}))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, fs.messages(), 1)
}

func TestRun_NotifiesSelections(t *testing.T) {
	t.Parallel()
	fs := newFakeSender()
	day := "2026-03-14"
	n := newTestNotifier(fs, nil, &day, nil)

	b := events.NewBroadcaster[*model.Entity](logger.NewDiscardLogger(), events.WithReplay())
	b.Publish(nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx, b.Subscribe())
	}()

	b.Publish(model.NewEntity(model.EntityParams{Name: "Pintail"}))
	testhelp.WaitForValue(t, fs.notify, testhelp.DefaultTestTimeout, nil, "notification not sent")

	cancel()
	<-done
	b.Close()

	msgs := fs.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].body, "Pintail")
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	_, err := NewSender(nil, time.Second)
	require.Error(t, err)

	_, err = NewSender([]string{"unknownservice://token@host"}, time.Second)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@host")

	sender, err := NewSender([]string{"logger://"}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, sender.Timeout)
}
