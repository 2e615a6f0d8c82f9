// Package notify pushes each new daily selection to notification services
// such as ntfy, Discord or Telegram.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/datastore"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/observability/metrics"
	"github.com/tphakala/quack-go/internal/privacy"
)

// Sender delivers one message to every configured service. It is
// satisfied by the shoutrrr service router.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// NewSender builds a shoutrrr router for urls. Errors never include the
// URLs themselves, since they carry tokens.
func NewSender(urls []string, timeout time.Duration) (*router.ServiceRouter, error) {
	if len(urls) == 0 {
		return nil, notifyError(fmt.Errorf("at least one URL is required"), "new_sender")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, notifyError(privacy.WrapError(err), "new_sender")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return sender, nil
}

// Notifier sends a message for every new daily selection. The last
// notified selection is remembered under a store key, so a restart that
// keeps the day's entity does not notify it again.
type Notifier struct {
	sender     Sender
	title      string
	today      func() string
	scientific func() bool
	kv         datastore.KeyValue
	key        string
	last       string // marker of the last notified selection when kv is nil
	logger     logger.Logger
	metrics    metrics.Recorder
}

// Deps holds what a Notifier needs.
type Deps struct {
	Sender   Sender
	Settings conf.NotifySettings
	Today    func() string
	// KV and Key remember the last notified selection. KV may be nil.
	KV  datastore.KeyValue
	Key string
	// ShowScientific reports whether the scientific name is included.
	ShowScientific func() bool
	Logger         logger.Logger
	Metrics        metrics.Recorder
}

// New creates a Notifier.
func New(d Deps) *Notifier {
	if d.Logger == nil {
		d.Logger = GetLogger()
	}
	if d.ShowScientific == nil {
		d.ShowScientific = func() bool { return false }
	}
	return &Notifier{
		sender:     d.Sender,
		title:      d.Settings.Title,
		today:      d.Today,
		scientific: d.ShowScientific,
		kv:         d.KV,
		key:        d.Key,
		logger:     d.Logger,
		metrics:    metrics.OrNoOp(d.Metrics),
	}
}

// Run notifies every new non-nil selection received on sub until ctx is
// done or sub closes.
func (n *Notifier) Run(ctx context.Context, sub *events.Subscription[*model.Entity]) {
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			if _, err := n.NotifyOnce(ctx, e); err != nil {
				n.logger.Warn("daily notification failed",
					logger.String("name", e.Name),
					logger.Error(err))
			}
		}
	}
}

// NotifyOnce sends e unless it is the selection notified last. It reports
// whether a message was sent. Failing to record the marker is logged, since
// the message already went out.
func (n *Notifier) NotifyOnce(ctx context.Context, e *model.Entity) (bool, error) {
	marker := n.today() + "|" + e.Name

	last, err := n.lastMarker(ctx)
	if err != nil {
		n.logger.Warn("reading notification marker failed", logger.Error(err))
	}
	if last == marker {
		n.logger.Debug("selection already notified", logger.String("name", e.Name))
		return false, nil
	}

	if err := n.Notify(ctx, e); err != nil {
		return false, err
	}

	n.last = marker
	if n.kv != nil {
		if err := n.kv.Set(ctx, n.key, marker); err != nil {
			n.logger.Warn("recording notification marker failed", logger.Error(err))
		}
	}
	return true, nil
}

func (n *Notifier) lastMarker(ctx context.Context) (string, error) {
	if n.kv == nil {
		return n.last, nil
	}
	v, found, err := n.kv.Get(ctx, n.key)
	if err != nil || !found {
		return n.last, err
	}
	return v, nil
}

// Notify sends one selection. Only the first service error is returned.
func (n *Notifier) Notify(ctx context.Context, e *model.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.title != "" {
		params.SetTitle(n.title)
	}

	for _, err := range n.sender.Send(Message(e, n.today(), n.scientific()), &params) {
		if err != nil {
			n.metrics.RecordOperation(metrics.OpNotify, metrics.StatusError)
			return notifyError(privacy.WrapError(err), "send")
		}
	}

	n.metrics.RecordOperation(metrics.OpNotify, metrics.StatusSuccess)
	n.logger.Info("daily selection notified", logger.String("name", e.Name))
	return nil
}

// Message renders the notification body for e on day.
func Message(e *model.Entity, day string, scientific bool) string {
	var b strings.Builder
	b.WriteString(e.Name)
	if scientific && e.ScientificName != nil && *e.ScientificName != "" {
		fmt.Fprintf(&b, " (%s)", *e.ScientificName)
	}
	fmt.Fprintf(&b, ", %s", day)
	if e.ShortDescription != "" {
		b.WriteString("\n\n")
		b.WriteString(e.ShortDescription)
	}
	return b.String()
}

func notifyError(err error, operation string) error {
	return errors.New(err).
		Component("notify").
		Category(errors.CategoryIntegration).
		Context("operation", operation).
		Build()
}
