// Package telemetry reports internal errors to Sentry when the user opts in.
// Every message passes through privacy scrubbing before it leaves the
// process; user, host and runtime data are stripped from each event.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/time/rate"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/privacy"
)

const (
	// Sustained events per second and burst allowed through the hook.
	reportRate  = 1.0 / 6
	reportBurst = 5
)

// Option configures a Reporter.
type Option func(*options)

type options struct {
	transport sentry.Transport
	release   string
	logger    logger.Logger
}

// WithTransport replaces the Sentry transport.
func WithTransport(t sentry.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithRelease sets the release name attached to every event.
func WithRelease(release string) Option {
	return func(o *options) { o.release = release }
}

// WithLogger sets the reporter logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Reporter sends reportable errors to Sentry through its own hub.
type Reporter struct {
	hub     *sentry.Hub
	limiter *rate.Limiter
	logger  logger.Logger
}

// New creates a Reporter for the DSN in cfg.
func New(cfg conf.TelemetrySettings, opts ...Option) (*Reporter, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = GetLogger()
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		SampleRate:       cfg.SampleRate,
		Environment:      cfg.Environment,
		Release:          o.release,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       beforeSend,
		Transport:        o.transport,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", privacy.WrapError(err))
	}

	o.logger.Info("error reporting enabled",
		logger.String("environment", cfg.Environment),
		logger.Float64("sample_rate", cfg.SampleRate))

	return &Reporter{
		hub:     sentry.NewHub(client, sentry.NewScope()),
		limiter: rate.NewLimiter(rate.Limit(reportRate), reportBurst),
		logger:  o.logger,
	}, nil
}

// Hook returns the error hook that feeds the reporter.
func (r *Reporter) Hook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		r.Report(ee)
	}
}

// Report sends ee when its category is reportable and the rate limit
// allows it. It reports whether an event was captured.
func (r *Reporter) Report(ee *errors.EnhancedError) bool {
	if ee == nil || ee.Err == nil || !Reportable(ee.Category) {
		return false
	}
	if !r.limiter.Allow() {
		r.logger.Debug("error report dropped by rate limit",
			logger.String("category", string(ee.Category)))
		return false
	}

	title := Title(ee)
	message := privacy.ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	level := Level(ee.Category)

	var id *sentry.EventID
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = privacy.ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}

		id = r.hub.CaptureEvent(event)
	})
	return id != nil
}

// Flush waits up to timeout for queued events to be delivered.
func (r *Reporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

// Reportable reports whether errors of category are worth sending. User
// input and transient network conditions are not.
func Reportable(category errors.ErrorCategory) bool {
	switch category {
	case errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryCancellation,
		errors.CategoryNetwork, errors.CategoryHTTP, errors.CategoryTimeout,
		errors.CategoryManifest, errors.CategoryTextFetch:
		return false
	default:
		return true
	}
}

// Level maps a category to a Sentry level.
func Level(category errors.ErrorCategory) sentry.Level {
	switch category {
	case errors.CategoryDatabase, errors.CategoryState, errors.CategoryConfiguration, errors.CategorySelection:
		return sentry.LevelError
	default:
		return sentry.LevelWarning
	}
}

// beforeSend removes identifying data from every event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	if event.Request != nil {
		event.Request.URL = privacy.ScrubMessage(event.Request.URL)
		event.Request.Cookies = ""
		event.Request.Headers = nil
	}
	return event
}
