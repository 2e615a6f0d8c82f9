// Package settings holds the user preferences that drive catalog
// synchronization: the server base address and two display flags. Values
// are persisted in the durable key-value store and every mutation is
// announced to subscribers.
package settings

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/datastore"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
)

// ErrInvalidAddress is returned by ValidateAddress for a base address that
// cannot be used to reach a server.
var ErrInvalidAddress = errors.NewStd("invalid server address")

// Field identifies which preference changed.
type Field int

const (
	FieldServerBaseURL Field = iota
	FieldShowScientificNames
	FieldDarkMode
)

func (f Field) String() string {
	switch f {
	case FieldServerBaseURL:
		return "serverBaseURL"
	case FieldShowScientificNames:
		return "showScientificNames"
	case FieldDarkMode:
		return "darkMode"
	default:
		return "unknown"
	}
}

// Values is a copy of all preferences.
type Values struct {
	ServerBaseURL       string `json:"serverBaseUrl"`
	ShowScientificNames bool   `json:"showScientificNames"`
	DarkMode            bool   `json:"darkMode"`
}

// Change is the notification emitted after a mutation. Values holds the
// state right after the change.
type Change struct {
	Field  Field
	Values Values
}

// Store is the settings cell. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	values     Values
	kv         datastore.KeyValue
	keys       conf.KeySettings
	defaultURL *url.URL
	changes    *events.Broadcaster[Change]
	logger     logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithServerOverride replaces the loaded base address for the lifetime of
// the store without writing it to the key-value store.
func WithServerOverride(raw string) Option {
	return func(s *Store) {
		if raw != "" {
			s.values.ServerBaseURL = raw
		}
	}
}

// New loads the preferences from kv. Absent keys take their defaults: the
// configured default address and false for both flags.
func New(ctx context.Context, kv datastore.KeyValue, settings *conf.Settings, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.Global().Module("settings")
	}

	defaultURL, err := url.Parse(settings.Network.DefaultServerURL)
	if err != nil || !conf.IsUsableBaseURL(settings.Network.DefaultServerURL) {
		defaultURL, _ = url.Parse(conf.DefaultServerURL)
	}

	s := &Store{
		kv:         kv,
		keys:       settings.Keys,
		defaultURL: defaultURL,
		changes:    events.NewBroadcaster[Change](log, events.WithName("settings")),
		logger:     log,
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	s.values = Values{ServerBaseURL: s.defaultURL.String()}

	if raw, found, err := s.kv.Get(ctx, s.keys.ServerBaseURL); err != nil {
		return loadError(err, s.keys.ServerBaseURL)
	} else if found {
		s.values.ServerBaseURL = raw
	}

	var err error
	if s.values.ShowScientificNames, err = s.loadBool(ctx, s.keys.ShowScientificNames); err != nil {
		return err
	}
	if s.values.DarkMode, err = s.loadBool(ctx, s.keys.DarkMode); err != nil {
		return err
	}

	s.logger.Debug("settings loaded",
		logger.String("server_base_url", s.values.ServerBaseURL),
		logger.Bool("show_scientific_names", s.values.ShowScientificNames),
		logger.Bool("dark_mode", s.values.DarkMode))

	return nil
}

func (s *Store) loadBool(ctx context.Context, key string) (bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, loadError(err, key)
	}
	if !found {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("ignoring unparsable stored flag",
			logger.String("key", key),
			logger.String("value", raw))
		return false, nil
	}
	return v, nil
}

func loadError(err error, key string) error {
	return errors.New(err).
		Component("settings").
		Category(errors.CategoryDatabase).
		Context("operation", "load").
		Context("key", key).
		Build()
}

// Values returns a copy of every preference.
func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// ServerBaseURL returns the stored address string verbatim.
func (s *Store) ServerBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.ServerBaseURL
}

// ShowScientificNames returns the display flag.
func (s *Store) ShowScientificNames() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.ShowScientificNames
}

// DarkMode returns the theme flag.
func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.DarkMode
}

// BaseURL parses the stored address on every call. An unset or unusable
// address yields the default. The returned value is never nil and is a
// fresh copy the caller may modify.
func (s *Store) BaseURL() *url.URL {
	raw := s.ServerBaseURL()
	if conf.IsUsableBaseURL(raw) {
		if u, err := url.Parse(raw); err == nil {
			return u
		}
	}
	u := *s.defaultURL
	return &u
}

// SetServerBaseURL stores raw as given. The store does not validate the
// address; BaseURL falls back to the default for unusable values.
func (s *Store) SetServerBaseURL(ctx context.Context, raw string) error {
	return s.set(ctx, FieldServerBaseURL, s.keys.ServerBaseURL, raw, func(v *Values) {
		v.ServerBaseURL = raw
	})
}

// SetShowScientificNames stores the display flag.
func (s *Store) SetShowScientificNames(ctx context.Context, show bool) error {
	return s.set(ctx, FieldShowScientificNames, s.keys.ShowScientificNames, strconv.FormatBool(show), func(v *Values) {
		v.ShowScientificNames = show
	})
}

// SetDarkMode stores the theme flag.
func (s *Store) SetDarkMode(ctx context.Context, dark bool) error {
	return s.set(ctx, FieldDarkMode, s.keys.DarkMode, strconv.FormatBool(dark), func(v *Values) {
		v.DarkMode = dark
	})
}

// set updates the cell, persists the raw value and then notifies. The
// in-memory value and the notification stand even if the write fails.
func (s *Store) set(ctx context.Context, field Field, key, raw string, apply func(*Values)) error {
	s.mu.Lock()
	apply(&s.values)
	snapshot := s.values
	s.mu.Unlock()

	var persistErr error
	if err := s.kv.Set(ctx, key, raw); err != nil {
		persistErr = errors.New(err).
			Component("settings").
			Category(errors.CategoryDatabase).
			Context("operation", "persist").
			Context("field", field.String()).
			Build()
		s.logger.Warn("failed to persist setting",
			logger.String("field", field.String()),
			logger.Error(err))
	}

	s.logger.Debug("setting changed", logger.String("field", field.String()))
	s.changes.Publish(Change{Field: field, Values: snapshot})

	return persistErr
}

// Subscribe returns a subscription to change notifications. Unread
// notifications coalesce into the latest one.
func (s *Store) Subscribe() *events.Subscription[Change] {
	return s.changes.Subscribe()
}

// Close closes every subscription.
func (s *Store) Close() {
	s.changes.Close()
}

// ValidateAddress rejects addresses that BaseURL would replace with the
// default. It is meant for input boundaries such as the HTTP API.
func ValidateAddress(raw string) error {
	if !conf.IsUsableBaseURL(raw) {
		return errors.New(ErrInvalidAddress).
			Component("settings").
			Category(errors.CategoryValidation).
			Context("value", raw).
			Build()
	}
	return nil
}
