// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateNetworkSettings,
		validateKeySettings,
		validateDateFormat,
		validateEnrichmentSettings,
		validateStorageSettings,
		validateWebServerSettings,
		validateNotifySettings,
		validateTelemetrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateNetworkSettings(s *Settings) error {
	if len(s.Network.ManifestPaths) == 0 {
		return fmt.Errorf("network.manifestpaths must list at least one candidate")
	}
	for i, p := range s.Network.ManifestPaths {
		if p == "" {
			return fmt.Errorf("network.manifestpaths[%d] is empty", i)
		}
	}
	if s.Network.RequestTimeout <= 0 {
		return fmt.Errorf("network.requesttimeout must be positive, got %s", s.Network.RequestTimeout)
	}
	if !IsUsableBaseURL(s.Network.DefaultServerURL) {
		return fmt.Errorf("network.defaultserverurl '%s' is not an absolute URL", s.Network.DefaultServerURL)
	}
	return nil
}

func validateKeySettings(s *Settings) error {
	keys := map[string]string{
		"keys.serverbaseurl":       s.Keys.ServerBaseURL,
		"keys.showscientificnames": s.Keys.ShowScientificNames,
		"keys.darkmode":            s.Keys.DarkMode,
		"keys.dailyname":           s.Keys.DailyName,
		"keys.dailydate":           s.Keys.DailyDate,
		"keys.notifieddaily":       s.Keys.NotifiedDaily,
	}
	seen := make(map[string]string, len(keys))
	for name, key := range keys {
		if key == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
		if other, dup := seen[key]; dup {
			return fmt.Errorf("%s and %s share the key '%s'", name, other, key)
		}
		seen[key] = name
	}
	return nil
}

// validateDateFormat requires a layout that renders a calendar day as exactly
// ten characters, as YYYY-MM-DD does.
func validateDateFormat(s *Settings) error {
	ref := time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)
	if got := ref.Format(s.DateFormat.Layout); len(got) != 10 {
		return fmt.Errorf("dateformat.layout '%s' must render a day as 10 characters, got '%s'", s.DateFormat.Layout, got)
	}
	return nil
}

func validateEnrichmentSettings(s *Settings) error {
	e := s.Enrichment
	switch {
	case e.Concurrency < 1:
		return fmt.Errorf("enrichment.concurrency must be at least 1, got %d", e.Concurrency)
	case e.TextTimeout <= 0:
		return fmt.Errorf("enrichment.texttimeout must be positive, got %s", e.TextTimeout)
	case e.TextCacheTTL < 0:
		return fmt.Errorf("enrichment.textcachettl must not be negative, got %s", e.TextCacheTTL)
	case e.RateLimit < 0:
		return fmt.Errorf("enrichment.ratelimit must not be negative, got %g", e.RateLimit)
	case e.ShortDescriptionLength < 1:
		return fmt.Errorf("enrichment.shortdescriptionlength must be at least 1, got %d", e.ShortDescriptionLength)
	}
	return nil
}

func validateStorageSettings(s *Settings) error {
	switch s.Storage.Type {
	case "sqlite":
		if s.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path must not be empty")
		}
	case "mysql":
		if s.Storage.MySQL.Host == "" || s.Storage.MySQL.Database == "" {
			return fmt.Errorf("storage.mysql requires host and database")
		}
	default:
		return fmt.Errorf("unknown storage.type '%s', expected sqlite or mysql", s.Storage.Type)
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if s.WebServer.AutoTLS && s.WebServer.Domain == "" {
		return fmt.Errorf("webserver.domain is required when webserver.autotls is enabled")
	}
	return nil
}

func validateNotifySettings(s *Settings) error {
	if !s.Notify.Enabled {
		return nil
	}
	if len(s.Notify.URLs) == 0 {
		return fmt.Errorf("notify.urls must list at least one service when notify is enabled")
	}
	if s.Notify.Timeout <= 0 {
		return fmt.Errorf("notify.timeout must be positive, got %s", s.Notify.Timeout)
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	t := s.Telemetry
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("telemetry.samplerate must be between 0 and 1, got %g", t.SampleRate)
	}
	if t.Enabled && t.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	return nil
}

// IsUsableBaseURL reports whether raw parses to an absolute URL with a
// scheme and a host.
func IsUsableBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
