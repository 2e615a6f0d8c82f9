// config.go: settings struct for quack-go and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/quack-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// NetworkSettings controls how the manifest is located and fetched.
type NetworkSettings struct {
	DefaultServerURL string        // fallback base address when the stored one is unset or unparsable
	ManifestPaths    []string      // candidate manifest locations, tried in order
	RequestTimeout   time.Duration // bound on every manifest request
	UserAgent        string        // User-Agent sent with every request
}

// KeySettings names the entries in the durable key-value store.
type KeySettings struct {
	ServerBaseURL       string
	ShowScientificNames string
	DarkMode            string
	DailyName           string // last selected entity name
	DailyDate           string // last selected calendar day
	NotifiedDaily       string // last selection pushed as a notification
}

// DateFormatSettings holds the calendar-day layout used for the daily selection.
type DateFormatSettings struct {
	Layout string // Go reference layout, must render as YYYY-MM-DD
}

// EnrichmentSettings tunes the per-record enrichment pipeline.
type EnrichmentSettings struct {
	Concurrency            int           // max records enriched at once
	TextTimeout            time.Duration // bound on every auxiliary text request
	TextCacheTTL           time.Duration // lifetime of cached auxiliary texts
	RateLimit              float64       // auxiliary text requests per second, 0 = unlimited
	ShortDescriptionLength int           // characters kept in the short description
}

// CatalogSettings controls catalog refresh behaviour.
type CatalogSettings struct {
	// CancelSuperseded cancels an in-flight refresh when a newer one starts
	// and discards its result. When false the last refresh to finish wins.
	CancelSuperseded bool
}

// SQLiteSettings configures the SQLite medium.
type SQLiteSettings struct {
	Path string // database file, ":memory:" for an in-process store
}

// MySQLSettings configures the MySQL medium.
type MySQLSettings struct {
	Username     string
	Password     string // may reference ${ENV} variables
	PasswordFile string // secret file, takes precedence over Password
	Database string
	Host     string
	Port     int
}

// StorageSettings selects the durable key-value medium.
type StorageSettings struct {
	Type   string // "sqlite" or "mysql"
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled   bool
	Listen    string // host:port
	AutoTLS   bool   // obtain a Let's Encrypt certificate for Domain
	Domain    string
	CertCache string // directory for issued certificates
}

// MQTTSettings configures daily selection announcements.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	ClientID string
	Username     string
	Password     string // may reference ${ENV} variables
	PasswordFile string // secret file, takes precedence over Password
	Retain       bool
}

// NotifySettings configures push notifications for daily selections.
type NotifySettings struct {
	Enabled bool
	URLs    []string      // notification service URLs, e.g. ntfy://ntfy.sh/ducks
	Title   string        // message title
	Timeout time.Duration // bound on one delivery to every service
}

// TelemetrySettings configures opt-in error reporting.
type TelemetrySettings struct {
	Enabled     bool
	DSN         string  // Sentry DSN
	Environment string  // reported environment name
	SampleRate  float64 // fraction of errors reported, 0..1
}

// Settings contains all configuration options for quack-go.
type Settings struct {
	Debug bool // true to enable debug logging

	Network    NetworkSettings
	Keys       KeySettings
	DateFormat DateFormatSettings
	Enrichment EnrichmentSettings
	Catalog    CatalogSettings
	Storage    StorageSettings
	WebServer  WebServerSettings
	MQTT       MQTTSettings
	Notify     NotifySettings
	Telemetry  TelemetrySettings

	Logging logger.LoggingConfig

	// ConfigPath is the file the settings were read from.
	ConfigPath string `yaml:"-" mapstructure:"-"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an explicit config file path. It is created from the
	// embedded default when it does not exist.
	ConfigFile string

	// Flags are bound to their matching config keys (for example "debug").
	Flags *pflag.FlagSet
}

// Load reads the configuration file, environment variables and bound flags
// into a validated Settings value.
func Load(opts LoadOptions) (*Settings, error) {
	v := newViper()

	if err := configureEnvironmentVariables(v); err != nil {
		return nil, fmt.Errorf("error configuring environment: %w", err)
	}

	if opts.Flags != nil {
		if f := opts.Flags.Lookup("debug"); f != nil {
			if err := v.BindPFlag("debug", f); err != nil {
				return nil, fmt.Errorf("error binding debug flag: %w", err)
			}
		}
	}

	if err := readConfig(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	settings, err := unmarshalSettings(v)
	if err != nil {
		return nil, err
	}
	settings.ConfigPath = v.ConfigFileUsed()

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// Defaults returns the built-in settings without reading any file or
// environment variable.
func Defaults() *Settings {
	settings, err := unmarshalSettings(newViper())
	if err != nil {
		panic(fmt.Sprintf("conf: defaults do not decode: %v", err))
	}
	return settings
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaultConfig(v)
	return v
}

func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	return settings, nil
}

// readConfig reads the explicit file or searches the default paths. A
// missing file is created from the embedded default.
func readConfig(v *viper.Viper, configFile string) error {
	if configFile != "" {
		if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
			if err := writeDefaultConfig(configFile); err != nil {
				return err
			}
		}
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	err = v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	configPath := filepath.Join(configPaths[0], "config.yaml")
	if err := writeDefaultConfig(configPath); err != nil {
		return err
	}
	GetLogger().Info("created default config file", logger.String("path", configPath))

	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// writeDefaultConfig writes the embedded config.yaml to configPath.
func writeDefaultConfig(configPath string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil { //nolint:gosec // config is not secret by default
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return nil
}

// Save writes settings back to the file they were loaded from.
func Save(settings *Settings) error {
	if settings.ConfigPath == "" {
		return fmt.Errorf("settings have no config path")
	}
	return SaveYAMLConfig(settings.ConfigPath, settings)
}

// SaveYAMLConfig writes settings to configPath atomically through a temp
// file. Comments and ordering of the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName) //nolint:errcheck // gone after a successful rename

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device rename, fall back to copy and delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}
