package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	s := Defaults()

	assert.Equal(t, DefaultServerURL, s.Network.DefaultServerURL)
	assert.Equal(t, []string{"manifest.json", "ducks/manifest.json", "/ducks/manifest.json"}, s.Network.ManifestPaths)
	assert.Equal(t, 6*time.Second, s.Network.RequestTimeout)
	assert.Equal(t, "QuackGo", s.Network.UserAgent)

	assert.Equal(t, "serverBaseURL", s.Keys.ServerBaseURL)
	assert.Equal(t, "showScientificNames", s.Keys.ShowScientificNames)
	assert.Equal(t, "darkMode", s.Keys.DarkMode)
	assert.Equal(t, "duckOfTheDayName", s.Keys.DailyName)
	assert.Equal(t, "duckOfTheDayDate", s.Keys.DailyDate)

	assert.Equal(t, "2006-01-02", s.DateFormat.Layout)
	assert.Equal(t, 8, s.Enrichment.Concurrency)
	assert.Equal(t, 5*time.Minute, s.Enrichment.TextCacheTTL)
	assert.Equal(t, 140, s.Enrichment.ShortDescriptionLength)
	assert.False(t, s.Catalog.CancelSuperseded)

	assert.Equal(t, "sqlite", s.Storage.Type)
	assert.Equal(t, ":8080", s.WebServer.Listen)
	assert.False(t, s.MQTT.Enabled)
	assert.False(t, s.Notify.Enabled)
	assert.Equal(t, 10*time.Second, s.Notify.Timeout)
	assert.False(t, s.Telemetry.Enabled)
	assert.InDelta(t, 1.0, s.Telemetry.SampleRate, 0)
	assert.Equal(t, "duckOfTheDayNotified", s.Keys.NotifiedDaily)

	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)

	require.NoError(t, ValidateSettings(s))
}

func TestLoadCreatesDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	s, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, path, s.ConfigPath)
	assert.Equal(t, Defaults().Network, s.Network)
}

func TestLoadReadsOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network:
  defaultserverurl: https://ducks.example.com/api/
  manifestpaths: [catalog.json]
  requesttimeout: 2s
enrichment:
  concurrency: 3
catalog:
  cancelsuperseded: true
storage:
  sqlite:
    path: ":memory:"
`), 0o600))

	s, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "https://ducks.example.com/api/", s.Network.DefaultServerURL)
	assert.Equal(t, []string{"catalog.json"}, s.Network.ManifestPaths)
	assert.Equal(t, 2*time.Second, s.Network.RequestTimeout)
	assert.Equal(t, 3, s.Enrichment.Concurrency)
	assert.True(t, s.Catalog.CancelSuperseded)
	assert.Equal(t, ":memory:", s.Storage.SQLite.Path)
	// untouched keys keep their defaults
	assert.Equal(t, "duckOfTheDayDate", s.Keys.DailyDate)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  manifestpaths: []\n"), 0o600))

	_, err := Load(LoadOptions{ConfigFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifestpaths")
}

func TestLoadBindsDebugFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--debug"}))

	s, err := Load(LoadOptions{ConfigFile: path, Flags: flags})
	require.NoError(t, err)

	assert.True(t, s.Debug)
	assert.Equal(t, "debug", s.Logging.DefaultLevel)
	assert.Equal(t, "debug", s.Logging.Console.Level)
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	s, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	s.Network.DefaultServerURL = "http://birds.local/"
	s.MQTT.Enabled = true
	require.NoError(t, Save(s))

	reloaded, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "http://birds.local/", reloaded.Network.DefaultServerURL)
	assert.True(t, reloaded.MQTT.Enabled)
	assert.Equal(t, s.Network.RequestTimeout, reloaded.Network.RequestTimeout)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "config-*.yaml"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files must not be left behind")
}

func TestSaveWithoutPath(t *testing.T) {
	t.Parallel()
	require.Error(t, Save(Defaults()))
}

func TestLoadResolvesSecrets(t *testing.T) {
	t.Setenv("QUACK_TEST_NTFY_TOKEN", "tk_123")
	t.Setenv("QUACK_TEST_DSN", "https://public@sentry.example.com/1")

	dir := t.TempDir()
	pwFile := filepath.Join(dir, "mqtt_password")
	require.NoError(t, os.WriteFile(pwFile, []byte("broker-pass\n"), 0o600))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mqtt:
  password: ignored
  passwordfile: `+pwFile+`
notify:
  enabled: true
  urls:
    - ntfy://:${QUACK_TEST_NTFY_TOKEN}@ntfy.sh/ducks
telemetry:
  enabled: true
  dsn: ${QUACK_TEST_DSN}
`), 0o600))

	s, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "broker-pass", s.MQTT.Password)
	assert.Equal(t, []string{"ntfy://:tk_123@ntfy.sh/ducks"}, s.Notify.URLs)
	assert.Equal(t, "https://public@sentry.example.com/1", s.Telemetry.DSN)
}

func TestLoadMissingSecretVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  mysql:
    password: ${QUACK_TEST_SURELY_UNSET}
`), 0o600))

	_, err := Load(LoadOptions{ConfigFile: path})
	require.ErrorContains(t, err, "storage.mysql.password")
}
