// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults that other packages reference directly.
const (
	DefaultServerURL      = "http://localhost/"
	DefaultDateLayout     = "2006-01-02"
	DefaultRequestTimeout = 6 * time.Second
	NoDescriptionText     = "No description available."
)

// DefaultManifestPaths are the candidate manifest locations in priority order.
func DefaultManifestPaths() []string {
	return []string{"manifest.json", "ducks/manifest.json", "/ducks/manifest.json"}
}

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("network.defaultserverurl", DefaultServerURL)
	v.SetDefault("network.manifestpaths", DefaultManifestPaths())
	v.SetDefault("network.requesttimeout", DefaultRequestTimeout)
	v.SetDefault("network.useragent", "QuackGo")

	v.SetDefault("keys.serverbaseurl", "serverBaseURL")
	v.SetDefault("keys.showscientificnames", "showScientificNames")
	v.SetDefault("keys.darkmode", "darkMode")
	v.SetDefault("keys.dailyname", "duckOfTheDayName")
	v.SetDefault("keys.dailydate", "duckOfTheDayDate")
	v.SetDefault("keys.notifieddaily", "duckOfTheDayNotified")

	v.SetDefault("dateformat.layout", DefaultDateLayout)

	v.SetDefault("enrichment.concurrency", 8)
	v.SetDefault("enrichment.texttimeout", 6*time.Second)
	v.SetDefault("enrichment.textcachettl", 5*time.Minute)
	v.SetDefault("enrichment.ratelimit", 0.0)
	v.SetDefault("enrichment.shortdescriptionlength", 140)

	v.SetDefault("catalog.cancelsuperseded", false)

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite.path", "quack.db")
	v.SetDefault("storage.mysql.username", "quack")
	v.SetDefault("storage.mysql.password", "")
	v.SetDefault("storage.mysql.passwordfile", "")
	v.SetDefault("storage.mysql.database", "quack")
	v.SetDefault("storage.mysql.host", "localhost")
	v.SetDefault("storage.mysql.port", 3306)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.autotls", false)
	v.SetDefault("webserver.domain", "")
	v.SetDefault("webserver.certcache", "certs")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "quack/daily")
	v.SetDefault("mqtt.clientid", "quack-go")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.passwordfile", "")
	v.SetDefault("mqtt.retain", true)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.title", "Duck of the day")
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.samplerate", 1.0)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/quack.log")
	v.SetDefault("logging.file_output.level", "info")
	v.SetDefault("logging.module_levels", map[string]string{})
}
