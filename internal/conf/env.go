// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"network.defaultserverurl", "QUACK_SERVER_URL", validateEnvURL},
		{"network.requesttimeout", "QUACK_REQUEST_TIMEOUT", validateEnvDuration},
		{"storage.sqlite.path", "QUACK_STORAGE_PATH", validateEnvPath},
		{"webserver.listen", "QUACK_LISTEN", validateEnvListen},
		{"debug", "QUACK_DEBUG", validateEnvBool},
		{"mqtt.broker", "QUACK_MQTT_BROKER", validateEnvBroker},
		{"telemetry.dsn", "QUACK_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every variable and validates the ones that are set.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvPath(value string) error {
	if value == ":memory:" {
		return nil
	}
	cleaned := filepath.Clean(value)
	for part := range strings.SplitSeq(cleaned, string(os.PathSeparator)) {
		if part == ".." {
			return fmt.Errorf("path traversal detected in path: %s", cleaned)
		}
	}
	return nil
}

func validateEnvListen(value string) error {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port '%s'", port)
	}
	return nil
}

func validateEnvBroker(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
		return nil
	default:
		return fmt.Errorf("unsupported broker scheme '%s'", u.Scheme)
	}
}

// configureEnvironmentVariables sets up environment variable support
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
