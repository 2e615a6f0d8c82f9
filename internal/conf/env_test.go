package conf

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUACK_SERVER_URL", "http://env.example/")
	t.Setenv("QUACK_REQUEST_TIMEOUT", "3s")
	t.Setenv("QUACK_STORAGE_PATH", ":memory:")
	t.Setenv("QUACK_LISTEN", "127.0.0.1:9090")
	t.Setenv("QUACK_DEBUG", "true")
	t.Setenv("QUACK_MQTT_BROKER", "tcp://broker:1883")

	s, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "config.yaml")})
	require.NoError(t, err)

	assert.Equal(t, "http://env.example/", s.Network.DefaultServerURL)
	assert.Equal(t, 3*time.Second, s.Network.RequestTimeout)
	assert.Equal(t, ":memory:", s.Storage.SQLite.Path)
	assert.Equal(t, "127.0.0.1:9090", s.WebServer.Listen)
	assert.True(t, s.Debug)
	assert.Equal(t, "tcp://broker:1883", s.MQTT.Broker)
}

func TestEnvValidationRejectsBadValues(t *testing.T) {
	t.Setenv("QUACK_REQUEST_TIMEOUT", "soon")
	t.Setenv("QUACK_DEBUG", "maybe")

	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "config.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUACK_REQUEST_TIMEOUT")
	assert.Contains(t, err.Error(), "QUACK_DEBUG")
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"url ok", validateEnvURL, "https://ducks.example/", false},
		{"url without host", validateEnvURL, "ducks", true},
		{"duration ok", validateEnvDuration, "500ms", false},
		{"duration negative", validateEnvDuration, "-1s", true},
		{"path ok", validateEnvPath, "data/quack.db", false},
		{"path memory", validateEnvPath, ":memory:", false},
		{"path traversal", validateEnvPath, "../etc/quack.db", true},
		{"listen ok", validateEnvListen, ":8080", false},
		{"listen bad port", validateEnvListen, "localhost:http", true},
		{"listen missing port", validateEnvListen, "localhost", true},
		{"broker ok", validateEnvBroker, "ssl://broker:8883", false},
		{"broker http", validateEnvBroker, "http://broker", true},
		{"bool ok", validateEnvBool, "1", false},
		{"bool bad", validateEnvBool, "yes please", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
