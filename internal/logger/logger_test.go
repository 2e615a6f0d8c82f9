package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    LogLevel
		wantSeen []string
		wantGone []string
	}{
		{"info hides debug", LogLevelInfo, []string{"info-msg", "warn-msg", "error-msg"}, []string{"debug-msg", "trace-msg"}},
		{"debug shows debug", LogLevelDebug, []string{"debug-msg", "info-msg"}, []string{"trace-msg"}},
		{"trace shows all", LogLevelTrace, []string{"trace-msg", "debug-msg"}, nil},
		{"error only", LogLevelError, []string{"error-msg"}, []string{"warn-msg", "info-msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := NewSlogLogger(&buf, tt.level, time.UTC)
			log.Trace("trace-msg")
			log.Debug("debug-msg")
			log.Info("info-msg")
			log.Warn("warn-msg")
			log.Error("error-msg")

			out := buf.String()
			for _, s := range tt.wantSeen {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.wantGone {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestModuleScopingAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelDebug, time.UTC)

	log := base.Module("catalog").Module("store").With(String("address", "http://a/"))
	log.Info("refresh finished", Int("entities", 3), Bool("empty", false), Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=catalog.store")
	assert.Contains(t, out, "address=http://a/")
	assert.Contains(t, out, "entities=3")
	assert.Contains(t, out, "empty=false")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.NotContains(t, out, "time=", "console output carries no timestamp")
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	parent := NewSlogLogger(&buf, LogLevelInfo, time.UTC).Module("daily")
	_ = parent.With(String("pick", "Teal"))

	parent.Info("no fields")
	assert.NotContains(t, buf.String(), "pick=Teal")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, time.UTC)

	ctx := WithTraceID(t.Context(), "req-42")
	log.WithContext(ctx).Info("handled")
	log.WithContext(t.Context()).Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=req-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestDiscardLoggerIsSilent(t *testing.T) {
	t.Parallel()

	log := NewDiscardLogger()
	assert.NotPanics(t, func() {
		log.Module("x").With(String("k", "v")).Error("dropped")
		log.Log(LogLevelError, "dropped")
	})
	require.NoError(t, log.Flush())
}

func TestCentralLoggerFileOutputIsJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "quack.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
	})
	require.NoError(t, err)

	cl.Module("manifest").Debug("candidate failed", String("candidate", "manifest.json"), Float64("ratio", 0.123456))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "manifest", entry["module"])
	assert.Equal(t, "manifest.json", entry["candidate"])
	assert.InDelta(t, 0.123, entry["ratio"], 0.0001)
	assert.Contains(t, entry, "time")
}

func TestCentralLoggerModuleLevels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quack.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "trace"},
		ModuleLevels: map[string]string{"datastore": "trace"},
	})
	require.NoError(t, err)

	cl.Module("datastore").Trace("sql query")
	cl.Module("catalog").Debug("hidden")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sql query")
	assert.NotContains(t, string(data), "hidden")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	assert.NotNil(t, Global())
	assert.NotNil(t, Global().Module("app"))
}

func TestBufferedFileWriterFlushAndClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "buffered.log")
	w, err := NewBufferedFileWriter(path, WithFlushInterval(0), WithBufferSize(1024))
	require.NoError(t, err)
	assert.Equal(t, path, w.FilePath())

	_, err = w.Write([]byte("line one\n"))
	require.NoError(t, err)
	assert.Equal(t, len("line one\n"), w.Buffered())

	require.NoError(t, w.Flush())
	assert.Zero(t, w.Buffered())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	_, err = w.Write([]byte("late"))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(data))
}
