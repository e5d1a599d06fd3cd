package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"engagedl/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T) (*zerologLogger, *bytes.Buffer) {
	t.Helper()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	zlog := zerolog.New(&buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog}, &buf
}

func TestNew(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "engagedl.log")

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level without color", cfg: &config.LoggingConfig{Level: "debug", NoColor: true}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: logFile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}

	_, err := os.Stat(logFile)
	assert.NoError(t, err, "log file should be created")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldChaining(t *testing.T) {
	log, buf := newBufferLogger(t)

	log.WithField("account", "research").
		WithFields(map[string]interface{}{"offset": 500, "rows": 498}).
		Info("checkpoint saved")

	out := buf.String()
	assert.Contains(t, out, "checkpoint saved")
	assert.Contains(t, out, `"account":"research"`)
	assert.Contains(t, out, `"offset":500`)
	assert.Contains(t, out, `"rows":498`)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	log, buf := newBufferLogger(t)

	_ = log.WithField("batch", 3)
	log.Info("plain")

	assert.NotContains(t, buf.String(), "batch")
}

func TestWithError(t *testing.T) {
	log, buf := newBufferLogger(t)

	assert.Same(t, log, log.WithError(nil))

	log.WithError(errors.New("connection reset")).Error("batch failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestFieldTypes(t *testing.T) {
	log, buf := newBufferLogger(t)

	log.InfoWithFields("typed", map[string]interface{}{
		"int64":    int64(9),
		"duration": 10 * time.Second,
		"ids":      []string{"A", "B"},
		"custom":   struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	assert.Contains(t, out, `"int64":9`)
	assert.Contains(t, out, `"ids":["A","B"]`)
	assert.Contains(t, out, `"custom":{"Name":"x"}`)
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error", NoColor: true}))
	assert.NotNil(t, GetLogger())

	Info("info message")
	WithField("key", "value").Warn("with field")
	WithError(errors.New("boom")).Error("with error")
}

func TestLogBatch(t *testing.T) {
	log := NewTestLogger()

	LogBatch(log, 250, 250, 248, 2*time.Second, nil)
	LogBatch(log, 500, 250, 0, time.Second, errors.New("status 503"))

	debug := log.GetMessagesByLevel("DEBUG")
	require.Len(t, debug, 1)
	assert.Equal(t, 248, debug[0].Fields["rows"])

	warn := log.GetMessagesByLevel("WARN")
	require.Len(t, warn, 1)
	assert.Equal(t, "Batch failed, continuing", warn[0].Message)
	assert.EqualError(t, warn[0].Error, "status 503")
	assert.Equal(t, 500, warn[0].Fields["offset"])
}

func TestLogDownloadProgress(t *testing.T) {
	log := NewTestLogger()

	LogDownloadProgress(log, 250, 1000, 240, 95*time.Second)
	LogDownloadProgress(log, 0, 0, 0, 0)

	msgs := log.GetMessagesByLevel("INFO")
	require.Len(t, msgs, 2)
	assert.Equal(t, "25.0%", msgs[0].Fields["percentage"])
	assert.Equal(t, "1m35s", msgs[0].Fields["elapsed"])
	assert.Equal(t, "100.0%", msgs[1].Fields["percentage"])
}

func TestLogRequest(t *testing.T) {
	log := NewTestLogger()

	LogRequest(log, "POST", "https://example.test/totals", 200, 120*time.Millisecond)
	LogRequest(log, "POST", "https://example.test/totals", 429, time.Millisecond)
	LogRequest(log, "POST", "https://example.test/totals", 502, time.Millisecond)

	assert.Len(t, log.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.True(t, log.HasError())
}
