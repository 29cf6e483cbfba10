package utilities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFromString(tt.in))
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("dev defaults to debug", func(t *testing.T) {
		t.Setenv("LOG_DEV", "1")
		t.Setenv("LOG_LEVEL", "")
		cfg := ConfigFromEnv()
		assert.True(t, cfg.Dev)
		assert.Equal(t, "debug", cfg.Level)
	})

	t.Run("explicit level wins", func(t *testing.T) {
		t.Setenv("LOG_DEV", "")
		t.Setenv("LOG_LEVEL", "warn")
		cfg := ConfigFromEnv()
		assert.Equal(t, "warn", cfg.Level)
		assert.Equal(t, 168*time.Hour, cfg.MaxAge)
	})
}

func TestInitWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.log")

	lg, err := Init(Config{Level: "info", File: path, MaxAge: time.Hour})
	require.NoError(t, err)

	lg.Info("hello from test")
	_ = lg.Sync()

	matches, err := filepath.Glob(filepath.Join(dir, "service.*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello from test")
}

func TestIDGenerator(t *testing.T) {
	t.Run("unique snowflake ids", func(t *testing.T) {
		g := NewIDGenerator(1)
		seen := make(map[string]struct{})
		for i := 0; i < 1000; i++ {
			id := g.Next()
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %s", id)
			seen[id] = struct{}{}
		}
	})

	t.Run("invalid node falls back to ksuid", func(t *testing.T) {
		g := NewIDGenerator(-1)
		assert.Len(t, g.Next(), 27)
	})

	t.Run("node from env", func(t *testing.T) {
		t.Setenv("SNOWFLAKE_NODE", "7")
		assert.Equal(t, int64(7), IDConfigFromEnv().Node)
		t.Setenv("SNOWFLAKE_NODE", "seven")
		assert.Equal(t, int64(1), IDConfigFromEnv().Node)
	})
}

func TestReporterDisabled(t *testing.T) {
	r, err := NewReporter(ReporterConfig{})
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	r.Capture(context.Background(), errors.New("boom"))
	assert.True(t, r.Flush(time.Millisecond))

	var nilReporter *Reporter
	nilReporter.Capture(context.Background(), errors.New("boom"))
	assert.False(t, nilReporter.Enabled())
}
