package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
		require.NoError(t, err)

		logger.Debug("hidden")
		logger.Info("document processed", "new", 2)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "document processed", rec["msg"])
		assert.InDelta(t, 2, rec["new"], 1e-9)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
		require.NoError(t, err)
		logger.Debug("visible")
		assert.Contains(t, buf.String(), "msg=visible")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := New(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{})
		require.Error(t, err)
		_, err = New(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
		require.Error(t, err)
	})
}
