package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
)

func TestSourceHandler(t *testing.T) {
	tests := []struct {
		name       string
		minLevel   slog.Level
		log        func(*slog.Logger)
		wantSource bool
	}{
		{name: "info below warn", minLevel: slog.LevelWarn, log: func(l *slog.Logger) { l.Info("m") }, wantSource: false},
		{name: "warn at warn", minLevel: slog.LevelWarn, log: func(l *slog.Logger) { l.Warn("m") }, wantSource: true},
		{name: "error above warn", minLevel: slog.LevelWarn, log: func(l *slog.Logger) { l.Error("m") }, wantSource: true},
		{name: "debug with debug threshold", minLevel: slog.LevelDebug, log: func(l *slog.Logger) { l.Debug("m") }, wantSource: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			tt.log(slog.New(newSourceHandler(base, tt.minLevel)))

			assert.Equal(t, tt.wantSource, strings.Contains(buf.String(), "source="), buf.String())
		})
	}
}

func TestSourceHandler_KeepsAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	log := slog.New(newSourceHandler(base, slog.LevelError)).
		With("identity", "7").
		WithGroup("publish")

	log.Info("buffered", "destination", "9")

	out := buf.String()
	assert.Contains(t, out, "identity=7")
	assert.Contains(t, out, "publish.destination=9")
	assert.NotContains(t, out, "source=")
}

func TestSourceHandler_EnabledFollowsWrapped(t *testing.T) {
	base := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	h := newSourceHandler(base, slog.LevelError)

	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestInit_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "omnisys.log")

	require.NoError(t, Init(&config.LoggerConfig{Level: "info", Format: "json", OutputPath: path}, "release"))
	t.Cleanup(func() { Logger = nil })

	WithComponent("comm.node").Infow("node created", "identity", "7")
	Debug("hidden")
	Warn("publish failed, buffering", "destination", "9")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &info))
	assert.Equal(t, "node created", info["msg"])
	assert.Equal(t, "comm.node", info["component"])
	assert.Equal(t, "7", info["identity"])
	assert.NotContains(t, info, slog.SourceKey)

	var warn map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &warn))
	assert.Contains(t, warn, slog.SourceKey)
}

func TestSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "omnisys.log")
	require.NoError(t, Init(&config.LoggerConfig{Level: "error", Format: "json", OutputPath: path}, "release"))
	t.Cleanup(func() { Logger = nil })

	Info("dropped")
	SetLevel(slog.LevelInfo)
	Info("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}
