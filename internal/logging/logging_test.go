package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tariff-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupWritesDatedFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	closer, err := Setup(config.LogConfig{Level: "info", Format: "json", Dir: dir}, false)
	require.NoError(t, err)

	slog.Info("tariff group created", "entries", 2)
	require.NoError(t, closer.Close())

	name := filepath.Join(dir, "log_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"tariff group created"`)
}

func TestSentryHandlerPassesRecordsThrough(t *testing.T) {
	var buf bytes.Buffer
	h := NewSentryHandler(slog.NewTextHandler(&buf, nil)).WithAttrs([]slog.Attr{slog.String("component", "sink")})
	logger := slog.New(h)

	logger.Error("flush failed", "error", assert.AnError)
	logger.Info("started")

	assert.Contains(t, buf.String(), "component=sink")
	assert.Contains(t, buf.String(), "flush failed")
	assert.Contains(t, buf.String(), "started")
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}
