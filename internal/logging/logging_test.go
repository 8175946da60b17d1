package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a file logger at info level
	path := filepath.Join(t.TempDir(), "logs", "rustrag.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path})
	require.NoError(t, err)

	// When: logging at debug and info
	logger.Debug("hidden")
	logger.Info("sync_complete", slog.Int("added", 3))
	cleanup()

	// Then: only the info record is written, as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "sync_complete", rec["msg"])
	assert.Equal(t, float64(3), rec["added"])
}

func TestSetup_NoFileUsesStderr(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "warn"})
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestRotatingWriter_Rotates(t *testing.T) {
	// Given: a writer with a 10 byte limit keeping two rotated files
	path := filepath.Join(t.TempDir(), "app.log")
	w, err := newRotatingWriter(path, 10, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing four 8-byte records
	for _, rec := range []string{"first-1\n", "second2\n", "third-3\n", "fourth4\n"} {
		_, err := w.Write([]byte(rec))
		require.NoError(t, err)
	}

	// Then: the newest is current, the two before it are rotated, the oldest is gone
	read := func(p string) string {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, "fourth4\n", read(path))
	assert.Equal(t, "third-3\n", read(path+".1"))
	assert.Equal(t, "second2\n", read(path+".2"))
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "a.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.Error(t, err)
}

func TestDefaultLogPath(t *testing.T) {
	assert.True(t, strings.HasSuffix(DefaultLogPath(), filepath.Join(".rustrag", "logs", "rustrag.log")))
	assert.Equal(t, DefaultLogPath(), DefaultConfig().FilePath)
}
