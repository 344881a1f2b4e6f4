package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"server-2025-01-01T00-00-00.log",
		"server-2025-01-02T00-00-00.log",
		"server-2025-01-03T00-00-00.log",
		"seed-2025-01-01T00-00-00.log",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}

	require.NoError(t, pruneLogs(dir, "server", 2))

	left, err := filepath.Glob(filepath.Join(dir, "*.log"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "server-2025-01-02T00-00-00.log"),
		filepath.Join(dir, "server-2025-01-03T00-00-00.log"),
		filepath.Join(dir, "seed-2025-01-01T00-00-00.log"),
	}, left)
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn, err := NewLogger(&Config{Environment: "test", LogDir: dir, MaxLogFiles: 3}, "server")
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeFn())

	files, err := filepath.Glob(filepath.Join(dir, "server-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"program":"server"`)
}
