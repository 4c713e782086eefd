package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linestatus.log")
	log, err := New(Options{Output: path})
	require.NoError(t, err)

	log.Named("engine").Info("value updated", zap.String("element", "volume"))
	log.Debug("hidden")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "value updated", entry["msg"])
	assert.Equal(t, "engine", entry["logger"])
	assert.Equal(t, "volume", entry["element"])
}

func TestNew_Verbose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linestatus.log")
	log, err := New(Options{Output: path, Verbose: true, Console: true, Level: "error"})
	require.NoError(t, err)

	log.Debug("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "DEBUG")
	assert.Contains(t, string(data), "shown")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
