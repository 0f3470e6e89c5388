package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/config"
)

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: "info", Console: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("ingest accepted", zap.Int("accepted", 3))
	require.NoError(t, log.Close())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug must be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "ingest accepted", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 3, entry["accepted"])
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pluginwatch.log")
	log, err := New(&Config{Level: "warn", OutputPath: path, MaxSize: 1, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	log.Info("skipped")
	log.Warn("slow query", zap.String("query", "summary"))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "slow query")
	assert.NotContains(t, string(data), "skipped")
}

func TestNew_UnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.Log{Level: "debug", File: "/tmp/x.log", MaxSizeMB: 5, MaxBackups: 2, MaxAgeDays: 1})
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "/tmp/x.log", cfg.OutputPath)
	assert.Equal(t, 5, cfg.MaxSize)
	assert.Equal(t, 2, cfg.MaxBackups)
	assert.Equal(t, 1, cfg.MaxAge)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Error("nothing happens")
	assert.NoError(t, log.Close())
}
