package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("prod", "info", WithConsole(zapcore.AddSync(&buf)))
	require.NoError(t, err)

	log.Debug("не попадёт")
	log.Info("Задача запущена", zap.String("session_id", "abc"))
	log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "Задача запущена", rec["msg"])
	assert.Equal(t, "abc", rec["session_id"])
	assert.Equal(t, "browserPilot", rec["logger"])
}

func TestNew_LevelChange(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("dev", "warn", WithConsole(zapcore.AddSync(&buf)))
	require.NoError(t, err)
	assert.Equal(t, "warn", log.Level())

	log.Info("скрыто")
	assert.Empty(t, buf.String())

	require.NoError(t, log.SetLevel("debug"))
	log.Debug("видно")
	assert.Contains(t, buf.String(), "видно")

	assert.Error(t, log.SetLevel("громко"))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("dev", "verbose")
	assert.Error(t, err)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	var buf bytes.Buffer
	log, err := New("dev", "info", WithConsole(zapcore.AddSync(&buf)), WithFile(File{Path: path}))
	require.NoError(t, err)

	log.Info("в файл")
	log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"в файл"`)
	assert.Contains(t, buf.String(), "в файл")
}
