package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "xlsximages_20240305_140709.log", FileName(now))
}

func TestOpen_WritesLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	log, err := Open(dir, time.Now())
	require.NoError(t, err)

	log.Infow("Сохранено", "file", "1.png")
	log.Warn("нет ссылки")
	require.NoError(t, log.Close())
	require.NoError(t, log.Close(), "повторное закрытие")

	data, err := os.ReadFile(log.Path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(filepath.Base(log.Path), FilePrefix))
	assert.Contains(t, text, "INFO")
	assert.Contains(t, text, "Сохранено")
	assert.Contains(t, text, `"file": "1.png"`)
	assert.Contains(t, text, "WARN")
}

func TestClose_Nil(t *testing.T) {
	var log *RunLog
	assert.NoError(t, log.Close())
	Nop().Info("ничего")
}
