package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporter_ConsoleVerbosity(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		expected []string
		hidden   []string
	}{
		{
			name:     "обычный режим",
			verbose:  false,
			expected: []string{"⚠️  нет ссылки", "❌ HTTP 500"},
			hidden:   []string{"Режим", "Сохранено"},
		},
		{
			name:     "подробный режим",
			verbose:  true,
			expected: []string{"ℹ️  Режим", "✅ Сохранено", "⚠️  нет ссылки", "❌ HTTP 500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := New(Options{Disabled: true, Verbose: tt.verbose, Writer: &buf})
			r.Start("book.xlsx", nil)

			r.Info("Режим")
			r.Success("Сохранено")
			r.Warn("нет ссылки")
			r.Error("HTTP 500")
			r.Progress(50, "Строка 2/4")
			r.Finish()

			out := buf.String()
			for _, s := range tt.expected {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}

			warnings, errs := r.Counts()
			assert.Equal(t, 1, warnings)
			assert.Equal(t, 1, errs)
		})
	}
}

func TestReporter_RunLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(Options{Disabled: true, Writer: &bytes.Buffer{}})
	r.Start("", zap.New(core).Sugar())

	r.Info("старт")
	r.Success("1.png")
	r.Warn("пропуск")
	r.Error("сбой")
	r.Progress(150, "готово")
	r.Finish()

	// После Finish журнал книги отключён.
	r.Info("после")

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "ok", entries[1].ContextMap()["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "100.0", entries[4].ContextMap()["percent"])
}

func TestReporter_WithBar(t *testing.T) {
	var buf bytes.Buffer
	r := New(Options{Writer: &buf})
	assert.False(t, r.IsDisabled())

	r.Start("catalog.xlsx", nil)
	r.Progress(30, "Прогресс: 3/10")
	r.Warn("пропущено")
	r.Progress(100, "Готово")
	r.Finish()

	assert.True(t, strings.Contains(buf.String(), "пропущено"))
	r.WriteMessage("Итого: %d\n", 3)
	assert.Contains(t, buf.String(), "Итого: 3")
	assert.GreaterOrEqual(t, r.Duration().Nanoseconds(), int64(0))
}
