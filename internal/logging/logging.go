// Package logging создаёт журнал запуска: текстовый файл рядом с
// результатами, куда дублируются все сообщения обработки.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FilePrefix - начало имени файла журнала.
const FilePrefix = "xlsximages_"

// RunLog - журнал одного запуска.
type RunLog struct {
	*zap.SugaredLogger

	// Path - путь к файлу журнала.
	Path string

	file *os.File
}

// FileName возвращает имя файла журнала для момента now.
func FileName(now time.Time) string {
	return fmt.Sprintf("%s%s.log", FilePrefix, now.Format("20060102_150405"))
}

// Open создаёт файл журнала в dir. Директория создаётся при необходимости.
func Open(dir string, now time.Time) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "не удалось создать директорию журнала %s", dir)
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "не удалось открыть журнал %s", path)
	}

	core := zapcore.NewCore(newFileEncoder(), zapcore.AddSync(f), zap.DebugLevel)
	return &RunLog{
		SugaredLogger: zap.New(core).Sugar(),
		Path:          path,
		file:          f,
	}, nil
}

// Close сбрасывает буферы и закрывает файл. Безопасен для nil.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.Sync()
	err := l.file.Close()
	l.file = nil
	return err
}

// Nop возвращает логгер, который ничего не пишет.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func newFileEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = nil
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}
