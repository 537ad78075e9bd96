// Package progress выводит ход извлечения в консоль: прогресс-бар с ETA и
// строки журнала с эмодзи. Те же сообщения дублируются в журнал запуска.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Reporter реализует приёмник прогресса и сообщений для извлечения.
// Методы безопасны для вызова из фоновой горутины.
type Reporter struct {
	// bar - внутренний progressbar, шкала 0..100.
	bar *progressbar.ProgressBar

	// mu защищает bar, log и счётчики.
	mu sync.Mutex

	// disabled - прогресс-бар отключён, остаются только строки.
	disabled bool

	// verbose - выводить в консоль информационные сообщения и успехи.
	verbose bool

	// log - журнал запуска, может быть nil.
	log *zap.SugaredLogger

	// warnings и errors - сколько предупреждений и ошибок выведено.
	warnings int
	errors   int

	startTime time.Time

	// writer - куда выводить (по умолчанию os.Stderr).
	writer io.Writer
}

// Options содержит настройки для Reporter.
type Options struct {
	// Disabled - отключить прогресс-бар (только текстовый вывод).
	Disabled bool

	// Verbose - показывать информационные сообщения.
	Verbose bool

	// Writer - куда выводить (по умолчанию os.Stderr).
	Writer io.Writer
}

// New создаёт Reporter. Прогресс-бар появляется после Start.
func New(opts Options) *Reporter {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	return &Reporter{
		disabled:  opts.Disabled,
		verbose:   opts.Verbose,
		writer:    writer,
		startTime: time.Now(),
	}
}

// Start начинает новую шкалу для очередной книги и подключает её журнал.
func (r *Reporter) Start(description string, log *zap.SugaredLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = log
	r.startTime = time.Now()
	if r.disabled {
		return
	}
	if description == "" {
		description = "Извлечение"
	}

	writer := r.writer
	r.bar = progressbar.NewOptions(
		100,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]▓[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(writer)
		}),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// Progress выставляет процент выполнения и строку состояния.
func (r *Reporter) Progress(percent float64, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if r.log != nil {
		r.log.Debugw(status, "percent", fmt.Sprintf("%.1f", percent))
	}
	if r.bar != nil {
		r.bar.Describe(status)
		_ = r.bar.Set(int(percent))
	}
}

// Info выводит информационное сообщение (в консоль только с -v).
func (r *Reporter) Info(msg string) {
	r.write("ℹ️  ", msg, r.verbose, func(l *zap.SugaredLogger) { l.Info(msg) })
}

// Success выводит сообщение об успехе (в консоль только с -v).
func (r *Reporter) Success(msg string) {
	r.write("✅ ", msg, r.verbose, func(l *zap.SugaredLogger) { l.Infow(msg, "status", "ok") })
}

// Warn выводит предупреждение.
func (r *Reporter) Warn(msg string) {
	r.mu.Lock()
	r.warnings++
	r.mu.Unlock()
	r.write("⚠️  ", msg, true, func(l *zap.SugaredLogger) { l.Warn(msg) })
}

// Error выводит ошибку.
func (r *Reporter) Error(msg string) {
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
	r.write("❌ ", msg, true, func(l *zap.SugaredLogger) { l.Error(msg) })
}

// Finish завершает текущую шкалу и отключает журнал книги.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
	r.log = nil
}

// Counts возвращает число выведенных предупреждений и ошибок.
func (r *Reporter) Counts() (warnings, errors int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings, r.errors
}

// Duration возвращает время с начала текущей книги.
func (r *Reporter) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.startTime)
}

// IsDisabled возвращает true, если прогресс-бар отключён.
func (r *Reporter) IsDisabled() bool {
	return r.disabled
}

// WriteMessage выводит сообщение, временно скрывая прогресс-бар.
func (r *Reporter) WriteMessage(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked(fmt.Sprintf(format, args...))
}

func (r *Reporter) write(prefix, msg string, console bool, logFn func(*zap.SugaredLogger)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.log != nil {
		logFn(r.log)
	}
	if console {
		r.writeLocked(prefix + msg + "\n")
	}
}

func (r *Reporter) writeLocked(text string) {
	if r.bar != nil {
		_ = r.bar.Clear()
	}

	fmt.Fprint(r.writer, text)

	if r.bar != nil {
		_ = r.bar.RenderBlank()
	}
}

/*
Возможные расширения:
- Отдельная шкала для скачивания больших файлов (по байтам)
- Цветной вывод предупреждений и ошибок
*/
