// Package worker выполняет извлечение по очереди книг в одной фоновой
// горутине.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/artemshloyda/xlsximages/internal/extract"
	"github.com/artemshloyda/xlsximages/internal/scanner"
)

// ErrClosed возвращается Submit после Close.
var ErrClosed = errors.New("очередь закрыта")

// Stats содержит статистику обработки всех книг.
type Stats struct {
	// Workbooks - сколько книг взято в работу.
	Workbooks int64

	// WorkbooksOK - книги, обработанные без фатальной ошибки.
	WorkbooksOK int64

	// WorkbooksFailed - книги с фатальной ошибкой (не открылась, нет листа).
	WorkbooksFailed int64

	// Saved, Failed, Skipped - итоги по изображениям.
	Saved   int64
	Failed  int64
	Skipped int64

	// OutputBytes - общий размер сохранённых файлов.
	OutputBytes int64

	// Canceled - обработка прервана.
	Canceled bool
}

// HasFailures сообщает, были ли фатальные ошибки книг или ошибки изображений.
func (s Stats) HasFailures() bool {
	return s.WorkbooksFailed > 0 || s.Failed > 0
}

// FormatBytes форматирует байты в человекочитаемый формат.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ProcessFunc обрабатывает одну книгу.
type ProcessFunc func(ctx context.Context, file scanner.File) (*extract.RunResult, error)

// Result - итог обработки одной книги.
type Result struct {
	File   scanner.File
	Result *extract.RunResult
	Err    error
}

// Runner принимает книги через Submit и обрабатывает их строго по одной.
type Runner struct {
	process ProcessFunc

	// OnResult вызывается из рабочей горутины после каждой книги.
	OnResult func(Result)

	jobs chan scanner.File
	done chan struct{}

	mu     sync.Mutex
	stats  Stats
	closed bool
}

// New создаёт Runner с очередью заданной ёмкости.
func New(process ProcessFunc, queue int) *Runner {
	if queue < 0 {
		queue = 0
	}
	return &Runner{
		process: process,
		jobs:    make(chan scanner.File, queue),
		done:    make(chan struct{}),
	}
}

// Start запускает рабочую горутину. После отмены ctx оставшиеся в
// очереди книги не обрабатываются.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		for file := range r.jobs {
			if ctx.Err() != nil {
				r.mu.Lock()
				r.stats.Canceled = true
				r.mu.Unlock()
				continue
			}
			r.run(ctx, file)
		}
	}()
}

// Submit ставит книгу в очередь. Блокируется, пока в очереди нет места.
func (r *Runner) Submit(ctx context.Context, file scanner.File) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case r.jobs <- file:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close закрывает очередь. Повторный вызов безопасен.
// Submit и Close вызываются из одной горутины.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
}

// Wait закрывает очередь, дожидается рабочей горутины и возвращает статистику.
func (r *Runner) Wait() Stats {
	r.Close()
	<-r.done
	return r.GetStats()
}

// GetStats возвращает текущую статистику.
func (r *Runner) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Runner) run(ctx context.Context, file scanner.File) {
	res, err := r.safeProcess(ctx, file)

	r.mu.Lock()
	r.stats.Workbooks++
	if err != nil {
		r.stats.WorkbooksFailed++
	} else {
		r.stats.WorkbooksOK++
	}
	if res != nil {
		r.stats.Saved += int64(res.Succeeded)
		r.stats.Failed += int64(res.Failed)
		r.stats.Skipped += int64(res.Skipped)
		r.stats.OutputBytes += res.OutputBytes
		if res.Canceled {
			r.stats.Canceled = true
		}
	}
	r.mu.Unlock()

	if r.OnResult != nil {
		r.OnResult(Result{File: file, Result: res, Err: err})
	}
}

func (r *Runner) safeProcess(ctx context.Context, file scanner.File) (res *extract.RunResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("паника при обработке %s: %v", file.RelPath, p)
		}
	}()
	return r.process(ctx, file)
}

/*
Возможные расширения:
- Повтор книг с фатальной ошибкой после паузы
- Сохранение очереди между запусками
*/
