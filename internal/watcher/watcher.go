// Package watcher следит за директорией и передаёт на обработку новые и
// изменённые книги Excel.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/artemshloyda/xlsximages/internal/scanner"
)

// DefaultDebounce - пауза после последнего события, чтобы файл успел
// полностью записаться.
const DefaultDebounce = 500 * time.Millisecond

// Watcher следит за директорией и отправляет готовые книги в канал.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher

	// debounceTime - время ожидания перед отправкой файла.
	debounceTime time.Duration

	// OnError получает ошибки fsnotify. По умолчанию они игнорируются.
	OnError func(error)
}

// New создаёт Watcher для директории root.
func New(root string) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "директория недоступна")
	}
	if !info.IsDir() {
		return nil, errors.Newf("%s - не директория", root)
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "не удалось создать watcher")
	}

	return &Watcher{
		root:         root,
		watcher:      w,
		debounceTime: DefaultDebounce,
	}, nil
}

// SetDebounceTime устанавливает время debounce.
func (w *Watcher) SetDebounceTime(d time.Duration) {
	w.debounceTime = d
}

// Watch запускает слежение и возвращает канал с книгами. Канал
// закрывается после отмены ctx; fsnotify закрывается вместе с ним.
func (w *Watcher) Watch(ctx context.Context) (<-chan scanner.File, error) {
	if err := w.addRecursive(w.root); err != nil {
		_ = w.watcher.Close()
		return nil, err
	}

	files := make(chan scanner.File, 16)
	go w.loop(ctx, files)
	return files, nil
}

// addRecursive добавляет директорию и все поддиректории, кроме скрытых.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "не удалось добавить директорию %s", path)
		}
		return nil
	})
}

// loop - единственный владелец pending и канала files.
func (w *Watcher) loop(ctx context.Context, files chan<- scanner.File) {
	defer close(files)
	defer func() { _ = w.watcher.Close() }()

	pending := make(map[string]time.Time)
	sent := make(map[string]time.Time)

	tick := w.debounceTime / 5
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event, pending)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			}

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounceTime {
					continue
				}
				delete(pending, path)

				info, err := os.Stat(path)
				if err != nil || info.IsDir() {
					continue
				}
				// Повторные события без изменения файла
				if mtime, ok := sent[path]; ok && mtime.Equal(info.ModTime()) {
					continue
				}
				sent[path] = info.ModTime()

				rel, err := filepath.Rel(w.root, path)
				if err != nil {
					rel = filepath.Base(path)
				}

				select {
				case files <- scanner.File{Path: path, RelPath: rel, Size: info.Size()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, pending map[string]time.Time) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !strings.HasPrefix(filepath.Base(event.Name), ".") {
			_ = w.addRecursive(event.Name)
		}
		return
	}
	if !scanner.IsWorkbook(event.Name) {
		return
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	pending[abs] = time.Now()
}

/*
Возможные расширения:
- Фильтрация по glob-паттерну
- Обработка переименования книг
*/
