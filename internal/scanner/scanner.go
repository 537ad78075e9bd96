// Package scanner находит книги Excel среди файлов и директорий,
// переданных в командной строке.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/artemshloyda/xlsximages/internal/config"
)

// File представляет найденную книгу.
type File struct {
	// Path - абсолютный путь к книге.
	Path string

	// RelPath - путь относительно аргумента, в котором книга найдена.
	RelPath string

	// Size - размер файла в байтах.
	Size int64
}

// Scanner обходит аргументы и отбирает книги .xlsx/.xlsm.
type Scanner struct {
	// OnWarn вызывается для нечитаемых путей внутри директорий.
	// По умолчанию такие пути молча пропускаются.
	OnWarn func(path string, err error)
}

// New создаёт новый Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan отправляет найденные книги в канал. Канал закрывается после
// завершения обхода. Несуществующий аргумент прерывает обход с ошибкой.
func (s *Scanner) Scan(ctx context.Context, paths []string) (<-chan File, <-chan error) {
	files := make(chan File, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		for _, root := range paths {
			if err := s.scanOne(ctx, root, files); err != nil {
				errs <- err
				return
			}
		}
	}()

	return files, errs
}

// Collect выполняет Scan и возвращает все книги списком.
func (s *Scanner) Collect(ctx context.Context, paths []string) ([]File, error) {
	filesCh, errs := s.Scan(ctx, paths)
	var files []File
	for f := range filesCh {
		files = append(files, f)
	}
	if err := <-errs; err != nil {
		return files, err
	}
	return files, nil
}

func (s *Scanner) scanOne(ctx context.Context, root string, files chan<- File) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrapf(err, "путь недоступен")
	}

	if !info.IsDir() {
		// Явно указанный файл проверяется позже, с понятной ошибкой о типе.
		return send(ctx, files, fileFor(root, filepath.Base(root), info.Size()))
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.warn(path, err)
			return nil
		}

		if d.IsDir() {
			// Скрытые директории
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsWorkbook(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			s.warn(path, err)
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		return send(ctx, files, fileFor(path, rel, fi.Size()))
	})
}

// IsWorkbook сообщает, подходит ли имя файла для обработки: расширение
// .xlsx/.xlsm, не файл блокировки Office (~$) и не метаданные macOS (._).
func IsWorkbook(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, "._") {
		return false
	}
	return config.HasWorkbookExtension(filepath.Ext(base))
}

func (s *Scanner) warn(path string, err error) {
	if s.OnWarn != nil {
		s.OnWarn(path, err)
	}
}

func fileFor(path, rel string, size int64) File {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return File{Path: abs, RelPath: rel, Size: size}
}

func send(ctx context.Context, files chan<- File, f File) error {
	select {
	case files <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

/*
Возможные расширения:
- Glob-паттерны для фильтрации имён книг
- Переход по символическим ссылкам
*/
