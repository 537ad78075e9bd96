// Package extract извлекает изображения из книги Excel двумя
// стратегиями: перебором медиафайлов архива и построчно по столбцу.
package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/artemshloyda/xlsximages/internal/config"
	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/vector"
	"github.com/artemshloyda/xlsximages/internal/workbook"
)

// Sink принимает прогресс и сообщения журнала. Реализация должна быть
// безопасной для вызова из фоновой горутины.
type Sink interface {
	Progress(percent float64, status string)
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

// SheetSource - доступ к значениям ячеек листа.
type SheetSource interface {
	Name() string
	LastRow() (int, error)
	CellText(cell string) (string, error)
	Hyperlink(cell string) (target string, ok bool, err error)
}

// CellImages - поиск картинки, привязанной к ячейке. Если Supported
// возвращает false, поиск не выполняется.
type CellImages interface {
	Supported() bool
	ImageAt(cell string) (data []byte, ext string, ok bool, err error)
}

// Fetcher скачивает изображение по ссылке.
type Fetcher interface {
	Download(ctx context.Context, url string) (image.Image, error)
}

// Encoder сохраняет изображение в файл и возвращает его размер.
type Encoder interface {
	Save(ctx context.Context, img image.Image, path string, format imaging.Format) (int64, error)
}

// Recorder получает итог по каждому элементу (история запусков).
type Recorder interface {
	Record(item Item)
}

// Extractor связывает стратегии извлечения с их зависимостями.
// Все поля, кроме Sink и Encoder, опциональны.
type Extractor struct {
	Sink       Sink
	Converter  vector.Converter
	Downloader Fetcher
	Encoder    Encoder
	Recorder   Recorder
}

// Run открывает книгу, проверяет лист и запускает стратегию из cfg.Mode.
// Ошибки открытия книги, отсутствия листа и недоступного формата
// возвращаются как фатальные; ошибки отдельных изображений только
// учитываются в результате.
func (e *Extractor) Run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	if err := e.checkFormat(cfg.OutputFormat); err != nil {
		return nil, err
	}

	wb, err := workbook.Open(cfg.Workbook)
	if err != nil {
		return nil, err
	}
	defer func() { _ = wb.Close() }()

	sheet, err := wb.Sheet(cfg.Sheet)
	if err != nil {
		return nil, err
	}
	e.Sink.Info(fmt.Sprintf("Книга: %s, лист: %s", filepath.Base(cfg.Workbook), sheet.Name()))

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "не удалось создать директорию %s", cfg.OutputDir)
	}

	if cfg.Mode == config.ModeColumn {
		var images CellImages = workbook.NoCellImages{}
		if cfg.Embedded {
			images = sheet
		}
		return e.ExtractByColumn(ctx, cfg, sheet, images)
	}
	return e.ExtractAll(ctx, cfg)
}

func (e *Extractor) checkFormat(format imaging.Format) error {
	s, ok := e.Encoder.(interface{ Supports(imaging.Format) bool })
	if !ok || s.Supports(format) {
		return nil
	}
	return errors.WithHintf(errors.Wrapf(imaging.ErrNoEncoder, "формат %s", format),
		"встроенный кодировщик %s отключён, установите одну из утилит: %s", format, strings.Join(imaging.WebPTools, ", "))
}

// decode декодирует растр, а при неудаче пробует конвертер метафайлов.
func (e *Extractor) decode(ctx context.Context, data []byte, name, scratchDir string) (image.Image, error) {
	img, _, err := imaging.Decode(data)
	if err == nil {
		return img, nil
	}

	kind := vector.Detect(name, data)
	if kind == vector.KindNone {
		return nil, errors.Wrap(err, "неподдерживаемый формат")
	}

	conv := e.Converter
	if conv == nil {
		conv = vector.None{}
	}

	ext := filepath.Ext(name)
	if ext == "" {
		ext = kind.Ext()
	}
	img, ok := conv.Convert(ctx, data, ext, scratchDir)
	if !ok {
		return nil, errors.Newf("не удалось конвертировать %s", strings.ToUpper(string(kind)))
	}
	return img, nil
}

func (e *Extractor) record(item Item) {
	if e.Recorder != nil {
		e.Recorder.Record(item)
	}
}

// summary выводит итоги запуска.
func (e *Extractor) summary(res *RunResult) {
	e.Sink.Info(strings.Repeat("=", 50))
	e.Sink.Info("Обработка завершена")
	e.Sink.Info(fmt.Sprintf("  Всего: %d", res.Total))
	if res.Succeeded > 0 {
		e.Sink.Success(fmt.Sprintf("  Успешно: %d", res.Succeeded))
	} else {
		e.Sink.Info("  Успешно: 0")
	}
	if res.Failed > 0 {
		e.Sink.Error(fmt.Sprintf("  Ошибок: %d", res.Failed))
	} else {
		e.Sink.Info("  Ошибок: 0")
	}
	if res.Skipped > 0 {
		e.Sink.Info(fmt.Sprintf("  Пропущено: %d", res.Skipped))
	}
	e.Sink.Info(fmt.Sprintf("  Директория: %s", res.OutputDir))
	e.Sink.Progress(100, fmt.Sprintf("Готово - успешно: %d | ошибок: %d", res.Succeeded, res.Failed))
}

// safely вызывает fn и превращает панику в ошибку.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("паника: %v", r)
		}
	}()
	return fn()
}

func newResult(cfg *config.Config) *RunResult {
	return &RunResult{OutputDir: cfg.OutputDir, started: time.Now()}
}
