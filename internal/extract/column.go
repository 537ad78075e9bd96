package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/artemshloyda/xlsximages/internal/config"
	"github.com/artemshloyda/xlsximages/internal/downloader"
	"github.com/artemshloyda/xlsximages/internal/naming"
	"github.com/artemshloyda/xlsximages/internal/workbook"
)

// ExtractByColumn обходит строки от cfg.StartRow до последней заполненной.
// В каждой строке сначала ищется картинка в ячейке, затем ссылка
// (гиперссылка ячейки, потом текст). Строка без того и другого пропускается.
func (e *Extractor) ExtractByColumn(ctx context.Context, cfg *config.Config, sheet SheetSource, images CellImages) (*RunResult, error) {
	e.Sink.Info("Режим: по столбцу")
	nameCol := cfg.NameColumn
	if nameCol == "" {
		nameCol = "(по правилу именования)"
	}
	e.Sink.Info(fmt.Sprintf("  Столбец картинок: %s | столбец имён: %s | начальная строка: %d",
		cfg.ImageColumn, nameCol, cfg.StartRow))

	if images == nil || !images.Supported() {
		images = workbook.NoCellImages{}
		e.Sink.Warn("Поиск картинок в ячейках отключён, обрабатываются только ссылки")
	}

	res := newResult(cfg)
	defer res.finish()

	last, err := sheet.LastRow()
	if err != nil {
		return nil, err
	}
	if last < cfg.StartRow {
		e.Sink.Warn("Нет строк с данными")
		e.Sink.Progress(100, "Готово - нет данных")
		return res, nil
	}

	res.Total = last - cfg.StartRow + 1
	e.Sink.Info(fmt.Sprintf("Строк к обработке: %d (строки %d - %d)", res.Total, cfg.StartRow, last))

	counter := naming.NewCounter(cfg.Naming.Start)

	for row := cfg.StartRow; row <= last; row++ {
		if ctx.Err() != nil {
			e.Sink.Warn("Операция отменена пользователем")
			res.Canceled = true
			break
		}

		item := Item{Ref: workbook.CellName(cfg.ImageColumn, row), Row: row}

		err := safely(func() error {
			return e.processRow(ctx, cfg, sheet, images, row, counter, res, &item)
		})
		if err != nil {
			res.Failed++
			item.Status = StatusFailed
			item.Error = err.Error()
			e.Sink.Error(fmt.Sprintf("[строка %d] Ошибка обработки: %v", row, err))
		}

		res.Processed++
		e.record(item)
		e.Sink.Progress(float64(res.Processed)/float64(res.Total)*100,
			fmt.Sprintf("Строка %d/%d | успешно: %d | ошибок: %d | пропущено: %d",
				row, last, res.Succeeded, res.Failed, res.Skipped))
	}

	e.summary(res)
	return res, nil
}

// processRow обрабатывает одну строку. Неожиданные ошибки возвращаются
// вызывающему, ожидаемые (нет данных, не скачалось) учитываются здесь.
func (e *Extractor) processRow(ctx context.Context, cfg *config.Config, sheet SheetSource, images CellImages,
	row int, counter *naming.Counter, res *RunResult, item *Item) error {

	cell := workbook.CellName(cfg.ImageColumn, row)
	base, err := e.rowName(cfg, sheet, row, counter.Value())
	if err != nil {
		return err
	}
	ext := string(cfg.OutputFormat)

	// Картинка в ячейке.
	if images.Supported() {
		saved, err := e.saveEmbedded(ctx, cfg, images, cell, base, ext)
		if err != nil {
			e.Sink.Warn(fmt.Sprintf("[строка %d] Не удалось извлечь картинку из ячейки: %v", row, err))
		}
		if saved.path != "" {
			res.saved(saved.path, saved.size)
			counter.Advance()
			item.Source, item.Status, item.Path, item.Bytes = SourceEmbedded, StatusOK, saved.path, saved.size
			e.Sink.Success(fmt.Sprintf("[строка %d] Картинка из ячейки → %s", row, baseName(saved.path)))
			return nil
		}
	}

	// Ссылка.
	url, err := cellURL(sheet, cell)
	if err != nil {
		return err
	}
	if url == "" {
		res.Skipped++
		item.Status = StatusSkipped
		return nil
	}

	item.Source, item.URL = SourceURL, url
	if e.Downloader == nil {
		return errors.New("скачивание не настроено")
	}

	// Отмена во время скачивания - отказ строки; цикл остановится
	// на проверке перед следующей строкой.
	img, err := e.Downloader.Download(ctx, url)
	if errors.Is(err, downloader.ErrCanceled) {
		res.Failed++
		item.Status, item.Error = StatusFailed, err.Error()
		e.Sink.Warn(fmt.Sprintf("[строка %d] Скачивание прервано: %s", row, shorten(url, 80)))
		return nil
	}
	if err != nil {
		res.Failed++
		item.Status, item.Error = StatusFailed, err.Error()
		e.Sink.Error(fmt.Sprintf("[строка %d] Не удалось скачать %s: %v", row, shorten(url, 80), errors.UnwrapAll(err)))
		return nil
	}

	path := naming.UniquePath(cfg.OutputDir, base, ext)
	size, err := e.Encoder.Save(ctx, img, path, cfg.OutputFormat)
	if err != nil {
		return err
	}

	res.saved(path, size)
	counter.Advance()
	item.Status, item.Path, item.Bytes = StatusOK, path, size
	e.Sink.Success(fmt.Sprintf("[строка %d] Картинка по ссылке → %s", row, baseName(path)))
	return nil
}

type savedFile struct {
	path string
	size int64
}

// saveEmbedded сохраняет картинку из ячейки, если она есть.
func (e *Extractor) saveEmbedded(ctx context.Context, cfg *config.Config, images CellImages, cell, base, ext string) (savedFile, error) {
	data, picExt, ok, err := images.ImageAt(cell)
	if err != nil || !ok {
		return savedFile{}, err
	}

	img, err := e.decode(ctx, data, "picture"+picExt, cfg.OutputDir)
	if err != nil {
		return savedFile{}, err
	}

	path := naming.UniquePath(cfg.OutputDir, base, ext)
	size, err := e.Encoder.Save(ctx, img, path, cfg.OutputFormat)
	if err != nil {
		return savedFile{}, err
	}
	return savedFile{path: path, size: size}, nil
}

// rowName выбирает имя файла для строки: текст столбца имён, затем
// (для политики link) текст ячейки с картинкой, затем правило именования.
// Значения, похожие на ссылку, в имя не идут.
func (e *Extractor) rowName(cfg *config.Config, sheet SheetSource, row, counter int) (string, error) {
	if cfg.NameColumn != "" {
		text, err := sheet.CellText(workbook.CellName(cfg.NameColumn, row))
		if err != nil {
			return "", err
		}
		if text = strings.TrimSpace(text); text != "" && !naming.IsURL(text) {
			return naming.Sanitize(text), nil
		}
	}

	if cfg.Naming.Policy == naming.PolicyLinkText {
		// excelize не отдаёт отображаемый текст гиперссылки, им служит значение ячейки.
		text, err := sheet.CellText(workbook.CellName(cfg.ImageColumn, row))
		if err != nil {
			return "", err
		}
		if text = strings.TrimSpace(text); text != "" && !naming.IsURL(text) {
			return naming.Sanitize(text), nil
		}
	}

	return cfg.Naming.Resolve(counter, ""), nil
}

// cellURL возвращает ссылку из гиперссылки ячейки или из её текста.
func cellURL(sheet SheetSource, cell string) (string, error) {
	target, ok, err := sheet.Hyperlink(cell)
	if err != nil {
		return "", err
	}
	if ok && naming.IsURL(target) {
		return strings.TrimSpace(target), nil
	}

	text, err := sheet.CellText(cell)
	if err != nil {
		return "", err
	}
	if naming.IsURL(text) {
		return strings.TrimSpace(text), nil
	}
	return "", nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func baseName(path string) string {
	return filepath.Base(path)
}
