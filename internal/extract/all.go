package extract

import (
	"context"
	"fmt"

	"github.com/artemshloyda/xlsximages/internal/config"
	"github.com/artemshloyda/xlsximages/internal/naming"
	"github.com/artemshloyda/xlsximages/internal/workbook"
)

// ExtractAll сохраняет все медиафайлы из xl/media/ в порядке их номеров.
// Нераспознанные файлы учитываются как ошибки, обработка продолжается.
func (e *Extractor) ExtractAll(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	e.Sink.Info("Режим: все изображения книги")

	archive, err := workbook.OpenArchive(cfg.Workbook)
	if err != nil {
		return nil, err
	}
	defer func() { _ = archive.Close() }()

	res := newResult(cfg)
	defer res.finish()

	media := archive.Media()
	res.Total = len(media)
	if res.Total == 0 {
		e.Sink.Warn("В книге не найдено изображений")
		e.Sink.Progress(100, "Готово - изображений нет")
		return res, nil
	}
	e.Sink.Info(fmt.Sprintf("Найдено медиафайлов: %d", res.Total))

	counter := naming.NewCounter(cfg.Naming.Start)
	ext := string(cfg.OutputFormat)

	for i, m := range media {
		if ctx.Err() != nil {
			e.Sink.Warn("Операция отменена пользователем")
			res.Canceled = true
			break
		}

		tag := fmt.Sprintf("[%d/%d]", i+1, res.Total)
		item := Item{Ref: m.Name, Source: SourceMedia}

		err := safely(func() error {
			data, err := m.Read()
			if err != nil {
				return err
			}

			img, err := e.decode(ctx, data, m.Name, cfg.OutputDir)
			if err != nil {
				res.Failed++
				item.Status = StatusFailed
				item.Error = err.Error()
				e.Sink.Warn(fmt.Sprintf("%s %s: %v, пропущено", tag, m.Name, err))
				return nil
			}

			base := cfg.Naming.Resolve(counter.Value(), "")
			path := naming.UniquePath(cfg.OutputDir, base, ext)
			size, err := e.Encoder.Save(ctx, img, path, cfg.OutputFormat)
			if err != nil {
				return err
			}

			res.saved(path, size)
			counter.Advance()
			item.Status = StatusOK
			item.Path = path
			item.Bytes = size
			e.Sink.Success(fmt.Sprintf("%s Сохранено: %s", tag, baseName(path)))
			return nil
		})
		if err != nil {
			res.Failed++
			item.Status = StatusFailed
			item.Error = err.Error()
			e.Sink.Error(fmt.Sprintf("%s Ошибка извлечения (%s): %v", tag, m.Name, err))
		}

		res.Processed++
		e.record(item)
		e.Sink.Progress(float64(i+1)/float64(res.Total)*100,
			fmt.Sprintf("Прогресс: %d/%d | успешно: %d | ошибок: %d", i+1, res.Total, res.Succeeded, res.Failed))
	}

	e.summary(res)
	return res, nil
}
