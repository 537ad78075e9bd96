package extract

import (
	"time"
)

// RunResult - итог одного запуска по книге.
type RunResult struct {
	// Total - сколько элементов (медиафайлов или строк) предстояло обработать.
	Total int

	// Processed - сколько элементов обработано до завершения или отмены.
	Processed int

	Succeeded int
	Failed    int
	Skipped   int

	// Canceled - запуск прерван пользователем.
	Canceled bool

	// OutputDir - директория с результатами.
	OutputDir string

	// OutputBytes - суммарный размер сохранённых файлов.
	OutputBytes int64

	// Saved - пути сохранённых файлов в порядке сохранения.
	Saved []string

	// Duration - длительность стратегии.
	Duration time.Duration

	started time.Time
}

func (r *RunResult) finish() {
	r.Duration = time.Since(r.started)
}

func (r *RunResult) saved(path string, size int64) {
	r.Succeeded++
	r.OutputBytes += size
	r.Saved = append(r.Saved, path)
}

// ItemStatus - итог обработки элемента.
type ItemStatus string

const (
	StatusOK      ItemStatus = "ok"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped"
)

// ItemSource - откуда взято изображение.
type ItemSource string

const (
	SourceMedia    ItemSource = "media"
	SourceEmbedded ItemSource = "embedded"
	SourceURL      ItemSource = "url"
	SourceNone     ItemSource = ""
)

// Item - запись об одном обработанном элементе.
type Item struct {
	// Ref - имя медиафайла в архиве или ссылка на ячейку.
	Ref string

	// Row - номер строки (0 для режима all).
	Row int

	Source ItemSource
	URL    string
	Status ItemStatus
	Path   string
	Bytes  int64
	Error  string
}
