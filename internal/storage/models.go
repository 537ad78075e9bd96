package storage

import "time"

// RunStatus определяет статус запуска извлечения.
type RunStatus string

const (
	// StatusInProgress - запуск выполняется.
	StatusInProgress RunStatus = "in_progress"
	// StatusOK - запуск завершён, ошибок изображений нет.
	StatusOK RunStatus = "ok"
	// StatusPartial - запуск завершён, часть изображений не удалась.
	StatusPartial RunStatus = "partial"
	// StatusFailed - запуск завершился фатальной ошибкой.
	StatusFailed RunStatus = "failed"
	// StatusCanceled - запуск отменён пользователем.
	StatusCanceled RunStatus = "canceled"
	// StatusInterrupted - процесс завершился, не закрыв запуск.
	StatusInterrupted RunStatus = "interrupted"
)

// RunInfo описывает начинающийся запуск.
type RunInfo struct {
	// Workbook - абсолютный путь к книге.
	Workbook string

	// Sheet - имя листа (пусто для первого листа).
	Sheet string

	// Mode - режим извлечения (all или column).
	Mode string

	// OutputDir - директория результатов.
	OutputDir string

	// Format - выходной формат.
	Format string
}

// RunSummary - итог запуска для FinishRun.
type RunSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Bytes     int64
	Canceled  bool

	// Err - фатальная ошибка запуска, если была.
	Err error
}

// Status вычисляет итоговый статус запуска.
func (s RunSummary) Status() RunStatus {
	switch {
	case s.Err != nil:
		return StatusFailed
	case s.Canceled:
		return StatusCanceled
	case s.Failed > 0:
		return StatusPartial
	}
	return StatusOK
}

// Run - запись о запуске.
type Run struct {
	ID         string
	Workbook   string
	Sheet      string
	Mode       string
	OutputDir  string
	Format     string
	Status     RunStatus
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	Bytes      int64
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ItemRecord - запись об одном изображении или строке.
type ItemRecord struct {
	// Ref - медиафайл архива или ячейка.
	Ref string

	// Row - номер строки (0 для режима all).
	Row int

	Source string
	URL    string
	Status string
	Path   string
	Bytes  int64
	Error  string
}

// Stats - сводка по всем запускам.
type Stats struct {
	Runs        int64
	RunsOK      int64
	RunsPartial int64
	RunsFailed  int64
	RunsStopped int64

	ImagesSaved   int64
	ImagesFailed  int64
	ImagesSkipped int64
	Bytes         int64
}
