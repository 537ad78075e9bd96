package storage

import (
	"sync"

	"github.com/artemshloyda/xlsximages/internal/extract"
)

// RunRecorder пишет элементы одного запуска в историю.
// Первая ошибка записи сохраняется, последующие элементы пропускаются.
type RunRecorder struct {
	store *Storage
	runID string

	mu  sync.Mutex
	err error
}

// NewRunRecorder создаёт запись о запуске и возвращает привязанный к ней
// приёмник элементов.
func NewRunRecorder(store *Storage, info RunInfo) (*RunRecorder, error) {
	id, err := store.StartRun(info)
	if err != nil {
		return nil, err
	}
	return &RunRecorder{store: store, runID: id}, nil
}

// RunID возвращает идентификатор запуска.
func (r *RunRecorder) RunID() string {
	return r.runID
}

// Record сохраняет итог обработки элемента.
func (r *RunRecorder) Record(item extract.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	r.err = r.store.RecordItem(r.runID, ItemRecord{
		Ref:    item.Ref,
		Row:    item.Row,
		Source: string(item.Source),
		URL:    item.URL,
		Status: string(item.Status),
		Path:   item.Path,
		Bytes:  item.Bytes,
		Error:  item.Error,
	})
}

// Finish закрывает запуск. res может быть nil при фатальной ошибке.
func (r *RunRecorder) Finish(res *extract.RunResult, runErr error) error {
	sum := RunSummary{Err: runErr}
	if res != nil {
		sum.Total = res.Total
		sum.Succeeded = res.Succeeded
		sum.Failed = res.Failed
		sum.Skipped = res.Skipped
		sum.Bytes = res.OutputBytes
		sum.Canceled = res.Canceled
	}
	if err := r.store.FinishRun(r.runID, sum); err != nil {
		return err
	}
	return r.Err()
}

// Err возвращает первую ошибку записи элементов.
func (r *RunRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
