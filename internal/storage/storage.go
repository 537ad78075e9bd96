// Package storage ведёт историю запусков извлечения в SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Storage предоставляет методы для работы с историей запусков.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// New создаёт новое подключение к SQLite и выполняет миграции.
func New(dbPath string) (*Storage, error) {
	// Создаём директорию для БД, если не существует
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "не удалось создать директорию для БД")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "не удалось открыть БД")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.WithHintf(errors.Wrap(err, "не удалось подключиться к БД"),
			"проверьте путь %s или отключите историю флагом --no-history", dbPath)
	}

	// SQLite не поддерживает concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Storage{db: db, now: time.Now}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "не удалось выполнить миграции")
	}

	return s, nil
}

// migrate выполняет все SQL-миграции.
func (s *Storage) migrate() error {
	for i, m := range GetMigrations() {
		if _, err := s.db.Exec(m); err != nil {
			return errors.Wrapf(err, "миграция %d", i+1)
		}
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartRun создаёт запись о запуске и возвращает её идентификатор.
func (s *Storage) StartRun(info RunInfo) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO runs (id, workbook, sheet, mode, output_dir, format, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, info.Workbook, info.Sheet, info.Mode, info.OutputDir, info.Format,
		StatusInProgress, s.now().Unix(),
	)
	if err != nil {
		return "", errors.Wrap(err, "не удалось создать запись о запуске")
	}
	return id, nil
}

// RecordItem добавляет элемент к запуску.
func (s *Storage) RecordItem(runID string, item ItemRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO items (run_id, ref, row_num, source, url, status, path, bytes, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, item.Ref, item.Row, item.Source, nullable(item.URL), item.Status,
		nullable(item.Path), item.Bytes, nullable(item.Error), s.now().Unix(),
	)
	if err != nil {
		return errors.Wrapf(err, "не удалось записать элемент %s", item.Ref)
	}
	return nil
}

// FinishRun закрывает запуск с итогами.
func (s *Storage) FinishRun(runID string, sum RunSummary) error {
	var errMsg *string
	if sum.Err != nil {
		msg := sum.Err.Error()
		errMsg = &msg
	}

	res, err := s.db.Exec(`
		UPDATE runs SET status = ?, total = ?, succeeded = ?, failed = ?, skipped = ?,
		                bytes = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		sum.Status(), sum.Total, sum.Succeeded, sum.Failed, sum.Skipped,
		sum.Bytes, errMsg, s.now().Unix(), runID,
	)
	if err != nil {
		return errors.Wrap(err, "не удалось обновить статус запуска")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf("запуск %s не найден", runID)
	}
	return nil
}

// CleanupInProgress помечает незавершённые запуски как прерванные.
// Вызывается при старте для очистки после аварийного завершения.
func (s *Storage) CleanupInProgress() (int64, error) {
	result, err := s.db.Exec(
		"UPDATE runs SET status = ?, error = ? WHERE status = ?",
		StatusInterrupted, "прервано при предыдущем запуске", StatusInProgress,
	)
	if err != nil {
		return 0, errors.Wrap(err, "не удалось очистить in_progress")
	}
	return result.RowsAffected()
}

// GetStats возвращает сводку по всем запускам.
func (s *Storage) GetStats() (*Stats, error) {
	st := &Stats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'ok'), 0),
		       COALESCE(SUM(status = 'partial'), 0),
		       COALESCE(SUM(status = 'failed'), 0),
		       COALESCE(SUM(status IN ('canceled', 'interrupted')), 0),
		       COALESCE(SUM(succeeded), 0),
		       COALESCE(SUM(failed), 0),
		       COALESCE(SUM(skipped), 0),
		       COALESCE(SUM(bytes), 0)
		FROM runs`).Scan(
		&st.Runs, &st.RunsOK, &st.RunsPartial, &st.RunsFailed, &st.RunsStopped,
		&st.ImagesSaved, &st.ImagesFailed, &st.ImagesSkipped, &st.Bytes,
	)
	if err != nil {
		return nil, errors.Wrap(err, "не удалось получить статистику")
	}
	return st, nil
}

// ListRuns возвращает последние запуски, новые первыми.
func (s *Storage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, workbook, sheet, mode, output_dir, format, status,
		       total, succeeded, failed, skipped, bytes, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "не удалось прочитать историю")
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			errMsg   sql.NullString
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Workbook, &r.Sheet, &r.Mode, &r.OutputDir, &r.Format, &r.Status,
			&r.Total, &r.Succeeded, &r.Failed, &r.Skipped, &r.Bytes, &errMsg, &started, &finished); err != nil {
			return nil, errors.Wrap(err, "не удалось прочитать запуск")
		}
		r.Error = errMsg.String
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunItems возвращает элементы запуска в порядке записи.
func (s *Storage) RunItems(runID string) ([]ItemRecord, error) {
	rows, err := s.db.Query(`
		SELECT ref, row_num, source, url, status, path, bytes, error
		FROM items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "не удалось прочитать элементы запуска")
	}
	defer func() { _ = rows.Close() }()

	var items []ItemRecord
	for rows.Next() {
		var (
			it                 ItemRecord
			url, path, errText sql.NullString
		)
		if err := rows.Scan(&it.Ref, &it.Row, &it.Source, &url, &it.Status, &path, &it.Bytes, &errText); err != nil {
			return nil, errors.Wrap(err, "не удалось прочитать элемент")
		}
		it.URL, it.Path, it.Error = url.String, path.String, errText.String
		items = append(items, it)
	}
	return items, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

/*
Возможные расширения:
- Экспорт истории в JSON
- Очистка записей старше заданного срока
- Транзакция на весь запуск для пакетной записи элементов
*/
