package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: запуски извлечения
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workbook TEXT NOT NULL,
		sheet TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);`,

	// Миграция 2: элементы запуска
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		ref TEXT NOT NULL,
		row_num INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		url TEXT,
		status TEXT NOT NULL,
		path TEXT,
		bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER NOT NULL
	);`,

	// Миграция 3: выборки по запуску и статусу
	`CREATE INDEX IF NOT EXISTS ix_items_run ON items (run_id);`,
	`CREATE INDEX IF NOT EXISTS ix_runs_status ON runs (status);`,
	`CREATE INDEX IF NOT EXISTS ix_runs_started ON runs (started_at);`,

	// Миграция 4: версия схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}

// GetMigrations возвращает список SQL-миграций.
func GetMigrations() []string {
	return migrations
}

/*
Возможные расширения:
- Таблица для дедупликации картинок по sha256 между запусками
- Откат миграций (down migrations)
*/
