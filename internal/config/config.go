// Package config содержит конфигурацию приложения.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/naming"
)

// Mode определяет стратегию извлечения.
type Mode string

const (
	// ModeAll - все медиафайлы из архива книги.
	ModeAll Mode = "all"
	// ModeColumn - построчно по столбцу: картинки в ячейках и ссылки.
	ModeColumn Mode = "column"
)

// WorkbookExtensions - расширения книг, которые принимает утилита.
var WorkbookExtensions = []string{".xlsx", ".xlsm"}

var columnPattern = regexp.MustCompile(`^[A-Z]+$`)

// Config содержит все настройки одного запуска извлечения.
// Во время запуска не изменяется.
type Config struct {
	// Workbook - путь к книге.
	Workbook string

	// Sheet - имя листа (пусто = первый лист).
	Sheet string

	// Mode - стратегия извлечения.
	Mode Mode

	// ImageColumn - буква столбца с картинками/ссылками (режим column).
	ImageColumn string

	// NameColumn - буква столбца с именами файлов (опционально).
	NameColumn string

	// StartRow - первая строка данных (>= 1).
	StartRow int

	// OutputFormat - формат сохраняемых файлов.
	OutputFormat imaging.Format

	// Quality - качество JPEG (1-100).
	Quality int

	// Naming - политика именования.
	Naming naming.Naming

	// OutputDir - директория результатов (пусто = папка с именем книги рядом с ней).
	OutputDir string

	// Embedded - искать картинки, привязанные к ячейкам.
	Embedded bool

	// Download - параметры скачивания.
	Download DownloadConfig

	// Vector - параметры конвертации EMF/WMF.
	Vector VectorConfig

	// ToolPaths - явные пути к внешним утилитам по имени.
	ToolPaths map[string]string

	// DBPath - путь к SQLite базе истории.
	DBPath string

	// NoHistory - не вести историю запусков.
	NoHistory bool

	// LogFile - писать лог запуска в директорию результатов.
	LogFile bool

	// Verbose - подробный вывод.
	Verbose bool

	// NoProgress - отключить прогресс-бар.
	NoProgress bool
}

// DownloadConfig содержит параметры скачивания по ссылкам.
type DownloadConfig struct {
	// Timeout - таймаут одного запроса.
	Timeout time.Duration

	// Retries - число попыток.
	Retries int

	// Backoff - базовая пауза между попытками.
	Backoff time.Duration

	// UserAgent - заголовок User-Agent (пусто = браузерный по умолчанию).
	UserAgent string

	// Rate - запросов в секунду (0 = без ограничения).
	Rate float64

	// MaxBytes - предельный размер ответа.
	MaxBytes int64

	// CacheDir - директория кэша загрузок (пусто = без кэша).
	CacheDir string
}

// VectorConfig содержит параметры конвертации метафайлов.
type VectorConfig struct {
	// Disabled - не конвертировать EMF/WMF.
	Disabled bool

	// Commands - пользовательские команды с подстановками {in} и {out}.
	Commands []string

	// Timeout - таймаут пользовательской команды.
	Timeout time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Mode:         ModeAll,
		StartRow:     2,
		OutputFormat: imaging.FormatPNG,
		Quality:      imaging.DefaultQuality,
		Naming: naming.Naming{
			Policy:    naming.PolicySequential,
			Start:     1,
			Separator: "_",
			Template:  naming.DefaultTemplate,
		},
		Embedded: true,
		Download: DownloadConfig{
			Timeout:  15 * time.Second,
			Retries:  3,
			Backoff:  time.Second,
			MaxBytes: 50 << 20,
		},
		Vector: VectorConfig{
			Timeout: 15 * time.Second,
		},
		LogFile: true,
	}
}

// Validate нормализует и проверяет конфигурацию, не зависящую от книги.
func (c *Config) Validate() error {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	if c.Mode != ModeAll && c.Mode != ModeColumn {
		return errors.Newf("неизвестный режим: %s (доступны: all, column)", c.Mode)
	}

	c.ImageColumn = normalizeColumn(c.ImageColumn)
	c.NameColumn = normalizeColumn(c.NameColumn)

	if c.Mode == ModeColumn {
		if c.ImageColumn == "" {
			return errors.WithHint(errors.New("не указан столбец с картинками"), "укажите --image-col, например --image-col B")
		}
		if !columnPattern.MatchString(c.ImageColumn) {
			return errors.Newf("некорректный столбец картинок: %q", c.ImageColumn)
		}
	}
	if c.NameColumn != "" && !columnPattern.MatchString(c.NameColumn) {
		return errors.Newf("некорректный столбец имён: %q", c.NameColumn)
	}
	if c.StartRow < 1 {
		return errors.Newf("начальная строка должна быть >= 1, получено: %d", c.StartRow)
	}

	format, err := imaging.ParseFormat(string(c.OutputFormat))
	if err != nil {
		return errors.WithHintf(err, "доступны: %s", joinFormats())
	}
	c.OutputFormat = format

	if c.Quality < 1 || c.Quality > 100 {
		return errors.Newf("качество должно быть от 1 до 100, получено: %d", c.Quality)
	}

	if c.Naming.Policy == "" {
		c.Naming.Policy = naming.PolicySequential
	}
	if !c.Naming.Policy.Valid() {
		return errors.Newf("неизвестная политика именования: %s (доступны: seq, prefix, link, template)", c.Naming.Policy)
	}
	if c.Naming.Template == "" {
		c.Naming.Template = naming.DefaultTemplate
	}

	if c.Download.Retries < 1 {
		return errors.Newf("число попыток должно быть >= 1, получено: %d", c.Download.Retries)
	}
	if c.Download.Timeout <= 0 {
		return errors.Newf("таймаут должен быть положительным, получено: %s", c.Download.Timeout)
	}
	if c.Download.Rate < 0 {
		return errors.Newf("частота запросов не может быть отрицательной: %v", c.Download.Rate)
	}

	if c.DBPath == "" && !c.NoHistory {
		c.DBPath = DefaultDBPath()
	}

	return nil
}

// ForWorkbook возвращает копию конфигурации для конкретной книги:
// проверяет расширение и существование файла, вычисляет директорию
// результатов.
func (c *Config) ForWorkbook(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !HasWorkbookExtension(ext) {
		return nil, errors.WithHint(
			errors.Newf("%s: неподдерживаемый тип файла %q", filepath.Base(path), ext),
			"поддерживаются книги .xlsx и .xlsm; старый .xls пересохраните в .xlsx",
		)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "книга недоступна")
	}
	if info.IsDir() {
		return nil, errors.Newf("%s - директория", path)
	}

	cp := *c
	cp.Workbook = path
	if cp.OutputDir == "" {
		cp.OutputDir = DefaultOutputDir(path)
	}
	return &cp, nil
}

// DefaultOutputDir возвращает папку с именем книги рядом с ней.
func DefaultOutputDir(workbook string) string {
	dir := filepath.Dir(workbook)
	stem := strings.TrimSuffix(filepath.Base(workbook), filepath.Ext(workbook))
	return filepath.Join(dir, stem)
}

// DefaultDBPath возвращает путь к базе истории в пользовательской
// директории конфигурации.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".xlsximages", "history.sqlite")
	}
	return filepath.Join(dir, "xlsximages", "history.sqlite")
}

// HasWorkbookExtension проверяет, поддерживается ли расширение книги.
func HasWorkbookExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, e := range WorkbookExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func normalizeColumn(col string) string {
	return strings.ToUpper(strings.TrimSpace(col))
}

func joinFormats() string {
	var names []string
	for _, f := range imaging.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

/*
Возможные расширения:
- Несколько столбцов картинок за один проход
- Диапазон строк (конечная строка)
*/
