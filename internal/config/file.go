// Package config содержит конфигурацию приложения.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/naming"
)

// FileConfig представляет структуру конфигурационного файла YAML.
// Все поля опциональны - если не указаны, используются значения по умолчанию.
type FileConfig struct {
	// Extract - что и откуда извлекать.
	Extract *ExtractConfig `yaml:"extract,omitempty"`

	// Output - настройки выходных данных.
	Output *OutputConfig `yaml:"output,omitempty"`

	// Naming - именование файлов.
	Naming *NamingConfig `yaml:"naming,omitempty"`

	// Download - скачивание по ссылкам.
	Download *DownloadFileConfig `yaml:"download,omitempty"`

	// Vector - конвертация EMF/WMF.
	Vector *VectorFileConfig `yaml:"vector,omitempty"`

	// Processing - настройки обработки.
	Processing *ProcessingConfig `yaml:"processing,omitempty"`

	// Paths - настройки путей.
	Paths *PathsConfig `yaml:"paths,omitempty"`
}

// ExtractConfig содержит настройки источника.
type ExtractConfig struct {
	Sheet       string `yaml:"sheet,omitempty"`
	Mode        string `yaml:"mode,omitempty"`
	ImageColumn string `yaml:"image_col,omitempty"`
	NameColumn  string `yaml:"name_col,omitempty"`
	StartRow    int    `yaml:"start_row,omitempty"`
	Embedded    *bool  `yaml:"embedded,omitempty"`
}

// OutputConfig содержит настройки выходных данных.
type OutputConfig struct {
	// Dir - директория для сохранения результатов.
	Dir string `yaml:"dir,omitempty"`

	// Format - выходной формат (png, jpg, jpeg, webp, bmp, gif).
	Format string `yaml:"format,omitempty"`

	// Quality - качество JPEG (1-100).
	Quality int `yaml:"quality,omitempty"`
}

// NamingConfig содержит настройки именования.
type NamingConfig struct {
	Policy    string  `yaml:"policy,omitempty"`
	Start     *int    `yaml:"start,omitempty"`
	Prefix    string  `yaml:"prefix,omitempty"`
	Separator *string `yaml:"separator,omitempty"`
	Template  string  `yaml:"template,omitempty"`
}

// DownloadFileConfig содержит настройки скачивания.
type DownloadFileConfig struct {
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	Retries   int           `yaml:"retries,omitempty"`
	Backoff   time.Duration `yaml:"backoff,omitempty"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Rate      float64       `yaml:"rate,omitempty"`
	MaxBytes  int64         `yaml:"max_bytes,omitempty"`
	CacheDir  string        `yaml:"cache_dir,omitempty"`
}

// VectorFileConfig содержит настройки конвертации метафайлов.
type VectorFileConfig struct {
	Disabled bool          `yaml:"disabled,omitempty"`
	Commands []string      `yaml:"commands,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// ProcessingConfig содержит настройки обработки.
type ProcessingConfig struct {
	// Verbose - подробный вывод.
	Verbose bool `yaml:"verbose,omitempty"`

	// NoProgress - отключить прогресс-бар.
	NoProgress bool `yaml:"no_progress,omitempty"`

	// NoHistory - не вести историю запусков.
	NoHistory bool `yaml:"no_history,omitempty"`

	// LogFile - писать лог запуска рядом с результатами.
	LogFile *bool `yaml:"log_file,omitempty"`
}

// PathsConfig содержит настройки путей.
type PathsConfig struct {
	// DB - путь к SQLite базе данных.
	DB string `yaml:"db,omitempty"`

	// Tools - явные пути к утилитам: magick, convert, sips, cwebp, vips.
	Tools map[string]string `yaml:"tools,omitempty"`
}

// DefaultConfigPaths возвращает список путей для поиска конфигурационного файла.
// Поиск выполняется в следующем порядке:
// 1. ./xlsximages.yaml (текущая директория)
// 2. ./xlsximages.yml
// 3. ~/.config/xlsximages/config.yaml
// 4. ~/.config/xlsximages/config.yml
func DefaultConfigPaths() []string {
	paths := []string{
		"xlsximages.yaml",
		"xlsximages.yml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "xlsximages", "config.yaml"),
			filepath.Join(home, ".config", "xlsximages", "config.yml"),
		)
	}

	return paths
}

// LoadFromFile загружает конфигурацию из указанного файла.
// Возвращает nil, nil если файл не существует.
func LoadFromFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "не удалось прочитать файл конфигурации %s", path)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrapf(err, "ошибка парсинга YAML в %s", path)
	}

	return &fc, nil
}

// FindAndLoadConfig ищет и загружает конфигурационный файл из стандартных путей.
// Если configPath указан явно, использует только его.
// Возвращает nil, "", nil если файл не найден.
func FindAndLoadConfig(configPath string) (*FileConfig, string, error) {
	if configPath != "" {
		fc, err := LoadFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		if fc == nil {
			return nil, "", errors.Newf("файл конфигурации не найден: %s", configPath)
		}
		return fc, configPath, nil
	}

	for _, path := range DefaultConfigPaths() {
		fc, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		if fc != nil {
			return fc, path, nil
		}
	}

	return nil, "", nil
}

// ApplyToConfig применяет настройки из файла к основной конфигурации.
// changed сообщает, был ли флаг с таким именем задан явно: такие поля
// файл не трогает, флаги имеют приоритет. nil - флаги не заданы.
func (fc *FileConfig) ApplyToConfig(cfg *Config, changed func(flag string) bool) {
	if fc == nil {
		return
	}
	if changed == nil {
		changed = func(string) bool { return false }
	}
	set := func(flag string) bool { return !changed(flag) }

	if e := fc.Extract; e != nil {
		if e.Sheet != "" && set("sheet") {
			cfg.Sheet = e.Sheet
		}
		if e.Mode != "" && set("mode") {
			cfg.Mode = Mode(e.Mode)
		}
		if e.ImageColumn != "" && set("image-col") {
			cfg.ImageColumn = e.ImageColumn
		}
		if e.NameColumn != "" && set("name-col") {
			cfg.NameColumn = e.NameColumn
		}
		if e.StartRow > 0 && set("start-row") {
			cfg.StartRow = e.StartRow
		}
		if e.Embedded != nil && set("no-embedded") {
			cfg.Embedded = *e.Embedded
		}
	}

	if o := fc.Output; o != nil {
		if o.Dir != "" && set("out") {
			cfg.OutputDir = o.Dir
		}
		if o.Format != "" && set("format") {
			cfg.OutputFormat = imaging.Format(o.Format)
		}
		if o.Quality > 0 && set("quality") {
			cfg.Quality = o.Quality
		}
	}

	if n := fc.Naming; n != nil {
		if n.Policy != "" && set("naming") {
			cfg.Naming.Policy = naming.Policy(n.Policy)
		}
		if n.Start != nil && set("start") {
			cfg.Naming.Start = *n.Start
		}
		if n.Prefix != "" && set("prefix") {
			cfg.Naming.Prefix = n.Prefix
		}
		if n.Separator != nil && set("sep") {
			cfg.Naming.Separator = *n.Separator
		}
		if n.Template != "" && set("template") {
			cfg.Naming.Template = n.Template
		}
	}

	if d := fc.Download; d != nil {
		if d.Timeout > 0 && set("timeout") {
			cfg.Download.Timeout = d.Timeout
		}
		if d.Retries > 0 && set("retries") {
			cfg.Download.Retries = d.Retries
		}
		if d.Backoff > 0 {
			cfg.Download.Backoff = d.Backoff
		}
		if d.UserAgent != "" {
			cfg.Download.UserAgent = d.UserAgent
		}
		if d.Rate > 0 && set("rate") {
			cfg.Download.Rate = d.Rate
		}
		if d.MaxBytes > 0 {
			cfg.Download.MaxBytes = d.MaxBytes
		}
		if d.CacheDir != "" && set("cache-dir") {
			cfg.Download.CacheDir = d.CacheDir
		}
	}

	if v := fc.Vector; v != nil {
		if v.Disabled && set("no-vector") {
			cfg.Vector.Disabled = true
		}
		if len(v.Commands) > 0 && set("converter") {
			cfg.Vector.Commands = v.Commands
		}
		if v.Timeout > 0 {
			cfg.Vector.Timeout = v.Timeout
		}
	}

	if p := fc.Processing; p != nil {
		if p.Verbose && set("verbose") {
			cfg.Verbose = true
		}
		if p.NoProgress && set("no-progress") {
			cfg.NoProgress = true
		}
		if p.NoHistory && set("no-history") {
			cfg.NoHistory = true
		}
		if p.LogFile != nil && set("no-log-file") {
			cfg.LogFile = *p.LogFile
		}
	}

	if p := fc.Paths; p != nil {
		if p.DB != "" && set("db") {
			cfg.DBPath = p.DB
		}
		if len(p.Tools) > 0 {
			if cfg.ToolPaths == nil {
				cfg.ToolPaths = make(map[string]string)
			}
			for name, path := range p.Tools {
				if _, ok := cfg.ToolPaths[name]; !ok {
					cfg.ToolPaths[name] = path
				}
			}
		}
	}
}

// FromConfig строит FileConfig из конфигурации запуска. Путь к книге и
// директория результатов не сохраняются: они свои у каждой книги.
func FromConfig(cfg *Config) *FileConfig {
	start := cfg.Naming.Start
	sep := cfg.Naming.Separator
	embedded := cfg.Embedded
	logFile := cfg.LogFile

	return &FileConfig{
		Extract: &ExtractConfig{
			Sheet:       cfg.Sheet,
			Mode:        string(cfg.Mode),
			ImageColumn: cfg.ImageColumn,
			NameColumn:  cfg.NameColumn,
			StartRow:    cfg.StartRow,
			Embedded:    &embedded,
		},
		Output: &OutputConfig{
			Format:  string(cfg.OutputFormat),
			Quality: cfg.Quality,
		},
		Naming: &NamingConfig{
			Policy:    string(cfg.Naming.Policy),
			Start:     &start,
			Prefix:    cfg.Naming.Prefix,
			Separator: &sep,
			Template:  cfg.Naming.Template,
		},
		Download: &DownloadFileConfig{
			Timeout:   cfg.Download.Timeout,
			Retries:   cfg.Download.Retries,
			Backoff:   cfg.Download.Backoff,
			UserAgent: cfg.Download.UserAgent,
			Rate:      cfg.Download.Rate,
			MaxBytes:  cfg.Download.MaxBytes,
			CacheDir:  cfg.Download.CacheDir,
		},
		Vector: &VectorFileConfig{
			Disabled: cfg.Vector.Disabled,
			Commands: cfg.Vector.Commands,
			Timeout:  cfg.Vector.Timeout,
		},
		Processing: &ProcessingConfig{
			NoHistory: cfg.NoHistory,
			LogFile:   &logFile,
		},
	}
}

// SaveToFile записывает конфигурацию в YAML.
func (fc *FileConfig) SaveToFile(path string) error {
	data, err := yaml.Marshal(fc)
	if err != nil {
		return errors.Wrap(err, "ошибка сериализации YAML")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "не удалось создать директорию %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "не удалось записать %s", path)
}

// GenerateExampleConfig генерирует пример конфигурационного файла.
func GenerateExampleConfig() string {
	return `# xlsximages configuration file
# Все параметры опциональны - если не указаны, используются значения по умолчанию.
# CLI флаги имеют приоритет над этим файлом.

extract:
  # Лист (пусто = первый)
  sheet: ""
  # Режим: all (все медиафайлы книги) или column (по столбцу)
  mode: all
  # Столбец с картинками или ссылками (режим column)
  image_col: B
  # Столбец с именами файлов (опционально)
  name_col: ""
  # Первая строка данных
  start_row: 2
  # Искать картинки, привязанные к ячейкам
  embedded: true

output:
  # Директория для результатов (пусто = папка с именем книги рядом с ней)
  dir: ""
  # Формат: png, jpg, jpeg, webp, bmp, gif
  format: png
  # Качество JPEG (1-100)
  quality: 90

naming:
  # Политика: seq, prefix, link, template
  policy: seq
  # Стартовый номер
  start: 1
  # Префикс и разделитель для policy: prefix
  prefix: Image
  separator: "_"
  # Шаблон для policy: template, {n} заменяется номером
  template: "img_{n}"

download:
  timeout: 15s
  retries: 3
  backoff: 1s
  # Запросов в секунду (0 = без ограничения)
  rate: 0
  # Предельный размер ответа в байтах
  max_bytes: 52428800
  # Кэш загрузок (пусто = без кэша)
  cache_dir: ""

vector:
  # Не конвертировать EMF/WMF
  disabled: false
  # Дополнительные команды конвертации, {in} и {out} - пути к файлам
  commands:
    - "inkscape {in} --export-type=png --export-filename={out}"
  timeout: 15s

processing:
  verbose: false
  no_progress: false
  no_history: false
  # Лог запуска в директории результатов
  log_file: true

paths:
  # Путь к SQLite базе истории (пусто = в пользовательской директории)
  db: ""
  # Явные пути к утилитам (по умолчанию автопоиск)
  tools:
    magick: ""
`
}

/*
Возможные расширения:
- Поддержка переменных окружения в значениях конфига
*/
