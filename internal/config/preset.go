package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Preset - сохранённая разметка типовой книги: лист, режим, столбцы,
// именование и формат. Путь к книге и директория результатов в пресет
// не входят.
type Preset struct {
	Name string
	Path string

	// Config - содержимое пресета (nil, если файл не читается).
	Config *FileConfig
}

// PresetSummary - короткое описание пресета для списка.
type PresetSummary struct {
	Mode   string
	Column string
	Format string
	Policy string
}

// Summary возвращает основные поля пресета, "-" для незаданных.
func (p Preset) Summary() PresetSummary {
	s := PresetSummary{Mode: "-", Column: "-", Format: "-", Policy: "-"}
	c := p.Config
	if c == nil {
		return s
	}
	if c.Extract != nil {
		s.Mode = dash(c.Extract.Mode)
		s.Column = dash(c.Extract.ImageColumn)
		if c.Extract.NameColumn != "" && c.Extract.ImageColumn != "" {
			s.Column += " → " + c.Extract.NameColumn
		}
	}
	if c.Output != nil {
		s.Format = dash(c.Output.Format)
	}
	if c.Naming != nil {
		s.Policy = dash(c.Naming.Policy)
	}
	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// PresetsDirOverride подменяет директорию пресетов в тестах.
var PresetsDirOverride string

// PresetsDir возвращает ~/.config/xlsximages/presets.
func PresetsDir() (string, error) {
	if PresetsDirOverride != "" {
		return PresetsDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "не удалось получить домашнюю директорию")
	}
	return filepath.Join(home, ".config", "xlsximages", "presets"), nil
}

// PresetPath возвращает путь к файлу пресета.
func PresetPath(name string) (string, error) {
	dir, err := PresetsDir()
	if err != nil {
		return "", err
	}
	file := presetFileName(name)
	if file == "" {
		return "", errors.WithHint(errors.Newf("некорректное имя пресета: %q", name),
			"используйте буквы, цифры, дефис и подчёркивание")
	}
	return filepath.Join(dir, file+".yaml"), nil
}

// presetFileName оставляет буквы, цифры, "-" и "_", пробелы заменяет на "-".
func presetFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// SavePreset сохраняет текущие настройки извлечения под именем name
// и возвращает путь к файлу.
func SavePreset(name string, cfg *Config) (string, error) {
	path, err := PresetPath(name)
	if err != nil {
		return "", err
	}
	if err := FromConfig(cfg).SaveToFile(path); err != nil {
		return "", errors.Wrapf(err, "не удалось сохранить пресет '%s'", name)
	}
	return path, nil
}

// LoadPreset читает пресет по имени.
func LoadPreset(name string) (*FileConfig, string, error) {
	path, err := PresetPath(name)
	if err != nil {
		return nil, "", err
	}

	fc, err := LoadFromFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "не удалось загрузить пресет '%s'", name)
	}
	if fc == nil {
		return nil, "", errors.WithHint(errors.Newf("пресет '%s' не найден", name),
			"список пресетов: xlsximages presets list")
	}
	return fc, path, nil
}

// ListPresets возвращает пресеты, отсортированные по имени. Отсутствие
// директории не ошибка.
func ListPresets() ([]Preset, error) {
	dir, err := PresetsDir()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrap(err, "не удалось прочитать директорию пресетов")
		}
		files = append(files, matches...)
	}

	presets := make([]Preset, 0, len(files))
	for _, path := range files {
		base := filepath.Base(path)
		fc, _ := LoadFromFile(path)
		presets = append(presets, Preset{
			Name:   strings.TrimSuffix(base, filepath.Ext(base)),
			Path:   path,
			Config: fc,
		})
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}

// DeletePreset удаляет пресет.
func DeletePreset(name string) error {
	if !PresetExists(name) {
		return errors.Newf("пресет '%s' не найден", name)
	}
	path, err := PresetPath(name)
	if err != nil {
		return err
	}
	return errors.Wrap(os.Remove(path), "не удалось удалить пресет")
}

// PresetExists сообщает, сохранён ли пресет.
func PresetExists(name string) bool {
	path, err := PresetPath(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

/*
Возможные расширения:
- Описание к пресету
- Наследование пресетов (extends)
*/
