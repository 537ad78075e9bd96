package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/naming"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	// Проверяем значения по умолчанию
	if cfg.Mode != ModeAll {
		t.Errorf("Mode = %v, want %v", cfg.Mode, ModeAll)
	}
	if cfg.StartRow != 2 {
		t.Errorf("StartRow = %d, want 2", cfg.StartRow)
	}
	if cfg.OutputFormat != imaging.FormatPNG {
		t.Errorf("OutputFormat = %v, want png", cfg.OutputFormat)
	}
	if cfg.Naming.Start != 1 || cfg.Naming.Separator != "_" || cfg.Naming.Template != "img_{n}" {
		t.Errorf("Naming = %+v", cfg.Naming)
	}
	if cfg.Download.Retries != 3 || cfg.Download.Timeout != 15*time.Second {
		t.Errorf("Download = %+v", cfg.Download)
	}
	if !cfg.Embedded {
		t.Error("Embedded should be true by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.NoHistory = true
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"column mode", func(c *Config) { c.Mode = ModeColumn; c.ImageColumn = " b " }, false},
		{"column mode without image column", func(c *Config) { c.Mode = ModeColumn }, true},
		{"bad image column", func(c *Config) { c.Mode = ModeColumn; c.ImageColumn = "B2" }, true},
		{"bad name column", func(c *Config) { c.NameColumn = "1" }, true},
		{"unknown mode", func(c *Config) { c.Mode = "rows" }, true},
		{"start row zero", func(c *Config) { c.StartRow = 0 }, true},
		{"unknown format", func(c *Config) { c.OutputFormat = "tiff" }, true},
		{"uppercase format", func(c *Config) { c.OutputFormat = "JPG" }, false},
		{"quality out of range", func(c *Config) { c.Quality = 101 }, true},
		{"unknown naming", func(c *Config) { c.Naming.Policy = "random" }, true},
		{"zero retries", func(c *Config) { c.Download.Retries = 0 }, true},
		{"negative rate", func(c *Config) { c.Download.Rate = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = " Column "
	cfg.ImageColumn = " ab"
	cfg.NameColumn = "c "
	cfg.OutputFormat = ".JPEG"
	cfg.Naming.Policy = ""
	cfg.Naming.Template = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeColumn, cfg.Mode)
	assert.Equal(t, "AB", cfg.ImageColumn)
	assert.Equal(t, "C", cfg.NameColumn)
	assert.Equal(t, imaging.FormatJPEG, cfg.OutputFormat)
	assert.Equal(t, naming.PolicySequential, cfg.Naming.Policy)
	assert.Equal(t, naming.DefaultTemplate, cfg.Naming.Template)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestConfig_ForWorkbook(t *testing.T) {
	dir := t.TempDir()
	book := filepath.Join(dir, "Каталог 2024.xlsx")
	require.NoError(t, os.WriteFile(book, []byte("PK"), 0644))

	cfg := DefaultConfig()
	wc, err := cfg.ForWorkbook(book)
	require.NoError(t, err)
	assert.Equal(t, book, wc.Workbook)
	assert.Equal(t, filepath.Join(dir, "Каталог 2024"), wc.OutputDir)
	assert.Empty(t, cfg.Workbook, "исходная конфигурация не меняется")

	cfg.OutputDir = "/explicit"
	wc, err = cfg.ForWorkbook(book)
	require.NoError(t, err)
	assert.Equal(t, "/explicit", wc.OutputDir)

	_, err = cfg.ForWorkbook(filepath.Join(dir, "old.xls"))
	assert.Error(t, err)

	_, err = cfg.ForWorkbook(filepath.Join(dir, "missing.xlsx"))
	assert.Error(t, err)
}

func TestHasWorkbookExtension(t *testing.T) {
	assert.True(t, HasWorkbookExtension(".xlsx"))
	assert.True(t, HasWorkbookExtension("XLSM"))
	assert.False(t, HasWorkbookExtension(".xls"))
	assert.False(t, HasWorkbookExtension(".csv"))
}

func TestFileConfig_ApplyToConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xlsximages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract:
  mode: column
  image_col: c
  start_row: 3
  embedded: false
output:
  format: jpg
  quality: 70
naming:
  policy: prefix
  start: 0
  prefix: Товар
  separator: "-"
download:
  timeout: 5s
  retries: 5
  rate: 2.5
vector:
  commands:
    - "inkscape {in} --export-filename={out}"
processing:
  log_file: false
paths:
  db: /tmp/h.sqlite
  tools:
    magick: /opt/im/magick
`), 0644))

	fc, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NotNil(t, fc)

	cfg := DefaultConfig()
	// Флаг --quality задан явно и побеждает файл.
	cfg.Quality = 95
	fc.ApplyToConfig(cfg, func(flag string) bool { return flag == "quality" })

	assert.Equal(t, ModeColumn, cfg.Mode)
	assert.Equal(t, "c", cfg.ImageColumn)
	assert.Equal(t, 3, cfg.StartRow)
	assert.False(t, cfg.Embedded)
	assert.Equal(t, imaging.FormatJPG, cfg.OutputFormat)
	assert.Equal(t, 95, cfg.Quality)
	assert.Equal(t, naming.PolicyPrefixed, cfg.Naming.Policy)
	assert.Equal(t, 0, cfg.Naming.Start)
	assert.Equal(t, "Товар", cfg.Naming.Prefix)
	assert.Equal(t, "-", cfg.Naming.Separator)
	assert.Equal(t, 5*time.Second, cfg.Download.Timeout)
	assert.Equal(t, 5, cfg.Download.Retries)
	assert.Equal(t, 2.5, cfg.Download.Rate)
	assert.Len(t, cfg.Vector.Commands, 1)
	assert.False(t, cfg.LogFile)
	assert.Equal(t, "/tmp/h.sqlite", cfg.DBPath)
	assert.Equal(t, "/opt/im/magick", cfg.ToolPaths["magick"])

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "C", cfg.ImageColumn)
}

func TestLoadFromFile_Missing(t *testing.T) {
	fc, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
	assert.Nil(t, fc)

	_, _, err = FindAndLoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract: [unclosed"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestGenerateExampleConfig_Parses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	require.NoError(t, os.WriteFile(path, []byte(GenerateExampleConfig()), 0644))

	fc, err := LoadFromFile(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.NoHistory = true
	fc.ApplyToConfig(cfg, nil)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.Download.Timeout)
}

func TestPresets_SaveLoadDelete(t *testing.T) {
	PresetsDirOverride = filepath.Join(t.TempDir(), "presets")
	t.Cleanup(func() { PresetsDirOverride = "" })

	cfg := DefaultConfig()
	cfg.Mode = ModeColumn
	cfg.ImageColumn = "D"
	cfg.Naming.Policy = naming.PolicyLinkText
	cfg.Naming.Start = 10
	cfg.OutputDir = "/not/saved"

	cfg.NameColumn = "A"

	path, err := SavePreset(" Поставщик A/1 ", cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(PresetsDirOverride, "Поставщик-A1.yaml"), path)
	assert.True(t, PresetExists("Поставщик A1"))

	presets, err := ListPresets()
	require.NoError(t, err)
	require.Len(t, presets, 1)
	assert.Equal(t, "Поставщик-A1", presets[0].Name)
	assert.Equal(t, PresetSummary{Mode: "column", Column: "D → A", Format: "png", Policy: "link"}, presets[0].Summary())

	fc, _, err := LoadPreset("Поставщик-A1")
	require.NoError(t, err)

	restored := DefaultConfig()
	fc.ApplyToConfig(restored, nil)
	assert.Equal(t, ModeColumn, restored.Mode)
	assert.Equal(t, "D", restored.ImageColumn)
	assert.Equal(t, naming.PolicyLinkText, restored.Naming.Policy)
	assert.Equal(t, 10, restored.Naming.Start)
	assert.Empty(t, restored.OutputDir)

	require.NoError(t, DeletePreset("Поставщик-A1"))
	assert.False(t, PresetExists("Поставщик-A1"))
	assert.Error(t, DeletePreset("Поставщик-A1"))

	_, err = PresetPath("???")
	assert.Error(t, err)

	presets, err = ListPresets()
	require.NoError(t, err)
	assert.Empty(t, presets)
}
