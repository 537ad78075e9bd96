package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/artemshloyda/xlsximages/internal/config"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	config.PresetsDirOverride = filepath.Join(home, "presets")
	t.Cleanup(func() { config.PresetsDirOverride = "" })
}

func pictureBook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	// Разные картинки: одинаковые excelize хранит одним медиафайлом.
	for i, cell := range []string{"B2", "B3"} {
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		img.SetNRGBA(i, i, color.NRGBA{R: 255, A: 255})
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))

		require.NoError(t, f.AddPictureFromBytes("Sheet1", cell, &excelize.Picture{
			Extension: ".png", File: buf.Bytes(), Format: &excelize.GraphicOptions{},
		}))
	}
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Чайник"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "Кружка"))

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestVersionAndConfigInit(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "xlsximages dev")

	out, _, err = run(t, "version", "--tools", "--tool", "magick="+filepath.Join(t.TempDir(), "нет"))
	require.NoError(t, err)
	assert.Contains(t, out, "magick")
	assert.Contains(t, out, "cwebp")

	out, _, err = run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "extract:")

	target := filepath.Join(t.TempDir(), "xlsximages.yaml")
	_, _, err = run(t, "config", "init", "-o", target)
	require.NoError(t, err)
	_, _, err = run(t, "config", "init", "-o", target)
	assert.Error(t, err, "существующий файл не перезаписывается")
}

func TestExtract_AllModeWithHistory(t *testing.T) {
	isolate(t)
	book := pictureBook(t)
	outDir := filepath.Join(t.TempDir(), "images")
	db := filepath.Join(t.TempDir(), "history.sqlite")

	_, stderr, err := run(t, book, "--out", outDir, "--db", db, "--no-progress", "--prefix", "Фото", "--naming", "prefix")
	require.NoError(t, err, stderr)

	for _, name := range []string{"Фото_1.png", "Фото_2.png"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
	logs, err := filepath.Glob(filepath.Join(outDir, "xlsximages_*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	out, _, err := run(t, "stats", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Запусков: 1")
	assert.Contains(t, out, "Изображений сохранено: 2")

	out, _, err = run(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "catalog.xlsx")
}

func TestExtract_ColumnModeByNameColumn(t *testing.T) {
	isolate(t)
	book := pictureBook(t)
	outDir := filepath.Join(t.TempDir(), "images")

	_, stderr, err := run(t, book, "--out", outDir, "--no-history", "--no-log-file", "--no-progress",
		"--mode", "column", "--image-col", "B", "--name-col", "A", "--format", "jpg")
	require.NoError(t, err, stderr)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"Чайник.jpg", "Кружка.jpg"}, names)
}

func TestExtract_Errors(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "--no-history")
	assert.Error(t, err)

	_, _, err = run(t, pictureBook(t), "--no-history", "--mode", "rows")
	assert.ErrorContains(t, err, "неизвестный режим")

	_, _, err = run(t, pictureBook(t), "--no-history", "--mode", "column")
	assert.ErrorContains(t, err, "столбец")

	_, stderr, err := run(t, pictureBook(t), "--no-history", "--no-progress", "--no-log-file", "--sheet", "Нет")
	assert.Error(t, err)
	assert.Contains(t, stderr, "лист не найден")
}

func TestSheetsAndInspect(t *testing.T) {
	isolate(t)
	book := pictureBook(t)

	out, _, err := run(t, "sheets", book)
	require.NoError(t, err)
	assert.Contains(t, out, "Sheet1")
	assert.Contains(t, out, "медиафайлов 2")

	out, _, err = run(t, "inspect", book, "--image-col", "B", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "В столбце картинки")
}

func TestPresetsRoundTrip(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "--mode", "column", "--image-col", "C", "--naming", "link", "--save-preset", "supplier", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "Пресет 'supplier' сохранён")

	out, _, err = run(t, "presets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "supplier")
	assert.Contains(t, out, "link")

	out, _, err = run(t, "presets", "show", "supplier")
	require.NoError(t, err)
	assert.Contains(t, out, "image_col: C")

	_, _, err = run(t, "presets", "delete", "supplier")
	require.NoError(t, err)
	_, _, err = run(t, "presets", "delete", "supplier")
	assert.Error(t, err)
}
