package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"

	"github.com/artemshloyda/xlsximages/internal/toolfinder"
)

// ErrNoEncoder возвращается, если для формата нет доступного кодировщика.
var ErrNoEncoder = errors.New("кодировщик не найден")

// DefaultQuality - качество JPEG по умолчанию.
const DefaultQuality = 90

// Encoder сохраняет изображения в выбранном формате.
type Encoder struct {
	// Quality - качество JPEG (1-100).
	Quality int

	// NativeWebP - кодировать WebP встроенным кодеком (libwebp под wazero).
	NativeWebP bool

	// WebPTool - внешний кодировщик WebP, запасной путь после встроенного.
	WebPTool *toolfinder.Tool

	// Timeout - таймаут внешнего кодировщика.
	Timeout time.Duration
}

// NewEncoder создаёт Encoder с качеством quality.
func NewEncoder(quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{
		Quality:    quality,
		NativeWebP: true,
		Timeout:    30 * time.Second,
	}
}

// Supports сообщает, может ли Encoder записать формат.
func (e *Encoder) Supports(format Format) bool {
	if format == FormatWebP {
		return e.NativeWebP || e.WebPTool != nil
	}
	for _, f := range Formats() {
		if f == format {
			return true
		}
	}
	return false
}

// Save записывает изображение в path. Запись атомарная: данные пишутся во
// временный файл рядом и переименовываются. Возвращает размер файла.
func (e *Encoder) Save(ctx context.Context, img image.Image, path string, format Format) (int64, error) {
	if !e.Supports(format) {
		return 0, errors.Wrapf(ErrNoEncoder, "формат %s", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.Wrapf(err, "не удалось создать директорию %s", filepath.Dir(path))
	}

	img = prepare(img, format)

	ext := filepath.Ext(path)
	tmpPath := strings.TrimSuffix(path, ext) + ".saving" + ext

	var err error
	if format == FormatWebP {
		err = e.encodeWebP(ctx, img, tmpPath)
	} else {
		err = e.writeFile(img, tmpPath, format)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, errors.Wrapf(err, "не удалось переименовать %s -> %s", tmpPath, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}

func (e *Encoder) writeFile(img image.Image, path string, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "не удалось создать %s", path)
	}

	if err := e.Encode(f, img, format); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "не удалось записать %s", path)
}

// Encode кодирует изображение кодеками стандартной библиотеки и x/image.
// WebP кодируется отдельно, в encodeWebP.
func (e *Encoder) Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch {
	case format.IsJPEG():
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: e.Quality})
	case format == FormatPNG:
		err = png.Encode(w, img)
	case format == FormatGIF:
		err = gif.Encode(w, img, nil)
	case format == FormatBMP:
		err = bmp.Encode(w, img)
	default:
		return errors.Wrapf(ErrNoEncoder, "формат %s", format)
	}
	return errors.Wrapf(err, "ошибка кодирования %s", format)
}

// encodeWebP кодирует встроенным кодеком, при его ошибке - внешним.
func (e *Encoder) encodeWebP(ctx context.Context, img image.Image, dst string) error {
	if e.NativeWebP {
		err := e.writeNativeWebP(img, dst)
		if err == nil || e.WebPTool == nil {
			return err
		}
		_ = os.Remove(dst)
	}
	return e.encodeWebPTool(ctx, img, dst)
}

func (e *Encoder) writeNativeWebP(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "не удалось создать %s", path)
	}
	if err := webp.Encode(f, img, webp.Options{Quality: e.Quality}); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "ошибка кодирования webp")
	}
	return errors.Wrapf(f.Close(), "не удалось записать %s", path)
}

// encodeWebPTool сохраняет промежуточный PNG и передаёт его внешнему кодировщику.
func (e *Encoder) encodeWebPTool(ctx context.Context, img image.Image, dst string) error {
	src := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".src.png"
	defer func() { _ = os.Remove(src) }()

	if err := e.writeFile(img, src, FormatPNG); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.WebPTool.Path, webpArgs(e.WebPTool.Name, src, dst, e.Quality)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg = fmt.Sprintf("%s: %s", msg, strings.TrimSpace(stderr.String()))
		}
		return errors.Newf("%s: %s", e.WebPTool.Name, msg)
	}
	return nil
}

// WebPTools - кандидаты на роль кодировщика WebP в порядке приоритета.
var WebPTools = []string{"cwebp", "vips", "magick", "convert"}

// webpArgs строит аргументы командной строки для конкретного кодировщика.
func webpArgs(tool, src, dst string, quality int) []string {
	q := fmt.Sprintf("%d", quality)
	switch tool {
	case "cwebp":
		return []string{"-quiet", "-q", q, src, "-o", dst}
	case "vips":
		// vips определяет формат по расширению, параметры - в квадратных скобках
		return []string{"copy", src, fmt.Sprintf("%s[Q=%s]", dst, q)}
	default:
		return []string{src, "-quality", q, dst}
	}
}
