// Package imaging оборачивает декодирование и сохранение растровых
// изображений: стандартные кодеки, golang.org/x/image и внешний
// кодировщик WebP.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strings"

	// Регистрация декодеров.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cockroachdb/errors"
)

// Format определяет выходной формат изображения.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatGIF  Format = "gif"
)

// ErrUnsupportedFormat возвращается для неизвестного выходного формата.
var ErrUnsupportedFormat = errors.New("неподдерживаемый формат изображения")

// Formats возвращает список поддерживаемых выходных форматов.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPG, FormatJPEG, FormatWebP, FormatBMP, FormatGIF}
}

// ParseFormat нормализует строку формата.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
}

// IsJPEG сообщает, требует ли формат JPEG-кодирования.
func (f Format) IsJPEG() bool {
	return f == FormatJPG || f == FormatJPEG
}

// Decode декодирует растровые данные любого зарегистрированного формата.
// Возвращает изображение и имя формата ("png", "jpeg", "webp", ...).
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "не удалось декодировать изображение")
	}
	return img, format, nil
}

// prepare приводит цветовую модель к требованиям выходного формата:
// для JPEG альфа-канал и палитра отбрасываются, для PNG палитра
// расширяется до NRGBA с сохранением прозрачности.
func prepare(img image.Image, format Format) image.Image {
	switch {
	case format.IsJPEG():
		if m, ok := img.(*image.NYCbCrA); ok {
			return &m.YCbCr
		}
		if !isOpaque(img) {
			return flatten(img)
		}
	case format == FormatPNG:
		if p, ok := img.(*image.Paletted); ok {
			out := image.NewNRGBA(p.Bounds())
			draw.Draw(out, out.Bounds(), p, p.Bounds().Min, draw.Src)
			return out
		}
	}
	return img
}

// isOpaque сообщает, что у изображения нет прозрачных пикселей.
// Типы без метода Opaque считаются прозрачными.
func isOpaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}

// flatten отбрасывает альфа-канал, сохраняя исходные (не умноженные на
// альфу) значения каналов.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}
