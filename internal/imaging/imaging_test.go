package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"PNG", FormatPNG, false},
		{".jpg", FormatJPG, false},
		{" jpeg ", FormatJPEG, false},
		{"webp", FormatWebP, false},
		{"tiff", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	data := pngBytes(t, testImage(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))

	img, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	_, _, err = Decode([]byte{0x01, 0x00, 0x00, 0x00, 0x42})
	assert.Error(t, err)
}

func TestPrepare_JPEGDropsAlpha(t *testing.T) {
	img := testImage(2, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 10})

	out := prepare(img, FormatJPG)
	r, g, b, a := out.At(0, 0).RGBA()

	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, uint32(200), r>>8)
	assert.Equal(t, uint32(100), g>>8)
	assert.Equal(t, uint32(50), b>>8)
}

func TestPrepare_JPEGKeepsColorUnderTransparentYCbCr(t *testing.T) {
	img := image.NewNYCbCrA(image.Rect(0, 0, 8, 8), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = 255
	}
	for i := range img.Cb {
		img.Cb[i], img.Cr[i] = 128, 128
	}
	// A по умолчанию 0: пиксели полностью прозрачные.

	out := prepare(img, FormatJPG)
	_, _, _, a := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(95).Encode(&buf, out, FormatJPG))
	decoded, _, err := Decode(buf.Bytes())
	require.NoError(t, err)

	r, g, b, _ := decoded.At(4, 4).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestPrepare_JPEGOpaqueUntouched(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	assert.Same(t, gray, prepare(gray, FormatJPG))

	alpha := image.NewAlpha(image.Rect(0, 0, 2, 2))
	_, ok := prepare(alpha, FormatJPG).(*image.RGBA)
	assert.True(t, ok, "прозрачный Alpha сводится к RGB")

	opaque := testImage(2, 2, color.NRGBA{R: 1, A: 255})
	assert.Same(t, opaque, prepare(opaque, FormatJPG))
}

func TestPrepare_PNGExpandsPalette(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Transparent, color.White})
	pal.SetColorIndex(1, 1, 1)

	out := prepare(pal, FormatPNG)
	_, ok := out.(*image.NRGBA)
	require.True(t, ok)

	_, _, _, a := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestEncoder_Save(t *testing.T) {
	dir := t.TempDir()
	enc := NewEncoder(85)
	img := testImage(8, 8, color.NRGBA{R: 1, G: 2, B: 3, A: 128})

	for _, format := range []Format{FormatPNG, FormatJPG, FormatJPEG, FormatGIF, FormatBMP} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(dir, "out."+string(format))

			size, err := enc.Save(context.Background(), img, path, format)
			require.NoError(t, err)
			assert.Positive(t, size)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			decoded, _, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds(), decoded.Bounds())
		})
	}

	// Временные файлы не остаются.
	matches, err := filepath.Glob(filepath.Join(dir, "*.saving.*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEncoder_WebPNative(t *testing.T) {
	enc := NewEncoder(80)
	require.True(t, enc.Supports(FormatWebP))

	path := filepath.Join(t.TempDir(), "x.webp")
	img := testImage(6, 4, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
	size, err := enc.Save(context.Background(), img, path, FormatWebP)
	require.NoError(t, err)
	assert.Positive(t, size)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestEncoder_WebPWithoutEncoder(t *testing.T) {
	enc := NewEncoder(0)
	enc.NativeWebP = false
	assert.Equal(t, DefaultQuality, enc.Quality)
	assert.False(t, enc.Supports(FormatWebP))

	_, err := enc.Save(context.Background(), testImage(1, 1, color.NRGBA{A: 255}),
		filepath.Join(t.TempDir(), "x.webp"), FormatWebP)
	assert.True(t, errors.Is(err, ErrNoEncoder))
}

func TestWebPArgs(t *testing.T) {
	assert.Equal(t, []string{"-quiet", "-q", "80", "in.png", "-o", "out.webp"},
		webpArgs("cwebp", "in.png", "out.webp", 80))
	assert.Equal(t, []string{"copy", "in.png", "out.webp[Q=80]"},
		webpArgs("vips", "in.png", "out.webp", 80))
	assert.Equal(t, []string{"in.png", "-quality", "80", "out.webp"},
		webpArgs("magick", "in.png", "out.webp", 80))
}
