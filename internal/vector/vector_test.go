package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 77, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// emfRecord собирает запись EMF с заголовком type/size.
func emfRecord(recType uint32, body []byte) []byte {
	rec := append(le32(recType), le32(uint32(8+len(body)))...)
	return append(rec, body...)
}

// emfWithDIB строит минимальный EMF: EMR_HEADER, EMR_STRETCHDIBITS с
// 24-битным DIB w x h заданного цвета, EMR_EOF.
func emfWithDIB(w, h int, c color.RGBA) []byte {
	stride := (w*3 + 3) &^ 3
	bits := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := bits[y*stride+x*3:]
			p[0], p[1], p[2] = c.B, c.G, c.R
		}
	}

	bmi := make([]byte, 40)
	binary.LittleEndian.PutUint32(bmi[0:4], 40)
	binary.LittleEndian.PutUint32(bmi[4:8], uint32(w))
	binary.LittleEndian.PutUint32(bmi[8:12], uint32(h))
	binary.LittleEndian.PutUint16(bmi[12:14], 1)
	binary.LittleEndian.PutUint16(bmi[14:16], 24)

	// Фиксированная часть EMR_STRETCHDIBITS - 80 байт с заголовком.
	fixed := make([]byte, 72)
	binary.LittleEndian.PutUint32(fixed[40:44], 80)                // offBmiSrc
	binary.LittleEndian.PutUint32(fixed[44:48], 40)                // cbBmiSrc
	binary.LittleEndian.PutUint32(fixed[48:52], 120)               // offBitsSrc
	binary.LittleEndian.PutUint32(fixed[52:56], uint32(len(bits))) // cbBitsSrc

	body := append(fixed, bmi...)
	body = append(body, bits...)

	var out []byte
	out = append(out, emfRecord(0x01, make([]byte, 80))...)
	out = append(out, emfRecord(0x51, body)...)
	out = append(out, emfRecord(0x0E, make([]byte, 12))...)
	return out
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		want Kind
	}{
		{"emf by ext", "xl/media/image1.EMF", nil, KindEMF},
		{"wmf by ext", "image2.wmf", []byte{0x89, 'P', 'N', 'G'}, KindWMF},
		{"emf signature", "image3.bin", []byte{0x01, 0x00, 0x00, 0x00, 0x6C}, KindEMF},
		{"placeable wmf", "", []byte{0xD7, 0xCD, 0xC6, 0x9A, 0x00}, KindWMF},
		{"standard wmf", "", []byte{0x01, 0x00, 0x09, 0x00, 0x00}, KindWMF},
		{"png", "image.png", []byte{0x89, 'P', 'N', 'G'}, KindNone},
		{"short", "", []byte{0x01}, KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.file, tt.data))
		})
	}

	assert.Equal(t, ".emf", KindEMF.Ext())
	assert.Equal(t, "", KindNone.Ext())
}

type stubConverter struct {
	ok    bool
	calls int
}

func (s *stubConverter) Convert(context.Context, []byte, string, string) (image.Image, bool) {
	s.calls++
	if !s.ok {
		return nil, false
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), true
}

func TestChain(t *testing.T) {
	first := &stubConverter{}
	second := &stubConverter{ok: true}
	third := &stubConverter{ok: true}

	img, ok := Chain{first, nil, second, third}.Convert(context.Background(), nil, ".emf", "")
	require.True(t, ok)
	assert.NotNil(t, img)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls)

	_, ok = Chain{}.Convert(context.Background(), nil, ".emf", "")
	assert.False(t, ok)

	_, ok = None{}.Convert(context.Background(), nil, ".emf", "")
	assert.False(t, ok)
}

func TestEmbeddedRaster_PNGInsideEMF(t *testing.T) {
	raw := gradientPNG(t, 16, 16)
	data := append(emfRecord(0x01, make([]byte, 80)), emfRecord(0x46, raw)...) // EMR_GDICOMMENT
	data = append(data, emfRecord(0x0E, make([]byte, 12))...)

	img, ok := EmbeddedRaster{}.Convert(context.Background(), data, ".emf", "")
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
}

func TestEmbeddedRaster_StretchDIBits(t *testing.T) {
	data := emfWithDIB(16, 16, color.RGBA{R: 250, G: 10, B: 20, A: 255})
	require.Equal(t, KindEMF, Detect("", data))

	img, ok := EmbeddedRaster{}.Convert(context.Background(), data, "", "")
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	r, g, b, a := img.At(3, 5).RGBA()
	assert.Equal(t, uint32(250), r>>8)
	assert.Equal(t, uint32(10), g>>8)
	assert.Equal(t, uint32(20), b>>8)
	assert.Equal(t, uint32(0xffff), a)
}

func TestEmbeddedRaster_Garbage(t *testing.T) {
	data := append([]byte{0x01, 0x00, 0x00, 0x00}, bytes.Repeat([]byte{0xAB}, 200)...)

	_, ok := EmbeddedRaster{}.Convert(context.Background(), data, ".emf", "")
	assert.False(t, ok)
	assert.Nil(t, ExtractRaster([]byte{0xD7, 0xCD, 0xC6, 0x9A}, KindWMF))
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand(`inkscape "{in}" --export-type=png --export-filename={out}`, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "inkscape", cmd.Name)
	assert.Equal(t, []string{"{in}", "--export-type=png", "--export-filename={out}"}, cmd.Args)
	assert.Equal(t, time.Second, cmd.Timeout)

	_, err = ParseCommand("inkscape {in}", time.Second)
	assert.Error(t, err)

	_, err = ParseCommand(`broken "quote {in} {out}`, time.Second)
	assert.Error(t, err)

	_, err = ParseCommand("   ", time.Second)
	assert.Error(t, err)
}

func TestDefaultCommands(t *testing.T) {
	names := (&Tools{Commands: DefaultCommands()}).Names()
	if runtime.GOOS == "darwin" {
		assert.Equal(t, []string{"sips", "magick", "convert"}, names)
	} else {
		assert.Equal(t, []string{"magick", "convert"}, names)
	}
}

// fakeTool пишет shell-скрипт, который ведёт себя как конвертер.
func fakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestTools_Convert(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-скрипты недоступны")
	}

	bin := t.TempDir()
	scratch := t.TempDir()
	fixture := filepath.Join(bin, "result.png")
	require.NoError(t, os.WriteFile(fixture, gradientPNG(t, 8, 4), 0644))

	failing := fakeTool(t, bin, "failing", "exit 3")
	noOutput := fakeTool(t, bin, "silent", "exit 0")
	working := fakeTool(t, bin, "working", `cp "`+fixture+`" "$2"`)

	tools := &Tools{Commands: []Command{
		{Name: "failing", Path: failing, Args: []string{InputPlaceholder, OutputPlaceholder}, Timeout: 5 * time.Second},
		{Name: "silent", Path: noOutput, Args: []string{InputPlaceholder, OutputPlaceholder}, Timeout: 5 * time.Second},
		{Name: "working", Path: working, Args: []string{InputPlaceholder, OutputPlaceholder}, Timeout: 5 * time.Second},
	}}
	require.True(t, tools.Available())

	img, ok := tools.Convert(context.Background(), []byte{0x01, 0x00, 0x00, 0x00}, "emf", scratch)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	// Временные файлы удалены.
	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTools_AllFail(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-скрипты недоступны")
	}

	bin := t.TempDir()
	scratch := t.TempDir()
	failing := fakeTool(t, bin, "failing", "exit 1")

	tools := &Tools{Commands: []Command{
		{Name: "failing", Path: failing, Args: []string{InputPlaceholder, OutputPlaceholder}, Timeout: 5 * time.Second},
	}}

	_, ok := tools.Convert(context.Background(), []byte{0xD7, 0xCD, 0xC6, 0x9A}, "", scratch)
	assert.False(t, ok)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, ok = (&Tools{}).Convert(context.Background(), nil, ".emf", scratch)
	assert.False(t, ok)
}
