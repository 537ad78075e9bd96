package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"

	"github.com/artemshloyda/xlsximages/internal/imaging"
)

// minRasterSize отсекает случайные совпадения сигнатур в мусоре.
const minRasterSize = 64

// EmbeddedRaster извлекает растр, завёрнутый в метафайл, без внешних
// утилит. Excel и WPS часто сохраняют вставленные картинки как EMF/WMF,
// содержащий единственный JPEG/PNG или DIB.
type EmbeddedRaster struct{}

// Convert реализует Converter.
func (EmbeddedRaster) Convert(_ context.Context, data []byte, ext, _ string) (image.Image, bool) {
	raw := ExtractRaster(data, Detect(ext, data))
	if raw == nil {
		return nil, false
	}
	img, _, err := imaging.Decode(raw)
	if err != nil {
		return nil, false
	}
	return img, true
}

// ExtractRaster возвращает байты JPEG/PNG, найденные внутри метафайла,
// или nil.
//
// Порядок: поиск JPEG/PNG по сигнатурам (работает для обоих форматов),
// затем записи с DIB: EMR_STRETCHDIBITS/EMR_SETDIBITSTODEVICE для EMF,
// META_STRETCHDIB/META_DIBSTRETCHBLT для WMF.
func ExtractRaster(data []byte, kind Kind) []byte {
	if img := findEmbeddedRaster(data); img != nil {
		return img
	}

	switch kind {
	case KindEMF:
		return extractDIBFromEMF(data)
	case KindWMF:
		return extractDIBFromWMF(data)
	}
	return nil
}

// findEmbeddedRaster ищет самый большой JPEG или PNG внутри данных.
func findEmbeddedRaster(data []byte) []byte {
	var best []byte

	for i := 0; i+3 <= len(data); i++ {
		if data[i] == 0xFF && data[i+1] == 0xD8 && data[i+2] == 0xFF {
			if end := findJPEGEnd(data[i:]); end > len(best) {
				best = data[i : i+end]
			}
		}
	}

	for i := 0; i+8 <= len(data); i++ {
		if data[i] == 0x89 && data[i+1] == 'P' && data[i+2] == 'N' && data[i+3] == 'G' {
			if end := findPNGEnd(data[i:]); end > len(best) {
				best = data[i : i+end]
			}
		}
	}

	if len(best) >= minRasterSize {
		return append([]byte(nil), best...)
	}
	return nil
}

// findJPEGEnd возвращает длину JPEG до маркера EOI (FF D9) или 0.
func findJPEGEnd(data []byte) int {
	for i := 2; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1] == 0xD9 {
			return i + 2
		}
	}
	return 0
}

// findPNGEnd возвращает длину PNG до конца чанка IEND (включая CRC) или 0.
func findPNGEnd(data []byte) int {
	iend := []byte("IEND")
	for i := 8; i+8 <= len(data); i++ {
		if bytes.Equal(data[i:i+4], iend) {
			return i + 8
		}
	}
	return 0
}

// extractDIBFromEMF перебирает записи EMF и конвертирует самый большой DIB.
func extractDIBFromEMF(data []byte) []byte {
	var best []byte

	for pos := 0; pos+8 <= len(data); {
		recType := binary.LittleEndian.Uint32(data[pos : pos+4])
		recSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		if recSize < 8 || int(recSize) > len(data)-pos {
			break
		}
		rec := data[pos : pos+int(recSize)]

		switch recType {
		case 0x51, 0x50: // EMR_STRETCHDIBITS, EMR_SETDIBITSTODEVICE
			if dib := dibFromBitsRecord(rec, recType); len(dib) > len(best) {
				best = dib
			}
		}
		pos += int(recSize)
	}

	if len(best) < minRasterSize {
		return nil
	}
	return dibToPNG(best)
}

// dibFromBitsRecord достаёт BITMAPINFO + пиксели из записи EMF.
// Смещения offBmiSrc/cbBmiSrc/offBitsSrc/cbBitsSrc у обеих записей
// лежат по одинаковым адресам 48..64.
func dibFromBitsRecord(rec []byte, recType uint32) []byte {
	minLen := 76
	if recType == 0x51 {
		minLen = 80
	}
	if len(rec) < minLen {
		return nil
	}

	offBmi := binary.LittleEndian.Uint32(rec[48:52])
	cbBmi := binary.LittleEndian.Uint32(rec[52:56])
	offBits := binary.LittleEndian.Uint32(rec[56:60])
	cbBits := binary.LittleEndian.Uint32(rec[60:64])

	if cbBmi == 0 || cbBits == 0 {
		return nil
	}
	if uint64(offBmi)+uint64(cbBmi) > uint64(len(rec)) || uint64(offBits)+uint64(cbBits) > uint64(len(rec)) {
		return nil
	}

	dib := make([]byte, 0, cbBmi+cbBits)
	dib = append(dib, rec[offBmi:offBmi+cbBmi]...)
	return append(dib, rec[offBits:offBits+cbBits]...)
}

// extractDIBFromWMF перебирает записи WMF в поисках DIB.
func extractDIBFromWMF(data []byte) []byte {
	pos := 0
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) == 0x9AC6CDD7 {
		pos = 22 // placeable-заголовок
	}
	if pos+18 > len(data) {
		return nil
	}
	pos += int(binary.LittleEndian.Uint16(data[pos+2:pos+4])) * 2

	var best []byte
	for pos+6 <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[pos:pos+4])) * 2
		fn := binary.LittleEndian.Uint16(data[pos+4 : pos+6])
		if size < 6 || pos+size > len(data) || fn == 0x0000 {
			break
		}
		rec := data[pos : pos+size]

		switch fn {
		case 0x0F43, 0x0B41: // META_STRETCHDIB, META_DIBSTRETCHBLT
			// заголовок записи (6) + параметры (22), дальше DIB
			if len(rec) > 28 && len(rec)-28 > len(best) {
				best = append([]byte(nil), rec[28:]...)
			}
		}
		pos += size
	}

	if len(best) < minRasterSize {
		return nil
	}
	return dibToPNG(best)
}

// dibToPNG конвертирует DIB (BITMAPINFOHEADER + пиксели) в PNG.
// Поддерживаются несжатые 24/32-битные DIB и DIB с вложенным JPEG/PNG.
func dibToPNG(dib []byte) []byte {
	if len(dib) < 40 {
		return nil
	}

	hdrSize := binary.LittleEndian.Uint32(dib[0:4])
	width := int32(binary.LittleEndian.Uint32(dib[4:8]))
	height := int32(binary.LittleEndian.Uint32(dib[8:12]))
	bitCount := binary.LittleEndian.Uint16(dib[14:16])
	compression := binary.LittleEndian.Uint32(dib[16:20])

	if int(hdrSize) >= len(dib) {
		return nil
	}
	pixels := dib[hdrSize:]

	// BI_JPEG (4), BI_PNG (5)
	if compression == 4 || compression == 5 {
		if len(pixels) >= minRasterSize {
			return append([]byte(nil), pixels...)
		}
		return nil
	}

	if compression != 0 || (bitCount != 24 && bitCount != 32) {
		return nil
	}

	w, h := int(width), int(height)
	topDown := h < 0
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	if w == 0 || h == 0 || w > 20000 || h > 20000 {
		return nil
	}

	bpp := int(bitCount) / 8
	stride := (w*bpp + 3) &^ 3
	if len(pixels) < stride*h {
		return nil
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcY := h - 1 - y
		if topDown {
			srcY = y
		}
		row := pixels[srcY*stride:]
		for x := 0; x < w; x++ {
			px := row[x*bpp:]
			a := uint8(0xff)
			if bpp == 4 && px[3] != 0 {
				a = px[3]
			}
			img.SetNRGBA(x, y, color.NRGBA{R: px[2], G: px[1], B: px[0], A: a})
		}
	}

	var buf bytes.Buffer
	if err := imaging.NewEncoder(0).Encode(&buf, img, imaging.FormatPNG); err != nil {
		return nil
	}
	return buf.Bytes()
}
