// Package vector конвертирует устаревшие векторные форматы Windows
// (EMF/WMF), которые не читаются растровыми декодерами, в растр.
package vector

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind - тип векторного метафайла.
type Kind string

const (
	// KindNone - данные не похожи на метафайл.
	KindNone Kind = ""
	// KindEMF - Enhanced Metafile.
	KindEMF Kind = "emf"
	// KindWMF - Windows Metafile (стандартный или placeable).
	KindWMF Kind = "wmf"
)

var (
	// emfSignature - тип первой записи EMR_HEADER.
	emfSignature = []byte{0x01, 0x00, 0x00, 0x00}

	// wmfSignatures - placeable (Aldus) и стандартный заголовок WMF.
	wmfSignatures = [][]byte{
		{0xD7, 0xCD, 0xC6, 0x9A},
		{0x01, 0x00, 0x09, 0x00},
	}
)

// Detect классифицирует данные по расширению имени, а затем по сигнатуре
// первых четырёх байт.
func Detect(name string, data []byte) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".emf":
		return KindEMF
	case ".wmf":
		return KindWMF
	}

	if len(data) < 4 {
		return KindNone
	}
	header := data[:4]

	if bytes.Equal(header, emfSignature) {
		return KindEMF
	}
	for _, sig := range wmfSignatures {
		if bytes.Equal(header, sig) {
			return KindWMF
		}
	}
	return KindNone
}

// Ext возвращает расширение файла для типа, с точкой.
func (k Kind) Ext() string {
	if k == KindNone {
		return ""
	}
	return "." + string(k)
}
