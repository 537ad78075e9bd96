package workbook

import (
	"strings"

	"github.com/artemshloyda/xlsximages/internal/naming"
)

// ColumnKind - что содержит столбец с картинками.
type ColumnKind string

const (
	ColumnImages ColumnKind = "images"
	ColumnURLs   ColumnKind = "urls"
	ColumnMixed  ColumnKind = "mixed"
	ColumnEmpty  ColumnKind = "empty"
)

// DefaultSampleRows - сколько строк просматривает DetectColumn по умолчанию.
const DefaultSampleRows = 5

// ColumnReport - результат просмотра первых строк столбца.
type ColumnReport struct {
	Kind    ColumnKind
	Rows    int
	Images  int
	URLs    int
	LastRow int
}

// DetectColumn просматривает до sample строк столбца column начиная со
// startRow и определяет, лежат ли в нём картинки, ссылки или и то и другое.
func DetectColumn(s *Sheet, column string, startRow, sample int) (ColumnReport, error) {
	if sample <= 0 {
		sample = DefaultSampleRows
	}

	last, err := s.LastRow()
	if err != nil {
		return ColumnReport{}, err
	}
	report := ColumnReport{LastRow: last}

	pictureRows := make(map[string]bool)
	cells, err := s.PictureCells()
	if err != nil {
		return ColumnReport{}, err
	}
	for _, c := range cells {
		pictureRows[strings.ToUpper(c)] = true
	}

	for row := startRow; row <= last && report.Rows < sample; row++ {
		report.Rows++
		cell := CellName(column, row)

		if pictureRows[cell] {
			report.Images++
			continue
		}

		if target, ok, err := s.Hyperlink(cell); err == nil && ok && naming.IsURL(target) {
			report.URLs++
			continue
		}
		if text, err := s.CellText(cell); err == nil && naming.IsURL(text) {
			report.URLs++
		}
	}

	switch {
	case report.Images > 0 && report.URLs > 0:
		report.Kind = ColumnMixed
	case report.Images > 0:
		report.Kind = ColumnImages
	case report.URLs > 0:
		report.Kind = ColumnURLs
	default:
		report.Kind = ColumnEmpty
	}
	return report, nil
}
