package workbook

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound возвращается, если в книге нет листа с таким именем.
var ErrSheetNotFound = errors.New("лист не найден")

// Workbook - открытая книга.
type Workbook struct {
	path string
	f    *excelize.File
}

// Open открывает книгу для чтения значений ячеек и картинок.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if perr := Probe(path); perr != nil {
			return nil, perr
		}
		return nil, errors.WithHint(
			errors.Wrapf(err, "не удалось открыть книгу %s", filepath.Base(path)),
			"проверьте, что файл - книга Excel .xlsx и не открыт с блокировкой",
		)
	}
	return &Workbook{path: path, f: f}, nil
}

// Path возвращает путь к файлу книги.
func (w *Workbook) Path() string {
	return w.path
}

// SheetNames возвращает имена листов в порядке книги.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Sheet возвращает лист по имени. Пустое имя означает первый лист.
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	names := w.SheetNames()
	if len(names) == 0 {
		return nil, errors.Wrap(ErrSheetNotFound, "в книге нет листов")
	}

	if name == "" {
		return &Sheet{f: w.f, name: names[0]}, nil
	}

	if idx, err := w.f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, errors.WithHintf(errors.Wrapf(ErrSheetNotFound, "%q", name),
			"доступные листы: %s", strings.Join(names, ", "))
	}
	return &Sheet{f: w.f, name: name}, nil
}

// Close закрывает книгу и удаляет временные файлы excelize.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Sheet - лист книги. Реализует доступ к ячейкам и к картинкам в ячейках.
type Sheet struct {
	f    *excelize.File
	name string
}

// Name возвращает имя листа.
func (s *Sheet) Name() string {
	return s.name
}

// LastRow возвращает номер последней строки, в которой есть значение
// или привязанная к ячейке картинка. 0 - лист пуст.
func (s *Sheet) LastRow() (int, error) {
	rows, err := s.f.GetRows(s.name)
	if err != nil {
		return 0, errors.Wrapf(err, "не удалось прочитать строки листа %q", s.name)
	}

	last := 0
	for i := len(rows) - 1; i >= 0; i-- {
		if rowHasValue(rows[i]) {
			last = i + 1
			break
		}
	}

	cells, err := s.PictureCells()
	if err != nil {
		return 0, err
	}
	for _, cell := range cells {
		_, row, err := excelize.CellNameToCoordinates(cell)
		if err == nil && row > last {
			last = row
		}
	}
	return last, nil
}

// PictureCells возвращает ячейки, к которым привязаны картинки.
func (s *Sheet) PictureCells() ([]string, error) {
	cells, err := s.f.GetPictureCells(s.name)
	if err != nil {
		return nil, errors.Wrapf(err, "не удалось получить картинки листа %q", s.name)
	}
	return cells, nil
}

// CellText возвращает отображаемое значение ячейки.
func (s *Sheet) CellText(cell string) (string, error) {
	v, err := s.f.GetCellValue(s.name, cell)
	if err != nil {
		return "", errors.Wrapf(err, "ячейка %s", cell)
	}
	return v, nil
}

// Hyperlink возвращает адрес гиперссылки ячейки.
func (s *Sheet) Hyperlink(cell string) (string, bool, error) {
	ok, target, err := s.f.GetCellHyperLink(s.name, cell)
	if err != nil {
		return "", false, errors.Wrapf(err, "гиперссылка ячейки %s", cell)
	}
	return target, ok && target != "", nil
}

// Supported сообщает, что лист умеет искать картинки в ячейках.
func (s *Sheet) Supported() bool {
	return true
}

// ImageAt возвращает первую картинку, привязанную к ячейке: байты и
// расширение с точкой.
func (s *Sheet) ImageAt(cell string) ([]byte, string, bool, error) {
	pics, err := s.f.GetPictures(s.name, cell)
	if err != nil {
		return nil, "", false, errors.Wrapf(err, "картинка в ячейке %s", cell)
	}
	for _, p := range pics {
		if len(p.File) > 0 {
			return p.File, p.Extension, true, nil
		}
	}
	return nil, "", false, nil
}

// NoCellImages - реализация поиска картинок для случая, когда он
// отключён: Supported возвращает false.
type NoCellImages struct{}

// Supported реализует extract.CellImages.
func (NoCellImages) Supported() bool { return false }

// ImageAt реализует extract.CellImages.
func (NoCellImages) ImageAt(string) ([]byte, string, bool, error) {
	return nil, "", false, nil
}

// SheetInfo - краткая сводка по листу.
type SheetInfo struct {
	Name     string
	LastRow  int
	Pictures int
}

// Describe возвращает сводку по всем листам книги.
func (w *Workbook) Describe() ([]SheetInfo, error) {
	var infos []SheetInfo
	for _, name := range w.SheetNames() {
		s := &Sheet{f: w.f, name: name}

		last, err := s.LastRow()
		if err != nil {
			return nil, err
		}
		cells, err := s.PictureCells()
		if err != nil {
			return nil, err
		}
		infos = append(infos, SheetInfo{Name: name, LastRow: last, Pictures: len(cells)})
	}
	return infos, nil
}

func rowHasValue(row []string) bool {
	for _, v := range row {
		if v != "" {
			return true
		}
	}
	return false
}

// CellName собирает ссылку на ячейку из буквы столбца и номера строки.
func CellName(column string, row int) string {
	return strings.ToUpper(strings.TrimSpace(column)) + strconv.Itoa(row)
}
