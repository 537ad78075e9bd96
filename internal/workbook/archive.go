// Package workbook даёт доступ к содержимому книги .xlsx: медиафайлам
// внутри zip-контейнера, значениям и гиперссылкам ячеек, картинкам,
// привязанным к ячейкам.
package workbook

import (
	"archive/zip"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// MediaPrefix - каталог медиафайлов внутри пакета OOXML.
const MediaPrefix = "xl/media/"

var digitRun = regexp.MustCompile(`\d+`)

// Media - один медиафайл из xl/media/.
type Media struct {
	// Name - полный путь внутри архива, например xl/media/image3.png.
	Name string

	// Key - ключ сортировки: последнее число в имени, 0 если чисел нет.
	Key int

	// Size - размер в распакованном виде.
	Size uint64

	file *zip.File
}

// Read читает содержимое медиафайла целиком.
func (m Media) Read() ([]byte, error) {
	if m.file == nil {
		return nil, errors.Newf("%s: архив не открыт", m.Name)
	}
	rc, err := m.file.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "не удалось открыть %s", m.Name)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "не удалось прочитать %s", m.Name)
	}
	return data, nil
}

// Archive - открытый zip-контейнер книги.
type Archive struct {
	rc *zip.ReadCloser
}

// OpenArchive открывает книгу как zip-архив. Если файл не является
// zip, пробует распознать зашифрованную книгу или старый .xls.
func OpenArchive(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		if perr := Probe(path); perr != nil {
			return nil, perr
		}
		return nil, errors.Wrapf(err, "не удалось открыть архив %s", path)
	}
	return &Archive{rc: rc}, nil
}

// Media возвращает медиафайлы, упорядоченные по ключу. Порядок файлов
// с одинаковым ключом сохраняется.
func (a *Archive) Media() []Media {
	var media []Media
	for _, f := range a.rc.File {
		if !strings.HasPrefix(f.Name, MediaPrefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		media = append(media, Media{
			Name: f.Name,
			Key:  SortKey(f.Name),
			Size: f.UncompressedSize64,
			file: f,
		})
	}

	sort.SliceStable(media, func(i, j int) bool {
		return media[i].Key < media[j].Key
	})
	return media
}

// Close закрывает архив.
func (a *Archive) Close() error {
	return a.rc.Close()
}

// ListMedia возвращает имена медиафайлов книги в порядке извлечения.
func ListMedia(path string) ([]string, error) {
	a, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var names []string
	for _, m := range a.Media() {
		names = append(names, m.Name)
	}
	return names, nil
}

// SortKey возвращает последнее число в пути или 0.
func SortKey(name string) int {
	runs := digitRun.FindAllString(name, -1)
	if len(runs) == 0 {
		return 0
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0
	}
	return n
}
