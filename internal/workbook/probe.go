package workbook

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/richardlehane/mscfb"
)

var (
	// ErrEncrypted - книга защищена паролем (OOXML внутри OLE-контейнера).
	ErrEncrypted = errors.New("книга зашифрована")

	// ErrLegacyXLS - файл в старом двоичном формате Excel 97-2003.
	ErrLegacyXLS = errors.New("старый формат .xls не поддерживается")
)

// oleSignature - сигнатура составного документа OLE2.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Probe распознаёт файлы, которые выглядят как книга Excel, но не являются
// zip-пакетом. Возвращает ErrEncrypted или ErrLegacyXLS с подсказкой,
// либо nil, если файл не OLE-контейнер.
func Probe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	header := make([]byte, len(oleSignature))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, oleSignature) {
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil
	}

	doc, err := mscfb.New(f)
	if err != nil {
		return nil
	}

	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptionInfo", "EncryptedPackage":
			return errors.WithHint(errors.Wrapf(ErrEncrypted, "%s", path),
				"снимите пароль в Excel (Файл → Сведения → Защита книги) и сохраните копию")
		case "Workbook", "Book":
			return errors.WithHint(errors.Wrapf(ErrLegacyXLS, "%s", path),
				"пересохраните файл в формате .xlsx")
		}
	}
	return nil
}
