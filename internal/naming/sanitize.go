package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxNameLength - максимальная длина имени в символах.
	MaxNameLength = 100

	// Ellipsis добавляется к обрезанному имени.
	Ellipsis = "..."

	// Untitled подставляется вместо пустого имени.
	Untitled = "untitled"
)

// forbidden - символы, недопустимые в именах файлов Windows/macOS/Linux.
var forbidden = strings.NewReplacer(
	`\`, "_", "/", "_", "*", "_", "?", "_", ":", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
	"\r", "_", "\n", "_", "\t", "_",
)

// Sanitize превращает произвольную строку в безопасное имя файла:
// запрещённые символы заменяются на "_", пробелы по краям и точки в конце
// удаляются, длина ограничивается MaxNameLength (обрезанное имя
// заканчивается на "..."), пустой результат заменяется на Untitled.
//
// Повторное применение не меняет результат: имя ровно максимальной длины,
// оканчивающееся на "...", считается уже обрезанным.
func Sanitize(name string) string {
	name = forbidden.Replace(name)
	name = strings.TrimLeftFunc(name, unicode.IsSpace)

	if !isTruncated(name) {
		name = strings.TrimRightFunc(name, func(r rune) bool {
			return r == '.' || unicode.IsSpace(r)
		})
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		runes := []rune(name)
		name = string(runes[:MaxNameLength-utf8.RuneCountInString(Ellipsis)]) + Ellipsis
	}

	if name == "" {
		return Untitled
	}
	return name
}

func isTruncated(name string) bool {
	return utf8.RuneCountInString(name) == MaxNameLength && strings.HasSuffix(name, Ellipsis)
}

// IsURL сообщает, является ли строка ссылкой на скачиваемое изображение.
// Принимаются только http:// и https://.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
