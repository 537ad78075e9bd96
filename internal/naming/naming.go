// Package naming отвечает за имена выходных файлов: политики именования,
// очистку пользовательских строк и подбор свободного пути.
package naming

import (
	"strconv"
	"strings"
)

// Policy определяет политику именования изображений.
type Policy string

const (
	// PolicySequential - порядковый номер: 1, 2, 3.
	PolicySequential Policy = "seq"
	// PolicyPrefixed - префикс + разделитель + номер: Image_1, Image_2.
	PolicyPrefixed Policy = "prefix"
	// PolicyLinkText - текст ссылки/ячейки, при его отсутствии - номер.
	PolicyLinkText Policy = "link"
	// PolicyTemplate - шаблон с подстановкой {n}: img_{n}.
	PolicyTemplate Policy = "template"
)

const (
	// DefaultPrefix используется, когда префикс не задан.
	DefaultPrefix = "Image"

	// DefaultTemplate используется, когда шаблон не задан.
	DefaultTemplate = "img_{n}"

	// Placeholder - подстановка номера в шаблоне.
	Placeholder = "{n}"
)

// Policies возвращает все поддерживаемые политики.
func Policies() []Policy {
	return []Policy{PolicySequential, PolicyPrefixed, PolicyLinkText, PolicyTemplate}
}

// Valid проверяет, что политика известна.
func (p Policy) Valid() bool {
	for _, known := range Policies() {
		if p == known {
			return true
		}
	}
	return false
}

// Naming содержит политику именования и её параметры.
type Naming struct {
	// Policy - выбранная политика.
	Policy Policy

	// Start - стартовый номер счётчика.
	Start int

	// Prefix - префикс для PolicyPrefixed.
	Prefix string

	// Separator - разделитель между префиксом и номером.
	Separator string

	// Template - шаблон для PolicyTemplate. Без {n} номер не подставляется.
	Template string
}

// Resolve возвращает базовое имя файла (без расширения) для текущего
// значения счётчика. linkText учитывается только политикой PolicyLinkText.
// Результат никогда не бывает пустым.
func (n Naming) Resolve(counter int, linkText string) string {
	num := strconv.Itoa(counter)

	switch n.Policy {
	case PolicyPrefixed:
		prefix := n.Prefix
		if prefix == "" {
			prefix = DefaultPrefix
		}
		return Sanitize(prefix + n.Separator + num)

	case PolicyLinkText:
		if strings.TrimSpace(linkText) != "" {
			return Sanitize(linkText)
		}
		return num

	case PolicyTemplate:
		tpl := n.Template
		if tpl == "" {
			tpl = DefaultTemplate
		}
		// Без {n} номер теряется, совпадения разрешает UniquePath.
		return Sanitize(strings.ReplaceAll(tpl, Placeholder, num))
	}

	return num
}

// Counter - счётчик именования одного запуска.
// Увеличивается только после успешно сохранённого изображения.
type Counter struct {
	value int
}

// NewCounter создаёт счётчик, начинающийся со start.
func NewCounter(start int) *Counter {
	return &Counter{value: start}
}

// Value возвращает текущее значение.
func (c *Counter) Value() int {
	return c.value
}

// Advance увеличивает счётчик на единицу.
func (c *Counter) Advance() {
	c.value++
}
