package vector

import (
	"context"
	"image"
)

// Converter превращает байты метафайла в растровое изображение.
// Неудача мягкая: возвращается nil, false, вызывающий считает элемент
// неподдерживаемым и продолжает работу.
type Converter interface {
	Convert(ctx context.Context, data []byte, ext, scratchDir string) (image.Image, bool)
}

// Chain пробует конвертеры по очереди до первого успеха.
type Chain []Converter

// Convert реализует Converter.
func (c Chain) Convert(ctx context.Context, data []byte, ext, scratchDir string) (image.Image, bool) {
	for _, conv := range c {
		if conv == nil {
			continue
		}
		if img, ok := conv.Convert(ctx, data, ext, scratchDir); ok {
			return img, true
		}
	}
	return nil, false
}

// None - конвертер, который ничего не умеет. Используется, когда
// конвертация отключена.
type None struct{}

// Convert реализует Converter.
func (None) Convert(context.Context, []byte, string, string) (image.Image, bool) {
	return nil, false
}
