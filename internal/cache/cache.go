// Package cache хранит скачанные изображения на диске, чтобы повторный
// запуск по той же книге не обращался к сети.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Cache - файловый кэш тел ответов, ключ - хэш URL.
type Cache struct {
	// dir - директория для кэша.
	dir string

	// enabled - включён ли кэш.
	enabled bool
}

// New создаёт Cache в директории dir. Пустая dir отключает кэш.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return &Cache{}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "не удалось создать директорию кэша %s", dir)
	}

	return &Cache{dir: dir, enabled: true}, nil
}

// IsEnabled возвращает true если кэш включён.
func (c *Cache) IsEnabled() bool {
	return c != nil && c.enabled
}

// Dir возвращает директорию кэша.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// Key возвращает ключ кэша для URL.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])[:32]
}

// Get возвращает сохранённые байты для URL.
func (c *Cache) Get(url string) ([]byte, bool) {
	if !c.IsEnabled() {
		return nil, false
	}

	data, err := os.ReadFile(c.path(url))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Put сохраняет байты для URL. Запись атомарная.
func (c *Cache) Put(url string, data []byte) error {
	if !c.IsEnabled() {
		return nil
	}

	path := c.path(url)
	tmp, err := os.CreateTemp(c.dir, ".put-*")
	if err != nil {
		return errors.Wrap(err, "не удалось создать временный файл кэша")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "не удалось записать кэш")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "не удалось записать кэш")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "не удалось сохранить запись кэша")
	}
	return nil
}

// Clear очищает весь кэш.
func (c *Cache) Clear() error {
	if !c.IsEnabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// Size возвращает общий размер кэша в байтах.
func (c *Cache) Size() (int64, error) {
	if !c.IsEnabled() {
		return 0, nil
	}

	var size int64
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})

	return size, err
}

func (c *Cache) path(url string) string {
	return filepath.Join(c.dir, Key(url)+".bin")
}

/*
Возможные расширения:
- LRU eviction при превышении лимита размера
- TTL для записей кэша с учётом заголовков Cache-Control
*/
