package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UniquePath возвращает путь dir/base.ext, которого ещё нет на диске.
// Если файл занят, пробует base_1.ext, base_2.ext и так далее.
// Проверка и последующая запись не атомарны: рассчитано на один воркер.
func UniquePath(dir, base, ext string) string {
	ext = strings.TrimPrefix(ext, ".")

	path := filepath.Join(dir, base+"."+ext)
	for i := 1; exists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}
