// Package toolfinder отвечает за поиск внешних утилит конвертации
// (ImageMagick, sips, vips, cwebp) в системе.
package toolfinder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotFound возвращается, если ни один кандидат не найден.
var ErrNotFound = errors.New("утилита не найдена")

// Tool содержит информацию о найденной утилите.
type Tool struct {
	// Name - логическое имя утилиты (например, "magick").
	Name string

	// Path - абсолютный путь к бинарнику.
	Path string
}

// Finder ищет внешние утилиты.
type Finder struct {
	// CustomPaths - пользовательские пути по имени утилиты (из конфигурации).
	CustomPaths map[string]string

	// EnvPrefix - префикс переменных окружения, например XLSXIMAGES_MAGICK.
	EnvPrefix string

	// Disabled - запрет на поиск (все утилиты считаются отсутствующими).
	Disabled bool
}

// NewFinder создаёт новый Finder.
func NewFinder(customPaths map[string]string) *Finder {
	return &Finder{
		CustomPaths: customPaths,
		EnvPrefix:   "XLSXIMAGES_",
	}
}

// Find ищет утилиту name в следующем порядке:
// 1. CustomPaths[name]
// 2. Переменная окружения <EnvPrefix><NAME>
// 3. PATH
// 4. Рядом с исполняемым файлом в ./bin/<os-arch>/
func (f *Finder) Find(name string) (*Tool, error) {
	if f.Disabled {
		return nil, errors.Wrapf(ErrNotFound, "%s (поиск отключён)", name)
	}

	var candidates []string

	if p := f.CustomPaths[name]; p != "" {
		candidates = append(candidates, p)
	}

	if p := os.Getenv(f.envVar(name)); p != "" {
		candidates = append(candidates, p)
	}

	if p, err := exec.LookPath(binaryName(name)); err == nil {
		candidates = append(candidates, p)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		platformDir := fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
		candidates = append(candidates,
			filepath.Join(execDir, "bin", platformDir, binaryName(name)),
			filepath.Join(execDir, "bin", binaryName(name)),
		)
	}

	for _, path := range candidates {
		if abs, err := checkExecutable(path); err == nil {
			return &Tool{Name: name, Path: abs}, nil
		}
	}

	return nil, errors.WithHintf(errors.Wrapf(ErrNotFound, "%s", name),
		"установите %s в PATH или задайте переменную окружения %s", name, f.envVar(name))
}

// First возвращает первую найденную утилиту из списка.
func (f *Finder) First(names ...string) (*Tool, error) {
	for _, name := range names {
		if tool, err := f.Find(name); err == nil {
			return tool, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "ни одна из: %s", strings.Join(names, ", "))
}

// All возвращает все найденные утилиты из списка, сохраняя порядок.
func (f *Finder) All(names ...string) []*Tool {
	var tools []*Tool
	for _, name := range names {
		if tool, err := f.Find(name); err == nil {
			tools = append(tools, tool)
		}
	}
	return tools
}

func (f *Finder) envVar(name string) string {
	return f.EnvPrefix + strings.ToUpper(name)
}

// checkExecutable проверяет, что путь указывает на исполняемый файл.
func checkExecutable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(err, "файл не найден")
	}
	if info.IsDir() {
		return "", errors.Newf("%s - директория", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return "", errors.Newf("%s не является исполняемым", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "не удалось получить абсолютный путь")
	}
	return absPath, nil
}

// Version пытается получить версию утилиты через --version.
// Возвращает пустую строку, если утилита версию не сообщает.
func (t *Tool) Version(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, t.Path, "--version").Output()
	if err != nil {
		return ""
	}
	return parseVersion(t.Name, string(output))
}

// parseVersion извлекает версию из первой строки вывода --version.
// Примеры: "vips-8.14.2", "Version: ImageMagick 7.1.1-21 Q16-HDRI ...".
func parseVersion(name, output string) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])

	line = strings.TrimPrefix(line, "Version: ")
	line = strings.TrimPrefix(line, "ImageMagick ")
	line = strings.TrimPrefix(line, name+"-")
	line = strings.TrimPrefix(line, name+" ")

	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return line
}

// binaryName возвращает имя бинарника для текущей ОС.
func binaryName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

/*
Возможные расширения:
- Проверка минимальной версии ImageMagick (делегат EMF есть только в Windows-сборках)
*/
