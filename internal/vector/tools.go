package vector

import (
	"bytes"
	"context"
	"image"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"

	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/toolfinder"
)

const (
	// InputPlaceholder заменяется путём к временному метафайлу.
	InputPlaceholder = "{in}"
	// OutputPlaceholder заменяется путём к ожидаемому PNG.
	OutputPlaceholder = "{out}"
)

// Command - одна внешняя команда конвертации.
type Command struct {
	// Name - имя для логов.
	Name string

	// Path - путь к бинарнику.
	Path string

	// Args - аргументы с подстановками {in} и {out}.
	Args []string

	// Timeout - таймаут на один запуск.
	Timeout time.Duration
}

// Tools конвертирует метафайлы внешними утилитами: первая успешная
// команда из списка побеждает.
type Tools struct {
	// Commands - команды в порядке приоритета.
	Commands []Command
}

// DefaultCommands возвращает встроенный список кандидатов для текущей ОС:
// sips на macOS, затем ImageMagick (magick, convert).
func DefaultCommands() []Command {
	var cmds []Command
	if runtime.GOOS == "darwin" {
		cmds = append(cmds, Command{
			Name:    "sips",
			Args:    []string{"-s", "format", "png", InputPlaceholder, "--out", OutputPlaceholder},
			Timeout: 10 * time.Second,
		})
	}
	for _, name := range []string{"magick", "convert"} {
		cmds = append(cmds, Command{
			Name:    name,
			Args:    []string{InputPlaceholder, OutputPlaceholder},
			Timeout: 15 * time.Second,
		})
	}
	return cmds
}

// ParseCommand разбирает пользовательский шаблон команды, например
// `inkscape {in} --export-type=png --export-filename={out}`.
func ParseCommand(template string, timeout time.Duration) (Command, error) {
	words, err := shellquote.Split(template)
	if err != nil {
		return Command{}, errors.Wrapf(err, "некорректная команда конвертации %q", template)
	}
	if len(words) == 0 {
		return Command{}, errors.New("пустая команда конвертации")
	}
	if !strings.Contains(template, InputPlaceholder) || !strings.Contains(template, OutputPlaceholder) {
		return Command{}, errors.Newf("команда %q должна содержать %s и %s", template, InputPlaceholder, OutputPlaceholder)
	}
	return Command{Name: words[0], Args: words[1:], Timeout: timeout}, nil
}

// NewTools собирает список доступных команд: пользовательские шаблоны
// идут первыми, затем встроенные. Команды, бинарник которых не найден,
// отбрасываются.
func NewTools(finder *toolfinder.Finder, templates []string, timeout time.Duration) (*Tools, error) {
	var candidates []Command
	for _, tpl := range templates {
		cmd, err := ParseCommand(tpl, timeout)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cmd)
	}
	candidates = append(candidates, DefaultCommands()...)

	t := &Tools{}
	for _, cmd := range candidates {
		if cmd.Path == "" {
			tool, err := finder.Find(cmd.Name)
			if err != nil {
				continue
			}
			cmd.Path = tool.Path
		}
		if cmd.Timeout <= 0 {
			cmd.Timeout = 15 * time.Second
		}
		t.Commands = append(t.Commands, cmd)
	}
	return t, nil
}

// Available сообщает, есть ли хотя бы одна команда.
func (t *Tools) Available() bool {
	return t != nil && len(t.Commands) > 0
}

// Names возвращает имена доступных команд.
func (t *Tools) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.Commands))
	for _, c := range t.Commands {
		names = append(names, c.Name)
	}
	return names
}

// Convert реализует Converter. Метафайл пишется во временный файл внутри
// scratchDir, результат ожидается рядом с суффиксом .png. Оба файла
// удаляются при любом исходе.
func (t *Tools) Convert(ctx context.Context, data []byte, ext, scratchDir string) (image.Image, bool) {
	if !t.Available() {
		return nil, false
	}

	if ext == "" {
		ext = Detect("", data).Ext()
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	in, err := os.CreateTemp(scratchDir, "vector-*"+ext)
	if err != nil {
		return nil, false
	}
	inPath := in.Name()
	outPath := inPath + ".png"
	defer func() {
		_ = os.Remove(inPath)
		_ = os.Remove(outPath)
	}()

	_, werr := in.Write(data)
	cerr := in.Close()
	if werr != nil || cerr != nil {
		return nil, false
	}

	for _, cmd := range t.Commands {
		if ctx.Err() != nil {
			return nil, false
		}
		if err := cmd.run(ctx, inPath, outPath); err != nil {
			continue
		}
		if _, err := os.Stat(outPath); err != nil {
			continue
		}

		raw, err := os.ReadFile(outPath)
		if err != nil {
			return nil, false
		}
		img, _, err := imaging.Decode(raw)
		if err != nil {
			return nil, false
		}
		return img, true
	}

	return nil, false
}

func (c Command) run(ctx context.Context, in, out string) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		a = strings.ReplaceAll(a, InputPlaceholder, in)
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, out)
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: %s", c.Name, strings.TrimSpace(stderr.String()))
	}
	return nil
}
