// Package cli содержит CLI интерфейс приложения.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/xlsximages/internal/config"
	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/naming"
	"github.com/artemshloyda/xlsximages/internal/scanner"
	"github.com/artemshloyda/xlsximages/internal/toolfinder"
	"github.com/artemshloyda/xlsximages/internal/vector"
	"github.com/artemshloyda/xlsximages/internal/worker"
)

var (
	// Version будет установлена при сборке.
	Version = "dev"

	// BuildTime будет установлена при сборке.
	BuildTime = "unknown"
)

// app хранит конфигурацию и значения флагов одного вызова CLI.
type app struct {
	cfg *config.Config

	// Флаги, которые не ложатся напрямую в поля cfg.
	configPath string
	mode       string
	format     string
	policy     string
	noEmbedded bool
	noLogFile  bool
	preset     string
	savePreset string
	tools      map[string]string

	prepared bool
}

// NewRootCmd создаёт корневую команду CLI.
func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	cfg := a.cfg

	rootCmd := &cobra.Command{
		Use:   "xlsximages [книга|директория]...",
		Short: "Извлечение изображений из книг Excel",
		Long: `xlsximages - CLI утилита для извлечения изображений из книг Excel (.xlsx, .xlsm).

Два режима:
  all     - все картинки книги из xl/media/ по порядку номеров
  column  - построчно по столбцу: картинка в ячейке или ссылка на неё

Векторные EMF/WMF конвертируются в растр (встроенный растр, затем sips,
magick или convert). Картинки по ссылкам скачиваются с повторами.

Примеры:
  # Все картинки книги в PNG, имена 1, 2, 3...
  xlsximages catalog.xlsx

  # По столбцу B, имена из столбца A, начиная со строки 2, в JPEG
  xlsximages price.xlsx --mode column --image-col B --name-col A --format jpg

  # Имена по тексту ссылок, ограничение 2 запроса в секунду
  xlsximages links.xlsx --mode column --image-col C --naming link --rate 2

  # Все книги директории
  xlsximages ./suppliers --out ./images`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runExtract,
	}

	flags := rootCmd.PersistentFlags()

	// Источник
	flags.StringVar(&a.configPath, "config", "", "Путь к YAML файлу конфигурации")
	flags.StringVar(&cfg.Sheet, "sheet", cfg.Sheet, "Имя листа (по умолчанию первый)")
	flags.StringVar(&a.mode, "mode", string(cfg.Mode), "Режим: all или column")
	flags.StringVar(&cfg.ImageColumn, "image-col", cfg.ImageColumn, "Столбец с картинками или ссылками (режим column)")
	flags.StringVar(&cfg.NameColumn, "name-col", cfg.NameColumn, "Столбец с именами файлов (режим column)")
	flags.IntVar(&cfg.StartRow, "start-row", cfg.StartRow, "Первая строка с данными (режим column)")
	flags.BoolVar(&a.noEmbedded, "no-embedded", false, "Не искать картинки в ячейках, только ссылки")

	// Выход
	flags.StringVar(&cfg.OutputDir, "out", "", "Директория результатов (по умолчанию рядом с книгой)")
	flags.StringVar(&a.format, "format", string(cfg.OutputFormat), "Выходной формат: png, jpg, jpeg, webp, bmp, gif")
	flags.IntVar(&cfg.Quality, "quality", cfg.Quality, "Качество JPEG (1-100)")

	// Именование
	flags.StringVar(&a.policy, "naming", string(cfg.Naming.Policy), "Именование: seq, prefix, link, template")
	flags.IntVar(&cfg.Naming.Start, "start", cfg.Naming.Start, "Стартовый номер")
	flags.StringVar(&cfg.Naming.Prefix, "prefix", cfg.Naming.Prefix, "Префикс для --naming prefix (по умолчанию Image)")
	flags.StringVar(&cfg.Naming.Separator, "sep", cfg.Naming.Separator, "Разделитель префикса и номера")
	flags.StringVar(&cfg.Naming.Template, "template", cfg.Naming.Template, "Шаблон для --naming template, {n} - номер")

	// Скачивание
	flags.DurationVar(&cfg.Download.Timeout, "timeout", cfg.Download.Timeout, "Таймаут одного запроса")
	flags.IntVar(&cfg.Download.Retries, "retries", cfg.Download.Retries, "Число попыток скачивания")
	flags.Float64Var(&cfg.Download.Rate, "rate", cfg.Download.Rate, "Запросов в секунду (0 - без ограничения)")
	flags.StringVar(&cfg.Download.CacheDir, "cache-dir", cfg.Download.CacheDir, "Директория кэша скачанных файлов")

	// Векторные форматы
	flags.StringArrayVar(&cfg.Vector.Commands, "converter", nil,
		`Команда конвертации EMF/WMF, например "inkscape {in} --export-filename={out}" (можно повторять)`)
	flags.BoolVar(&cfg.Vector.Disabled, "no-vector", false, "Не конвертировать EMF/WMF внешними утилитами")
	flags.StringToStringVar(&a.tools, "tool", nil, "Путь к утилите: --tool magick=/opt/bin/magick")

	// История и журнал
	flags.StringVar(&cfg.DBPath, "db", "", "Путь к SQLite базе истории")
	flags.BoolVar(&cfg.NoHistory, "no-history", false, "Не вести историю запусков")
	flags.BoolVar(&a.noLogFile, "no-log-file", false, "Не писать журнал рядом с результатами")

	// Пресеты
	flags.StringVar(&a.preset, "preset", "", "Загрузить именованный пресет")
	flags.StringVar(&a.savePreset, "save-preset", "", "Сохранить текущие настройки как пресет")

	// Вывод
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Подробный вывод")
	flags.BoolVar(&cfg.NoProgress, "no-progress", false, "Отключить прогресс-бар")

	// Подкоманды
	rootCmd.AddCommand(a.newVersionCmd())
	rootCmd.AddCommand(a.newSheetsCmd())
	rootCmd.AddCommand(a.newInspectCmd())
	rootCmd.AddCommand(a.newWatchCmd())
	rootCmd.AddCommand(a.newStatsCmd())
	rootCmd.AddCommand(a.newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newPresetsCmd())

	return rootCmd
}

// prepare собирает итоговую конфигурацию: файл конфигурации, затем
// пресет, затем явно заданные флаги. Вызывается один раз.
func (a *app) prepare(cmd *cobra.Command) error {
	if a.prepared {
		return nil
	}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }

	fc, path, err := config.FindAndLoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if fc != nil {
		fc.ApplyToConfig(a.cfg, changed)
		if a.cfg.Verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "📄 Конфигурация: %s\n", path)
		}
	}

	if a.preset != "" {
		pc, presetPath, err := config.LoadPreset(a.preset)
		if err != nil {
			return err
		}
		pc.ApplyToConfig(a.cfg, changed)
		if a.cfg.Verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "📦 Пресет: %s\n", presetPath)
		}
	}

	if changed("mode") {
		a.cfg.Mode = config.Mode(a.mode)
	}
	if changed("format") {
		a.cfg.OutputFormat = imaging.Format(a.format)
	}
	if changed("naming") {
		a.cfg.Naming.Policy = naming.Policy(a.policy)
	}
	if changed("no-embedded") {
		a.cfg.Embedded = !a.noEmbedded
	}
	if changed("no-log-file") {
		a.cfg.LogFile = !a.noLogFile
	}
	if len(a.tools) > 0 {
		if a.cfg.ToolPaths == nil {
			a.cfg.ToolPaths = make(map[string]string)
		}
		for name, p := range a.tools {
			a.cfg.ToolPaths[name] = p
		}
	}

	if err := a.cfg.Validate(); err != nil {
		return errors.Wrap(err, "ошибка конфигурации")
	}

	if a.savePreset != "" {
		presetPath, err := config.SavePreset(a.savePreset, a.cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Пресет '%s' сохранён: %s\n", a.savePreset, presetPath)
	}

	a.prepared = true
	return nil
}

// runExtract выполняет извлечение для всех книг из аргументов.
func (a *app) runExtract(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	if err := a.prepare(cmd); err != nil {
		return err
	}
	if len(args) == 0 {
		if a.savePreset != "" {
			return nil
		}
		return errors.WithHint(errors.New("не указана книга"), "пример: xlsximages catalog.xlsx")
	}

	ctx, cancel := signalContext(cmd.ErrOrStderr())
	defer cancel()

	scan := scanner.New()
	scan.OnWarn = func(path string, err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  Не удалось прочитать %s: %v\n", path, err)
	}
	files, err := scan.Collect(ctx, args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.WithHint(errors.New("книги не найдены"), "поддерживаются файлы .xlsx и .xlsm")
	}

	env, err := a.newEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	if len(files) > 1 || a.cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "📁 Книг к обработке: %d\n", len(files))
	}

	runner := worker.New(env.processWorkbook, len(files))
	runner.OnResult = env.reportWorkbook
	runner.Start(ctx)
	for _, f := range files {
		if err := runner.Submit(ctx, f); err != nil {
			break
		}
	}
	stats := runner.Wait()

	printTotals(cmd.ErrOrStderr(), stats, len(files), time.Since(startTime))

	if stats.Canceled {
		return errors.New("операция отменена пользователем")
	}
	if stats.HasFailures() {
		return errors.Newf("завершено с ошибками: книг %d, изображений %d", stats.WorkbooksFailed, stats.Failed)
	}
	return nil
}

// signalContext возвращает контекст, отменяемый по SIGINT/SIGTERM.
func signalContext(w io.Writer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(w, "\n⚠️  Получен сигнал завершения, останавливаем...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func printTotals(w io.Writer, stats worker.Stats, books int, d time.Duration) {
	if books < 2 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "📊 Итого по %d книгам:\n", books)
	fmt.Fprintf(w, "   Книг без ошибок: %d, с фатальной ошибкой: %d\n", stats.WorkbooksOK, stats.WorkbooksFailed)
	fmt.Fprintf(w, "   Изображений: сохранено %d, ошибок %d, пропущено %d\n", stats.Saved, stats.Failed, stats.Skipped)
	fmt.Fprintf(w, "   Объём: %s\n", worker.FormatBytes(stats.OutputBytes))
	fmt.Fprintf(w, "   Время: %s\n", d.Round(time.Millisecond))
}

// printError выводит ошибку и подсказки к ней.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "❌ %v\n", err)
	printHints(w, err)
}

func printHints(w io.Writer, err error) {
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "💡 %s\n", hint)
	}
}

// newVersionCmd создаёт команду version.
func (a *app) newVersionCmd() *cobra.Command {
	var showTools bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "xlsximages %s (built %s)\n", Version, BuildTime)
			if !showTools {
				return nil
			}

			finder := toolfinder.NewFinder(a.tools)
			fmt.Fprintln(out)
			for _, name := range knownTools() {
				tool, err := finder.Find(name)
				if err != nil {
					fmt.Fprintf(out, "   %-8s не найден\n", name)
					continue
				}
				version := tool.Version(cmd.Context())
				if version == "" {
					version = "?"
				}
				fmt.Fprintf(out, "   %-8s %s (%s)\n", name, version, tool.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTools, "tools", false, "Показать найденные внешние утилиты")
	return cmd
}

// knownTools - утилиты конвертации EMF/WMF и кодирования WebP без повторов.
func knownTools() []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range vector.DefaultCommands() {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	for _, name := range imaging.WebPTools {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Execute запускает CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

/*
Возможные расширения:
- Команда clean для очистки истории и кэша
- Повтор неудачных строк из истории запуска
- Экспорт истории в JSON
*/
