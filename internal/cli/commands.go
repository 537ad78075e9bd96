package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/xlsximages/internal/config"
	"github.com/artemshloyda/xlsximages/internal/scanner"
	"github.com/artemshloyda/xlsximages/internal/storage"
	"github.com/artemshloyda/xlsximages/internal/watcher"
	"github.com/artemshloyda/xlsximages/internal/workbook"
	"github.com/artemshloyda/xlsximages/internal/worker"
)

// newSheetsCmd создаёт команду sheets.
func (a *app) newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <книга>",
		Short: "Показать листы книги и число картинок",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := workbook.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = wb.Close() }()

			infos, err := wb.Describe()
			if err != nil {
				return err
			}
			media, err := workbook.ListMedia(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📗 %s: листов %d, медиафайлов %d\n\n", filepath.Base(args[0]), len(infos), len(media))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ЛИСТ\tСТРОК\tКАРТИНОК В ЯЧЕЙКАХ")
			fmt.Fprintln(w, "----\t-----\t------------------")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%d\t%d\n", info.Name, info.LastRow, info.Pictures)
			}
			return w.Flush()
		},
	}
}

// newInspectCmd создаёт команду inspect.
func (a *app) newInspectCmd() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "inspect <книга>",
		Short: "Определить, что лежит в столбце: картинки или ссылки",
		Long: `Просматривает первые строки столбца --image-col и сообщает, содержит ли он
картинки в ячейках, ссылки или и то и другое.

Пример:
  xlsximages inspect price.xlsx --image-col B --start-row 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Mode = config.ModeColumn
			if err := a.prepare(cmd); err != nil {
				return err
			}
			if a.cfg.ImageColumn == "" {
				return errors.WithHint(errors.New("не указан столбец"), "укажите --image-col, например --image-col B")
			}

			wb, err := workbook.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = wb.Close() }()

			sheet, err := wb.Sheet(a.cfg.Sheet)
			if err != nil {
				return err
			}

			report, err := workbook.DetectColumn(sheet, a.cfg.ImageColumn, a.cfg.StartRow, rows)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📗 Лист: %s, столбец %s, строки %d-%d\n",
				sheet.Name(), a.cfg.ImageColumn, a.cfg.StartRow, report.LastRow)
			fmt.Fprintf(out, "   Просмотрено строк: %d, картинок: %d, ссылок: %d\n", report.Rows, report.Images, report.URLs)

			switch report.Kind {
			case workbook.ColumnImages:
				fmt.Fprintln(out, "🖼️  В столбце картинки")
			case workbook.ColumnURLs:
				fmt.Fprintln(out, "🔗 В столбце ссылки, картинки будут скачаны")
			case workbook.ColumnMixed:
				fmt.Fprintln(out, "🔀 В столбце картинки и ссылки")
			default:
				fmt.Fprintln(out, "⚠️  В просмотренных строках нет ни картинок, ни ссылок")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", workbook.DefaultSampleRows, "Сколько строк просмотреть")
	return cmd
}

// newWatchCmd создаёт команду watch.
func (a *app) newWatchCmd() *cobra.Command {
	var (
		existing bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <директория>",
		Short: "Следить за директорией и извлекать картинки из новых книг",
		Long: `Следит за директорией и обрабатывает каждую новую или изменённую книгу
с текущими настройками извлечения. Остановка - Ctrl+C.

Пример:
  xlsximages watch ./inbox --mode column --image-col B --out ./images`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			out := cmd.ErrOrStderr()

			ctx, cancel := signalContext(out)
			defer cancel()

			w, err := watcher.New(args[0])
			if err != nil {
				return err
			}
			w.SetDebounceTime(debounce)
			w.OnError = func(err error) {
				fmt.Fprintf(out, "⚠️  Ошибка watcher: %v\n", err)
			}

			env, err := a.newEnv(out)
			if err != nil {
				return err
			}
			defer env.Close()

			runner := worker.New(env.processWorkbook, 16)
			runner.OnResult = env.reportWorkbook
			runner.Start(ctx)

			if existing {
				files, err := scanner.New().Collect(ctx, args)
				if err != nil {
					return err
				}
				for _, f := range files {
					if err := runner.Submit(ctx, f); err != nil {
						break
					}
				}
			}

			files, err := w.Watch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "👀 Слежение за %s (Ctrl+C для остановки)\n", args[0])

			for f := range files {
				if err := runner.Submit(ctx, f); err != nil {
					break
				}
			}

			stats := runner.Wait()
			fmt.Fprintf(out, "📊 Обработано книг: %d, сохранено изображений: %d, ошибок: %d\n",
				stats.Workbooks, stats.Saved, stats.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", false, "Сначала обработать уже лежащие в директории книги")
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Пауза после последней записи файла")
	return cmd
}

// openHistory открывает базу истории для команд stats и history.
func (a *app) openHistory(cmd *cobra.Command) (*storage.Storage, error) {
	a.cfg.NoHistory = false
	if err := a.prepare(cmd); err != nil {
		return nil, err
	}
	if _, err := os.Stat(a.cfg.DBPath); err != nil {
		return nil, errors.WithHintf(errors.Newf("база истории не найдена: %s", a.cfg.DBPath),
			"история появится после первого запуска без --no-history")
	}
	return storage.New(a.cfg.DBPath)
}

// newStatsCmd создаёт команду stats.
func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Показать статистику из истории запусков",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			st, err := store.GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📊 Статистика (%s):\n", a.cfg.DBPath)
			fmt.Fprintf(out, "   Запусков: %d\n", st.Runs)
			fmt.Fprintf(out, "   Без ошибок: %d\n", st.RunsOK)
			fmt.Fprintf(out, "   С ошибками изображений: %d\n", st.RunsPartial)
			fmt.Fprintf(out, "   Фатальных: %d\n", st.RunsFailed)
			fmt.Fprintf(out, "   Отменённых и прерванных: %d\n", st.RunsStopped)
			fmt.Fprintf(out, "   Изображений сохранено: %d (%s)\n", st.ImagesSaved, worker.FormatBytes(st.Bytes))
			fmt.Fprintf(out, "   Изображений с ошибкой: %d\n", st.ImagesFailed)
			fmt.Fprintf(out, "   Пропущено строк: %d\n", st.ImagesSkipped)
			return nil
		},
	}
}

// newHistoryCmd создаёт команду history.
func (a *app) newHistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать последние запуски или элементы одного запуска",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

			if runID != "" {
				items, err := store.RunItems(runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "ЭЛЕМЕНТ\tИСТОЧНИК\tСТАТУС\tФАЙЛ / ОШИБКА")
				for _, it := range items {
					detail := it.Path
					if it.Error != "" {
						detail = it.Error
					}
					source := it.Source
					if it.URL != "" {
						source = it.URL
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Ref, source, it.Status, detail)
				}
				return w.Flush()
			}

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "История пуста.")
				return nil
			}

			fmt.Fprintln(w, "ID\tНАЧАЛО\tКНИГА\tРЕЖИМ\tСТАТУС\tУСПЕШНО\tОШИБОК\tПРОПУЩЕНО")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04"), filepath.Base(r.Workbook),
					r.Mode, r.Status, r.Succeeded, r.Failed, r.Skipped)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Сколько запусков показать")
	cmd.Flags().StringVar(&runID, "run", "", "Показать элементы запуска с этим ID")
	return cmd
}

// newConfigCmd создаёт команду config.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Работа с файлом конфигурации",
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Вывести пример файла конфигурации",
		RunE: func(cmd *cobra.Command, args []string) error {
			example := config.GenerateExampleConfig()
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), example)
				return nil
			}
			if _, err := os.Stat(output); err == nil {
				return errors.Newf("файл %s уже существует", output)
			}
			if err := os.WriteFile(output, []byte(example), 0644); err != nil {
				return errors.Wrapf(err, "не удалось записать %s", output)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Создан %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "", "Записать в файл вместо вывода")

	cmd.AddCommand(initCmd)
	return cmd
}
