package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/artemshloyda/xlsximages/internal/config"
)

// newPresetsCmd создаёт команду для управления пресетами.
func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Управление именованными пресетами настроек",
		Long: `Управление именованными пресетами настроек.

Пресеты хранятся в ~/.config/xlsximages/presets/ и позволяют один раз
описать разметку типовой книги (лист, столбцы, именование) и применять её
к новым файлам того же вида.

Примеры:
  # Сохранить настройки как пресет
  xlsximages --mode column --image-col B --name-col A --save-preset supplier-a

  # Извлечь по пресету
  xlsximages price.xlsx --preset supplier-a

  # Список пресетов
  xlsximages presets list

  # Удалить пресет
  xlsximages presets delete supplier-a`,
	}

	cmd.AddCommand(newPresetsListCmd())
	cmd.AddCommand(newPresetsDeleteCmd())
	cmd.AddCommand(newPresetsShowCmd())

	return cmd
}

// newPresetsListCmd создаёт команду для списка пресетов.
func newPresetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать список сохранённых пресетов",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := config.ListPresets()
			if err != nil {
				return errors.Wrap(err, "ошибка получения списка пресетов")
			}

			out := cmd.OutOrStdout()
			if len(presets) == 0 {
				fmt.Fprintln(out, "Пресеты не найдены.")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Сохраните пресет командой:")
				fmt.Fprintln(out, "  xlsximages --mode column --image-col B --save-preset my-supplier")
				return nil
			}

			fmt.Fprintf(out, "📦 Сохранённые пресеты (%d):\n\n", len(presets))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ИМЯ\tРЕЖИМ\tСТОЛБЕЦ\tФОРМАТ\tИМЕНОВАНИЕ\tПУТЬ")
			fmt.Fprintln(w, "---\t-----\t-------\t------\t----------\t----")

			for _, p := range presets {
				sum := p.Summary()
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, sum.Mode, sum.Column, sum.Format, sum.Policy, p.Path)
			}
			return w.Flush()
		},
	}
}

// newPresetsDeleteCmd создаёт команду для удаления пресета.
func newPresetsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Удалить пресет",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if !config.PresetExists(name) {
				return errors.Newf("пресет '%s' не найден", name)
			}

			if err := config.DeletePreset(name); err != nil {
				return errors.Wrap(err, "ошибка удаления пресета")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✅ Пресет '%s' удалён\n", name)
			return nil
		},
	}
}

// newPresetsShowCmd создаёт команду для отображения пресета.
func newPresetsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Показать содержимое пресета",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			fc, path, err := config.LoadPreset(name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📦 Пресет: %s\n", name)
			fmt.Fprintf(out, "📁 Путь: %s\n\n", path)

			if e := fc.Extract; e != nil {
				fmt.Fprintln(out, "Extract:")
				printField(out, "sheet", e.Sheet)
				printField(out, "mode", e.Mode)
				printField(out, "image_col", e.ImageColumn)
				printField(out, "name_col", e.NameColumn)
				if e.StartRow > 0 {
					fmt.Fprintf(out, "  start_row: %d\n", e.StartRow)
				}
			}

			if o := fc.Output; o != nil {
				fmt.Fprintln(out, "Output:")
				printField(out, "format", o.Format)
				if o.Quality > 0 {
					fmt.Fprintf(out, "  quality: %d\n", o.Quality)
				}
			}

			if n := fc.Naming; n != nil {
				fmt.Fprintln(out, "Naming:")
				printField(out, "policy", n.Policy)
				if n.Start != nil {
					fmt.Fprintf(out, "  start: %d\n", *n.Start)
				}
				printField(out, "prefix", n.Prefix)
				printField(out, "template", n.Template)
			}

			if d := fc.Download; d != nil {
				fmt.Fprintln(out, "Download:")
				if d.Timeout > 0 {
					fmt.Fprintf(out, "  timeout: %s\n", d.Timeout)
				}
				if d.Retries > 0 {
					fmt.Fprintf(out, "  retries: %d\n", d.Retries)
				}
				if d.Rate > 0 {
					fmt.Fprintf(out, "  rate: %g\n", d.Rate)
				}
			}

			return nil
		},
	}
}

func printField(out io.Writer, name, value string) {
	if value != "" {
		fmt.Fprintf(out, "  %s: %s\n", name, value)
	}
}

/*
Возможные расширения:
- Команда 'presets export' для передачи пресета коллегам
- Команда 'presets import' для загрузки из файла
*/
