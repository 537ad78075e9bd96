// Команда xlsximages извлекает изображения из книг Excel.
package main

import "github.com/artemshloyda/xlsximages/internal/cli"

func main() {
	cli.Execute()
}
