package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/artemshloyda/xlsximages/internal/cache"
	"github.com/artemshloyda/xlsximages/internal/config"
	"github.com/artemshloyda/xlsximages/internal/downloader"
	"github.com/artemshloyda/xlsximages/internal/extract"
	"github.com/artemshloyda/xlsximages/internal/imaging"
	"github.com/artemshloyda/xlsximages/internal/logging"
	"github.com/artemshloyda/xlsximages/internal/progress"
	"github.com/artemshloyda/xlsximages/internal/scanner"
	"github.com/artemshloyda/xlsximages/internal/storage"
	"github.com/artemshloyda/xlsximages/internal/toolfinder"
	"github.com/artemshloyda/xlsximages/internal/vector"
	"github.com/artemshloyda/xlsximages/internal/worker"
)

// env - собранные зависимости извлечения, общие для всех книг вызова.
type env struct {
	cfg       *config.Config
	out       io.Writer
	reporter  *progress.Reporter
	extractor extract.Extractor
	store     *storage.Storage
}

// newEnv находит внешние утилиты, открывает историю и собирает Extractor.
func (a *app) newEnv(out io.Writer) (*env, error) {
	cfg := a.cfg
	reporter := progress.New(progress.Options{
		Disabled: cfg.NoProgress,
		Verbose:  cfg.Verbose,
		Writer:   out,
	})

	finder := toolfinder.NewFinder(cfg.ToolPaths)

	enc := imaging.NewEncoder(cfg.Quality)
	if cfg.OutputFormat == imaging.FormatWebP {
		if tool, err := finder.First(imaging.WebPTools...); err == nil {
			enc.WebPTool = tool
			if cfg.Verbose {
				fmt.Fprintf(out, "📦 Запасной кодировщик WebP: %s\n", tool.Path)
			}
		}
	}

	conv, err := newConverter(cfg, finder, out)
	if err != nil {
		return nil, err
	}

	dl, err := newDownloader(cfg, reporter)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		out:      out,
		reporter: reporter,
		extractor: extract.Extractor{
			Sink:       reporter,
			Converter:  conv,
			Downloader: dl,
			Encoder:    enc,
		},
	}

	if !cfg.NoHistory {
		store, err := storage.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if cleaned, err := store.CleanupInProgress(); err != nil {
			fmt.Fprintf(out, "⚠️  Не удалось очистить незавершённые запуски: %v\n", err)
		} else if cleaned > 0 && cfg.Verbose {
			fmt.Fprintf(out, "🧹 Помечено прерванных запусков: %d\n", cleaned)
		}
		e.store = store
	}

	return e, nil
}

// newConverter собирает цепочку конвертации EMF/WMF: встроенный растр,
// затем внешние утилиты.
func newConverter(cfg *config.Config, finder *toolfinder.Finder, out io.Writer) (vector.Converter, error) {
	if cfg.Vector.Disabled {
		return vector.EmbeddedRaster{}, nil
	}

	tools, err := vector.NewTools(finder, cfg.Vector.Commands, cfg.Vector.Timeout)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		if tools.Available() {
			fmt.Fprintf(out, "📦 Конвертеры EMF/WMF: %v\n", tools.Names())
		} else {
			fmt.Fprintln(out, "⚠️  Конвертеры EMF/WMF не найдены, векторные картинки без растра будут пропущены")
		}
	}
	return vector.Chain{vector.EmbeddedRaster{}, tools}, nil
}

func newDownloader(cfg *config.Config, log downloader.Logger) (*downloader.Downloader, error) {
	c, err := cache.New(cfg.Download.CacheDir)
	if err != nil {
		return nil, err
	}

	dl := downloader.New(cfg.Download.Timeout)
	dl.Retries = cfg.Download.Retries
	dl.Backoff = cfg.Download.Backoff
	if cfg.Download.UserAgent != "" {
		dl.UserAgent = cfg.Download.UserAgent
	}
	if cfg.Download.MaxBytes > 0 {
		dl.MaxBytes = cfg.Download.MaxBytes
	}
	dl.Cache = c
	dl.SetRate(cfg.Download.Rate)
	dl.Log = log
	return dl, nil
}

// Close закрывает историю.
func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// processWorkbook обрабатывает одну книгу: журнал, история, извлечение.
func (e *env) processWorkbook(ctx context.Context, file scanner.File) (*extract.RunResult, error) {
	cfg, err := e.cfg.ForWorkbook(file.Path)
	if err != nil {
		return nil, err
	}

	var runLog *logging.RunLog
	if cfg.LogFile {
		runLog, err = logging.Open(cfg.OutputDir, time.Now())
		if err != nil {
			fmt.Fprintf(e.out, "⚠️  Журнал недоступен: %v\n", err)
		}
	}
	defer func() { _ = runLog.Close() }()

	if runLog != nil {
		e.reporter.Start(filepath.Base(file.Path), runLog.SugaredLogger)
	} else {
		e.reporter.Start(filepath.Base(file.Path), nil)
	}
	defer e.reporter.Finish()

	ex := e.extractor
	var rec *storage.RunRecorder
	if e.store != nil {
		rec, err = storage.NewRunRecorder(e.store, storage.RunInfo{
			Workbook:  cfg.Workbook,
			Sheet:     cfg.Sheet,
			Mode:      string(cfg.Mode),
			OutputDir: cfg.OutputDir,
			Format:    string(cfg.OutputFormat),
		})
		if err != nil {
			e.reporter.Warn(fmt.Sprintf("История недоступна: %v", err))
		} else {
			ex.Recorder = rec
		}
	}

	res, runErr := ex.Run(ctx, cfg)
	if runErr != nil && runLog != nil {
		runLog.Errorw(runErr.Error(), "hints", errors.GetAllHints(runErr))
	}

	if rec != nil {
		if err := rec.Finish(res, runErr); err != nil {
			e.reporter.Warn(fmt.Sprintf("Не удалось записать историю: %v", err))
		}
	}
	if runLog != nil && e.cfg.Verbose {
		e.reporter.Info("Журнал: " + runLog.Path)
	}

	return res, runErr
}

// reportWorkbook выводит короткий итог по книге.
func (e *env) reportWorkbook(r worker.Result) {
	if r.Err != nil {
		fmt.Fprintf(e.out, "❌ %s: %v\n", r.File.RelPath, r.Err)
		printHints(e.out, r.Err)
		return
	}
	res := r.Result
	fmt.Fprintf(e.out, "📊 %s: сохранено %d из %d, ошибок %d, пропущено %d (%s, %s) → %s\n",
		r.File.RelPath, res.Succeeded, res.Total, res.Failed, res.Skipped,
		worker.FormatBytes(res.OutputBytes), res.Duration.Round(time.Millisecond), res.OutputDir)
}
