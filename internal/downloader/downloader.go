// Package downloader скачивает изображения по ссылкам из ячеек с
// повторными попытками и кооперативной отменой.
package downloader

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/artemshloyda/xlsximages/internal/cache"
	"github.com/artemshloyda/xlsximages/internal/imaging"
)

// ErrCanceled возвращается, если запуск отменён до или между попытками.
var ErrCanceled = errors.New("загрузка отменена")

// ErrTooLarge возвращается, если тело ответа больше MaxBytes.
var ErrTooLarge = errors.New("ответ превышает допустимый размер")

const (
	// DefaultUserAgent - браузерный User-Agent: часть CDN отдаёт 403
	// клиентам без него.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultTimeout  = 15 * time.Second
	DefaultRetries  = 3
	DefaultBackoff  = time.Second
	DefaultMaxBytes = 50 << 20
)

// Logger принимает предупреждения о неудачных попытках.
type Logger interface {
	Warn(msg string)
}

// Downloader скачивает и декодирует изображения.
type Downloader struct {
	// Client - HTTP-клиент с таймаутом.
	Client *http.Client

	// UserAgent - значение заголовка User-Agent.
	UserAgent string

	// Retries - максимальное число попыток (не меньше 1).
	Retries int

	// Backoff - базовая пауза; перед попыткой N+1 ждём Backoff*N.
	Backoff time.Duration

	// Limiter - ограничение частоты запросов (nil = без ограничения).
	Limiter *rate.Limiter

	// MaxBytes - предельный размер тела ответа (0 = без ограничения).
	MaxBytes int64

	// Cache - кэш тел ответов (nil = без кэша).
	Cache *cache.Cache

	// Log - получатель предупреждений (nil = молча).
	Log Logger
}

// New создаёт Downloader с параметрами по умолчанию.
func New(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Downloader{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: DefaultUserAgent,
		Retries:   DefaultRetries,
		Backoff:   DefaultBackoff,
		MaxBytes:  DefaultMaxBytes,
	}
}

// SetRate задаёт ограничение perSecond запросов в секунду (0 = без
// ограничения).
func (d *Downloader) SetRate(perSecond float64) {
	if perSecond <= 0 {
		d.Limiter = nil
		return
	}
	d.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Download скачивает url и декодирует изображение. Сетевые ошибки,
// ответы не 2xx и ошибки декодирования повторяются до Retries раз.
// Отмена проверяется перед каждой попыткой и во время паузы.
func (d *Downloader) Download(ctx context.Context, url string) (image.Image, error) {
	url = strings.TrimSpace(url)

	if data, ok := d.Cache.Get(url); ok {
		if img, _, err := imaging.Decode(data); err == nil {
			return img, nil
		}
	}

	retries := d.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}

		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				return nil, ErrCanceled
			}
		}

		img, data, err := d.attempt(ctx, url)
		if err == nil {
			if err := d.Cache.Put(url, data); err != nil {
				d.warn(fmt.Sprintf("кэш: %v", err))
			}
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}
		lastErr = err

		if errors.Is(err, ErrTooLarge) {
			break
		}
		if attempt == retries {
			break
		}

		d.warn(fmt.Sprintf("попытка %d/%d для %s не удалась: %v", attempt, retries, url, err))

		select {
		case <-ctx.Done():
			return nil, ErrCanceled
		case <-time.After(d.Backoff * time.Duration(attempt)):
		}
	}

	return nil, errors.Wrapf(lastErr, "не удалось скачать %s", url)
}

// attempt выполняет одну попытку: запрос, чтение тела, декодирование.
func (d *Downloader) attempt(ctx context.Context, url string) (image.Image, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "некорректный запрос")
	}
	req.Header.Set("User-Agent", d.userAgent())
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := d.client().Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "ошибка сети")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, nil, errors.Newf("HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isImageContentType(ct) {
		d.warn(fmt.Sprintf("%s: неожиданный Content-Type %q", url, ct))
	}

	var reader io.Reader = resp.Body
	if d.MaxBytes > 0 {
		reader = io.LimitReader(resp.Body, d.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "ошибка чтения ответа")
	}
	if d.MaxBytes > 0 && int64(len(data)) > d.MaxBytes {
		return nil, nil, errors.Wrapf(ErrTooLarge, "больше %d байт", d.MaxBytes)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

func (d *Downloader) userAgent() string {
	if d.UserAgent != "" {
		return d.UserAgent
	}
	return DefaultUserAgent
}

func (d *Downloader) warn(msg string) {
	if d.Log != nil {
		d.Log.Warn(msg)
	}
}

func isImageContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	return strings.HasPrefix(ct, "image/") || ct == "application/octet-stream"
}
