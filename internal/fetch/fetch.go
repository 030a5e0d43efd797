package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/soundshelf/internal/cache"
)

var (
	// ErrEmptyURL is returned when there is nothing to fetch.
	ErrEmptyURL = errors.New("no audio url")

	// ErrTooLarge is returned when a response exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("audio file too large")
)

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Config controls the fetcher.
type Config struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxBytes          int64
	UserAgent         string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 4,
		Burst:             2,
		MaxBytes:          64 << 20,
		UserAgent:         "soundshelf",
	}
}

// Cache is the subset of cache.Manager the fetcher needs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

var _ Cache = (*cache.Manager)(nil)

// Fetcher downloads audio through the cache.
type Fetcher struct {
	client  *http.Client
	cache   Cache
	limiter *rate.Limiter
	config  Config
	group   singleflight.Group
}

// New creates a fetcher. A nil cache disables caching.
func New(cfg Config, c Cache) *Fetcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   c,
		limiter: rate.NewLimiter(limit, burst),
		config:  cfg,
	}
}

// Cached reports whether url can be served without a request.
func (f *Fetcher) Cached(url string) bool {
	if f.cache == nil {
		return false
	}
	_, ok := f.cache.Get(cache.Key(url))
	return ok
}

// Fetch returns the bytes behind url, from the cache when possible.
// Concurrent calls for the same url share one request, which keeps going
// when the caller that started it gives up. file:// URLs are read from disk
// directly.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}
	if strings.HasPrefix(url, "file://") {
		return readLocal(url)
	}

	key := cache.Key(url)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			return data, nil
		}
	}

	ch := f.group.DoChan(key, func() (interface{}, error) {
		dctx, cancel := f.detach(ctx)
		defer cancel()
		data, err := f.download(dctx, url)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			if err := f.cache.Put(key, data); err != nil {
				log.Debug("Could not cache audio", "url", url, "err", err)
			}
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// detach returns a context for a shared download. Callers waiting on the
// download may give up, but the download itself only stops at the
// configured timeout.
func (f *Fetcher) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if f.config.Timeout > 0 {
		return context.WithTimeout(ctx, f.config.Timeout)
	}
	return context.WithCancel(ctx)
}

func readLocal(rawURL string) ([]byte, error) {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	data, err := os.ReadFile(filepath.FromSlash(u.Path))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body := io.Reader(resp.Body)
	if f.config.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.config.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if f.config.MaxBytes > 0 && int64(len(data)) > f.config.MaxBytes {
		return nil, fmt.Errorf("fetch %s: %w (limit %s)", url, ErrTooLarge,
			humanize.IBytes(uint64(f.config.MaxBytes)))
	}

	log.Debug("Fetched audio", "url", url,
		"size", humanize.IBytes(uint64(len(data))),
		"took", time.Since(start).Round(time.Millisecond))
	return data, nil
}
