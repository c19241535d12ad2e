package rules

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/quantumauth-io/rulesign-go/log"
	"github.com/quantumauth-io/rulesign-go/retry"
)

const (
	DefaultTimeout = 10 * time.Second

	maxRulesBodySize = 1 << 20
)

// ErrFetch marks any failure to obtain usable rules: transport, status,
// decode or validation.
var ErrFetch = errors.New("rules: fetch failed")

type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("rules: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// Cache stores the raw rules document. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, data []byte) error
}

type FetcherConfig struct {
	URL     string
	Timeout time.Duration
	// Retry governs the download only. Nil means a single attempt.
	Retry *retry.Config
	// Strategy forces a rendering strategy; zero infers it from the document.
	Strategy   Strategy
	HTTPClient *http.Client
	Cache      Cache
}

type Fetcher struct {
	url      string
	http     *http.Client
	retry    *retry.Config
	strategy Strategy
	cache    Cache
}

func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rules: fetcher URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.NoRetries()
	}

	return &Fetcher{
		url:      cfg.URL,
		http:     httpClient,
		retry:    retryCfg,
		strategy: cfg.Strategy,
		cache:    cfg.Cache,
	}, nil
}

// Fetch returns validated rules, from the cache when one is configured and
// holds a usable document, otherwise from the network.
func (f *Fetcher) Fetch(ctx context.Context) (*Rules, error) {
	if r := f.fromCache(ctx); r != nil {
		return r, nil
	}

	data, err := retry.Do(ctx, f.retry, f.download, isRetryable, "rules download")
	if err != nil {
		return nil, &FetchError{URL: f.url, Err: err}
	}

	r, err := f.decode(data)
	if err != nil {
		return nil, &FetchError{URL: f.url, Err: err}
	}
	log.Debug("fetched rules", "url", f.url, "revision", r.Revision.String(), "strategy", r.Strategy.String())

	if f.cache != nil {
		if err := f.cache.Set(ctx, data); err != nil {
			log.Warn("failed to cache rules", "error", err)
		}
	}
	return r, nil
}

func (f *Fetcher) fromCache(ctx context.Context) *Rules {
	if f.cache == nil {
		return nil
	}
	data, err := f.cache.Get(ctx)
	if err != nil {
		log.Warn("rules cache lookup failed", "error", err)
		return nil
	}
	if data == nil {
		return nil
	}
	r, err := f.decode(data)
	if err != nil {
		log.Warn("discarding cached rules", "error", err)
		return nil
	}
	log.Debug("using cached rules", "revision", r.Revision.String())
	return r
}

func (f *Fetcher) decode(data []byte) (*Rules, error) {
	r, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return r.WithStrategy(f.strategy)
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRulesBodySize))
		return nil, &statusError{code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRulesBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read rules body")
	}
	return data, nil
}

// isRetryable retries transport failures, 403 (the publisher's CDN throttles
// that way) and server errors.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusForbidden || se.code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
