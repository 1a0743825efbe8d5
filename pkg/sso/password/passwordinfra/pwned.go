// Package passwordinfra talks to the pwned passwords range API.
package passwordinfra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/sso/password"
)

const DefaultURL = "https://api.pwnedpasswords.com/range"

var ErrRegistry = errx.NewRegistry("PWNED")

var CodeRangeFailed = ErrRegistry.Register("RANGE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Pwned passwords range request failed")

// HTTPClient fetches ranges over HTTP and caches bodies per prefix.
type HTTPClient struct {
	url    string
	client *http.Client
	cache  *expirable.LRU[string, string]
}

var _ password.PwnedClient = (*HTTPClient)(nil)

type Config struct {
	URL       string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &HTTPClient{
		url:    strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

func (c *HTTPClient) Range(ctx context.Context, prefix string) (string, error) {
	if body, ok := c.cache.Get(prefix); ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/"+prefix, nil)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeRangeFailed, err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeRangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrRegistry.NewWithCause(CodeRangeFailed, fmt.Errorf("status %d", resp.StatusCode)).
			WithDetail("prefix", prefix)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeRangeFailed, err)
	}

	body := string(raw)
	c.cache.Add(prefix, body)
	return body, nil
}
