// Package breach checks passwords against a k-anonymity range API such as
// Have I Been Pwned. Only the first five hex characters of the SHA-1 digest
// ever leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultBaseURL   = "https://api.pwnedpasswords.com/range/"
	DefaultUserAgent = "gophvault-breach-checker/1.0"
	DefaultCacheTTL  = 24 * time.Hour
	DefaultCacheSize = 10000
	DefaultTimeout   = 5 * time.Second

	prefixLen = 5
)

// Result is the outcome of one check. It is never persisted.
type Result struct {
	Found bool
	Count int
}

// Config tunes the checker. Zero values fall back to the defaults above.
type Config struct {
	BaseURL   string
	UserAgent string
	CacheTTL  time.Duration
	CacheSize int
	Timeout   time.Duration
}

// Checker is safe for concurrent use. Create one per process and share it.
type Checker struct {
	client    *http.Client
	baseURL   string
	userAgent string
	cache     *expirable.LRU[string, Result]
	logger    logging.Logger
}

func NewChecker(cfg Config, logger logging.Logger) *Checker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Checker{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		cache:     expirable.NewLRU[string, Result](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:    logger.With("module", "breach"),
	}
}

// Check reports whether password appears in the corpus. Any failure of the
// remote service yields a zero Result; failures are not cached.
func (c *Checker) Check(ctx context.Context, password string) Result {
	if password == "" {
		return Result{}
	}

	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))

	if r, ok := c.cache.Get(digest); ok {
		return r
	}

	prefix, suffix := digest[:prefixLen], digest[prefixLen:]
	r, err := c.lookup(ctx, prefix, suffix)
	if err != nil {
		c.logger.Warn(ctx, "breach lookup failed", "prefix", prefix, "error", err)
		return Result{}
	}

	c.cache.Add(digest, r)
	return r
}

// CheckMany checks each password in turn. Results are positional.
func (c *Checker) CheckMany(ctx context.Context, passwords []string) []Result {
	out := make([]Result, len(passwords))
	for i, p := range passwords {
		if ctx.Err() != nil {
			break
		}
		out[i] = c.Check(ctx, p)
	}
	return out
}

func (c *Checker) lookup(ctx context.Context, prefix, suffix string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+prefix, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Add-Padding", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("range api returned status %d", resp.StatusCode)
	}

	return parseRange(resp.Body, suffix)
}

// parseRange scans "SUFFIX:COUNT" lines for suffix. Padding entries have a
// zero count and never match a real password.
func parseRange(r io.Reader, suffix string) (Result, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cand, countStr, ok := strings.Cut(line, ":")
		if !ok {
			return Result{}, fmt.Errorf("malformed range line")
		}
		if !strings.EqualFold(cand, suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return Result{}, fmt.Errorf("malformed count: %w", err)
		}
		if count == 0 {
			return Result{}, nil
		}
		return Result{Found: true, Count: count}, nil
	}
	if err := scanner.Err(); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}
