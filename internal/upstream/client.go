// Package upstream retrieves event listings from the third-party ticketing API.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultPageDelay  = 500 * time.Millisecond
	defaultMaxPages   = 50
	defaultMaxRetries = 3
	defaultRetryAfter = 10 * time.Second

	// retryInitial and retryMax bound the backoff schedule (2s, 5s, 10s).
	retryInitial    = 2 * time.Second
	retryMax        = 10 * time.Second
	retryMultiplier = 2.5
)

type Config struct {
	BaseURL  string
	APIKey   string
	PageSize int

	// MaxPages bounds worst-case runtime against a misbehaving upstream.
	MaxPages  int
	Timeout   time.Duration
	PageDelay time.Duration

	// MaxRetries is the per-page retry budget for transient failures.
	// Rate limiting does not consume it.
	MaxRetries    uint64
	RetryInterval time.Duration
}

// Client walks the paginated listings endpoint one page at a time. Sequential
// fetching is deliberate: it caps the outbound request rate and keeps backoff
// reasoning simple.
type Client struct {
	baseURL       string
	apiKey        string
	pageSize      int
	maxPages      int
	timeout       time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	limiter       *rate.Limiter
	http          *http.Client
	log           zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = defaultPageDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = retryInitial
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		pageSize:      cfg.PageSize,
		maxPages:      cfg.MaxPages,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		// Burst 1 so the first page goes out immediately and later pages are
		// spaced by PageDelay.
		limiter: rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		http:    &http.Client{},
		log:     logger.With().Str("component", "upstream").Logger(),
	}
}

// FetchAll retrieves every listing page in order, up to the hard page cap.
// Either the full upstream set (capped) is returned, or an error is raised
// after the retry budget for some page is exhausted.
func (c *Client) FetchAll(ctx context.Context) ([]Event, error) {
	var out []Event
	totalPages := 1
	for page := 1; page <= totalPages && page <= c.maxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		p, err := c.fetchPageWithRetry(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		out = append(out, p.Events...)
		if p.TotalPages > 0 {
			totalPages = p.TotalPages
		}
		c.log.Info().Int("page", page).Int("count", len(p.Events)).Int("total_pages", totalPages).Msg("page fetched")
	}
	if totalPages > c.maxPages {
		c.log.Warn().Int("total_pages", totalPages).Int("cap", c.maxPages).Msg("upstream reports more pages than the cap, truncating")
	}
	return out, nil
}

func (c *Client) fetchPageWithRetry(ctx context.Context, page int) (*Page, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = retryMultiplier
	bo.MaxInterval = retryMax
	bo.MaxElapsedTime = 0

	var p *Page
	op := func() error {
		var err error
		p, err = c.fetchPage(ctx, page)
		if err != nil {
			c.log.Warn().Err(err).Int("page", page).Msg("page fetch failed, will retry")
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return p, nil
}

// fetchPage is one attempt against the retry budget. Rate limiting is resolved
// inside the attempt: wait the hinted duration and re-issue the same request,
// indefinitely, until it succeeds or fails with a non-429 error.
func (c *Client) fetchPage(ctx context.Context, page int) (*Page, error) {
	for {
		p, retryIn, err := c.doPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if retryIn > 0 {
			c.log.Warn().Int("page", page).Dur("retry_in", retryIn).Msg("rate limited by upstream")
			select {
			case <-time.After(retryIn):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return p, nil
	}
}

// doPage performs a single HTTP round trip bounded by the page timeout.
// A 429 is reported through retryIn, not as an error.
func (c *Client) doPage(ctx context.Context, page int) (*Page, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.pageSize))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/events?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retryAfterHint(resp), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	var p Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, 0, fmt.Errorf("decode page: %w", err)
	}
	return &p, 0, nil
}

// retryAfterHint reads the upstream's machine-readable wait hint: the
// Retry-After header, then a retry_after field in the body, then a fixed
// fallback.
func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	var body struct {
		RetryAfter int `json:"retry_after"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.RetryAfter > 0 {
		return time.Duration(body.RetryAfter) * time.Second
	}
	return defaultRetryAfter
}
