// Package httpfetch is the plain HTTP capability used by portal extractors.
package httpfetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"TenderScanner/internal/resilience"
)

const maxBody = 32 << 20

// Options configures Client.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RatePerHost float64
	Backoff     time.Duration
}

// Client fetches pages with a per-host rate limit and bounded retries.
type Client struct {
	http   *http.Client
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a client; zero options fall back to defaults.
func New(opts Options, logger *zap.Logger) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; TenderScanner/1.0)"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerHost <= 0 {
		opts.RatePerHost = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		logger:   logger.With(zap.String("component", "httpfetch")),
		limiters: map[string]*rate.Limiter{},
	}
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.opts.RatePerHost), 1)
		c.limiters[host] = lim
	}
	return lim
}

// Get returns the body of a 200 response. 429, 5xx and network errors are
// retried; other statuses fail immediately.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse url %s", rawURL)
	}
	lim := c.limiterFor(u.Host)

	policy := resilience.Policy{
		Attempts: c.opts.MaxRetries,
		Initial:  c.opts.Backoff,
		Max:      30 * time.Second,
		Jitter:   0.25,
		OnRetry:  resilience.LogRetries(c.logger, "GET "+u.Host),
	}

	var body []byte
	err = resilience.Do(ctx, policy, func(ctx context.Context) error {
		if err := lim.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter wait")
		}
		b, err := c.once(ctx, rawURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetch %s", rawURL)
	}
	return body, nil
}

func (c *Client) once(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept-Language", "en-CA,en;q=0.9,fr-CA;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, resilience.Transient(eris.Errorf("upstream returned %s", resp.Status), resp.StatusCode)
	default:
		return nil, eris.Errorf("upstream returned %s", resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "read body"), 0)
	}
	return b, nil
}
