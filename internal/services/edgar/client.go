// Package edgar talks to SEC EDGAR: the current-filings Atom feed, filing
// archives and HTML extraction. All traffic goes through one rate-limited Client.
package edgar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/secsignal/internal/common"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the EDGAR archive host.
	DefaultBaseURL = "https://www.sec.gov"

	// DefaultFeedURL is the current-filings endpoint.
	DefaultFeedURL = "https://www.sec.gov/cgi-bin/browse-edgar"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRequestsPerSecond is the SEC fair access ceiling.
	MaxRequestsPerSecond = 10

	// DefaultMinGap is the minimum spacing between two requests.
	DefaultMinGap = 100 * time.Millisecond
)

// Response is the body and content type of a successful request.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client is the shared EDGAR HTTP client.
type Client struct {
	http      *resty.Client
	userAgent string
	limiter   *rate.Limiter
	minGap    time.Duration
	logger    arbor.ILogger

	mu       sync.Mutex
	lastSent time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// WithRateLimit sets the request rate, capped at MaxRequestsPerSecond.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 || requestsPerSecond > MaxRequestsPerSecond {
			requestsPerSecond = MaxRequestsPerSecond
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithMinGap sets the minimum spacing between requests.
func WithMinGap(gap time.Duration) ClientOption {
	return func(c *Client) {
		if gap >= 0 {
			c.minGap = gap
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an EDGAR client. userAgent is the contact identifier SEC
// requires on every request; an empty value is a configuration error.
func NewClient(userAgent string, opts ...ClientOption) (*Client, error) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, &common.ConfigurationError{
			Field:  "edgar.user_agent",
			Reason: "contact identifier is required for SEC EDGAR access",
		}
	}

	c := &Client{
		http: resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept-Encoding", "gzip, deflate"),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(MaxRequestsPerSecond), 1),
		minGap:    DefaultMinGap,
		logger:    arbor.NewLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewClientFromConfig builds a client from the [edgar] configuration section.
func NewClientFromConfig(cfg *common.EdgarConfig, logger arbor.ILogger) (*Client, error) {
	return NewClient(cfg.UserAgent,
		WithRateLimit(cfg.RequestsPerSecond),
		WithMinGap(common.MustDuration(cfg.MinRequestGap, DefaultMinGap)),
		WithTimeout(common.MustDuration(cfg.RequestTimeout, DefaultTimeout)),
		WithLogger(logger),
	)
}

// UserAgent returns the contact identifier sent with each request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Get issues a rate-limited GET. Non-2xx responses are returned as *common.HTTPStatusError
// alongside the response; transport failures are wrapped as transient.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, common.Transient(fmt.Errorf("GET %s: %w", url, err))
	}

	out := &Response{
		URL:         url,
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}

	c.logger.Trace().
		Str("url", url).
		Int("status", out.StatusCode).
		Int("bytes", len(out.Body)).
		Msg("EDGAR request completed")

	if !resp.IsSuccess() {
		return out, &common.HTTPStatusError{URL: url, StatusCode: out.StatusCode}
	}
	return out, nil
}

// wait blocks until both the token bucket and the minimum gap allow another request.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastSent.IsZero() {
		if remaining := c.minGap - time.Since(c.lastSent); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	c.lastSent = time.Now()
	return nil
}
