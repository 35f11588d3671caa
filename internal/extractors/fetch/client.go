package fetch

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/llmsync/internal/core/domain"
	"github.com/custodia-labs/llmsync/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes caps every response body.
	DefaultMaxBodyBytes = 32 << 20

	// DefaultUserAgent identifies outbound requests.
	DefaultUserAgent = "llmsync (+https://llmstxt.org)"
)

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	RequestDelay time.Duration
	Retry        RetryPolicy
	MaxBodyBytes int64
	UserAgent    string

	// Token sends an OAuth2 bearer token. Mutually exclusive with Username.
	Token string

	// Username and Password send HTTP basic credentials.
	Username string
	Password string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// OptionsFromConfig derives client options from the performance settings.
func OptionsFromConfig(p domain.PerformanceConfig) Options {
	return Options{
		Timeout:      p.RequestTimeoutDuration(),
		RequestDelay: p.RequestDelayDuration(),
		Retry:        PolicyFromConfig(p),
	}
}

// Response is a fully read, UTF-8 decoded HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is an HTTP client with retries, throttling and body decoding.
// It is safe for concurrent use.
type Client struct {
	http        *http.Client
	rateLimiter *RateLimiter
	retry       RetryPolicy
	maxBody     int64
	userAgent   string
	username    string
	password    string
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client from options.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	base := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		base = &copied
	}

	hc := base
	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		)
		hc = oauth2.NewClient(ctx, ts)
	}
	hc.Timeout = timeout

	retry := opts.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		http:        hc,
		rateLimiter: NewRateLimiter(opts.RequestDelay),
		retry:       retry,
		maxBody:     maxBody,
		userAgent:   userAgent,
		username:    opts.Username,
		password:    opts.Password,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Get fetches rawURL, retrying transient failures per the RetryPolicy.
// Non-2xx responses are returned as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.do(ctx, rawURL)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || !c.retry.ShouldRetry(attempt, err) {
			return nil, err
		}

		delay := c.retry.Delay(attempt, err)
		logger.Debug("fetch: attempt %d for %s failed (%v), retrying in %s", attempt, rawURL, err, delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// GetJSON fetches rawURL and decodes its JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) (*Response, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return resp, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return resp, nil
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, rawURL string) (*Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, application/xml, text/xml, text/html;q=0.9, */*;q=0.8")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, c.statusError(httpResp, rawURL)
	}

	body, err := c.readBody(httpResp, rawURL)
	if err != nil {
		return nil, err
	}

	finalURL := rawURL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}
	return &Response{
		URL:        finalURL,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// statusError builds a StatusError, reading a JSON error code if present.
func (c *Client) statusError(resp *http.Response, rawURL string) error {
	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		URL:        rawURL,
		RetryAfter: parseRetryAfter(resp, c.now()),
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &apiErr) == nil {
		statusErr.Code = apiErr.Code
	}
	return statusErr
}

// readBody reads the body up to the cap, gunzips and decodes it to UTF-8.
func (c *Client) readBody(resp *http.Response, rawURL string) ([]byte, error) {
	br := bufio.NewReader(resp.Body)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", rawURL, err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, rawURL, c.maxBody)
	}

	return decodeText(data, resp.Header.Get("Content-Type"))
}

// decodeText converts HTML and plain text bodies to UTF-8.
// XML keeps its bytes so the parser can honour the encoding in its prolog.
// JSON is UTF-8 by definition.
func decodeText(data []byte, contentType string) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return data, nil
	}
	if mediaType != "text/html" && mediaType != "text/plain" && mediaType != "application/xhtml+xml" {
		return data, nil
	}

	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return data, nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return decoded, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ResolveReference resolves ref against base, returning ref unchanged if either fails to parse.
func ResolveReference(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
