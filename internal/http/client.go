package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/handiism/albumpdf/internal/config"
	ioutils "github.com/handiism/albumpdf/internal/io"
	"github.com/handiism/albumpdf/internal/model"
)

// Remediation hints attached to classified HTTP errors.
const (
	HintAccessDenied = "the host is rejecting this client: switch egress IP or proxy (proxy_url) or refresh credentials"
	HintRateLimited  = "the host is throttling requests: increase the delay between requests or lower max_concurrent_pages"
)

// Options configures a Client.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration

	// MaxConnections bounds pooled connections per host.
	MaxConnections int

	// ProxyURL routes requests through a proxy. Empty uses the environment.
	ProxyURL string

	// Retry is applied around every request.
	Retry RetryPolicy

	// Transport overrides the pooled transport. Nil builds one from the
	// options above.
	Transport http.RoundTripper
}

// Client wraps HTTP operations for the remote image host.
//
// Client provides:
//   - A realistic browser User-Agent and a Referer for the target host
//   - One pooled transport shared by every download (safe for concurrent use)
//   - Bounded retry with exponential backoff on transient failures
//   - HTTP status classification into model error kinds
//   - Atomic file downloads
//
// Example usage:
//
//	client, err := NewClient(opts)
//
//	// Fetch an album page
//	resp, err := client.WithReferer("https://host.example/").Do(ctx, albumURL)
//
//	// Download a page straight to disk
//	n, err := client.FetchInto(ctx, imageURL, "/data/img/12345/1.jpg")
type Client struct {
	httpClient *http.Client
	userAgent  string
	referer    string
	retry      RetryPolicy
}

// NewClient creates a Client with its own pooled transport.
func NewClient(opts Options) (*Client, error) {
	maxConns := opts.MaxConnections
	if maxConns < 1 {
		maxConns = 100
	}

	proxy := http.ProxyFromEnvironment
	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", opts.ProxyURL, err)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if opts.Transport != nil {
		transport = opts.Transport
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
	}, nil
}

// NewClientFromSettings creates a Client configured by settings.
func NewClientFromSettings(s *config.Settings) (*Client, error) {
	retry := DefaultRetryPolicy()
	retry.MaxAttempts = s.RetryCount
	retry.InitialBackoff = s.RetryInitialBackoff
	retry.MaxBackoff = s.RetryMaxBackoff

	return NewClient(Options{
		UserAgent:      s.UserAgent,
		Timeout:        s.RequestTimeout,
		MaxConnections: s.MaxConnections,
		ProxyURL:       s.ProxyURL,
		Retry:          retry,
	})
}

// WithReferer returns a Client sending the given Referer. The connection
// pool is shared with c.
func (c *Client) WithReferer(referer string) *Client {
	cp := *c
	cp.referer = referer
	return &cp
}

// WithRetry returns a Client using policy. The connection pool is shared
// with c.
func (c *Client) WithRetry(policy RetryPolicy) *Client {
	cp := *c
	cp.retry = policy
	return &cp
}

// Retry returns the client's retry policy.
func (c *Client) Retry() RetryPolicy {
	return c.retry
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	// Parameters are (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Response is a fully read successful response.
type Response struct {
	// URL is the final URL after redirects.
	URL *url.URL

	// ContentType is the Content-Type header.
	ContentType string

	// Body holds the response body.
	Body []byte
}

// Do performs a GET request with retry and returns the whole response.
//
// Returns a *model.Error classified as:
//   - AccessDenied for HTTP 403 (with a hint)
//   - NotFound for HTTP 404
//   - RateLimited for HTTP 429 (with a hint)
//   - Unclassified for any other non-2xx status, a TLS verification
//     failure, or transient failures that exhausted the retry budget
//
// Context cancellation is returned as the context error.
func (c *Client) Do(ctx context.Context, rawURL string) (*Response, error) {
	var out *Response
	err := c.withRetry(ctx, rawURL, func(ctx context.Context) error {
		return c.get(ctx, rawURL, func(resp *http.Response, body io.Reader) error {
			data, err := io.ReadAll(body)
			if err != nil {
				return err
			}
			out = &Response{
				URL:         resp.Request.URL,
				ContentType: resp.Header.Get("Content-Type"),
				Body:        data,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch performs a GET request and returns the response body.
//
// Example:
//
//	data, err := client.Fetch(ctx, "https://cdn.example.com/12345/1.jpg")
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchString performs a GET request and returns the body as a string.
func (c *Client) FetchString(ctx context.Context, rawURL string) (string, error) {
	data, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FetchInto downloads rawURL into destPath and returns the number of bytes
// written.
//
// The body is streamed into a temp file beside destPath and renamed into
// place only when complete; a failed attempt never leaves a partial file at
// destPath. Each retry starts a fresh temp file.
//
// Example:
//
//	n, err := client.FetchInto(ctx, pageURL, "/data/img/12345/3.jpg")
func (c *Client) FetchInto(ctx context.Context, rawURL, destPath string) (int64, error) {
	var written int64
	err := c.withRetry(ctx, rawURL, func(ctx context.Context) error {
		return c.get(ctx, rawURL, func(resp *http.Response, body io.Reader) error {
			return ioutils.WriteAtomic(ctx, destPath, func(w io.Writer) error {
				pw := &ProgressWriter{Writer: w, Total: resp.ContentLength}
				_, err := io.Copy(pw, body)
				written = pw.Written
				return err
			})
		})
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (c *Client) withRetry(ctx context.Context, rawURL string, op func(ctx context.Context) error) error {
	policy := c.retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn().
			Err(err).
			Str("url", rawURL).
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Dur("delay", delay).
			Msg("retrying request")
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	err := policy.Do(ctx, op)
	if err != nil && ctx.Err() == nil {
		e := model.AsError(err)
		log.Error().
			Err(err).
			Str("url", rawURL).
			Str("kind", string(e.Kind)).
			Int("status", e.Status).
			Msg("request failed")
	}
	return err
}

// get performs one attempt. handle receives the body of a 2xx response;
// read errors on the body are classified as transient, any other error
// returned by handle is not retried.
func (c *Client) get(ctx context.Context, rawURL string, handle func(resp *http.Response, body io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &model.Error{Kind: model.KindUnclassified, Message: "invalid request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/json,image/avif,image/webp,image/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return err
	}

	err = handle(resp, &transientReader{r: resp.Body})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var classified *model.Error
	if errors.As(err, &classified) {
		return err
	}
	return &model.Error{Kind: model.KindUnclassified, Message: "handle response", Err: err}
}

// classifyStatus maps non-2xx responses to the error taxonomy.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	target := resp.Request.URL.Redacted()
	switch resp.StatusCode {
	case http.StatusForbidden:
		return &model.Error{
			Kind:    model.KindAccessDenied,
			Message: fmt.Sprintf("access denied by remote host (%s)", target),
			Hint:    HintAccessDenied,
			Status:  resp.StatusCode,
		}
	case http.StatusNotFound:
		return &model.Error{
			Kind:    model.KindNotFound,
			Message: fmt.Sprintf("resource not found (%s)", target),
			Status:  resp.StatusCode,
		}
	case http.StatusTooManyRequests:
		return &model.Error{
			Kind:    model.KindRateLimited,
			Message: fmt.Sprintf("rate limited by remote host (%s)", target),
			Hint:    HintRateLimited,
			Status:  resp.StatusCode,
		}
	default:
		return &model.Error{
			Kind:    model.KindUnclassified,
			Message: fmt.Sprintf("HTTP %d: %s (%s)", resp.StatusCode, http.StatusText(resp.StatusCode), target),
			Status:  resp.StatusCode,
		}
	}
}

// classifyTransportError decides whether a failed round trip is worth
// retrying. Cancellation and certificate problems are not.
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return &model.Error{Kind: model.KindUnclassified, Message: "tls verification failed", Err: err}
	}

	return &model.Error{Kind: model.KindTransient, Message: "request failed", Err: err}
}

// transientReader marks body read failures (resets, timeouts mid-body) as
// transient so the attempt is retried.
type transientReader struct {
	r io.Reader
}

func (t *transientReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &model.Error{Kind: model.KindTransient, Message: "read response body", Err: err}
	}
	return n, err
}
