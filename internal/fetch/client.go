// Package fetch issues upstream HTTP requests with bounded retries and
// exponential backoff. A Client holds no per-call mutable state and is safe
// for concurrent use by independent sources.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/metrics"
)

const (
	maxBodyBytes   = 8 << 20
	maxDetailBytes = 512
)

// Policy configures retries and timeouts.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Factor    float64
	Timeout   time.Duration
}

// DefaultPolicy retries four times with 1s × 1.5^n backoff and a 15s per-attempt timeout.
func DefaultPolicy() Policy {
	return Policy{Attempts: 4, BaseDelay: time.Second, Factor: 1.5, Timeout: 15 * time.Second}
}

func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Factor <= 0 {
		p.Factor = d.Factor
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	return p
}

// Backoff returns the wait after the n-th failed attempt (0-based): BaseDelay × Factor^n.
func (p Policy) Backoff(n int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Factor, float64(n)))
}

// BasicAuth carries HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes one upstream call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
	// Body is sent as-is when []byte or string, otherwise JSON-encoded.
	Body      any
	BasicAuth *BasicAuth
	// Timeout overrides the policy's per-attempt timeout.
	Timeout time.Duration
	// SecretPath hides the URL path in errors, for APIs that put a token there.
	SecretPath bool
}

// Response is a successful (2xx) upstream response with its body fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// Client performs requests under a retry Policy.
type Client struct {
	http   *http.Client
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Client. Zero fields in p fall back to DefaultPolicy.
func New(p Policy, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		policy: p.normalize(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective retry policy.
func (c *Client) Policy() Policy { return c.policy }

// Do issues req, retrying on 429, 5xx, timeouts and connection errors.
// Any other non-2xx status fails immediately with the body captured in Detail.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	host := hostOf(req.URL)
	shown := redactURL(req.URL, req.SecretPath)
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	}()

	var last *FetchError
	for attempt := 0; attempt < c.policy.Attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.policy.Backoff(attempt-1)); err != nil {
				return nil, canceled(shown, attempt, err)
			}
		}

		resp, ferr := c.once(ctx, req, body, shown)
		if ferr == nil {
			metrics.FetchAttemptsTotal.WithLabelValues(host, "ok").Inc()
			return resp, nil
		}
		metrics.FetchAttemptsTotal.WithLabelValues(host, outcomeLabel(ferr)).Inc()
		ferr.Attempts = attempt + 1

		if ferr.Kind == KindCanceled || !ferr.Transient() {
			return nil, ferr
		}
		last = ferr
	}

	return nil, &FetchError{
		Kind:     KindRetriesExhausted,
		Last:     last.Kind,
		Status:   last.Status,
		Attempts: c.policy.Attempts,
		URL:      shown,
		Detail:   last.Detail,
		Err:      last.Err,
	}
}

// once performs a single attempt. shown is the redacted URL used in errors.
func (c *Client) once(ctx context.Context, req Request, body []byte, shown string) (*Response, *FetchError) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.policy.Timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(actx, req.Method, req.URL, rdr)
	if err != nil {
		// Malformed URL or method never succeeds on retry.
		err = stripURL(err)
		return nil, &FetchError{Kind: KindHTTPStatus, URL: shown, Detail: err.Error(), Err: err}
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.BasicAuth != nil {
		httpReq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, shown, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(ctx, shown, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Kind:   KindHTTPStatus,
			Status: resp.StatusCode,
			URL:    shown,
			Detail: truncate(data),
		}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// classify maps a transport error to a FetchError kind. The parent context
// is checked first so caller cancellation is never retried.
func classify(parent context.Context, shown string, err error) *FetchError {
	if perr := parent.Err(); perr != nil {
		return canceled(shown, 0, perr)
	}
	kind := KindConnectionRefused
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		kind = KindTimeout
	}
	err = stripURL(err)
	return &FetchError{Kind: kind, URL: shown, Detail: err.Error(), Err: err}
}

// stripURL drops the *url.Error wrapper, whose message repeats the full
// request URL including query credentials.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// redactURL returns raw without userinfo, query or fragment. With secretPath
// the path is replaced as well.
func redactURL(raw string, secretPath bool) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	if secretPath {
		u.Path = "/redacted"
		u.RawPath = ""
	}
	return u.String()
}

func canceled(rawURL string, attempts int, err error) *FetchError {
	return &FetchError{Kind: KindCanceled, URL: rawURL, Attempts: attempts, Detail: err.Error(), Err: err}
}

func encodeBody(b any) ([]byte, error) {
	switch v := b.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte) string {
	if len(b) > maxDetailBytes {
		return string(b[:maxDetailBytes]) + "..."
	}
	return string(b)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func outcomeLabel(e *FetchError) string {
	if e.Kind != KindHTTPStatus {
		return e.Kind.String()
	}
	switch {
	case e.Status == http.StatusTooManyRequests:
		return "http_429"
	case e.Status >= 500:
		return "http_5xx"
	case e.Status >= 400:
		return "http_4xx"
	default:
		return "http_other"
	}
}
