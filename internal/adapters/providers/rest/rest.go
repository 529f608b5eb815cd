// Package rest is the retrying, rate limited JSON transport shared by the
// provider clients
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seochecker/internal/adapters/providers/archive"
	"seochecker/internal/core/version"
	perr "seochecker/internal/platform/errors"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/metrics"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 90 * time.Second
	defaultMaxAttempts = 3
	defaultRetryBase   = time.Second
	defaultRetryCap    = 10 * time.Second
	maxBody            = 32 << 20
)

// Options configures the Client
type Options struct {
	// Provider labels logs, metrics and errors
	Provider string
	BaseURL  string
	Timeout  time.Duration

	// Header is sent on every call; auth lives here
	Header http.Header

	// RPS <= 0 disables client side rate limiting
	RPS   float64
	Burst int

	// Retry config for transient transport failures only
	MaxAttempts int
	RetryBase   time.Duration
	RetryCap    time.Duration

	Archive      archive.Archive
	ArchiveLabel string
}

// Client issues JSON calls against one provider
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     *logger.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// New creates a Client with sane defaults
func New(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.RetryCap <= 0 {
		o.RetryCap = defaultRetryCap
	}
	if o.Archive == nil {
		o.Archive, o.ArchiveLabel = archive.Nop{}, "off"
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if o.RPS > 0 {
		burst := o.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(o.RPS), burst)
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return &Client{
		http:    &http.Client{Timeout: o.Timeout},
		opts:    o,
		limiter: lim,
		log:     logger.Named(o.Provider),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Provider returns the provider label
func (c *Client) Provider() string { return c.opts.Provider }

// Call sends method to endpoint and returns the raw JSON body
// GET params must be url.Values and go into the query string; other
// methods send params as a JSON body
func (c *Client) Call(ctx context.Context, method, endpoint string, params any) (json.RawMessage, error) {
	start := c.now()
	body, err := c.call(ctx, method, endpoint, params)
	metrics.ProviderCall(c.opts.Provider, endpoint, err, c.now().Sub(start))
	return body, err
}

// Fetch GETs an absolute URL without the provider headers, for download links
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	start := c.now()
	body, err := c.do(ctx, "download", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	})
	metrics.ProviderCall(c.opts.Provider, "download", err, c.now().Sub(start))
	return body, err
}

func (c *Client) call(ctx context.Context, method, endpoint string, params any) (json.RawMessage, error) {
	u := c.opts.BaseURL + endpoint
	var payload []byte
	switch p := params.(type) {
	case nil:
	case url.Values:
		if method != http.MethodGet {
			return nil, perr.InvalidArgf("%s %s: query params need GET", method, endpoint)
		}
		if len(p) > 0 {
			u += "?" + p.Encode()
		}
	default:
		if method == http.MethodGet {
			return nil, perr.InvalidArgf("GET %s: params must be url.Values, got %T", endpoint, params)
		}
		b, err := json.Marshal(p)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "%s %s: encode body", method, endpoint)
		}
		payload = b
	}

	body, err := c.do(ctx, endpoint, func() (*http.Request, error) {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return nil, err
		}
		for k, vs := range c.opts.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &ProviderError{
			Provider: c.opts.Provider,
			Endpoint: endpoint,
			Status:   http.StatusOK,
			Body:     snippet(body),
			Err:      fmt.Errorf("malformed json payload"),
		}
	}
	archive.Best(ctx, c.opts.Archive, c.opts.ArchiveLabel, endpoint, body)
	return body, nil
}

// do runs the attempt loop; only transport failures are retried
func (c *Client) do(ctx context.Context, endpoint string, build func() (*http.Request, error)) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeTimeout, "%s %s rate limiter wait", c.opts.Provider, endpoint)
		}
		req, err := build()
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "%s new request failed", c.opts.Provider)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", version.UserAgent())
		}

		body, status, err := c.roundTrip(req)
		if err == nil && (status < 200 || status > 299) {
			return nil, &ProviderError{Provider: c.opts.Provider, Endpoint: endpoint, Status: status, Body: snippet(body)}
		}
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil || !isTransient(err) {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s %s failed", c.opts.Provider, endpoint)
		}
		if attempt+1 >= c.opts.MaxAttempts {
			code := perr.ErrorCodeUnavailable
			if isTimeout(err) {
				code = perr.ErrorCodeTimeout
			}
			return nil, perr.Wrapf(err, code, "%s %s failed after %d attempts", c.opts.Provider, endpoint, attempt+1)
		}

		back := c.backoff(attempt)
		metrics.ProviderRetry(c.opts.Provider, endpoint)
		c.log.Warn().Err(err).Str("endpoint", endpoint).Dur("retry_in", back).Int("attempt", attempt).
			Msg("transport error retrying")
		if err := c.sleep(ctx, back); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeTimeout, "%s %s canceled during backoff", c.opts.Provider, endpoint)
		}
	}
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("latency", c.now().Sub(start)).
		Msg("provider http response")
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// backoff is min(cap, base * 2^attempt)
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > c.opts.RetryCap {
		return c.opts.RetryCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
