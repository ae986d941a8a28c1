package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// maxBody caps how much of an upstream response we are willing to buffer.
const maxBody = 8 << 20

// StatusError is returned when the upstream answers outside 2xx.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s -> %d: %s", e.URL, e.Status, e.Body)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
	// Attempts bounds GetBytes retries on transport errors. Values below 1
	// mean a single attempt.
	Attempts int
	// Backoff is the pause between attempts.
	Backoff time.Duration
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: "pricecache/1.0",
		Attempts:  1,
		Backoff:   250 * time.Millisecond,
	}
}

// Do satisfies the HTTPClient interfaces used by the fetchers.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

// GetBytes performs a GET and returns the body. Transport errors are retried
// up to Attempts times; non-2xx answers are returned as *StatusError without
// retrying.
func (c *Client) GetBytes(ctx context.Context, url string, header http.Header) ([]byte, error) {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && c.Backoff > 0 {
			t := time.NewTimer(c.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		b, err := c.getOnce(ctx, url, header)
		if err == nil {
			return b, nil
		}
		lastErr = err
		var se *StatusError
		if errors.As(err, &se) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, &StatusError{URL: url, Status: resp.StatusCode, Body: string(b)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// GetJSON decodes a GET response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	b, err := c.GetBytes(ctx, url, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
