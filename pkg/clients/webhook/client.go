package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"casewatch/pkg/clients"
)

const (
	userAgent = "casewatch/1"
	// maxResponseBody caps how much of a webhook reply is kept for result messages.
	maxResponseBody = 64 << 10
)

// Response is a webhook reply with the body already read.
type Response struct {
	StatusCode int
	Body       string
}

// Client POSTs JSON documents to a single pre-shared endpoint.
type Client struct {
	url      string
	client   *http.Client
	executor failsafe.Executor[Response]
}

type Option func(*Client)

// NewClient validates the endpoint and builds a client. The endpoint must be
// an absolute http(s) URL.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	c := &Client{
		url: endpoint,
		client: &http.Client{
			Timeout:   clients.DefaultCallTimeout,
			Transport: clients.DefaultTransport(),
		},
		executor: clients.NewTimeoutExecutor[Response](clients.DefaultCallTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithTimeout sets the per-call time limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
			c.executor = clients.NewTimeoutExecutor[Response](d)
		}
	}
}

// Post sends payload as JSON and returns the status code and response body.
// Any status is returned without error; err is set only when no response was obtained.
func (c *Client) Post(ctx context.Context, payload any) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := c.executor.WithContext(ctx).GetWithExecution(func(exec failsafe.Execution[Response]) (Response, error) {
		return c.do(exec.Context(), body)
	})
	if err != nil {
		if clients.IsTimeout(err) {
			return 0, "", fmt.Errorf("webhook call timed out: %w", err)
		}
		return 0, "", err
	}
	return resp.StatusCode, resp.Body, nil
}

func (c *Client) do(ctx context.Context, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{}, fmt.Errorf("read webhook response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: string(data)}, nil
}

// RedactedURL masks the endpoint path and query for logging; workflow
// trigger URLs carry their secret in the path.
func (c *Client) RedactedURL() string {
	return RedactURL(c.url)
}

// RedactURL keeps scheme and host only.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "<invalid-url>"
	}
	return u.Scheme + "://" + u.Host + "/REDACTED"
}
