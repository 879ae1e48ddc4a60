// Package transport sends Messages API requests over HTTP, applying
// retry/backoff to transient failures and turning non-2xx responses into
// xerrors.Error values.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rescrv/claudius/wire"
	"github.com/rescrv/claudius/xerrors"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	anthropicVersion  = "2023-06-01"
	maxResponseBody   = 10 * 1024 * 1024
)

// Client sends MessageCreateParams over HTTP and decodes either a
// complete wire.Message (non-streaming) or a raw SSE body (streaming,
// consumed by package ssestream).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
	retry      RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.httpClient = c } }
func WithBaseURL(url string) Option        { return func(cl *Client) { cl.baseURL = url } }
func WithLogger(l *slog.Logger) Option      { return func(cl *Client) { cl.logger = l } }
func WithRetryPolicy(p RetryPolicy) Option  { return func(cl *Client) { cl.retry = p } }

// New constructs a Client. apiKey must be non-empty; resolving it from
// the environment is config's job, not transport's.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, xerrors.InvalidRequest("an API key is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		baseURL:    defaultBaseURL,
		logger:     slog.Default(),
		retry:      DefaultRetryPolicy(),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send issues a non-streaming request and decodes the resulting Message,
// retrying transient failures per the Client's RetryPolicy.
func (c *Client) Send(ctx context.Context, params wire.MessageCreateParams) (*wire.Message, error) {
	params.Stream = false
	var msg wire.Message
	err := c.retry.Do(ctx, func(retryAfter *time.Duration) error {
		resp, err := c.do(ctx, params)
		if err != nil {
			return err
		}
		defer closeWithLog(c.logger, resp.Body)
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return xerrors.Network("reading response body", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			*retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			return decodeAPIError(resp.StatusCode, body)
		}
		if jerr := json.Unmarshal(body, &msg); jerr != nil {
			return xerrors.Serialization("decoding message response", jerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// OpenStream issues a streaming request and returns the raw response
// body for package ssestream to parse. The caller owns closing the body.
func (c *Client) OpenStream(ctx context.Context, params wire.MessageCreateParams) (io.ReadCloser, error) {
	params.Stream = true
	var body io.ReadCloser
	err := c.retry.Do(ctx, func(retryAfter *time.Duration) error {
		resp, err := c.do(ctx, params)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer closeWithLog(c.logger, resp.Body)
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
			*retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			return decodeAPIError(resp.StatusCode, raw)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, params wire.MessageCreateParams) (*http.Response, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, xerrors.Serialization("encoding request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Network("building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.logger.Debug("sent message request", "duration", time.Since(start), "streaming", params.Stream)
	if err != nil {
		return nil, xerrors.Network("sending request", err)
	}
	return resp, nil
}

func decodeAPIError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	requestID := ""
	if json.Unmarshal(body, &payload) != nil || payload.Error.Type == "" {
		return xerrors.API(status, "unknown_error", string(body), requestID)
	}
	return xerrors.API(status, payload.Error.Type, payload.Error.Message, requestID)
}

// parseRetryAfter accepts the delay-seconds form of Retry-After (the
// only form Anthropic's API sends); an unparsable or absent header
// yields zero, leaving the exponential/rate-limiter backoff in charge.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func closeWithLog(logger *slog.Logger, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("failed to close response body", "error", err)
	}
}
