// Package webfetch provides a concrete agent.Tool that fetches a web
// page and converts its HTML to Markdown, adapted from the teacher's
// providers/tool/webfetch package (same timeouts, redirect policy, and
// body-size cap) onto the raw-JSON agent.Tool contract this module uses
// for dispatch instead of the teacher's generic tool.Tool[I, O].
package webfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/rescrv/claudius/wire"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultUserAgent      = "claudius-webfetch-tool/1.0"
	MaxBodySize           = 10 * 1024 * 1024
	DialTimeout           = 10 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ResponseHeaderTimeout = 10 * time.Second
	IdleConnTimeout       = 90 * time.Second
	maxRedirects          = 10
)

// Input is the JSON shape the model supplies as tool_use input.
type Input struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

// Output is the JSON shape returned as tool_result content.
type Output struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

var schema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "The URL of the web page to fetch"},
		"timeout_seconds": {"type": "integer", "minimum": 1, "maximum": 300},
		"user_agent": {"type": "string"}
	},
	"required": ["url"]
}`)

// Tool is the concrete agent.Tool implementation. It satisfies the
// agent.Tool interface directly (Name/Call/Definition) rather than
// wrapping a generic tool.Tool[I, O], since this module's dispatch
// layer works in raw JSON.
type Tool struct{}

func New() *Tool { return &Tool{} }

func (*Tool) Name() string { return "web_fetch" }

func (*Tool) Definition() wire.ToolDefinition {
	return wire.ToolDefinition{
		Name:        "web_fetch",
		Description: "Fetches a web page and converts its HTML content to Markdown. Follows redirects (up to 10) and returns the final URL.",
		InputSchema: schema,
	}
}

func (*Tool) Call(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decoding web_fetch input: %w", err)
	}
	out, err := fetch(ctx, in)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func fetch(ctx context.Context, in Input) (Output, error) {
	target := strings.TrimSpace(in.URL)
	if target == "" {
		return Output{}, fmt.Errorf("url cannot be empty")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	timeout := DefaultTimeout
	if in.TimeoutSeconds > 0 {
		timeout = time.Duration(in.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Output{}, fmt.Errorf("creating request: %w", err)
	}
	userAgent := DefaultUserAgent
	if in.UserAgent != "" {
		userAgent = in.UserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			IdleConnTimeout:       IdleConnTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			ForceAttemptHTTP2:     true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("too many redirects (>%d)", maxRedirects)
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, fmt.Errorf("request timeout or canceled: %w", err)
		}
		return Output{}, fmt.Errorf("fetching url: %w", err)
	}
	defer closeQuietly(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, resp.Status)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return Output{}, fmt.Errorf("reading response body: %w", err)
	}
	if len(htmlBytes) == MaxBodySize {
		return Output{}, fmt.Errorf("response body exceeds maximum size of %d bytes", MaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return Output{}, fmt.Errorf("converting HTML to Markdown: %w", err)
	}

	return Output{URL: resp.Request.URL.String(), Markdown: markdown}, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
