// Package claudius is a client library for Anthropic's Messages API: it
// sends requests, accumulates streaming responses into complete
// messages, and drives a tool-dispatching agent loop against a shared
// token budget.
package claudius

import (
	"context"
	"io"
	"iter"

	"github.com/rescrv/claudius/accumulate"
	"github.com/rescrv/claudius/agent"
	"github.com/rescrv/claudius/budget"
	"github.com/rescrv/claudius/config"
	"github.com/rescrv/claudius/ssestream"
	"github.com/rescrv/claudius/transport"
	"github.com/rescrv/claudius/wire"
)

// Client sends Messages API requests, either synchronously (Send) or as
// a streaming event sequence with an accumulated-result handle (Stream).
type Client struct {
	transport *transport.Client
}

// Option configures a Client via the underlying transport.Client.
type Option = transport.Option

// New constructs a Client. If apiKey is empty, the key is resolved from
// the ANTHROPIC_API_KEY then ANTHROPIC_AUTH_TOKEN environment variables.
func New(apiKey string, opts ...Option) (*Client, error) {
	cfg, err := config.Resolve(apiKey)
	if err != nil {
		return nil, err
	}
	allOpts := append([]Option{transport.WithBaseURL(cfg.BaseURL)}, opts...)
	tc, err := transport.New(cfg.APIKey, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{transport: tc}, nil
}

// Send issues a non-streaming request and returns the complete Message.
func (c *Client) Send(ctx context.Context, params wire.MessageCreateParams) (*wire.Message, error) {
	return c.transport.Send(ctx, params)
}

// Stream issues a streaming request. It returns the event sequence
// (ranging over it delivers one wire.MessageStreamEvent per SSE frame)
// and an *accumulate.Handle whose Wait method resolves to the complete
// Message once the sequence is fully drained.
func (c *Client) Stream(ctx context.Context, params wire.MessageCreateParams) (iter.Seq2[wire.MessageStreamEvent, error], *accumulate.Handle, error) {
	body, err := c.transport.OpenStream(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	events := closingSeq(body, ssestream.Parse(ctx, body))
	wrapped, handle := accumulate.Wrap(events)
	return wrapped, handle, nil
}

// closingSeq ensures body is closed once the wrapped sequence is fully
// drained or abandoned early.
func closingSeq(body io.Closer, inner iter.Seq2[wire.MessageStreamEvent, error]) iter.Seq2[wire.MessageStreamEvent, error] {
	return func(yield func(wire.MessageStreamEvent, error) bool) {
		defer body.Close()
		for event, err := range inner {
			if !yield(event, err) {
				return
			}
		}
	}
}

// NewBudget creates a token Budget, re-exported here for convenience so
// callers driving an agent.Loop don't need a separate import for the
// common case.
func NewBudget(tokens uint64) *budget.Budget { return budget.New(tokens) }

// NewLoop constructs an agent.Loop bound to this Client.
func NewLoop(c *Client, model string, maxTokens int, tools *agent.Catalog) *agent.Loop {
	return &agent.Loop{Client: c, Model: model, MaxTokens: maxTokens, Tools: tools}
}
