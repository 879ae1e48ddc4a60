// Package accumulate builds a complete wire.Message out of a
// wire.MessageStreamEvent sequence while passing every event through
// unchanged, so a caller can render tokens as they arrive and still get
// the finished Message once the stream ends.
package accumulate

import (
	"encoding/json"
	"iter"
	"sync"

	"github.com/kaptinlin/jsonrepair"

	"github.com/rescrv/claudius/wire"
	"github.com/rescrv/claudius/xerrors"
)

// Handle is returned alongside the wrapped event sequence. Wait blocks
// until the stream is fully drained and returns the accumulated Message.
// FinalizePartial returns the message accumulated so far without
// draining the rest of the stream, for callers that need to react to an
// interruption (e.g. a cancelled context) before the stream naturally
// ends.
type Handle struct {
	mu       sync.Mutex
	message  *wire.Message
	blocks   []contentBlockBuilder
	done     chan struct{}
	result   wire.Message
	resultOK bool
	err      error
}

// Wrap accumulates events as they're pulled through the returned
// sequence. The Handle's result is only valid after the sequence has
// been fully ranged over (or FinalizePartial has been called).
func Wrap(events iter.Seq2[wire.MessageStreamEvent, error]) (iter.Seq2[wire.MessageStreamEvent, error], *Handle) {
	h := &Handle{done: make(chan struct{})}
	wrapped := func(yield func(wire.MessageStreamEvent, error) bool) {
		defer h.finish()
		for event, err := range events {
			if err != nil {
				h.mu.Lock()
				h.err = err
				h.mu.Unlock()
				yield(event, err)
				return
			}
			h.mu.Lock()
			h.apply(event)
			h.mu.Unlock()
			if !yield(event, nil) {
				return
			}
		}
	}
	return wrapped, h
}

// Resolved returns a Handle whose Wait and FinalizePartial immediately
// return msg, for callers (typically tests) that need a pre-built Handle
// without driving it through a live event sequence.
func Resolved(msg wire.Message) *Handle {
	h := &Handle{done: make(chan struct{})}
	close(h.done)
	h.result = msg
	h.resultOK = true
	return h
}

func (h *Handle) finish() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Wait blocks until the wrapped sequence has been fully drained (or
// FinalizePartial was called) and returns the accumulated Message.
func (h *Handle) Wait() (wire.Message, error) {
	<-h.done
	return h.finalize()
}

// FinalizePartial finalizes whatever has accumulated so far without
// waiting for the stream to finish, and prevents the eventual drain from
// delivering a second result. Safe to call concurrently with an
// in-progress drain of the wrapped sequence.
func (h *Handle) FinalizePartial() (wire.Message, error) {
	h.finish()
	return h.finalize()
}

func (h *Handle) finalize() (wire.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.resultOK {
		return h.result, h.err
	}
	h.resultOK = true
	if h.err != nil {
		return wire.Message{}, h.err
	}
	if h.message == nil {
		h.err = xerrors.Streaming("stream ended without a message_start event")
		return wire.Message{}, h.err
	}
	msg := *h.message
	blocks := make([]wire.ContentBlock, 0, len(h.blocks))
	for _, b := range h.blocks {
		block, ok, err := b.build(msg.StopReason)
		if err != nil {
			h.err = err
			return wire.Message{}, err
		}
		if ok {
			blocks = append(blocks, block)
		}
	}
	msg.Content = blocks
	h.result = msg
	return msg, nil
}

func (h *Handle) apply(event wire.MessageStreamEvent) {
	switch event.Kind {
	case wire.EventMessageStart:
		if event.Message != nil {
			m := *event.Message
			h.message = &m
		}
	case wire.EventContentBlockStart:
		for len(h.blocks) <= event.Index {
			h.blocks = append(h.blocks, contentBlockBuilder{kind: builderEmpty})
		}
		if event.ContentBlock != nil {
			h.blocks[event.Index] = newBuilder(*event.ContentBlock)
		}
	case wire.EventContentBlockDelta:
		if event.Index < len(h.blocks) && event.Delta != nil {
			h.blocks[event.Index].applyDelta(*event.Delta)
		}
	case wire.EventMessageDelta:
		if h.message == nil || event.MessageDelta == nil {
			return
		}
		if event.MessageDelta.StopReason != nil {
			h.message.StopReason = event.MessageDelta.StopReason
		}
		if event.MessageDelta.StopSequence != nil {
			h.message.StopSequence = event.MessageDelta.StopSequence
		}
		if event.Usage != nil {
			if event.Usage.InputTokens != 0 {
				h.message.Usage.InputTokens = event.Usage.InputTokens
			}
			h.message.Usage.OutputTokens = event.Usage.OutputTokens
			if event.Usage.CacheCreationInputTokens != nil {
				h.message.Usage.CacheCreationInputTokens = event.Usage.CacheCreationInputTokens
			}
			if event.Usage.CacheReadInputTokens != nil {
				h.message.Usage.CacheReadInputTokens = event.Usage.CacheReadInputTokens
			}
		}
	}
}

type builderKind int

const (
	builderEmpty builderKind = iota
	builderText
	builderToolUse
	builderServerToolUse
	builderThinking
	builderComplete
)

// contentBlockBuilder mirrors the per-index state machine the original
// accumulator keeps per content block: text and thinking blocks grow by
// string concatenation, tool-use input arrives as a JSON string split
// across many deltas and is parsed once at build time.
type contentBlockBuilder struct {
	kind    builderKind
	text    string
	citations []wire.Citation

	id, name     string
	inputJSON    string
	inputValue   json.RawMessage
	sawDelta     bool

	thinking, signature string

	cacheControl *wire.CacheControl
	complete     wire.ContentBlock
}

func newBuilder(block wire.ContentBlock) contentBlockBuilder {
	switch block.Kind {
	case wire.BlockText:
		return contentBlockBuilder{kind: builderText, text: block.Text, citations: block.Citations, cacheControl: block.CacheControl}
	case wire.BlockToolUse:
		return contentBlockBuilder{kind: builderToolUse, id: block.ID, name: block.Name, inputValue: block.Input, cacheControl: block.CacheControl}
	case wire.BlockServerToolUse:
		return contentBlockBuilder{kind: builderServerToolUse, id: block.ID, name: block.Name, inputValue: block.Input, cacheControl: block.CacheControl}
	case wire.BlockThinking:
		return contentBlockBuilder{kind: builderThinking, thinking: block.Thinking, signature: block.Signature}
	default:
		return contentBlockBuilder{kind: builderComplete, complete: block}
	}
}

func (b *contentBlockBuilder) applyDelta(delta wire.ContentBlockDelta) {
	switch {
	case b.kind == builderText && delta.Kind == wire.DeltaText:
		b.text += delta.Text
	case b.kind == builderText && delta.Kind == wire.DeltaCitations && delta.Citation != nil:
		b.citations = append(b.citations, *delta.Citation)
	case b.kind == builderToolUse && delta.Kind == wire.DeltaInputJSON:
		b.sawDelta = true
		b.inputJSON += delta.PartialJSON
	case b.kind == builderThinking && delta.Kind == wire.DeltaThinking:
		b.thinking += delta.Thinking
	case b.kind == builderThinking && delta.Kind == wire.DeltaSignature:
		b.signature += delta.Signature
	}
}

// build finalizes a single content block. The max_tokens special case
// matches the upstream accumulator: a tool-use block whose input JSON
// never closed (because generation was cut off by the token limit) is
// dropped rather than surfaced as a parse error, since the caller did
// not ask for that content and cannot act on a truncated tool call.
func (b contentBlockBuilder) build(stopReason *wire.StopReason) (wire.ContentBlock, bool, error) {
	switch b.kind {
	case builderEmpty:
		return wire.ContentBlock{}, false, nil
	case builderText:
		return wire.ContentBlock{Kind: wire.BlockText, Text: b.text, Citations: b.citations, CacheControl: b.cacheControl}, true, nil
	case builderToolUse:
		input, ok, err := b.resolveInput(stopReason)
		if err != nil {
			return wire.ContentBlock{}, false, err
		}
		if !ok {
			return wire.ContentBlock{}, false, nil
		}
		return wire.ContentBlock{Kind: wire.BlockToolUse, ID: b.id, Name: b.name, Input: input, CacheControl: b.cacheControl}, true, nil
	case builderServerToolUse:
		return wire.ContentBlock{Kind: wire.BlockServerToolUse, ID: b.id, Name: b.name, Input: b.inputValue, CacheControl: b.cacheControl}, true, nil
	case builderThinking:
		return wire.ContentBlock{Kind: wire.BlockThinking, Thinking: b.thinking, Signature: b.signature}, true, nil
	case builderComplete:
		return b.complete, true, nil
	default:
		return wire.ContentBlock{}, false, nil
	}
}

func (b contentBlockBuilder) resolveInput(stopReason *wire.StopReason) (json.RawMessage, bool, error) {
	isMaxTokens := stopReason != nil && *stopReason == wire.StopReasonMaxTokens

	if b.sawDelta {
		if json.Valid([]byte(b.inputJSON)) {
			return json.RawMessage(b.inputJSON), true, nil
		}
		if isMaxTokens {
			return nil, false, nil
		}
		repaired, rerr := jsonrepair.JSONRepair(b.inputJSON)
		if rerr == nil && json.Valid([]byte(repaired)) {
			return json.RawMessage(repaired), true, nil
		}
		return nil, false, xerrors.Serialization("failed to parse streamed tool input JSON", rerr)
	}
	if len(b.inputValue) > 0 {
		return b.inputValue, true, nil
	}
	if b.inputJSON == "" {
		return json.RawMessage("null"), true, nil
	}
	if json.Valid([]byte(b.inputJSON)) {
		return json.RawMessage(b.inputJSON), true, nil
	}
	if isMaxTokens {
		return nil, false, nil
	}
	return nil, false, xerrors.Serialization("failed to parse tool input JSON", nil)
}
