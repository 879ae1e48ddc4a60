package accumulate

import (
	"encoding/json"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rescrv/claudius/wire"
)

func seqOf(events ...wire.MessageStreamEvent) iter.Seq2[wire.MessageStreamEvent, error] {
	return func(yield func(wire.MessageStreamEvent, error) bool) {
		for _, e := range events {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func ptr[T any](v T) *T { return &v }

func TestAccumulateTextMessage(t *testing.T) {
	events := seqOf(
		wire.MessageStreamEvent{Kind: wire.EventMessageStart, Message: &wire.Message{Role: wire.RoleAssistant}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockStart, Index: 0, ContentBlock: &wire.ContentBlock{Kind: wire.BlockText}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockDelta, Index: 0, Delta: &wire.ContentBlockDelta{Kind: wire.DeltaText, Text: "Hello, "}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockDelta, Index: 0, Delta: &wire.ContentBlockDelta{Kind: wire.DeltaText, Text: "world"}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockStop, Index: 0},
		wire.MessageStreamEvent{Kind: wire.EventMessageDelta, MessageDelta: &wire.MessageDeltaPayload{StopReason: ptr(wire.StopReasonEndTurn)}, Usage: &wire.Usage{OutputTokens: 5}},
		wire.MessageStreamEvent{Kind: wire.EventMessageStop},
	)

	wrapped, handle := Wrap(events)
	for range wrapped {
	}

	msg, err := handle.Wait()
	require.NoError(t, err)
	require.Len(t, msg.Content, 1)
	require.Equal(t, "Hello, world", msg.Content[0].Text)
	require.Equal(t, wire.StopReasonEndTurn, *msg.StopReason)
	require.Equal(t, 5, msg.Usage.OutputTokens)
}

func TestAccumulateToolUseInputDelta(t *testing.T) {
	events := seqOf(
		wire.MessageStreamEvent{Kind: wire.EventMessageStart, Message: &wire.Message{Role: wire.RoleAssistant}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockStart, Index: 0, ContentBlock: &wire.ContentBlock{Kind: wire.BlockToolUse, ID: "tool_1", Name: "get_weather"}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockDelta, Index: 0, Delta: &wire.ContentBlockDelta{Kind: wire.DeltaInputJSON, PartialJSON: `{"city":`}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockDelta, Index: 0, Delta: &wire.ContentBlockDelta{Kind: wire.DeltaInputJSON, PartialJSON: `"paris"}`}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockStop, Index: 0},
		wire.MessageStreamEvent{Kind: wire.EventMessageDelta, MessageDelta: &wire.MessageDeltaPayload{StopReason: ptr(wire.StopReasonToolUse)}, Usage: &wire.Usage{OutputTokens: 12}},
	)

	wrapped, handle := Wrap(events)
	for range wrapped {
	}
	msg, err := handle.Wait()
	require.NoError(t, err)
	require.Len(t, msg.Content, 1)
	require.Equal(t, "get_weather", msg.Content[0].Name)

	var input struct {
		City string `json:"city"`
	}
	require.NoError(t, json.Unmarshal(msg.Content[0].Input, &input))
	require.Equal(t, "paris", input.City)
}

// TestMaxTokensDropsMalformedToolInput exercises the boundary case where
// generation is cut off mid-JSON by the token limit: the tool_use block
// must be dropped, not reported as a parse error.
func TestMaxTokensDropsMalformedToolInput(t *testing.T) {
	events := seqOf(
		wire.MessageStreamEvent{Kind: wire.EventMessageStart, Message: &wire.Message{Role: wire.RoleAssistant}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockStart, Index: 0, ContentBlock: &wire.ContentBlock{Kind: wire.BlockToolUse, ID: "tool_1", Name: "search"}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockDelta, Index: 0, Delta: &wire.ContentBlockDelta{Kind: wire.DeltaInputJSON, PartialJSON: `{"query": "unterminate`}},
		wire.MessageStreamEvent{Kind: wire.EventMessageDelta, MessageDelta: &wire.MessageDeltaPayload{StopReason: ptr(wire.StopReasonMaxTokens)}, Usage: &wire.Usage{OutputTokens: 1024}},
	)

	wrapped, handle := Wrap(events)
	for range wrapped {
	}
	msg, err := handle.Wait()
	require.NoError(t, err)
	require.Empty(t, msg.Content, "truncated tool_use block should be dropped, not surfaced as an error")
}

func TestFinalizePartialStopsBeforeDrain(t *testing.T) {
	events := seqOf(
		wire.MessageStreamEvent{Kind: wire.EventMessageStart, Message: &wire.Message{Role: wire.RoleAssistant}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockStart, Index: 0, ContentBlock: &wire.ContentBlock{Kind: wire.BlockText}},
		wire.MessageStreamEvent{Kind: wire.EventContentBlockDelta, Index: 0, Delta: &wire.ContentBlockDelta{Kind: wire.DeltaText, Text: "partial"}},
	)

	wrapped, handle := Wrap(events)
	next, stop := iter.Pull2(wrapped)
	defer stop()
	_, _, _ = next() // message_start
	_, _, _ = next() // content_block_start
	_, _, _ = next() // content_block_delta

	msg, err := handle.FinalizePartial()
	require.NoError(t, err)
	require.Len(t, msg.Content, 1)
	require.Equal(t, "partial", msg.Content[0].Text)
}

func TestStreamErrorPropagatesToHandle(t *testing.T) {
	events := func(yield func(wire.MessageStreamEvent, error) bool) {
		yield(wire.MessageStreamEvent{Kind: wire.EventMessageStart, Message: &wire.Message{}}, nil)
		yield(wire.MessageStreamEvent{}, assertErr)
	}
	wrapped, handle := Wrap(events)
	for range wrapped {
	}
	_, err := handle.Wait()
	require.ErrorIs(t, err, assertErr)
}

var assertErr = &testError{}

type testError struct{}

func (*testError) Error() string { return "boom" }
