// Package render defines the contract a terminal or other UI implements
// to observe a streaming turn. This package contains no concrete
// renderer (terminal rendering is out of scope for this module); it
// exists so agent.Loop and the streaming client can depend on an
// interface rather than a specific UI.
package render

import "github.com/rescrv/claudius/wire"

// Sink receives a turn's events as they happen, for a UI to render
// incrementally. Every method takes depth, the nesting level of the
// agent loop driving the turn (0 for the root loop, incrementing by one
// per nested sub-agent — see agent.Loop.Sub), so a terminal renderer can
// indent nested output. Every method must return quickly: a slow Sink
// stalls the stream it's observing.
type Sink interface {
	// TurnStart is called once per request/response cycle, before the
	// request is issued. label identifies the (sub-)agent driving this
	// turn; empty for the root loop.
	TurnStart(depth int, label string)
	// TextChunk is called once per TextDelta, in wire order.
	TextChunk(depth int, text string)
	// ThinkingChunk is called once per ThinkingDelta, in wire order.
	ThinkingChunk(depth int, text string)
	// ToolUseStart is called when a tool_use content block begins.
	ToolUseStart(depth int, toolUseID, name string)
	// ToolUseInputChunk is called once per InputJsonDelta belonging to
	// toolUseID, carrying that delta's raw partial JSON.
	ToolUseInputChunk(depth int, toolUseID, partialJSON string)
	// ToolUseEnd is called when a tool_use content block's stop event
	// arrives.
	ToolUseEnd(depth int, toolUseID string)
	// ToolResultStart is called just before a tool callback is invoked.
	ToolResultStart(depth int, toolUseID string)
	// ToolResultText is called once a tool callback returns a
	// successful (non-error) result, carrying its raw output.
	ToolResultText(depth int, toolUseID, text string)
	// ToolResultEnd is called once a tool callback has returned,
	// successfully or not.
	ToolResultEnd(depth int, toolUseID string)
	// Error reports a non-fatal error surfaced during the turn, e.g. a
	// tool callback failure folded into an is_error result.
	Error(depth int, err error)
	// Info reports a non-error, human-readable event worth surfacing,
	// e.g. a pause_turn continuation.
	Info(depth int, message string)
	// ResponseFinish is called once a response message is complete.
	ResponseFinish(depth int, message wire.Message)
	// Interrupted is called when an InterruptSignal caused the turn to
	// stop early, before the response finished naturally.
	Interrupted(depth int)
	// TurnEnd is called once the loop has finished processing a turn,
	// whatever its outcome.
	TurnEnd(depth int)
}

// InterruptSignal is consulted between stream events so a caller can
// cooperatively cancel an in-progress turn. Once Interrupted reports
// true, agent.Loop stops pulling new events from the stream, the in-progress
// message is partially finalized, and the loop returns an interrupted
// disposition.
type InterruptSignal interface {
	Interrupted() bool
}

// NoopSink implements Sink by discarding every call; it is agent.Loop's
// default when no Render is configured.
type NoopSink struct{}

func (NoopSink) TurnStart(depth int, label string)                         {}
func (NoopSink) TextChunk(depth int, text string)                          {}
func (NoopSink) ThinkingChunk(depth int, text string)                      {}
func (NoopSink) ToolUseStart(depth int, toolUseID, name string)            {}
func (NoopSink) ToolUseInputChunk(depth int, toolUseID, partialJSON string) {}
func (NoopSink) ToolUseEnd(depth int, toolUseID string)                    {}
func (NoopSink) ToolResultStart(depth int, toolUseID string)               {}
func (NoopSink) ToolResultText(depth int, toolUseID, text string)          {}
func (NoopSink) ToolResultEnd(depth int, toolUseID string)                 {}
func (NoopSink) Error(depth int, err error)                                {}
func (NoopSink) Info(depth int, message string)                           {}
func (NoopSink) ResponseFinish(depth int, message wire.Message)           {}
func (NoopSink) Interrupted(depth int)                                    {}
func (NoopSink) TurnEnd(depth int)                                        {}
