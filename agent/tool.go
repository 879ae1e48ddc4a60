// Package agent drives a turn loop against a Messages API client: send a
// request, interpret the stop reason, dispatch any requested tools in
// parallel, and merge the results back into the conversation, repeating
// until a turn ends without a tool call or the token budget runs out.
package agent

import (
	"context"
	"encoding/json"

	"github.com/rescrv/claudius/wire"
)

// Tool is a single callable tool a Loop can dispatch tool_use blocks to.
type Tool interface {
	// Name must match the "name" a ToolUseBlock carries.
	Name() string
	// Call executes the tool against raw JSON input and returns raw
	// JSON output. A plain error is reported back to the model as an
	// is_error tool_result and the turn continues; an error wrapped
	// with Fatal instead aborts the turn, propagating out of
	// Loop.TakeTurn unconverted.
	Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
	// Definition advertises the tool's schema to the model.
	Definition() wire.ToolDefinition
}

// FatalToolError marks a tool-callback failure that must abort the
// enclosing turn rather than being converted into an is_error
// tool_result — one of tool dispatch's three possible outcomes
// (success, non-fatal error, fatal error).
type FatalToolError struct {
	Err error
}

func (e *FatalToolError) Error() string { return e.Err.Error() }
func (e *FatalToolError) Unwrap() error { return e.Err }

// Fatal wraps err so a Tool's Call signals that dispatch should abort the
// turn instead of reporting the failure back to the model as a result.
func Fatal(err error) error { return &FatalToolError{Err: err} }

// FuncTool adapts a plain function into a Tool, mirroring the teacher's
// generic tool.Tool[I, O] constructor but over raw JSON so agent.Loop
// never needs type parameters at the dispatch site.
type FuncTool struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

func NewFuncTool(name, description string, schema json.RawMessage, fn func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)) *FuncTool {
	return &FuncTool{name: name, description: description, schema: schema, fn: fn}
}

func (t *FuncTool) Name() string { return t.name }

func (t *FuncTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return t.fn(ctx, input)
}

func (t *FuncTool) Definition() wire.ToolDefinition {
	return wire.ToolDefinition{Name: t.name, Description: t.description, InputSchema: t.schema}
}
