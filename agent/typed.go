package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rescrv/claudius/internal/jsonschema"
)

// NewTypedTool builds a FuncTool whose input schema is derived by
// reflection over I, the way the teacher's providers/tool.NewTool[I, O]
// generates a tool's parameter schema from its Go input type instead of
// requiring a hand-written JSON Schema literal at every call site.
func NewTypedTool[I, O any](name, description string, fn func(ctx context.Context, input I) (O, error)) *FuncTool {
	schema, err := jsonschema.GenerateJSONSchema[I]().JsonString(false)
	if err != nil {
		schema = `{"type":"object"}`
	}
	return NewFuncTool(name, description, json.RawMessage(schema), func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var input I
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("decoding %s input: %w", name, err)
		}
		output, err := fn(ctx, input)
		if err != nil {
			return nil, err
		}
		return json.Marshal(output)
	})
}
