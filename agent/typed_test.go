package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type calcInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type calcOutput struct {
	Sum float64 `json:"sum"`
}

func TestNewTypedToolGeneratesSchemaAndDispatches(t *testing.T) {
	tool := NewTypedTool[calcInput, calcOutput]("add", "adds two numbers", func(ctx context.Context, in calcInput) (calcOutput, error) {
		return calcOutput{Sum: in.A + in.B}, nil
	})

	def := tool.Definition()
	require.Equal(t, "add", def.Name)
	require.Contains(t, string(def.InputSchema), `"type":"object"`)

	raw, err := tool.Call(context.Background(), json.RawMessage(`{"a":2,"b":3}`))
	require.NoError(t, err)

	var out calcOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, float64(5), out.Sum)
}
