package claudius

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rescrv/claudius/transport"
	"github.com/rescrv/claudius/wire"
)

func TestSendDecodesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wire.Message{
			Role:       wire.RoleAssistant,
			StopReason: stopPtr(wire.StopReasonEndTurn),
			Content:    []wire.ContentBlock{{Kind: wire.BlockText, Text: "hi there"}},
			Usage:      wire.Usage{InputTokens: 3, OutputTokens: 2},
		})
	}))
	defer server.Close()

	client, err := New("test-key", transport.WithBaseURL(server.URL))
	require.NoError(t, err)

	msg, err := client.Send(context.Background(), wire.MessageCreateParams{
		Model:     "claude-x",
		MaxTokens: 100,
		Messages:  []wire.Message{{Role: wire.RoleUser, Content: []wire.ContentBlock{{Kind: wire.BlockText, Text: "hello"}}}},
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", msg.Content[0].Text)
}

func TestStreamAccumulatesFullMessage(t *testing.T) {
	body := "event: message_start\n" +
		`data: {"type":"message_start","message":{"role":"assistant"}}` + "\n\n" +
		"event: content_block_start\n" +
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}` + "\n\n" +
		"event: content_block_delta\n" +
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}` + "\n\n" +
		"event: content_block_stop\n" +
		`data: {"type":"content_block_stop","index":0}` + "\n\n" +
		"event: message_delta\n" +
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"input_tokens":1,"output_tokens":1}}` + "\n\n" +
		"event: message_stop\n" +
		`data: {"type":"message_stop"}` + "\n\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client, err := New("test-key", transport.WithBaseURL(server.URL))
	require.NoError(t, err)

	events, handle, err := client.Stream(context.Background(), wire.MessageCreateParams{
		Model:     "claude-x",
		MaxTokens: 100,
		Messages:  []wire.Message{{Role: wire.RoleUser, Content: []wire.ContentBlock{{Kind: wire.BlockText, Text: "hello"}}}},
	})
	require.NoError(t, err)

	count := 0
	for _, err := range events {
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 6, count)

	msg, err := handle.Wait()
	require.NoError(t, err)
	require.Equal(t, "hi", msg.Content[0].Text)
	require.Equal(t, wire.StopReasonEndTurn, *msg.StopReason)
}

func stopPtr(s wire.StopReason) *wire.StopReason { return &s }
