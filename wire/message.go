// Package wire holds the JSON wire types for the Messages API: requests,
// responses, streaming events, and the tagged-union content blocks shared
// between them. Image, document and web_search_tool_result blocks keep
// their full JSON in ContentBlock.Raw and round-trip unchanged; a block of
// any other type decodes into the named ContentBlock fields only.
package wire

import "encoding/json"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason explains why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn                  StopReason = "end_turn"
	StopReasonMaxTokens                StopReason = "max_tokens"
	StopReasonStopSequence             StopReason = "stop_sequence"
	StopReasonToolUse                  StopReason = "tool_use"
	StopReasonPauseTurn                StopReason = "pause_turn"
	StopReasonRefusal                  StopReason = "refusal"
	StopReasonModelContextWindowExceed StopReason = "model_context_window_exceeded"
)

// Usage reports token consumption for a single turn. OutputTokens grows
// monotonically across MessageDelta events within one stream; the cache
// fields are nil when the server omits them (no caching configured).
type Usage struct {
	InputTokens              int  `json:"input_tokens"`
	OutputTokens             int  `json:"output_tokens"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
}

// CacheControl marks a content block or tool definition as cacheable.
type CacheControl struct {
	Type string `json:"type"` // "ephemeral"
}

// Message is a single turn in a conversation: a role and an ordered list
// of content blocks. An assistant Message additionally carries a
// StopReason once complete.
type Message struct {
	ID           string         `json:"id,omitempty"`
	Type         string         `json:"type,omitempty"` // "message"
	Role         Role           `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model,omitempty"`
	StopReason   *StopReason    `json:"stop_reason,omitempty"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// ContentBlockKind discriminates the ContentBlock union.
type ContentBlockKind string

const (
	BlockText             ContentBlockKind = "text"
	BlockImage            ContentBlockKind = "image"
	BlockDocument         ContentBlockKind = "document"
	BlockToolUse          ContentBlockKind = "tool_use"
	BlockServerToolUse    ContentBlockKind = "server_tool_use"
	BlockToolResult       ContentBlockKind = "tool_result"
	BlockThinking         ContentBlockKind = "thinking"
	BlockRedactedThinking ContentBlockKind = "redacted_thinking"
	BlockWebSearchResult  ContentBlockKind = "web_search_tool_result"
)

// ContentBlock is a tagged union over every block kind the API exchanges.
// Only the fields relevant to Kind are populated; the rest are zero.
// Kinds the client does not interpret semantically (image, document,
// web-search results) are still carried losslessly via Raw so the block
// can be echoed back verbatim in a later request.
type ContentBlock struct {
	Kind ContentBlockKind `json:"type"`

	// BlockText
	Text      string     `json:"text,omitempty"`
	Citations []Citation `json:"citations,omitempty"`

	// BlockToolUse / BlockServerToolUse
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// BlockToolResult
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// BlockThinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// BlockRedactedThinking
	Data string `json:"data,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`

	// Raw preserves the block verbatim for kinds this client only
	// round-trips (image, document, web_search_tool_result). Set
	// whenever Kind is one of those and unset otherwise.
	Raw json.RawMessage `json:"-"`
}

// Citation is a tagged union over the four citation location kinds a
// text block can carry. Only the fields for Kind are meaningful.
type Citation struct {
	Kind            string `json:"type"`
	CitedText       string `json:"cited_text,omitempty"`
	DocumentIndex   int    `json:"document_index,omitempty"`
	DocumentTitle   string `json:"document_title,omitempty"`
	StartCharIndex  int    `json:"start_char_index,omitempty"`
	EndCharIndex    int    `json:"end_char_index,omitempty"`
	StartPageNumber int    `json:"start_page_number,omitempty"`
	EndPageNumber   int    `json:"end_page_number,omitempty"`
	StartBlockIndex int    `json:"start_block_index,omitempty"`
	EndBlockIndex   int    `json:"end_block_index,omitempty"`
	URL             string `json:"url,omitempty"`
	Title           string `json:"title,omitempty"`
}

// ToolDefinition advertises a callable tool to the model.
type ToolDefinition struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// ToolChoice constrains which tool, if any, the model must invoke.
type ToolChoice struct {
	Type                   string `json:"type"` // "auto", "any", "tool", "none"
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

// ThinkingConfig controls extended thinking on a request.
type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled" or "disabled"
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// MessageCreateParams is the request body for a Messages API call.
type MessageCreateParams struct {
	Model       string          `json:"model"`
	Messages    []Message       `json:"messages"`
	System      json.RawMessage `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	TopK        *int            `json:"top_k,omitempty"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  *ToolChoice     `json:"tool_choice,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Thinking    *ThinkingConfig `json:"thinking,omitempty"`
	Metadata    *Metadata       `json:"metadata,omitempty"`
	StopSequences []string      `json:"stop_sequences,omitempty"`
}

// Metadata carries optional request metadata.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}
