package wire

import "encoding/json"

// EventKind discriminates MessageStreamEvent.
type EventKind string

const (
	EventMessageStart      EventKind = "message_start"
	EventContentBlockStart EventKind = "content_block_start"
	EventContentBlockDelta EventKind = "content_block_delta"
	EventContentBlockStop  EventKind = "content_block_stop"
	EventMessageDelta      EventKind = "message_delta"
	EventMessageStop       EventKind = "message_stop"
	EventPing              EventKind = "ping"
	EventError             EventKind = "error"
)

// DeltaKind discriminates ContentBlockDelta.
type DeltaKind string

const (
	DeltaText        DeltaKind = "text_delta"
	DeltaInputJSON   DeltaKind = "input_json_delta"
	DeltaThinking    DeltaKind = "thinking_delta"
	DeltaSignature   DeltaKind = "signature_delta"
	DeltaCitations   DeltaKind = "citations_delta"
)

// ContentBlockDelta is a tagged union over the five delta kinds the API
// streams inside a content_block_delta event.
type ContentBlockDelta struct {
	Kind        DeltaKind `json:"type"`
	Text        string    `json:"text,omitempty"`
	PartialJSON string    `json:"partial_json,omitempty"`
	Thinking    string    `json:"thinking,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	Citation    *Citation `json:"citation,omitempty"`
}

// MessageDeltaPayload is the top-level delta carried by a message_delta
// event: stop metadata. The running Usage snapshot of that event is
// carried in MessageStreamEvent.Usage.
type MessageDeltaPayload struct {
	StopReason   *StopReason `json:"stop_reason,omitempty"`
	StopSequence *string     `json:"stop_sequence,omitempty"`
}

// APIError is the body of a structured "event: error" SSE frame.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageStreamEvent is a tagged union over every SSE event the Messages
// API emits during a streaming call. Only the fields relevant to Kind are
// populated.
type MessageStreamEvent struct {
	Kind EventKind `json:"type"`

	// EventMessageStart
	Message *Message `json:"message,omitempty"`

	// EventContentBlockStart / EventContentBlockStop
	Index        int           `json:"index"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`

	// EventContentBlockDelta
	Delta *ContentBlockDelta `json:"delta,omitempty"`

	// EventMessageDelta
	MessageDelta *MessageDeltaPayload `json:"-"`
	Usage        *Usage                `json:"usage,omitempty"`

	// EventError
	Error *APIError `json:"error,omitempty"`
}

// MarshalJSON is implemented explicitly because MessageDelta's wire field
// name ("delta") collides with ContentBlockDelta's ("delta") at the
// struct-tag level once both are embedded in one Go type.
func (e MessageStreamEvent) MarshalJSON() ([]byte, error) {
	type alias MessageStreamEvent
	out := struct {
		alias
		RawDelta json.RawMessage `json:"delta,omitempty"`
	}{alias: alias(e)}

	switch e.Kind {
	case EventContentBlockDelta:
		if e.Delta != nil {
			b, err := json.Marshal(e.Delta)
			if err != nil {
				return nil, err
			}
			out.RawDelta = b
		}
	case EventMessageDelta:
		if e.MessageDelta != nil {
			b, err := json.Marshal(e.MessageDelta)
			if err != nil {
				return nil, err
			}
			out.RawDelta = b
		}
	}
	out.alias.Delta = nil
	return json.Marshal(out)
}

// UnmarshalJSON decodes a MessageStreamEvent, routing the shared "delta"
// field to ContentBlockDelta or MessageDeltaPayload depending on Kind.
func (e *MessageStreamEvent) UnmarshalJSON(data []byte) error {
	type alias MessageStreamEvent
	aux := struct {
		*alias
		RawDelta json.RawMessage `json:"delta,omitempty"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.RawDelta) == 0 {
		return nil
	}

	switch e.Kind {
	case EventContentBlockDelta:
		var d ContentBlockDelta
		if err := json.Unmarshal(aux.RawDelta, &d); err != nil {
			return err
		}
		e.Delta = &d
	case EventMessageDelta:
		var d MessageDeltaPayload
		if err := json.Unmarshal(aux.RawDelta, &d); err != nil {
			return err
		}
		e.MessageDelta = &d
	}
	return nil
}
