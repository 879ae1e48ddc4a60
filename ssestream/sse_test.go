package ssestream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rescrv/claudius/wire"
	"github.com/rescrv/claudius/xerrors"
)

func asStreamError(err error) (*xerrors.Error, bool) {
	var xerr *xerrors.Error
	if errors.As(err, &xerr) {
		return xerr, true
	}
	return nil, false
}

func collect(t *testing.T, body string) ([]wire.MessageStreamEvent, error) {
	t.Helper()
	var events []wire.MessageStreamEvent
	for event, err := range Parse(context.Background(), strings.NewReader(body)) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func TestParsePing(t *testing.T) {
	events, err := collect(t, "event: ping\ndata: {}\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != wire.EventPing {
		t.Fatalf("events = %+v, want a single ping", events)
	}
}

func TestParseMessageStop(t *testing.T) {
	events, err := collect(t, "event: message_stop\ndata: {}\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != wire.EventMessageStop {
		t.Fatalf("events = %+v, want a single message_stop", events)
	}
}

func TestParseMultipleEvents(t *testing.T) {
	body := "event: ping\ndata: {}\n\n" + "event: message_stop\ndata: {}\n\n"
	events, err := collect(t, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestParseSplitAcrossChunks(t *testing.T) {
	r1, w1 := io.Pipe()
	go func() {
		w1.Write([]byte("event: pi"))
		w1.Write([]byte("ng\ndata: {}\n\n"))
		w1.Close()
	}()
	var events []wire.MessageStreamEvent
	for event, err := range Parse(context.Background(), r1) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		events = append(events, event)
	}
	if len(events) != 1 || events[0].Kind != wire.EventPing {
		t.Fatalf("events = %+v, want a single ping assembled across chunks", events)
	}
}

func TestParseUnknownEventType(t *testing.T) {
	_, err := collect(t, "event: something_new\ndata: {}\n\n")
	if err == nil {
		t.Fatal("expected an error for an unrecognized event type")
	}
}

func TestParseBufferSizeExceeded(t *testing.T) {
	huge := strings.Repeat("a", MaxBufferSize+1)
	_, err := collect(t, "event: ping\ndata: "+huge)
	if err == nil {
		t.Fatal("expected an error once the buffer exceeds MaxBufferSize")
	}
}

func TestParseEventSizeExceeded(t *testing.T) {
	huge := strings.Repeat("a", MaxEventSize+1)
	_, err := collect(t, "event: ping\ndata: "+huge+"\n\n")
	if err == nil {
		t.Fatal("expected an error once a single event exceeds MaxEventSize")
	}
}

func TestParseEmptyEventYieldsPing(t *testing.T) {
	body := "\n\n" + "event: ping\ndata: {}\n\n"
	events, err := collect(t, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Kind != wire.EventPing || events[1].Kind != wire.EventPing {
		t.Fatalf("events = %+v, want the blank frame and the ping frame each yielded as a ping", events)
	}
}

func TestParseMultiLineData(t *testing.T) {
	body := "event: error\ndata: {\"error\":\ndata: {\"type\":\"overloaded_error\",\"message\":\"busy\"}}\n\n"
	_, err := collect(t, body)
	if err == nil {
		t.Fatal("expected a structured API error")
	}
}

func TestSplitValidUTF8HandlesChunkBoundary(t *testing.T) {
	full := []byte("caf\xc3\xa9") // "café"; é split across the chunk boundary below
	valid, rest, ok := splitValidUTF8(full[:4])
	if !ok {
		t.Fatal("expected ok=true for a rune split mid-encoding at the tail")
	}
	if string(valid) != "caf" || len(rest) != 1 || rest[0] != 0xc3 {
		t.Fatalf("valid=%q rest=%v, want valid=\"caf\" rest=[0xc3]", valid, rest)
	}

	valid2, rest2, ok2 := splitValidUTF8(append(rest, full[4:]...))
	if !ok2 || len(rest2) != 0 || string(valid2) != "\xc3\xa9" {
		t.Fatalf("completing the split rune failed: valid=%q rest=%v ok=%v", valid2, rest2, ok2)
	}
}

func TestSplitValidUTF8RejectsGenuinelyInvalidBytes(t *testing.T) {
	_, _, ok := splitValidUTF8([]byte{0xff, 0xfe})
	if ok {
		t.Fatal("expected ok=false for bytes that are not a valid UTF-8 lead byte")
	}
}

func TestParseStructuredErrorEvent(t *testing.T) {
	body := `event: error` + "\n" + `data: {"error":{"type":"overloaded_error","message":"Overloaded"}}` + "\n\n"
	_, err := collect(t, body)
	if err == nil {
		t.Fatal("expected an error for a structured error event")
	}
	xerr, ok := asStreamError(err)
	if !ok {
		t.Fatalf("error %v was not the expected xerrors.Error type", err)
	}
	if xerr.Type != "overloaded_error" {
		t.Fatalf("xerr.Type = %q, want overloaded_error", xerr.Type)
	}
}
