// Package ssestream parses a Server-Sent Events byte stream into
// wire.MessageStreamEvent values. It enforces bounded buffering and a
// per-chunk idle timeout so a slow or malicious server cannot grow
// memory unboundedly or hang a reader forever.
package ssestream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/rescrv/claudius/wire"
	"github.com/rescrv/claudius/xerrors"
)

var errInvalidErrorPayload = errors.New("error event payload was not valid JSON")

const (
	// MaxBufferSize bounds how much unparsed data may accumulate before
	// an event boundary is found.
	MaxBufferSize = 1024 * 1024
	// MaxEventSize bounds a single "event: ...\ndata: ...\n\n" frame.
	MaxEventSize = 64 * 1024
	// ChunkTimeout bounds the wait for the next chunk once a read is
	// in flight; exceeding it surfaces a KindTimeout error.
	ChunkTimeout = 30 * time.Second
)

// Parse reads r chunk by chunk and yields one wire.MessageStreamEvent per
// well-formed SSE frame. A complete frame that cannot be parsed (unknown
// event type, undecodable data, an "event: error" frame) is yielded as a
// non-nil error and parsing continues with the next frame. The sequence
// stops (yield called with a non-nil error, then no further calls) on
// read error, buffer/event size overflow, or chunk timeout. An
// "event: ping" frame and an empty frame (a bare blank line) both yield
// wire.EventPing; a frame holding only ":" comment lines yields nothing.
func Parse(ctx context.Context, r io.Reader) iter.Seq2[wire.MessageStreamEvent, error] {
	return func(yield func(wire.MessageStreamEvent, error) bool) {
		br := bufio.NewReaderSize(r, 64*1024)
		var buffer bytes.Buffer
		var pendingUTF8 []byte
		chunks := make(chan []byte)
		errs := make(chan error, 1)

		go pump(br, chunks, errs)

		for {
			for {
				event, rest, ok, err := extractEvent(buffer.String())
				if err != nil && !ok {
					yield(wire.MessageStreamEvent{}, err)
					return
				}
				if !ok {
					break
				}
				buffer.Reset()
				buffer.WriteString(rest)
				if err != nil {
					if !yield(wire.MessageStreamEvent{}, err) {
						return
					}
					continue
				}
				if event.Kind == "" {
					continue // comment-only frame, e.g. a raw ping comment
				}
				if !yield(event, nil) {
					return
				}
			}

			select {
			case <-ctx.Done():
				yield(wire.MessageStreamEvent{}, xerrors.Timeout("context done while waiting for next SSE chunk"))
				return
			case err := <-errs:
				if err == io.EOF {
					if len(pendingUTF8) > 0 {
						yield(wire.MessageStreamEvent{}, xerrors.Encoding("stream ended mid-rune with an incomplete UTF-8 sequence", nil))
						return
					}
					if buffer.Len() > 0 && strings.TrimSpace(buffer.String()) != "" {
						yield(wire.MessageStreamEvent{}, xerrors.Streaming("stream ended with a partial event"))
					}
					return
				}
				yield(wire.MessageStreamEvent{}, xerrors.Network("reading SSE stream", err))
				return
			case chunk, more := <-chunks:
				if !more {
					chunks = nil // pump has sent its terminal error; wait for it on errs
					continue
				}
				pendingUTF8 = append(pendingUTF8, chunk...)
				valid, rest, ok := splitValidUTF8(pendingUTF8)
				if !ok {
					yield(wire.MessageStreamEvent{}, xerrors.Encoding("invalid UTF-8 in SSE byte stream", nil))
					return
				}
				pendingUTF8 = rest
				if buffer.Len()+len(valid) > MaxBufferSize {
					yield(wire.MessageStreamEvent{}, xerrors.Streaming("SSE buffer exceeded maximum size"))
					return
				}
				buffer.Write(valid)
			case <-time.After(ChunkTimeout):
				yield(wire.MessageStreamEvent{}, xerrors.Timeout("no data received within chunk timeout"))
				return
			}
		}
	}
}

// pump reads byte chunks from br and forwards them on chunks, closing
// chunks and sending the terminal error (io.EOF on clean close) on errs.
func pump(br *bufio.Reader, chunks chan<- []byte, errs chan<- error) {
	defer close(chunks)
	buf := make([]byte, 32*1024)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			chunks <- cp
		}
		if err != nil {
			errs <- err
			return
		}
	}
}

// splitValidUTF8 splits b into its longest valid UTF-8 prefix and a
// remainder. The remainder is non-empty only when the tail bytes are too
// few to decode and could still complete into a valid rune once more
// bytes arrive (a multi-byte rune split across a chunk boundary) — the
// caller should hold those bytes and retry once more data is appended.
// ok is false only when the invalid bytes cannot be explained by a
// chunk-boundary split, i.e. the stream itself contains invalid UTF-8.
func splitValidUTF8(b []byte) (valid, rest []byte, ok bool) {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r != utf8.RuneError || size > 1 {
			i += size
			continue
		}
		tail := b[i:]
		if len(tail) < utf8.UTFMax && !utf8.FullRune(tail) {
			return b[:i], tail, true
		}
		return b[:i], nil, false
	}
	return b, nil, true
}

// extractEvent looks for the first "\n\n"-terminated frame in buffer. It
// returns ok=false when no complete frame is present yet (caller should
// wait for more data) or when a size limit is exceeded (err non-nil). A
// complete frame that fails to parse comes back with ok=true, its rest,
// and a non-nil err, so the caller can skip it. UTF-8 boundary safety: extractEvent never splits
// inside a multi-byte rune because it only ever slices at the '\n' bytes
// of the frame delimiter, which are always single-byte ASCII.
func extractEvent(buffer string) (wire.MessageStreamEvent, string, bool, error) {
	idx := strings.Index(buffer, "\n\n")
	if idx < 0 {
		if len(buffer) > MaxEventSize {
			return wire.MessageStreamEvent{}, "", false, xerrors.Streaming("SSE event exceeded maximum size before a terminator was found")
		}
		return wire.MessageStreamEvent{}, "", false, nil
	}
	frame := buffer[:idx]
	rest := buffer[idx+2:]
	if len(frame) > MaxEventSize {
		return wire.MessageStreamEvent{}, "", false, xerrors.Streaming("SSE event exceeded maximum size")
	}

	trimmed := strings.TrimSpace(frame)
	if trimmed == "" {
		return wire.MessageStreamEvent{Kind: wire.EventPing}, rest, true, nil
	}

	var eventType string
	var dataLines []string
	for _, line := range strings.Split(frame, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// SSE comment line (used for keep-alives); ignored.
		}
	}
	data := strings.Join(dataLines, "\n")

	event, err := parseEventType(eventType, data)
	if err != nil {
		return wire.MessageStreamEvent{}, rest, true, err
	}
	return event, rest, true, nil
}

func parseEventType(eventType, data string) (wire.MessageStreamEvent, error) {
	switch eventType {
	case "":
		return wire.MessageStreamEvent{}, nil
	case "ping":
		return wire.MessageStreamEvent{Kind: wire.EventPing}, nil
	case "error":
		// Pulled out with gjson rather than a struct unmarshal: error
		// frames are the one event shape the API document says may grow
		// extra, undocumented fields over time, and this client only
		// ever needs the two leaf fields below.
		if !gjson.Valid(data) {
			return wire.MessageStreamEvent{}, xerrors.Serialization("decoding error event", errInvalidErrorPayload)
		}
		parsed := gjson.Parse(data)
		errType := parsed.Get("error.type").String()
		errMessage := parsed.Get("error.message").String()
		return wire.MessageStreamEvent{}, xerrors.API(500, errType, errMessage, "")
	case "message_start", "content_block_start", "content_block_delta",
		"content_block_stop", "message_delta", "message_stop":
		var event wire.MessageStreamEvent
		if !utf8.ValidString(data) {
			return wire.MessageStreamEvent{}, xerrors.Encoding("event data was not valid UTF-8", nil)
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return wire.MessageStreamEvent{}, xerrors.Serialization("decoding "+eventType+" event", err)
		}
		event.Kind = wire.EventKind(eventType)
		return event, nil
	default:
		// Unknown event types are reported as an error for this frame
		// only; Parse yields the error and goes on with the next frame
		// rather than silently dropping the unrecognized one.
		return wire.MessageStreamEvent{}, xerrors.Streaming("unknown SSE event type: " + eventType)
	}
}
