package agent

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"

	"github.com/rescrv/claudius/accumulate"
	"github.com/rescrv/claudius/budget"
	"github.com/rescrv/claudius/render"
	"github.com/rescrv/claudius/wire"
	"github.com/rescrv/claudius/xerrors"
)

// Sender is the subset of the client this package depends on, so a Loop
// can be driven against a fake in tests without importing transport.
// Streaming (rather than a single blocking response) is required so a
// Loop can render tokens incrementally and check Interrupt between
// events.
type Sender interface {
	Stream(ctx context.Context, params wire.MessageCreateParams) (iter.Seq2[wire.MessageStreamEvent, error], *accumulate.Handle, error)
}

// ErrInterrupted is returned by TakeTurn when Interrupt reported true
// before the turn completed naturally.
var ErrInterrupted = errors.New("turn interrupted")

// Hooks let a caller observe and react to turn lifecycle events. Every
// hook is optional; a nil hook is treated as a no-op that lets the turn
// continue naturally, mirroring the default (non-overridden) trait
// methods of the upstream Agent trait.
type Hooks struct {
	BeforeRequest      func(ctx context.Context, params *wire.MessageCreateParams)
	AfterResponse      func(ctx context.Context, msg *wire.Message)
	HandleEndTurn      func(ctx context.Context, msg wire.Message) error
	HandleMaxTokens    func(ctx context.Context) error
	HandleStopSequence func(ctx context.Context, msg wire.Message) error
	HandleRefusal      func(ctx context.Context, msg wire.Message) error
}

// Loop drives repeated turns of a single conversation thread against a
// Sender, dispatching tool calls and accounting token spend against a
// shared budget.Budget.
type Loop struct {
	Client    Sender
	Tools     *Catalog
	Model     string
	MaxTokens int
	Thinking  *wire.ThinkingConfig
	Hooks     Hooks

	// Render receives turn events as they happen; nil means render.NoopSink.
	Render render.Sink
	// Interrupt is polled between stream events and between turns; nil
	// means the turn can never be interrupted.
	Interrupt render.InterruptSignal
	// Depth is this loop's nesting level, passed to every Render call so
	// a terminal can indent nested sub-agent output. The root loop uses 0.
	Depth int
	// Label identifies this loop to Render; empty for the root loop.
	Label string
}

// Sub returns a Loop for a nested sub-agent: same Client, Tools, Model,
// and Render sink, one level deeper, under label. The budget is not
// part of Loop — TakeTurn takes its budget.Budget as an explicit
// parameter on every call, so the parent and the sub-agent share the
// same allocation pool for free, simply by being called with the same
// *budget.Budget.
func (l *Loop) Sub(label string) *Loop {
	sub := *l
	sub.Depth = l.Depth + 1
	sub.Label = label
	return &sub
}

func (l *Loop) sink() render.Sink {
	if l.Render == nil {
		return render.NoopSink{}
	}
	return l.Render
}

// TakeTurn allocates MaxTokens from budget and drives the model through
// one or more requests — continuing across tool_use and pause_turn stop
// reasons — until end_turn, stop_sequence, refusal, an interrupt, or the
// allocation is spent down to (or below) the thinking budget reserved
// within it. messages is mutated in place with every assistant and
// tool-result message produced.
func (l *Loop) TakeTurn(ctx context.Context, messages *[]wire.Message, b *budget.Budget) error {
	sink := l.sink()
	defer sink.TurnEnd(l.Depth)

	alloc := b.Allocate(uint64(l.MaxTokens))
	if alloc == nil {
		return l.handleMaxTokens(ctx)
	}
	defer alloc.Release()

	var thinkingReserve uint64
	if l.Thinking != nil {
		thinkingReserve = uint64(l.Thinking.BudgetTokens)
	}

	for alloc.Allocated() > thinkingReserve {
		if l.interrupted() {
			sink.Interrupted(l.Depth)
			return ErrInterrupted
		}

		params := wire.MessageCreateParams{
			Model:     l.Model,
			Messages:  *messages,
			MaxTokens: int(alloc.Allocated()),
			Thinking:  l.Thinking,
		}
		if l.Tools != nil && l.Tools.Size() > 0 {
			params.Tools = l.Tools.Definitions()
		}
		if l.Hooks.BeforeRequest != nil {
			l.Hooks.BeforeRequest(ctx, &params)
		}

		sink.TurnStart(l.Depth, l.Label)
		msg, interrupted, err := l.runTurn(ctx, params, sink)
		if err != nil {
			return err
		}
		if l.Hooks.AfterResponse != nil {
			l.Hooks.AfterResponse(ctx, msg)
		}

		pushOrMerge(messages, *msg)
		alloc.Consume(uint64(msg.Usage.OutputTokens))

		if interrupted {
			sink.Interrupted(l.Depth)
			return ErrInterrupted
		}
		sink.ResponseFinish(l.Depth, *msg)

		if msg.StopReason == nil {
			return xerrors.Streaming("message completed without a stop_reason")
		}

		switch *msg.StopReason {
		case wire.StopReasonEndTurn:
			return l.handleEndTurn(ctx, *msg)
		case wire.StopReasonMaxTokens:
			return l.handleMaxTokens(ctx)
		case wire.StopReasonStopSequence:
			return l.handleStopSequence(ctx, *msg)
		case wire.StopReasonRefusal:
			return l.handleRefusal(ctx, *msg)
		case wire.StopReasonModelContextWindowExceed:
			return xerrors.BudgetExhausted("model context window exceeded")
		case wire.StopReasonPauseTurn:
			sink.Info(l.Depth, "pause_turn: continuing without consuming a new allocation")
			continue
		case wire.StopReasonToolUse:
			results, err := l.dispatchTools(ctx, msg.Content, sink)
			if err != nil {
				return err
			}
			pushOrMerge(messages, wire.Message{Role: wire.RoleUser, Content: results})
		default:
			return xerrors.Streaming("unrecognized stop_reason: " + string(*msg.StopReason))
		}
	}
	return l.handleMaxTokens(ctx)
}

func (l *Loop) interrupted() bool {
	return l.Interrupt != nil && l.Interrupt.Interrupted()
}

// runTurn drives a single streaming request to completion, rendering
// events as they arrive and checking Interrupt between events. When an
// interrupt fires mid-stream, the in-flight message is finalized with
// whatever content has accumulated so far (interrupted=true); otherwise
// the stream is drained naturally and the complete message is returned.
func (l *Loop) runTurn(ctx context.Context, params wire.MessageCreateParams, sink render.Sink) (*wire.Message, bool, error) {
	events, handle, err := l.Client.Stream(ctx, params)
	if err != nil {
		return nil, false, err
	}

	toolNames := map[int]string{}
	for event, err := range events {
		if err != nil {
			sink.Error(l.Depth, err)
			msg, finalErr := handle.FinalizePartial()
			if finalErr != nil {
				return nil, false, err
			}
			return &msg, false, nil
		}
		l.renderEvent(sink, event, toolNames)
		if l.interrupted() {
			msg, err := handle.FinalizePartial()
			if err != nil {
				return nil, true, err
			}
			return &msg, true, nil
		}
	}

	msg, err := handle.Wait()
	if err != nil {
		return nil, false, err
	}
	return &msg, false, nil
}

// renderEvent translates one stream event into the matching Sink calls.
// toolNames tracks the tool_use_id of each in-progress block by index,
// since a content_block_delta event carries only the block index, not the id.
func (l *Loop) renderEvent(sink render.Sink, event wire.MessageStreamEvent, toolNames map[int]string) {
	switch event.Kind {
	case wire.EventContentBlockStart:
		if event.ContentBlock == nil {
			return
		}
		switch event.ContentBlock.Kind {
		case wire.BlockToolUse, wire.BlockServerToolUse:
			toolNames[event.Index] = event.ContentBlock.ID
			sink.ToolUseStart(l.Depth, event.ContentBlock.ID, event.ContentBlock.Name)
		}
	case wire.EventContentBlockDelta:
		if event.Delta == nil {
			return
		}
		switch event.Delta.Kind {
		case wire.DeltaText:
			sink.TextChunk(l.Depth, event.Delta.Text)
		case wire.DeltaThinking:
			sink.ThinkingChunk(l.Depth, event.Delta.Thinking)
		case wire.DeltaInputJSON:
			if id, ok := toolNames[event.Index]; ok {
				sink.ToolUseInputChunk(l.Depth, id, event.Delta.PartialJSON)
			}
		}
	case wire.EventContentBlockStop:
		if id, ok := toolNames[event.Index]; ok {
			sink.ToolUseEnd(l.Depth, id)
		}
	case wire.EventError:
		if event.Error != nil {
			sink.Error(l.Depth, xerrors.API(0, event.Error.Type, event.Error.Message, ""))
		}
	}
}

func (l *Loop) handleEndTurn(ctx context.Context, msg wire.Message) error {
	if l.Hooks.HandleEndTurn != nil {
		return l.Hooks.HandleEndTurn(ctx, msg)
	}
	return nil
}

func (l *Loop) handleMaxTokens(ctx context.Context) error {
	if l.Hooks.HandleMaxTokens != nil {
		return l.Hooks.HandleMaxTokens(ctx)
	}
	return nil
}

func (l *Loop) handleStopSequence(ctx context.Context, msg wire.Message) error {
	if l.Hooks.HandleStopSequence != nil {
		return l.Hooks.HandleStopSequence(ctx, msg)
	}
	return nil
}

func (l *Loop) handleRefusal(ctx context.Context, msg wire.Message) error {
	if l.Hooks.HandleRefusal != nil {
		return l.Hooks.HandleRefusal(ctx, msg)
	}
	return nil
}

// dispatchTools runs every tool_use block in content concurrently and
// returns the corresponding tool_result blocks in the SAME order as the
// requests, regardless of completion order — the API requires tool
// results to reference their tool_use_id but conversational clarity (and
// some server-side validation) still expects wire order. A tool whose
// Call returns a Fatal-wrapped error aborts the whole dispatch: the
// first such error observed (in no particular order across concurrent
// callbacks) is returned instead of a result slice, aborting the turn.
func (l *Loop) dispatchTools(ctx context.Context, content []wire.ContentBlock, sink render.Sink) ([]wire.ContentBlock, error) {
	type job struct {
		index int
		block wire.ContentBlock
	}
	var jobs []job
	for i, block := range content {
		if block.Kind == wire.BlockToolUse {
			jobs = append(jobs, job{index: i, block: block})
		}
	}

	results := make([]wire.ContentBlock, len(jobs))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatal error
	for slot, j := range jobs {
		wg.Add(1)
		go func(slot int, j job) {
			defer wg.Done()
			sink.ToolResultStart(l.Depth, j.block.ID)
			block, err := l.runTool(ctx, j.block, sink)
			sink.ToolResultEnd(l.Depth, j.block.ID)
			if err != nil {
				mu.Lock()
				if fatal == nil {
					fatal = err
				}
				mu.Unlock()
				return
			}
			results[slot] = block
		}(slot, j)
	}
	wg.Wait()
	if fatal != nil {
		return nil, fatal
	}
	return results, nil
}

// runTool invokes block's tool. It returns a non-nil error only when the
// callback failed with a Fatal-wrapped error; every other failure is
// folded into an is_error tool_result instead.
func (l *Loop) runTool(ctx context.Context, block wire.ContentBlock, sink render.Sink) (wire.ContentBlock, error) {
	tool, ok := l.Tools.Get(block.Name)
	if !ok {
		err := errors.New("no such tool: " + block.Name)
		sink.Error(l.Depth, err)
		return wire.ContentBlock{
			Kind:      wire.BlockToolResult,
			ToolUseID: block.ID,
			IsError:   true,
			Content:   rawString(err.Error()),
		}, nil
	}
	output, err := tool.Call(ctx, block.Input)
	if err != nil {
		var fatalErr *FatalToolError
		if errors.As(err, &fatalErr) {
			return wire.ContentBlock{}, fatalErr.Err
		}
		sink.Error(l.Depth, err)
		return wire.ContentBlock{
			Kind:      wire.BlockToolResult,
			ToolUseID: block.ID,
			IsError:   true,
			Content:   rawString(err.Error()),
		}, nil
	}
	sink.ToolResultText(l.Depth, block.ID, string(output))
	return wire.ContentBlock{
		Kind:      wire.BlockToolResult,
		ToolUseID: block.ID,
		Content:   output,
	}, nil
}

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// pushOrMerge appends msg to messages, merging its content into the
// last message instead when the last message shares msg's role — the
// API rejects two consecutive messages with the same role, so turns
// that produce several same-role messages in a row (e.g. a pause_turn
// continuation) must be merged rather than appended.
func pushOrMerge(messages *[]wire.Message, msg wire.Message) {
	if n := len(*messages); n > 0 && (*messages)[n-1].Role == msg.Role {
		(*messages)[n-1].Content = append((*messages)[n-1].Content, msg.Content...)
		return
	}
	*messages = append(*messages, msg)
}
