package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"gail/internal/llm"
	"gail/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const defaultSystemPrompt = `You are GailGPT, an assistant that helps insureds manage their insurance certificates.
Use lookup_policies to answer questions about coverage and limits. When the user asks for a
certificate of insurance (COI), collect the certificate holder's name and address and the
coverages required, then call process_coi_request. If a tool reports an error, explain it
plainly and ask the user for whatever is missing. Never invent policy numbers or limits.`

var errStreamTruncated = errors.New("stream ended before message_stop")

type Option func(*StreamRunner)

func WithSystemPrompt(s string) Option {
	return func(r *StreamRunner) {
		if s != "" {
			r.systemPrompt = s
		}
	}
}

// WithMaxTurns caps the number of provider calls per run. Zero means no cap.
func WithMaxTurns(n int) Option {
	return func(r *StreamRunner) { r.maxTurns = n }
}

func WithStore(s TranscriptStore) Option {
	return func(r *StreamRunner) { r.store = s }
}

// StreamRunner drives the streaming tool-use loop: it calls the provider,
// forwards thinking and text as they arrive, executes every tool the model
// requests, feeds the results back, and repeats until a turn requests no
// tools.
type StreamRunner struct {
	provider     llm.Provider
	registry     *Registry
	tools        []llm.ToolDef
	systemPrompt string
	maxTurns     int
	store        TranscriptStore
}

func NewStreamRunner(provider llm.Provider, registry *Registry, opts ...Option) *StreamRunner {
	r := &StreamRunner{
		provider:     provider,
		registry:     registry,
		systemPrompt: defaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tools = registry.Definitions()
	return r
}

func (r *StreamRunner) Run(ctx context.Context, req Request, emit func(Event)) error {
	ctx = ContextWithPrincipal(ctx, req.PrincipalID)

	ctx, span := trace.Tracer().Start(ctx, "agent.run",
		oteltrace.WithAttributes(
			attribute.String("conversation.id", req.ConversationID),
			attribute.String("principal.id", req.PrincipalID),
			attribute.Int("conversation.messages", len(req.Messages)),
		),
	)
	defer span.End()

	transcript, err := r.loop(ctx, req, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("agent run failed", "conversation_id", req.ConversationID, "error", err)
		emit(Event{Type: EventError, Error: err.Error()})
		return err
	}

	r.persist(ctx, req, transcript)

	emit(Event{Type: EventDone})
	return nil
}

// loop returns the full transcript once a turn finishes without tool calls.
func (r *StreamRunner) loop(ctx context.Context, req Request, emit func(Event)) ([]llm.Message, error) {
	messages := slices.Clone(req.Messages)

	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.maxTurns > 0 && iteration >= r.maxTurns {
			return nil, ErrTurnLimit
		}

		t, err := r.turn(ctx, iteration, messages, req, emit)
		if err != nil {
			return nil, err
		}

		if !t.sawToolUse || len(t.results) == 0 {
			if len(t.blocks) > 0 {
				messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: t.blocks})
			}
			return messages, nil
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: t.blocks},
			llm.Message{Role: llm.RoleUser, Content: t.results},
		)
	}
}

func (r *StreamRunner) turn(ctx context.Context, iteration int, messages []llm.Message, req Request, emit func(Event)) (*turnState, error) {
	ctx, span := trace.Tracer().Start(ctx, "llm.turn",
		oteltrace.WithAttributes(
			attribute.Int("llm.iteration", iteration),
			attribute.String("llm.provider", r.provider.Name()),
			attribute.String("llm.model", r.provider.Model()),
		),
	)
	defer span.End()

	slog.Debug("llm turn started", "conversation_id", req.ConversationID, "iteration", iteration, "messages", len(messages))

	t, err := r.consume(ctx, messages, req, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tool_calls", len(t.results)),
		attribute.String("llm.stop_reason", t.stopReason),
		attribute.Int64("llm.output_tokens", t.outputTokens),
	)
	return t, nil
}

func (r *StreamRunner) consume(ctx context.Context, messages []llm.Message, req Request, emit func(Event)) (*turnState, error) {
	stream, err := r.provider.Stream(ctx, llm.Request{
		System:   r.systemPrompt,
		Messages: messages,
		Tools:    r.tools,
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer stream.Close()

	t := newTurnState()
	for stream.Next() {
		if err := r.dispatch(ctx, t, stream.Event(), req, emit); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}
	if !t.stopped {
		return nil, &TransportError{Err: errStreamTruncated}
	}
	return t, nil
}

// turnState accumulates one assistant turn.
type turnState struct {
	blocks  []llm.ContentBlock
	results []llm.ContentBlock
	args    map[string]*argBuffer
	// current is the index in blocks of the open tool_use block, or -1.
	current      int
	sawToolUse   bool
	stopped      bool
	stopReason   string
	outputTokens int64
}

func newTurnState() *turnState {
	return &turnState{
		args:    make(map[string]*argBuffer),
		current: -1,
	}
}

func (t *turnState) appendText(text string) {
	for i := len(t.blocks) - 1; i >= 0; i-- {
		if t.blocks[i].Type == llm.BlockText {
			t.blocks[i].Text += text
			return
		}
	}
	t.blocks = append(t.blocks, llm.TextBlock(text))
}

func (r *StreamRunner) dispatch(ctx context.Context, t *turnState, ev llm.StreamEvent, req Request, emit func(Event)) error {
	switch ev := ev.(type) {
	case llm.BlockStart:
		switch ev.Kind {
		case llm.BlockThinking:
			emit(Event{Type: EventThinkingStart})
		case llm.BlockText:
			t.blocks = append(t.blocks, llm.TextBlock(""))
		case llm.BlockToolUse:
			if t.current >= 0 {
				return &ProtocolError{Reason: fmt.Sprintf("tool_use %s started before %s stopped", ev.ID, t.blocks[t.current].ID)}
			}
			t.blocks = append(t.blocks, llm.ToolUseBlock(ev.ID, ev.Name, nil))
			t.current = len(t.blocks) - 1
			t.sawToolUse = true
			t.args[ev.ID] = &argBuffer{}
			emit(Event{Type: EventToolStart, ID: ev.ID, Name: ev.Name})
		default:
			slog.Debug("ignoring content block", "kind", ev.Kind, "index", ev.Index)
		}

	case llm.BlockDelta:
		switch ev.Kind {
		case llm.DeltaThinking:
			emit(Event{Type: EventThinkingDelta, Text: ev.Text})
		case llm.DeltaText:
			t.appendText(ev.Text)
			emit(Event{Type: EventTextDelta, Text: ev.Text})
		case llm.DeltaInputJSON:
			if t.current < 0 {
				return &ProtocolError{Reason: "input_json_delta outside a tool_use block"}
			}
			t.args[t.blocks[t.current].ID].Append(ev.Text)
		default:
			slog.Debug("ignoring delta", "kind", ev.Kind, "index", ev.Index)
		}

	case llm.BlockStop:
		if t.current < 0 {
			return nil
		}
		result, err := r.closeToolCall(ctx, t, req, emit)
		if err != nil {
			return err
		}
		t.results = append(t.results, result)

	case llm.MessageStart:
		slog.Debug("message started", "model", ev.Model)

	case llm.MessageDelta:
		t.stopReason = ev.StopReason
		t.outputTokens = ev.OutputTokens

	case llm.MessageStop:
		t.stopped = true

	case llm.UnknownEvent:
		slog.Debug("unknown stream event", "type", ev.Type)
	}
	return nil
}

// closeToolCall resolves the open tool_use block's input and runs the tool.
func (r *StreamRunner) closeToolCall(ctx context.Context, t *turnState, req Request, emit func(Event)) (llm.ContentBlock, error) {
	block := &t.blocks[t.current]
	t.current = -1

	buf := t.args[block.ID]
	delete(t.args, block.ID)
	if buf == nil {
		buf = &argBuffer{}
	}

	input, err := buf.Resolve()
	if err != nil {
		return llm.ContentBlock{}, &MalformedToolInputError{ToolUseID: block.ID, Name: block.Name, Err: err}
	}
	block.Input = input

	return r.execute(ctx, *block, req, emit)
}

func (r *StreamRunner) execute(ctx context.Context, block llm.ContentBlock, req Request, emit func(Event)) (llm.ContentBlock, error) {
	call := Call{
		ID:             block.ID,
		Name:           block.Name,
		ConversationID: req.ConversationID,
		PrincipalID:    req.PrincipalID,
	}

	res, err := r.invoke(ctx, block.Input, call)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return llm.ContentBlock{}, ctxErr
	}
	if err != nil {
		slog.Warn("tool execution failed", "tool", block.Name, "tool_use_id", block.ID, "error", err)
		return llm.ToolResultBlock(block.ID, errorContent(err), true), nil
	}

	data, err := json.Marshal(res.Data)
	if err != nil {
		err = &ToolExecutionError{Name: block.Name, Err: fmt.Errorf("encoding result: %w", err)}
		slog.Warn("tool execution failed", "tool", block.Name, "tool_use_id", block.ID, "error", err)
		return llm.ToolResultBlock(block.ID, errorContent(err), true), nil
	}

	emit(Event{Type: EventToolComplete, ID: block.ID, Name: block.Name, Summary: res.Summary})
	if res.Artifact != nil {
		emit(Event{Type: EventArtifact, ID: block.ID, Name: block.Name, Artifact: res.Artifact})
	}
	return llm.ToolResultBlock(block.ID, string(data), false), nil
}

// invoke runs the handler to completion on a context detached from request
// cancellation. If the request is cancelled first, the handler is abandoned
// and left to finish on its own.
func (r *StreamRunner) invoke(ctx context.Context, input json.RawMessage, call Call) (*Result, error) {
	tool, err := r.registry.Lookup(call.Name)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		res, err := withTrace(tool).Execute(context.WithoutCancel(ctx), input, call)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, &ToolExecutionError{Name: call.Name, Err: o.err}
		}
		if o.res == nil {
			o.res = &Result{}
		}
		return o.res, nil
	case <-ctx.Done():
		slog.Info("abandoning in-flight tool call", "tool", call.Name, "tool_use_id", call.ID)
		return nil, ctx.Err()
	}
}

// persist stores the transcript on a context that survives the caller
// disconnecting right after the final turn.
func (r *StreamRunner) persist(ctx context.Context, req Request, messages []llm.Message) {
	if r.store == nil || req.ConversationID == "" {
		return
	}
	if err := r.store.SaveConversation(context.WithoutCancel(ctx), req.ConversationID, req.PrincipalID, messages); err != nil {
		slog.Warn("failed to save conversation", "conversation_id", req.ConversationID, "error", err)
	}
}

func errorContent(err error) string {
	b, _ := json.Marshal(map[string]string{"error": toolErrorMessage(err)})
	return string(b)
}
