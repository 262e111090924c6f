package llm

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxTokens = 8192

type AnthropicOption func(*AnthropicProvider)

func WithMaxTokens(n int64) AnthropicOption {
	return func(p *AnthropicProvider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithThinkingBudget enables extended thinking with the given token budget.
// Zero leaves thinking disabled.
func WithThinkingBudget(n int64) AnthropicOption {
	return func(p *AnthropicProvider) { p.thinkingBudget = n }
}

// AnthropicProvider streams completions from the Anthropic Messages API.
type AnthropicProvider struct {
	client         anthropic.Client
	model          string
	maxTokens      int64
	thinkingBudget int64
}

func NewAnthropic(baseURL, apiKey, model string, opts ...AnthropicOption) *AnthropicProvider {
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))

	p := &AnthropicProvider{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  anthropicMessages(req.Messages),
		Tools:     anthropicTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if p.thinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(p.thinkingBudget)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &anthropicStream{s: stream}, nil
}

type anthropicStream struct {
	s   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	cur StreamEvent
}

func (a *anthropicStream) Next() bool {
	if !a.s.Next() {
		return false
	}
	a.cur = decodeAnthropicEvent(a.s.Current())
	return true
}

func (a *anthropicStream) Event() StreamEvent { return a.cur }
func (a *anthropicStream) Err() error         { return a.s.Err() }
func (a *anthropicStream) Close() error       { return a.s.Close() }

func decodeAnthropicEvent(ev anthropic.MessageStreamEventUnion) StreamEvent {
	switch ev.Type {
	case "message_start":
		return MessageStart{Model: string(ev.Message.Model)}
	case "content_block_start":
		return BlockStart{
			Index: int(ev.Index),
			Kind:  BlockType(ev.ContentBlock.Type),
			ID:    ev.ContentBlock.ID,
			Name:  ev.ContentBlock.Name,
		}
	case "content_block_delta":
		d := BlockDelta{Index: int(ev.Index), Kind: DeltaType(ev.Delta.Type)}
		switch d.Kind {
		case DeltaText:
			d.Text = ev.Delta.Text
		case DeltaThinking:
			d.Text = ev.Delta.Thinking
		case DeltaInputJSON:
			d.Text = ev.Delta.PartialJSON
		}
		return d
	case "content_block_stop":
		return BlockStop{Index: int(ev.Index)}
	case "message_delta":
		return MessageDelta{
			StopReason:   string(ev.Delta.StopReason),
			OutputTokens: ev.Usage.OutputTokens,
		}
	case "message_stop":
		return MessageStop{}
	default:
		return UnknownEvent{Type: ev.Type}
	}
}

// anthropicMessages converts the conversation into API params. Thinking
// blocks are not replayed and empty text blocks are dropped.
func anthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		for _, c := range m.Content {
			switch c.Type {
			case BlockText:
				if c.Text == "" {
					continue
				}
				blocks = append(blocks, anthropic.NewTextBlock(c.Text))
			case BlockToolUse:
				input := c.Input
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, input, c.Name))
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(c.ToolUseID, c.Content, c.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func anthropicTools(defs []ToolDef) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		properties := d.InputSchema["properties"]
		required, _ := d.InputSchema["required"].([]string)

		schema := anthropic.ToolInputSchemaParam{
			Properties: properties,
			Required:   required,
		}
		tool := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if t := tool.OfTool; t != nil {
			t.Description = anthropic.String(d.Description)
		}
		tools = append(tools, tool)
	}
	return tools
}
