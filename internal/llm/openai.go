package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OpenAIProvider streams from an OpenAI-compatible Responses endpoint and
// translates its events into the content-block event model.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAI(baseURL, apiKey, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, model: model}
}

func (o *OpenAIProvider) Name() string  { return "openai" }
func (o *OpenAIProvider) Model() string { return o.model }

func (o *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: openAIInput(req.Messages),
		},
		Tools: openAITools(req.Tools),
	}
	if req.System != "" {
		params.Instructions = openai.String(req.System)
	}

	stream := o.client.Responses.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &openAIStream{s: stream}, nil
}

type openAIStream struct {
	s       *ssestream.Stream[responses.ResponseStreamEventUnion]
	pending []StreamEvent
	cur     StreamEvent
	err     error
}

func (o *openAIStream) Next() bool {
	for len(o.pending) == 0 {
		if o.err != nil || !o.s.Next() {
			return false
		}
		o.pending = o.decode(o.s.Current())
	}
	o.cur, o.pending = o.pending[0], o.pending[1:]
	return true
}

func (o *openAIStream) Event() StreamEvent { return o.cur }

func (o *openAIStream) Err() error {
	if o.err != nil {
		return o.err
	}
	return o.s.Err()
}

func (o *openAIStream) Close() error { return o.s.Close() }

func (o *openAIStream) decode(event responses.ResponseStreamEventUnion) []StreamEvent {
	index := int(event.OutputIndex)

	switch event.Type {
	case "response.created":
		return []StreamEvent{MessageStart{Model: string(event.Response.Model)}}
	case "response.output_item.added":
		item := event.Item
		switch item.Type {
		case "message":
			return []StreamEvent{BlockStart{Index: index, Kind: BlockText}}
		case "function_call":
			return []StreamEvent{BlockStart{Index: index, Kind: BlockToolUse, ID: item.CallID, Name: item.Name}}
		case "reasoning":
			return []StreamEvent{BlockStart{Index: index, Kind: BlockThinking}}
		default:
			return []StreamEvent{BlockStart{Index: index, Kind: BlockType(item.Type)}}
		}
	case "response.output_text.delta":
		return []StreamEvent{BlockDelta{Index: index, Kind: DeltaText, Text: event.Delta}}
	case "response.reasoning_summary_text.delta":
		return []StreamEvent{BlockDelta{Index: index, Kind: DeltaThinking, Text: event.Delta}}
	case "response.function_call_arguments.delta":
		return []StreamEvent{BlockDelta{Index: index, Kind: DeltaInputJSON, Text: event.Delta}}
	case "response.output_item.done":
		return []StreamEvent{BlockStop{Index: index}}
	case "response.completed":
		return []StreamEvent{
			MessageDelta{
				StopReason:   string(event.Response.Status),
				OutputTokens: event.Response.Usage.OutputTokens,
			},
			MessageStop{},
		}
	case "response.failed":
		o.err = fmt.Errorf("response failed: %s", event.Response.Error.Message)
		return nil
	case "error":
		o.err = fmt.Errorf("response error: %s", event.RawJSON())
		return nil
	case "response.queued",
		"response.in_progress",
		"response.content_part.added",
		"response.content_part.done",
		"response.output_text.done",
		"response.output_text.annotation.added",
		"response.function_call_arguments.done",
		"response.reasoning_summary_part.added",
		"response.reasoning_summary_part.done",
		"response.reasoning_summary_text.done":
		return nil
	default:
		return []StreamEvent{UnknownEvent{Type: event.Type}}
	}
}

func openAIInput(msgs []Message) []responses.ResponseInputItemUnionParam {
	var items []responses.ResponseInputItemUnionParam
	for _, m := range msgs {
		for _, c := range m.Content {
			switch c.Type {
			case BlockText:
				if c.Text == "" {
					continue
				}
				items = append(items, responses.ResponseInputItemParamOfMessage(c.Text, responses.EasyInputMessageRole(m.Role)))
			case BlockToolUse:
				args := string(c.Input)
				if args == "" {
					args = "{}"
				}
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(args, c.ID, c.Name))
			case BlockToolResult:
				items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(c.ToolUseID, c.Content))
			}
		}
	}
	return items
}

func openAITools(defs []ToolDef) []responses.ToolUnionParam {
	tools := make([]responses.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  d.InputSchema,
				Strict:      openai.Bool(false),
			},
		})
	}
	return tools
}
