package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseServer replies to every request with the given frames and hands the
// decoded request body to the test.
func sseServer(t *testing.T, path string, frames []string) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	bodies := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, path) {
			http.Error(w, `{"error":{"message":"not found"}}`, http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		bodies <- body

		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, bodies
}

func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

func collect(t *testing.T, s Stream) []StreamEvent {
	t.Helper()
	defer s.Close()
	var out []StreamEvent
	for s.Next() {
		out = append(out, s.Event())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	return out
}

var testTools = []ToolDef{{
	Name:        "lookup_policies",
	Description: "List policies",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"coverage": map[string]any{"type": "string"},
		},
		"required": []string{"coverage"},
	},
}}

func TestAnthropicStream(t *testing.T) {
	frames := []string{
		frame("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"usage":{"input_tokens":12,"output_tokens":1}}}`),
		frame("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		frame("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking."}}`),
		frame("content_block_stop", `{"type":"content_block_stop","index":0}`),
		frame("content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"lookup_policies","input":{}}}`),
		frame("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"cover"}}`),
		frame("content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"age\": \"gl\"}"}}`),
		frame("content_block_stop", `{"type":"content_block_stop","index":1}`),
		frame("message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":25}}`),
		frame("message_stop", `{"type":"message_stop"}`),
	}
	srv, bodies := sseServer(t, "/v1/messages", frames)

	p := NewAnthropic(srv.URL, "test-key", "claude-test")
	s, err := p.Stream(context.Background(), Request{
		System:   "be helpful",
		Messages: []Message{NewUserMessage("what's my GL limit?")},
		Tools:    testTools,
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	got := collect(t, s)

	want := []StreamEvent{
		MessageStart{Model: "claude-test"},
		BlockStart{Index: 0, Kind: BlockText},
		BlockDelta{Index: 0, Kind: DeltaText, Text: "Checking."},
		BlockStop{Index: 0},
		BlockStart{Index: 1, Kind: BlockToolUse, ID: "toolu_1", Name: "lookup_policies"},
		BlockDelta{Index: 1, Kind: DeltaInputJSON, Text: `{"cover`},
		BlockDelta{Index: 1, Kind: DeltaInputJSON, Text: `age": "gl"}`},
		BlockStop{Index: 1},
		MessageDelta{StopReason: "tool_use", OutputTokens: 25},
		MessageStop{},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %#v, want %#v", i, got[i], want[i])
		}
	}

	body := <-bodies
	if body["model"] != "claude-test" || body["stream"] != true {
		t.Fatalf("request body = %v", body)
	}
	system, _ := body["system"].([]any)
	if len(system) != 1 || system[0].(map[string]any)["text"] != "be helpful" {
		t.Fatalf("system = %v", body["system"])
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", body["tools"])
	}
	tool := tools[0].(map[string]any)
	schema, _ := tool["input_schema"].(map[string]any)
	if tool["name"] != "lookup_policies" || schema["type"] != "object" || schema["properties"] == nil {
		t.Fatalf("tool = %v", tool)
	}
	if _, ok := body["thinking"]; ok {
		t.Fatalf("thinking sent without a budget")
	}
}

func TestAnthropicThinkingAndUnknownEvents(t *testing.T) {
	frames := []string{
		frame("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":1,"output_tokens":1}}}`),
		frame("ping", `{"type":"ping"}`),
		frame("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}`),
		frame("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Hmm."}}`),
		frame("content_block_stop", `{"type":"content_block_stop","index":0}`),
		frame("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`),
		frame("message_stop", `{"type":"message_stop"}`),
	}
	srv, bodies := sseServer(t, "/v1/messages", frames)

	p := NewAnthropic(srv.URL, "test-key", "claude-test", WithThinkingBudget(2048), WithMaxTokens(4096))
	s, err := p.Stream(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	got := collect(t, s)

	var sawThinking bool
	for _, ev := range got {
		if d, ok := ev.(BlockDelta); ok && d.Kind == DeltaThinking && d.Text == "Hmm." {
			sawThinking = true
		}
	}
	if !sawThinking {
		t.Fatalf("thinking delta missing: %+v", got)
	}
	if _, ok := got[len(got)-1].(MessageStop); !ok {
		t.Fatalf("last event = %#v", got[len(got)-1])
	}

	body := <-bodies
	thinking, _ := body["thinking"].(map[string]any)
	if thinking["type"] != "enabled" || thinking["budget_tokens"] != float64(2048) {
		t.Fatalf("thinking = %v", body["thinking"])
	}
	if body["max_tokens"] != float64(4096) {
		t.Fatalf("max_tokens = %v", body["max_tokens"])
	}
}

func TestAnthropicOpenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	p := NewAnthropic(srv.URL, "bad-key", "claude-test")
	if _, err := p.Stream(context.Background(), Request{Messages: []Message{NewUserMessage("hi")}}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAnthropicMessagesConversion(t *testing.T) {
	msgs := []Message{
		NewUserMessage("COI for Acme"),
		{Role: RoleAssistant, Content: []ContentBlock{
			{Type: BlockThinking, Text: "secret"},
			TextBlock(""),
			TextBlock("On it."),
			ToolUseBlock("toolu_1", "process_coi_request", nil),
		}},
		{Role: RoleUser, Content: []ContentBlock{
			ToolResultBlock("toolu_1", `{"error":"policy not found"}`, true),
		}},
	}

	params := anthropicMessages(msgs)
	if len(params) != 3 {
		t.Fatalf("messages = %d, want 3", len(params))
	}
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []struct {
		Role    string           `json:"role"`
		Content []map[string]any `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	assistant := decoded[1]
	if assistant.Role != "assistant" || len(assistant.Content) != 2 {
		t.Fatalf("assistant = %+v", assistant)
	}
	if assistant.Content[0]["type"] != "text" || assistant.Content[1]["type"] != "tool_use" {
		t.Fatalf("assistant blocks = %+v", assistant.Content)
	}
	if input, ok := assistant.Content[1]["input"].(map[string]any); !ok || len(input) != 0 {
		t.Fatalf("tool_use input = %v", assistant.Content[1]["input"])
	}
	result := decoded[2].Content[0]
	if result["type"] != "tool_result" || result["tool_use_id"] != "toolu_1" || result["is_error"] != true {
		t.Fatalf("tool_result = %+v", result)
	}
}

func TestOpenAIStream(t *testing.T) {
	frames := []string{
		frame("response.created", `{"type":"response.created","sequence_number":0,"response":{"id":"resp_1","object":"response","model":"gpt-test","status":"in_progress","output":[]}}`),
		frame("response.in_progress", `{"type":"response.in_progress","sequence_number":1,"response":{"id":"resp_1","object":"response","model":"gpt-test","status":"in_progress","output":[]}}`),
		frame("response.output_item.added", `{"type":"response.output_item.added","sequence_number":2,"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"lookup_policies","arguments":"","status":"in_progress"}}`),
		frame("response.function_call_arguments.delta", `{"type":"response.function_call_arguments.delta","sequence_number":3,"output_index":0,"item_id":"fc_1","delta":"{\"coverage\":"}`),
		frame("response.function_call_arguments.delta", `{"type":"response.function_call_arguments.delta","sequence_number":4,"output_index":0,"item_id":"fc_1","delta":"\"gl\"}"}`),
		frame("response.function_call_arguments.done", `{"type":"response.function_call_arguments.done","sequence_number":5,"output_index":0,"item_id":"fc_1","arguments":"{\"coverage\":\"gl\"}"}`),
		frame("response.output_item.done", `{"type":"response.output_item.done","sequence_number":6,"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"lookup_policies","arguments":"{\"coverage\":\"gl\"}","status":"completed"}}`),
		frame("response.completed", `{"type":"response.completed","sequence_number":7,"response":{"id":"resp_1","object":"response","model":"gpt-test","status":"completed","output":[],"usage":{"input_tokens":5,"output_tokens":9,"total_tokens":14,"input_tokens_details":{"cached_tokens":0},"output_tokens_details":{"reasoning_tokens":0}}}}`),
	}
	srv, bodies := sseServer(t, "/responses", frames)

	p := NewOpenAI(srv.URL, "test-key", "gpt-test")
	s, err := p.Stream(context.Background(), Request{
		System: "be helpful",
		Messages: []Message{
			NewUserMessage("limits?"),
			{Role: RoleAssistant, Content: []ContentBlock{ToolUseBlock("call_0", "lookup_policies", json.RawMessage(`{}`))}},
			{Role: RoleUser, Content: []ContentBlock{ToolResultBlock("call_0", `{"policies":[]}`, false)}},
		},
		Tools: testTools,
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	got := collect(t, s)

	want := []StreamEvent{
		MessageStart{Model: "gpt-test"},
		BlockStart{Index: 0, Kind: BlockToolUse, ID: "call_1", Name: "lookup_policies"},
		BlockDelta{Index: 0, Kind: DeltaInputJSON, Text: `{"coverage":`},
		BlockDelta{Index: 0, Kind: DeltaInputJSON, Text: `"gl"}`},
		BlockStop{Index: 0},
		MessageDelta{StopReason: "completed", OutputTokens: 9},
		MessageStop{},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %#v, want %#v", i, got[i], want[i])
		}
	}

	body := <-bodies
	if body["instructions"] != "be helpful" || body["stream"] != true {
		t.Fatalf("request body = %v", body)
	}
	input, _ := body["input"].([]any)
	if len(input) != 3 {
		t.Fatalf("input = %v", body["input"])
	}
	if item := input[1].(map[string]any); item["type"] != "function_call" || item["call_id"] != "call_0" {
		t.Fatalf("function_call item = %v", item)
	}
	if item := input[2].(map[string]any); item["type"] != "function_call_output" || item["call_id"] != "call_0" {
		t.Fatalf("function_call_output item = %v", item)
	}
}

func TestOpenAIStreamFailed(t *testing.T) {
	frames := []string{
		frame("response.created", `{"type":"response.created","sequence_number":0,"response":{"id":"resp_1","object":"response","model":"gpt-test","status":"in_progress","output":[]}}`),
		frame("response.failed", `{"type":"response.failed","sequence_number":1,"response":{"id":"resp_1","object":"response","model":"gpt-test","status":"failed","output":[],"error":{"code":"server_error","message":"overloaded"}}}`),
	}
	srv, _ := sseServer(t, "/responses", frames)

	s, err := NewOpenAI(srv.URL, "test-key", "gpt-test").Stream(context.Background(), Request{
		Messages: []Message{NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()
	n := 0
	for s.Next() {
		n++
	}
	if n != 1 {
		t.Fatalf("events before failure = %d, want 1", n)
	}
	if err := s.Err(); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("err = %v", err)
	}
}
