package llm

import (
	"encoding/json"
	"testing"
)

func TestMessageUnmarshalContent(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []ContentBlock
		wantErr bool
	}{
		{
			name: "string",
			in:   `{"role":"user","content":"COI for Acme"}`,
			want: []ContentBlock{TextBlock("COI for Acme")},
		},
		{
			name: "blocks",
			in:   `{"role":"assistant","content":[{"type":"text","text":"ok"},{"type":"tool_use","id":"t1","name":"lookup_policies","input":{"coverage":"gl"}}]}`,
			want: []ContentBlock{
				TextBlock("ok"),
				ToolUseBlock("t1", "lookup_policies", json.RawMessage(`{"coverage":"gl"}`)),
			},
		},
		{name: "null", in: `{"role":"user","content":null}`},
		{name: "number", in: `{"role":"user","content":42}`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m Message
			err := json.Unmarshal([]byte(tc.in), &m)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(m.Content) != len(tc.want) {
				t.Fatalf("content = %+v", m.Content)
			}
			for i := range tc.want {
				got, want := m.Content[i], tc.want[i]
				if got.Type != want.Type || got.Text != want.Text || got.ID != want.ID || string(got.Input) != string(want.Input) {
					t.Fatalf("block %d = %+v, want %+v", i, got, want)
				}
			}
		})
	}
}

func TestMessageText(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: []ContentBlock{
		TextBlock("Your GL "),
		{Type: BlockThinking, Text: "hidden"},
		ToolUseBlock("t1", "x", nil),
		TextBlock("limit is $1M."),
	}}
	if got := m.Text(); got != "Your GL limit is $1M." {
		t.Fatalf("Text = %q", got)
	}
}

func TestValidate(t *testing.T) {
	use := Message{Role: RoleAssistant, Content: []ContentBlock{ToolUseBlock("t1", "x", json.RawMessage(`{}`))}}
	result := Message{Role: RoleUser, Content: []ContentBlock{ToolResultBlock("t1", `{}`, false)}}

	tests := []struct {
		name    string
		msgs    []Message
		wantErr bool
	}{
		{name: "plain", msgs: []Message{NewUserMessage("hi")}},
		{name: "tool round trip", msgs: []Message{NewUserMessage("hi"), use, result, NewUserMessage("thanks")}},
		{name: "bad role", msgs: []Message{{Role: "system", Content: []ContentBlock{TextBlock("x")}}}, wantErr: true},
		{name: "orphan result", msgs: []Message{NewUserMessage("hi"), result}, wantErr: true},
		{name: "result before use", msgs: []Message{result, use}, wantErr: true},
		{name: "tool_use from user", msgs: []Message{{Role: RoleUser, Content: use.Content}}, wantErr: true},
		{name: "unknown block", msgs: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "image"}}}}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.msgs)
			if tc.wantErr != (err != nil) {
				t.Fatalf("Validate err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	in := []Message{
		NewUserMessage("COI for Acme"),
		{Role: RoleAssistant, Content: []ContentBlock{ToolUseBlock("t1", "process_coi_request", json.RawMessage(`{"holder_name":"Acme"}`))}},
		{Role: RoleUser, Content: []ContentBlock{ToolResultBlock("t1", `{"error":"policy not found"}`, true)}},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Message
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := Validate(out); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !out[2].Content[0].IsError || string(out[1].Content[0].Input) != `{"holder_name":"Acme"}` {
		t.Fatalf("round trip lost data: %+v", out)
	}
}
