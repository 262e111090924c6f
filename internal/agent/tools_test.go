package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRegistryDefinitionsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"web_search", "lookup_policies", "process_coi_request"} {
		reg.Register(&fakeTool{name: name})
	}

	defs := reg.Definitions()
	want := []string{"lookup_policies", "process_coi_request", "web_search"}
	if len(defs) != len(want) {
		t.Fatalf("definitions = %d, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Fatalf("definition %d = %q, want %q", i, d.Name, want[i])
		}
		if d.Description == "" || d.InputSchema["type"] != "object" {
			t.Fatalf("definition %q incomplete: %+v", d.Name, d)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "lookup_policies"})

	if _, err := reg.Lookup("lookup_policies"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	_, err := reg.Lookup("nope")
	var nf *ToolNotFoundError
	if !errors.As(err, &nf) || nf.Name != "nope" {
		t.Fatalf("err = %v, want ToolNotFoundError", err)
	}
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolExecutionError{Name: "process_coi_request", Err: errors.New("policy not found")}
	if got := toolErrorMessage(err); got != "policy not found" {
		t.Fatalf("message = %q", got)
	}
	if got := toolErrorMessage(&ToolNotFoundError{Name: "x"}); got != "unknown tool: x" {
		t.Fatalf("message = %q", got)
	}
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestTracedToolRecordsSpan(t *testing.T) {
	sr := installRecorder(t)

	ok := withTrace(&fakeTool{name: "process_coi_request", fn: func(context.Context, json.RawMessage, Call) (*Result, error) {
		return &Result{Artifact: &Artifact{Type: "certificate", ID: "cert-1"}}, nil
	}})
	if _, err := ok.Execute(context.Background(), json.RawMessage(`{}`), Call{ID: "toolu_1", ConversationID: "conv-1"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	failing := withTrace(&fakeTool{name: "lookup_policies", fn: func(context.Context, json.RawMessage, Call) (*Result, error) {
		return nil, errors.New("db locked")
	}})
	if _, err := failing.Execute(context.Background(), json.RawMessage(`{}`), Call{ID: "toolu_2"}); err == nil {
		t.Fatalf("expected error")
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "tool.process_coi_request" {
		t.Fatalf("span name = %q", spans[0].Name())
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["gen_ai.tool.call.id"] != "toolu_1" || attrs["gail.artifact.id"] != "cert-1" {
		t.Fatalf("attributes = %v", attrs)
	}
	if spans[1].Status().Code != codes.Error {
		t.Fatalf("failing span status = %v", spans[1].Status())
	}
}

func TestRunSpans(t *testing.T) {
	sr := installRecorder(t)

	tool := &fakeTool{name: "t", fn: func(context.Context, json.RawMessage, Call) (*Result, error) {
		return &Result{}, nil
	}}
	p := &fakeProvider{turns: []scriptedTurn{
		toolTurn("", toolCall{id: "x", name: "t", fragments: []string{`{}`}}),
		textTurn("ok"),
	}}
	if err := newTestRunner(p, tool).Run(context.Background(), userRequest("hi"), (&recorder{}).emit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts := map[string]int{}
	for _, s := range sr.Ended() {
		counts[s.Name()]++
	}
	if counts["agent.run"] != 1 || counts["llm.turn"] != 2 || counts["tool.t"] != 1 {
		t.Fatalf("spans = %v", counts)
	}
}
