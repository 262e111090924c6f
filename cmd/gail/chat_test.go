package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gail/internal/agent"

	"github.com/charmbracelet/glamour"
)

func TestChatMessage(t *testing.T) {
	got, err := chatMessage([]string{"from args"}, strings.NewReader("ignored"))
	if err != nil || got != "from args" {
		t.Fatalf("args: %q, %v", got, err)
	}
	got, err = chatMessage(nil, strings.NewReader("  from stdin\n"))
	if err != nil || got != "from stdin" {
		t.Fatalf("stdin: %q, %v", got, err)
	}
	if _, err := chatMessage(nil, strings.NewReader(" \n")); err == nil {
		t.Fatalf("expected error for empty message")
	}
}

func TestEventPrinter(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	p := &eventPrinter{out: &out, artifactDir: dir}

	for _, ev := range []agent.Event{
		{Type: agent.EventThinkingStart},
		{Type: agent.EventThinkingDelta, Text: "hidden"},
		{Type: agent.EventTextDelta, Text: "Issuing"},
		{Type: agent.EventToolStart, ID: "t1", Name: "process_coi_request"},
		{Type: agent.EventToolComplete, ID: "t1", Summary: "Generated certificate COI-1 for City"},
		{Type: agent.EventArtifact, Artifact: &agent.Artifact{ID: "cert-1", Title: "COI-1", Content: "# Certificate"}},
		{Type: agent.EventDone},
	} {
		p.print(ev)
	}

	s := out.String()
	if strings.Contains(s, "hidden") {
		t.Fatalf("thinking printed without --thinking: %q", s)
	}
	for _, want := range []string{"Issuing", "→ process_coi_request", "✓ Generated certificate COI-1 for City", "written to"} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q: %q", want, s)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "cert-1.md"))
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(b) != "# Certificate" {
		t.Fatalf("artifact = %q", b)
	}
}

func TestFormatLimits(t *testing.T) {
	got := formatLimits(map[string]int64{"general_aggregate": 2_000_000, "each_occurrence": 1_000_000})
	if got != "each_occurrence=$1,000,000 general_aggregate=$2,000,000" {
		t.Fatalf("formatLimits = %q", got)
	}
}

func TestEventPrinterInlineArtifact(t *testing.T) {
	doc := "# Certificate of Liability Insurance\n\n**Certificate number:** COI-1\n"
	art := &agent.Artifact{ID: "cert-1", Title: "COI-1", Content: doc}

	var raw bytes.Buffer
	(&eventPrinter{out: &raw}).print(agent.Event{Type: agent.EventArtifact, Artifact: art})
	if !strings.Contains(raw.String(), doc) {
		t.Fatalf("raw output = %q", raw.String())
	}

	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("notty"), glamour.WithWordWrap(100))
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	var rendered bytes.Buffer
	(&eventPrinter{out: &rendered, markdown: r}).print(agent.Event{Type: agent.EventArtifact, Artifact: art})
	s := rendered.String()
	if !strings.Contains(s, "Certificate of Liability Insurance") || !strings.Contains(s, "COI-1") {
		t.Fatalf("rendered output = %q", s)
	}
}
