package agent

import (
	"context"

	"gail/internal/llm"
)

type EventType string

const (
	EventThinkingStart EventType = "thinking_start"
	EventThinkingDelta EventType = "thinking_delta"
	EventTextDelta     EventType = "text_delta"
	EventToolStart     EventType = "tool_start"
	EventToolComplete  EventType = "tool_complete"
	EventArtifact      EventType = "artifact"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// Event is what the caller sees of a run. A run ends with exactly one
// EventDone or one EventError, never both.
type Event struct {
	Type     EventType `json:"type"`
	Text     string    `json:"text,omitempty"`
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Artifact *Artifact `json:"artifact,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Request is one chat turn as supplied by the caller. Messages is the whole
// conversation so far, ending in the new user turn.
type Request struct {
	ConversationID string
	PrincipalID    string
	Messages       []llm.Message
}

type Runner interface {
	Run(ctx context.Context, req Request, emit func(Event)) error
}

// TranscriptStore persists a finished conversation for replay.
type TranscriptStore interface {
	SaveConversation(ctx context.Context, conversationID, principalID string, messages []llm.Message) error
}
