package llm

import "context"

// ToolDef is the schema of a tool advertised to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is a single streaming completion call.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDef
}

// Stream iterates the events of one streaming completion. Next blocks until
// the next event is decoded; Err reports why iteration stopped, if not at EOF.
type Stream interface {
	Next() bool
	Event() StreamEvent
	Err() error
	Close() error
}

type Provider interface {
	Name() string
	Model() string
	Stream(ctx context.Context, req Request) (Stream, error)
}
