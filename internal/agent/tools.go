package agent

import (
	"context"
	"encoding/json"
	"sort"

	"gail/internal/llm"
)

// Call identifies a single tool invocation and on whose behalf it runs.
type Call struct {
	ID             string
	Name           string
	ConversationID string
	PrincipalID    string
}

// Result is the outcome of a successful tool call. Data is serialized back
// to the model; Artifact, when set, is also forwarded to the caller.
type Result struct {
	Summary  string
	Data     any
	Artifact *Artifact
}

// Artifact is a generated document surfaced outside the text stream.
type Artifact struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	MimeType string         `json:"mime_type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, input json.RawMessage, call Call) (*Result, error)
}

type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Lookup returns a ToolNotFoundError for unregistered names.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &ToolNotFoundError{Name: name}
	}
	return t, nil
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Definitions is the schema registry advertised to the model.
func (r *Registry) Definitions() []llm.ToolDef {
	tools := r.All()
	defs := make([]llm.ToolDef, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}
