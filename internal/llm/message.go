package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one unit of a message. Which fields are set depends on Type.
type ContentBlock struct {
	Type      BlockType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is a role-tagged turn. On the wire its content is either a plain
// string or an array of content blocks; it is always held as blocks.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil

	content := strings.TrimSpace(string(raw.Content))
	switch {
	case content == "" || content == "null":
		return nil
	case content[0] == '"':
		var text string
		if err := json.Unmarshal(raw.Content, &text); err != nil {
			return err
		}
		m.Content = []ContentBlock{TextBlock(text)}
		return nil
	case content[0] == '[':
		return json.Unmarshal(raw.Content, &m.Content)
	default:
		return fmt.Errorf("message content must be a string or an array of blocks")
	}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var b strings.Builder
	for _, c := range m.Content {
		if c.Type == BlockText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Validate checks roles and that every tool_result refers to a tool_use that
// appeared earlier in the conversation.
func Validate(messages []Message) error {
	seen := make(map[string]bool)
	for i, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
		for _, c := range m.Content {
			switch c.Type {
			case BlockToolUse:
				if m.Role != RoleAssistant {
					return fmt.Errorf("message %d: tool_use block outside an assistant turn", i)
				}
				seen[c.ID] = true
			case BlockToolResult:
				if !seen[c.ToolUseID] {
					return fmt.Errorf("message %d: tool_result references unknown tool_use %q", i, c.ToolUseID)
				}
			case BlockText, BlockThinking:
			default:
				return fmt.Errorf("message %d: unknown content block type %q", i, c.Type)
			}
		}
	}
	return nil
}
