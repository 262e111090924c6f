package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"gail/internal/db"
	"gail/internal/llm"
)

const (
	titleMaxRunes = 80
	defaultLimit  = 50
)

var ErrNotFound = errors.New("conversation not found")

// Conversation is a stored transcript.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Messages  []llm.Message `json:"messages,omitempty"`
}

type Store struct {
	q   *db.Queries
	now func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{q: db.New(database.Conn()), now: time.Now}
}

// SaveConversation replaces the stored transcript for conversationID. A
// conversation id already owned by another principal is not overwritten.
func (s *Store) SaveConversation(ctx context.Context, conversationID, principalID string, messages []llm.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	written, err := s.q.UpsertConversation(ctx, db.UpsertConversationParams{
		ID:           conversationID,
		PrincipalID:  principalID,
		Title:        Title(messages),
		MessagesJson: string(raw),
		UpdatedAt:    s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("saving conversation %s: %w", conversationID, err)
	}
	if !written {
		slog.Warn("conversation owned by another principal, not saved", "conversation_id", conversationID, "principal_id", principalID)
	}
	return nil
}

func (s *Store) LoadConversation(ctx context.Context, conversationID, principalID string) (*Conversation, error) {
	row, err := s.q.GetConversation(ctx, db.GetConversationParams{ID: conversationID, PrincipalID: principalID})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var messages []llm.Message
	if err := json.Unmarshal([]byte(row.MessagesJson), &messages); err != nil {
		return nil, fmt.Errorf("decoding transcript %s: %w", conversationID, err)
	}
	return &Conversation{
		ID:        row.ID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Messages:  messages,
	}, nil
}

// ListConversations returns the principal's conversations, most recently
// updated first, without their messages.
func (s *Store) ListConversations(ctx context.Context, principalID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.q.ListConversations(ctx, db.ListConversationsParams{PrincipalID: principalID, Limit: int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Conversation{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

// Title is the first user text of a conversation, collapsed to one line.
func Title(messages []llm.Message) string {
	for _, m := range messages {
		if m.Role != llm.RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(m.Text()), " ")
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > titleMaxRunes {
			r := []rune(text)
			text = string(r[:titleMaxRunes-1]) + "…"
		}
		return text
	}
	return ""
}
