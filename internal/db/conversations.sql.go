package db

import "context"

const upsertConversation = `
INSERT INTO conversations (id, principal_id, title, messages_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    messages_json = excluded.messages_json,
    updated_at = excluded.updated_at
WHERE conversations.principal_id = excluded.principal_id
`

type UpsertConversationParams struct {
	ID           string
	PrincipalID  string
	Title        string
	MessagesJson string
	UpdatedAt    string
}

// UpsertConversation reports whether a row was written. A conversation id
// owned by another principal is left untouched.
func (q *Queries) UpsertConversation(ctx context.Context, arg UpsertConversationParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, upsertConversation,
		arg.ID,
		arg.PrincipalID,
		arg.Title,
		arg.MessagesJson,
		arg.UpdatedAt,
		arg.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const getConversation = `
SELECT id, principal_id, title, messages_json, created_at, updated_at
FROM conversations
WHERE id = ? AND principal_id = ?
`

type GetConversationParams struct {
	ID          string
	PrincipalID string
}

func (q *Queries) GetConversation(ctx context.Context, arg GetConversationParams) (Conversation, error) {
	row := q.db.QueryRowContext(ctx, getConversation, arg.ID, arg.PrincipalID)
	var i Conversation
	err := row.Scan(
		&i.ID,
		&i.PrincipalID,
		&i.Title,
		&i.MessagesJson,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listConversations = `
SELECT id, title, created_at, updated_at
FROM conversations
WHERE principal_id = ?
ORDER BY updated_at DESC, id
LIMIT ?
`

type ListConversationsParams struct {
	PrincipalID string
	Limit       int64
}

type ListConversationsRow struct {
	ID        string
	Title     string
	CreatedAt string
	UpdatedAt string
}

func (q *Queries) ListConversations(ctx context.Context, arg ListConversationsParams) ([]ListConversationsRow, error) {
	rows, err := q.db.QueryContext(ctx, listConversations, arg.PrincipalID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListConversationsRow
	for rows.Next() {
		var i ListConversationsRow
		if err := rows.Scan(&i.ID, &i.Title, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
