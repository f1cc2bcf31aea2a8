package session

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX abstracts over *pgxpool.Pool and pgx.Tx so the same queries run
// inside and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionRow mirrors the sessions table plus a derived message count.
type SessionRow struct {
	ID           pgtype.UUID
	Title        *string
	ModelName    *string
	MessageCount int64
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// MessageRow mirrors the session_messages table.
type MessageRow struct {
	ID             int64
	SessionID      pgtype.UUID
	SequenceNumber int32
	Role           string
	Content        string
	CreatedAt      pgtype.Timestamptz
}

// CreateSessionParams holds the nullable columns for a new session.
type CreateSessionParams struct {
	Title     *string
	ModelName *string
}

// ListSessionsParams controls pagination for ListSessions.
type ListSessionsParams struct {
	ResultLimit  int32
	ResultOffset int32
}

// AddMessageParams holds the columns for a new message.
type AddMessageParams struct {
	SessionID      pgtype.UUID
	SequenceNumber int32
	Role           string
	Content        string
}

// GetMessagesParams controls pagination for GetMessages.
type GetMessagesParams struct {
	SessionID    pgtype.UUID
	ResultLimit  int32
	ResultOffset int32
}

// Queries executes session SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given connection or pool.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const createSessionSQL = `
INSERT INTO sessions (title, model_name)
VALUES ($1, $2)
RETURNING id, title, model_name, 0::bigint AS message_count, created_at, updated_at`

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (SessionRow, error) {
	var row SessionRow
	err := q.db.QueryRow(ctx, createSessionSQL, arg.Title, arg.ModelName).Scan(
		&row.ID, &row.Title, &row.ModelName, &row.MessageCount, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

const getSessionSQL = `
SELECT s.id, s.title, s.model_name,
       (SELECT count(*) FROM session_messages m WHERE m.session_id = s.id) AS message_count,
       s.created_at, s.updated_at
FROM sessions s
WHERE s.id = $1`

func (q *Queries) GetSession(ctx context.Context, id pgtype.UUID) (SessionRow, error) {
	var row SessionRow
	err := q.db.QueryRow(ctx, getSessionSQL, id).Scan(
		&row.ID, &row.Title, &row.ModelName, &row.MessageCount, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

const listSessionsSQL = `
SELECT s.id, s.title, s.model_name,
       (SELECT count(*) FROM session_messages m WHERE m.session_id = s.id) AS message_count,
       s.created_at, s.updated_at
FROM sessions s
ORDER BY s.updated_at DESC
LIMIT $1 OFFSET $2`

func (q *Queries) ListSessions(ctx context.Context, arg ListSessionsParams) ([]SessionRow, error) {
	rows, err := q.db.Query(ctx, listSessionsSQL, arg.ResultLimit, arg.ResultOffset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(&row.ID, &row.Title, &row.ModelName, &row.MessageCount, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, row)
	}
	return sessions, rows.Err()
}

const deleteSessionSQL = `DELETE FROM sessions WHERE id = $1`

func (q *Queries) DeleteSession(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// lockSessionSQL locks the session row for the duration of the enclosing
// transaction, serializing concurrent sequence number allocation.
const lockSessionSQL = `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

func (q *Queries) LockSession(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error) {
	var locked pgtype.UUID
	err := q.db.QueryRow(ctx, lockSessionSQL, id).Scan(&locked)
	return locked, err
}

const maxSequenceNumberSQL = `
SELECT COALESCE(MAX(sequence_number), 0) FROM session_messages WHERE session_id = $1`

func (q *Queries) GetMaxSequenceNumber(ctx context.Context, sessionID pgtype.UUID) (int32, error) {
	var max int32
	err := q.db.QueryRow(ctx, maxSequenceNumberSQL, sessionID).Scan(&max)
	return max, err
}

const addMessageSQL = `
INSERT INTO session_messages (session_id, sequence_number, role, content)
VALUES ($1, $2, $3, $4)`

func (q *Queries) AddMessage(ctx context.Context, arg AddMessageParams) error {
	_, err := q.db.Exec(ctx, addMessageSQL, arg.SessionID, arg.SequenceNumber, arg.Role, arg.Content)
	return err
}

const getMessagesSQL = `
SELECT id, session_id, sequence_number, role, content, created_at
FROM session_messages
WHERE session_id = $1
ORDER BY sequence_number ASC
LIMIT $2 OFFSET $3`

func (q *Queries) GetMessages(ctx context.Context, arg GetMessagesParams) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, getMessagesSQL, arg.SessionID, arg.ResultLimit, arg.ResultOffset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []MessageRow
	for rows.Next() {
		var row MessageRow
		if err := rows.Scan(&row.ID, &row.SessionID, &row.SequenceNumber, &row.Role, &row.Content, &row.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, row)
	}
	return messages, rows.Err()
}

const touchSessionSQL = `UPDATE sessions SET updated_at = now() WHERE id = $1`

func (q *Queries) TouchSession(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, touchSessionSQL, id)
	return err
}
