package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier defines the database operations Store needs on sessions and
// messages. Interfaces are defined by the consumer, not the provider.
type Querier interface {
	CreateSession(ctx context.Context, arg CreateSessionParams) (SessionRow, error)
	GetSession(ctx context.Context, id pgtype.UUID) (SessionRow, error)
	ListSessions(ctx context.Context, arg ListSessionsParams) ([]SessionRow, error)
	DeleteSession(ctx context.Context, id pgtype.UUID) (int64, error)

	AddMessage(ctx context.Context, arg AddMessageParams) error
	GetMessages(ctx context.Context, arg GetMessagesParams) ([]MessageRow, error)
	GetMaxSequenceNumber(ctx context.Context, sessionID pgtype.UUID) (int32, error)
	TouchSession(ctx context.Context, id pgtype.UUID) error
}

// Store manages session persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // nil in unit tests; disables the transactional path
	logger  *slog.Logger
}

// New creates a Store. pool may be nil when testing with a mock
// querier; AppendMessages then runs without a transaction.
func New(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		querier: querier,
		pool:    pool,
		logger:  logger,
	}
}

// Create creates a new conversation session. Empty title or modelName
// are stored as NULL.
func (s *Store) Create(ctx context.Context, title, modelName string) (*Session, error) {
	var titlePtr, modelNamePtr *string
	if title != "" {
		titlePtr = &title
	}
	if modelName != "" {
		modelNamePtr = &modelName
	}

	row, err := s.querier.CreateSession(ctx, CreateSessionParams{
		Title:     titlePtr,
		ModelName: modelNamePtr,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	sess := rowToSession(row)
	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return sess, nil
}

// Get retrieves a session by ID. Returns ErrSessionNotFound if it
// does not exist.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	row, err := s.querier.GetSession(ctx, uuidToPgUUID(sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("getting session %s: %w", sessionID, err)
	}

	return rowToSession(row), nil
}

// List lists sessions with pagination, most recently updated first.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.querier.ListSessions(ctx, ListSessionsParams{
		ResultLimit:  limit,
		ResultOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, rowToSession(row))
	}
	return sessions, nil
}

// Delete deletes a session and all its messages (CASCADE). Returns
// ErrSessionNotFound if no session matched.
func (s *Store) Delete(ctx context.Context, sessionID uuid.UUID) error {
	affected, err := s.querier.DeleteSession(ctx, uuidToPgUUID(sessionID))
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	s.logger.Debug("deleted session", "id", sessionID)
	return nil
}

// AppendMessages appends messages to a session, assigning consecutive
// sequence numbers. With a pool configured, the whole batch runs in a
// transaction that locks the session row; concurrent appenders
// serialize instead of colliding on sequence numbers.
func (s *Store) AppendMessages(ctx context.Context, sessionID uuid.UUID, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if !ValidRole(msg.Role) {
			return fmt.Errorf("role %q: %w", msg.Role, ErrInvalidRole)
		}
	}

	if s.pool == nil {
		return s.appendMessages(ctx, s.querier, sessionID, messages, false)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	txQueries := NewQueries(tx)
	if _, err := txQueries.LockSession(ctx, uuidToPgUUID(sessionID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return fmt.Errorf("locking session: %w", err)
	}

	if err := s.appendMessages(ctx, txQueries, sessionID, messages, true); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("appended messages", "session_id", sessionID, "count", len(messages))
	return nil
}

func (s *Store) appendMessages(ctx context.Context, q Querier, sessionID uuid.UUID, messages []Message, inTx bool) error {
	pgID := uuidToPgUUID(sessionID)

	maxSeq, err := q.GetMaxSequenceNumber(ctx, pgID)
	if err != nil {
		return fmt.Errorf("reading sequence number: %w", err)
	}

	for i, msg := range messages {
		seq := maxSeq + int32(i) + 1 // #nosec G115 -- i bounded by slice length
		if err := q.AddMessage(ctx, AddMessageParams{
			SessionID:      pgID,
			SequenceNumber: seq,
			Role:           msg.Role,
			Content:        msg.Content,
		}); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if err := q.TouchSession(ctx, pgID); err != nil {
		return fmt.Errorf("updating session timestamp: %w", err)
	}

	if !inTx {
		s.logger.Debug("appended messages", "session_id", sessionID, "count", len(messages))
	}
	return nil
}

// AppendExchange appends one user/model message pair. This is the
// common path after each completed chat turn.
func (s *Store) AppendExchange(ctx context.Context, sessionID uuid.UUID, userText, modelText string) error {
	return s.AppendMessages(ctx, sessionID, []Message{
		{Role: RoleUser, Content: userText},
		{Role: RoleModel, Content: modelText},
	})
}

// Messages retrieves messages for a session ordered by sequence number.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit, offset int32) ([]Message, error) {
	rows, err := s.querier.GetMessages(ctx, GetMessagesParams{
		SessionID:    uuidToPgUUID(sessionID),
		ResultLimit:  NormalizeHistoryLimit(limit),
		ResultOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("getting messages for session %s: %w", sessionID, err)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, rowToMessage(row))
	}
	return messages, nil
}

// History loads a session's recent messages as Genkit messages ready
// to prepend to a generate request. Only the last `window` messages
// are returned; window <= 0 loads up to DefaultHistoryLimit.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, window int) ([]*ai.Message, error) {
	limit := DefaultHistoryLimit
	if int32(window) > limit {
		limit = NormalizeHistoryLimit(int32(window))
	}

	messages, err := s.Messages(ctx, sessionID, limit, 0)
	if err != nil {
		return nil, err
	}

	if window > 0 && len(messages) > window {
		messages = messages[len(messages)-window:]
	}

	aiMessages := make([]*ai.Message, len(messages))
	for i, msg := range messages {
		aiMessages[i] = &ai.Message{
			Role:    ai.Role(msg.Role),
			Content: []*ai.Part{ai.NewTextPart(msg.Content)},
		}
	}
	return aiMessages, nil
}

func rowToSession(row SessionRow) *Session {
	sess := &Session{
		ID:           pgUUIDToUUID(row.ID),
		MessageCount: int(row.MessageCount),
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
	if row.Title != nil {
		sess.Title = *row.Title
	}
	if row.ModelName != nil {
		sess.ModelName = *row.ModelName
	}
	return sess
}

func rowToMessage(row MessageRow) Message {
	return Message{
		ID:             row.ID,
		SessionID:      pgUUIDToUUID(row.SessionID),
		Role:           row.Role,
		Content:        row.Content,
		SequenceNumber: int(row.SequenceNumber),
		CreatedAt:      row.CreatedAt.Time,
	}
}

func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	if !pgUUID.Valid {
		return uuid.Nil
	}
	return pgUUID.Bytes
}
