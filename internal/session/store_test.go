package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type mockQuerier struct {
	sessions map[uuid.UUID]SessionRow
	messages map[uuid.UUID][]MessageRow

	createErr  error
	addErr     error
	touchCalls int
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{
		sessions: make(map[uuid.UUID]SessionRow),
		messages: make(map[uuid.UUID][]MessageRow),
	}
}

func (m *mockQuerier) CreateSession(_ context.Context, arg CreateSessionParams) (SessionRow, error) {
	if m.createErr != nil {
		return SessionRow{}, m.createErr
	}
	id := uuid.New()
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	row := SessionRow{
		ID:        pgtype.UUID{Bytes: id, Valid: true},
		Title:     arg.Title,
		ModelName: arg.ModelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[id] = row
	return row, nil
}

func (m *mockQuerier) GetSession(_ context.Context, id pgtype.UUID) (SessionRow, error) {
	row, ok := m.sessions[uuid.UUID(id.Bytes)]
	if !ok {
		return SessionRow{}, pgx.ErrNoRows
	}
	row.MessageCount = int64(len(m.messages[uuid.UUID(id.Bytes)]))
	return row, nil
}

func (m *mockQuerier) ListSessions(_ context.Context, _ ListSessionsParams) ([]SessionRow, error) {
	rows := make([]SessionRow, 0, len(m.sessions))
	for _, row := range m.sessions {
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *mockQuerier) DeleteSession(_ context.Context, id pgtype.UUID) (int64, error) {
	key := uuid.UUID(id.Bytes)
	if _, ok := m.sessions[key]; !ok {
		return 0, nil
	}
	delete(m.sessions, key)
	delete(m.messages, key)
	return 1, nil
}

func (m *mockQuerier) AddMessage(_ context.Context, arg AddMessageParams) error {
	if m.addErr != nil {
		return m.addErr
	}
	key := uuid.UUID(arg.SessionID.Bytes)
	m.messages[key] = append(m.messages[key], MessageRow{
		ID:             int64(len(m.messages[key]) + 1),
		SessionID:      arg.SessionID,
		SequenceNumber: arg.SequenceNumber,
		Role:           arg.Role,
		Content:        arg.Content,
		CreatedAt:      pgtype.Timestamptz{Time: time.Now(), Valid: true},
	})
	return nil
}

func (m *mockQuerier) GetMessages(_ context.Context, arg GetMessagesParams) ([]MessageRow, error) {
	rows := m.messages[uuid.UUID(arg.SessionID.Bytes)]
	if int(arg.ResultLimit) < len(rows) {
		rows = rows[:arg.ResultLimit]
	}
	return rows, nil
}

func (m *mockQuerier) GetMaxSequenceNumber(_ context.Context, sessionID pgtype.UUID) (int32, error) {
	var max int32
	for _, row := range m.messages[uuid.UUID(sessionID.Bytes)] {
		if row.SequenceNumber > max {
			max = row.SequenceNumber
		}
	}
	return max, nil
}

func (m *mockQuerier) TouchSession(_ context.Context, _ pgtype.UUID) error {
	m.touchCalls++
	return nil
}

func TestCreateAndGet(t *testing.T) {
	q := newMockQuerier()
	store := New(q, nil, nil)

	created, err := store.Create(context.Background(), "quarterly report", "llama3.1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Title != "quarterly report" {
		t.Errorf("Title = %q, want %q", created.Title, "quarterly report")
	}
	if created.ModelName != "llama3.1" {
		t.Errorf("ModelName = %q, want %q", created.ModelName, "llama3.1")
	}

	got, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("Get() ID = %v, want %v", got.ID, created.ID)
	}
}

func TestGetNotFound(t *testing.T) {
	store := New(newMockQuerier(), nil, nil)

	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	store := New(newMockQuerier(), nil, nil)

	err := store.Delete(context.Background(), uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Delete() error = %v, want ErrSessionNotFound", err)
	}
}

func TestAppendMessagesSequencing(t *testing.T) {
	q := newMockQuerier()
	store := New(q, nil, nil)

	created, err := store.Create(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.AppendExchange(context.Background(), created.ID, "hello", "hi there"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}
	if err := store.AppendExchange(context.Background(), created.ID, "more", "sure"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	messages, err := store.Messages(context.Background(), created.ID, 100, 0)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("len(messages) = %d, want 4", len(messages))
	}
	for i, msg := range messages {
		if msg.SequenceNumber != i+1 {
			t.Errorf("message %d sequence = %d, want %d", i, msg.SequenceNumber, i+1)
		}
	}
	if messages[0].Role != RoleUser || messages[1].Role != RoleModel {
		t.Errorf("roles = %q, %q; want user, model", messages[0].Role, messages[1].Role)
	}
	if q.touchCalls != 2 {
		t.Errorf("touchCalls = %d, want 2", q.touchCalls)
	}
}

func TestAppendMessagesInvalidRole(t *testing.T) {
	store := New(newMockQuerier(), nil, nil)

	err := store.AppendMessages(context.Background(), uuid.New(), []Message{
		{Role: "system", Content: "nope"},
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("AppendMessages() error = %v, want ErrInvalidRole", err)
	}
}

func TestAppendMessagesEmpty(t *testing.T) {
	q := newMockQuerier()
	store := New(q, nil, nil)

	if err := store.AppendMessages(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("AppendMessages(nil) error = %v", err)
	}
	if q.touchCalls != 0 {
		t.Errorf("touchCalls = %d, want 0", q.touchCalls)
	}
}

func TestHistoryWindow(t *testing.T) {
	q := newMockQuerier()
	store := New(q, nil, nil)

	created, err := store.Create(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := store.AppendExchange(context.Background(), created.ID, "q", "a"); err != nil {
			t.Fatalf("AppendExchange() error = %v", err)
		}
	}

	history, err := store.History(context.Background(), created.ID, 4)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(history))
	}
	// The window keeps the most recent messages; with alternating
	// exchanges it must start on a user turn.
	if history[0].Role != "user" {
		t.Errorf("first windowed role = %q, want user", history[0].Role)
	}
	if got := history[0].Content[0].Text; got != "q" {
		t.Errorf("first windowed text = %q, want q", got)
	}
}

func TestNormalizeHistoryLimit(t *testing.T) {
	tests := []struct {
		in   int32
		want int32
	}{
		{0, DefaultHistoryLimit},
		{-5, DefaultHistoryLimit},
		{50, 50},
		{MaxHistoryLimit + 1, MaxHistoryLimit},
	}

	for _, tt := range tests {
		if got := NormalizeHistoryLimit(tt.in); got != tt.want {
			t.Errorf("NormalizeHistoryLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
