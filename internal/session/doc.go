// Package session provides conversation history persistence with PostgreSQL.
//
// A session represents one conversation containing ordered messages
// exchanged between user and model. The [Store] handles persistence while
// the chat agent handles conversation logic.
//
// Key operations:
//
//   - Session lifecycle: [Store.Create], [Store.Get], [Store.List], [Store.Delete]
//   - Message persistence: [Store.AppendMessages] (transaction-safe batch insertion)
//   - Agent integration: [Store.History], [Store.AppendExchange]
//
// # Transaction Safety
//
// [Store.AppendMessages] uses SELECT ... FOR UPDATE to lock the session row,
// preventing race conditions on sequence numbers during concurrent writes.
// If any step fails, the entire transaction rolls back.
//
// # Concurrency
//
// Store is safe for concurrent use. All state lives in PostgreSQL;
// no shared Go-side state exists.
//
// # Local State
//
// [SaveCurrentSessionID] and [LoadCurrentSessionID] persist the active
// session to ~/.docuchat/current_session so consecutive `ask` invocations
// continue the same conversation.
package session
