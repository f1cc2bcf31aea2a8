package session

import "errors"

// Sentinel errors for session operations. Check with errors.Is:
//
//	sess, err := store.Get(ctx, id)
//	if errors.Is(err, session.ErrSessionNotFound) {
//	    // handle missing session
//	}
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRole indicates a message role outside user/model.
	ErrInvalidRole = errors.New("invalid message role")
)

// History limits keep a runaway conversation from exhausting memory.
const (
	// DefaultHistoryLimit is the default number of messages to load.
	DefaultHistoryLimit int32 = 100

	// MaxHistoryLimit is the absolute maximum to prevent OOM.
	MaxHistoryLimit int32 = 10000
)

// NormalizeHistoryLimit clamps a history limit to sane bounds.
// Zero or negative values fall back to DefaultHistoryLimit.
func NormalizeHistoryLimit(limit int32) int32 {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleModel
}
