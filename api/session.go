package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/docuchat/docuchat/internal/log"
	"github.com/docuchat/docuchat/internal/session"
)

// Session validation limits.
const (
	MaxTitleLength     = 100
	MaxModelNameLength = 100
	DefaultListLimit   = 100
	MaxListLimit       = 1000
	MaxListOffset      = 100000
	MaxMessagesLimit   = 1000
)

// SessionHandler handles session CRUD endpoints.
type SessionHandler struct {
	store        *session.Store
	defaultModel string
	logger       log.Logger
}

// NewSessionHandler creates a session handler. defaultModel is used
// when a create request does not name one.
func NewSessionHandler(store *session.Store, defaultModel string, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, defaultModel: defaultModel, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// list returns sessions ordered by recency.
// Query parameters: limit (default 100, max 1000), offset.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	// #nosec G115 -- both values bounded by parseIntParam
	sessions, err := h.store.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    limit,
		"offset":   offset,
	})
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "TITLE_TOO_LONG", "title too long (max 100 characters)")
		return
	}
	if len(req.ModelName) > MaxModelNameLength {
		writeError(w, http.StatusBadRequest, "MODEL_NAME_TOO_LONG", "model_name too long (max 100 characters)")
		return
	}

	if req.Title == "" {
		req.Title = "New Session"
	}
	if req.ModelName == "" {
		req.ModelName = h.defaultModel
	}

	sess, err := h.store.Create(r.Context(), req.Title, req.ModelName)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "CREATE_FAILED", "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// SessionDetail is a session together with its messages.
type SessionDetail struct {
	*session.Session
	Messages []session.Message `json:"messages"`
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		h.logger.Error("getting session", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "GET_FAILED", "failed to get session")
		return
	}

	messages, err := h.store.Messages(r.Context(), id, MaxMessagesLimit, 0)
	if err != nil {
		h.logger.Error("getting messages", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "GET_FAILED", "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, SessionDetail{Session: sess, Messages: messages})
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
			return
		}
		h.logger.Error("deleting session", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "DELETE_FAILED", "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SESSION_ID", "session id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
